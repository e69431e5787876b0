// Package jalali converts Solar Hijri (Jalali) calendar dates as printed by
// Persian news sites into time.Time values.
package jalali

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// breaks are the Jalali years where the 33-year leap cycle restarts.
var breaks = []int{
	-61, 9, 38, 199, 426, 686, 756, 818, 1111, 1181, 1210,
	1635, 2060, 2097, 2192, 2262, 2324, 2394, 2456, 3178,
}

var months = []string{
	"فروردین", "اردیبهشت", "خرداد", "تیر", "مرداد", "شهریور",
	"مهر", "آبان", "آذر", "دی", "بهمن", "اسفند",
}

var (
	clockExpr   = regexp.MustCompile(`(\d{1,2})\s*:\s*(\d{1,2})`)
	numericDate = regexp.MustCompile(`(\d{4})\s*/\s*(\d{1,2})\s*/\s*(\d{1,2})`)
)

// Normalize maps Persian and Arabic-Indic digits to ASCII and Arabic letter
// variants (yeh, kaf) to their Persian forms.
func Normalize(s string) string {
	t := transform.Chain(norm.NFC, runes.Map(mapRune))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func mapRune(r rune) rune {
	switch {
	case r >= '۰' && r <= '۹':
		return '0' + (r - '۰')
	case r >= '٠' && r <= '٩':
		return '0' + (r - '٠')
	case r == 'ي' || r == 'ى':
		return 'ی'
	case r == 'ك':
		return 'ک'
	case r == '\u200c':
		return ' '
	}
	return r
}

// Month returns the 1-based month number for a Persian month name.
func Month(name string) (int, bool) {
	name = strings.TrimSpace(Normalize(name))
	for i, m := range months {
		if m == name {
			return i + 1, true
		}
	}
	return 0, false
}

// ParseDate extracts year, month and day from text such as
// "سه‌شنبه / ۲۵ آذر ۱۳۹۹" or "1399/09/25".
func ParseDate(text string) (year, month, day int, err error) {
	text = Normalize(text)

	if m := numericDate.FindStringSubmatch(text); m != nil {
		year, _ = strconv.Atoi(m[1])
		month, _ = strconv.Atoi(m[2])
		day, _ = strconv.Atoi(m[3])
		return year, month, day, nil
	}

	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, f := range fields {
		mon, ok := Month(f)
		if !ok {
			continue
		}
		if i == 0 || i+1 >= len(fields) {
			break
		}
		d, dErr := strconv.Atoi(fields[i-1])
		y, yErr := strconv.Atoi(fields[i+1])
		if dErr != nil || yErr != nil {
			break
		}
		return y, mon, d, nil
	}
	return 0, 0, 0, fmt.Errorf("no jalali date in %q", text)
}

// ParseClock extracts the first "HH:MM" pair. The pair is returned in the
// order it is printed.
func ParseClock(text string) (first, second int, ok bool) {
	m := clockExpr.FindStringSubmatch(Normalize(text))
	if m == nil {
		return 0, 0, false
	}
	first, _ = strconv.Atoi(m[1])
	second, _ = strconv.Atoi(m[2])
	return first, second, true
}

// Date converts a Jalali date and wall clock in loc to a time.Time.
func Date(year, month, day, hour, minute int, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if err := validate(year, month, day); err != nil {
		return time.Time{}, err
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("invalid clock %02d:%02d", hour, minute)
	}

	gy, march, _ := cal(year)
	offset := (month-1)*31 - (month/7)*(month-7) + day - 1
	return time.Date(gy, time.March, march+offset, hour, minute, 0, 0, loc), nil
}

// IsLeap reports whether the Jalali year has 30 days in Esfand.
func IsLeap(year int) bool {
	_, _, leap := cal(year)
	return leap == 0
}

func validate(year, month, day int) error {
	if year < breaks[0] || year >= breaks[len(breaks)-1] {
		return fmt.Errorf("jalali year %d out of range", year)
	}
	if month < 1 || month > 12 {
		return fmt.Errorf("invalid jalali month %d", month)
	}
	maxDay := 31
	switch {
	case month > 6 && month < 12:
		maxDay = 30
	case month == 12:
		maxDay = 29
		if IsLeap(year) {
			maxDay = 30
		}
	}
	if day < 1 || day > maxDay {
		return fmt.Errorf("invalid day %d for jalali month %d", day, month)
	}
	return nil
}

// cal returns the Gregorian year starting the Jalali year, the March day
// of Nowruz and the position in the leap cycle (0 means leap).
func cal(jy int) (gy, march, leap int) {
	gy = jy + 621
	leapJ := -14
	jp := breaks[0]
	jump := 0
	for i := 1; i < len(breaks); i++ {
		jm := breaks[i]
		jump = jm - jp
		if jy < jm {
			break
		}
		leapJ += jump/33*8 + (jump%33)/4
		jp = jm
	}
	n := jy - jp
	leapJ += n/33*8 + (n%33+3)/4
	if jump%33 == 4 && jump-n == 4 {
		leapJ++
	}
	leapG := gy/4 - (gy/100+1)*3/4 - 150
	march = 20 + leapJ - leapG

	if jump-n < 6 {
		n = n - jump + (jump+4)/33*33
	}
	leap = ((n+1)%33 - 1) % 4
	if leap == -1 {
		leap = 4
	}
	return gy, march, leap
}
