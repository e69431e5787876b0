// Package textdiff counts the edit distance editors introduce into an article body.
package textdiff

import (
	"github.com/pmezard/go-difflib/difflib"
)

// Count returns the number of inserted plus deleted characters needed to turn
// original into edited. A replaced span counts on both sides.
func Count(original, edited string) int {
	if original == edited {
		return 0
	}

	// Popular-element junking would discard most characters of a long body.
	m := difflib.NewMatcherWithJunk(split(original), split(edited), false, nil)
	changes := 0
	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'r':
			changes += (op.I2 - op.I1) + (op.J2 - op.J1)
		case 'd':
			changes += op.I2 - op.I1
		case 'i':
			changes += op.J2 - op.J1
		}
	}
	return changes
}

func split(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
