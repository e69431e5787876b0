package cms

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Amir-4m/news-editorial/internal/infrastructure/tokencache"
)

type fakeTokenAPI struct {
	issued   []string
	valid    map[string]bool
	tokenErr error
}

func (f *fakeTokenAPI) Token(context.Context) (string, error) {
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	token := "tok-" + string(rune('a'+len(f.issued)))
	f.issued = append(f.issued, token)
	f.valid[token] = true
	return token, nil
}

func (f *fakeTokenAPI) Validate(_ context.Context, token string) (bool, error) {
	return f.valid[token], nil
}

func TestSessionReusesValidToken(t *testing.T) {
	t.Parallel()

	api := &fakeTokenAPI{valid: map[string]bool{}}
	s := NewSession(api, tokencache.NewMemory(), time.Hour, nil)
	ctx := context.Background()

	first, err := s.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	second, err := s.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if first != second || len(api.issued) != 1 {
		t.Fatalf("expected cached token reuse, issued %v", api.issued)
	}
}

func TestSessionReacquiresRejectedToken(t *testing.T) {
	t.Parallel()

	api := &fakeTokenAPI{valid: map[string]bool{}}
	cache := tokencache.NewMemory()
	s := NewSession(api, cache, time.Hour, nil)
	ctx := context.Background()

	first, _ := s.Acquire(ctx)
	api.valid[first] = false

	second, err := s.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if second == first {
		t.Fatal("rejected token must be replaced")
	}
	cached, ok, _ := cache.Get(ctx)
	if !ok || cached != second {
		t.Fatalf("cache not refreshed: %q", cached)
	}
}

func TestSessionAcquireFailureLeavesCache(t *testing.T) {
	t.Parallel()

	boom := errors.New("cms down")
	api := &fakeTokenAPI{valid: map[string]bool{}, tokenErr: boom}
	cache := tokencache.NewMemory()
	_ = cache.Set(context.Background(), "old", time.Hour)
	s := NewSession(api, cache, time.Hour, nil)

	if _, err := s.Acquire(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected acquisition error, got %v", err)
	}
	cached, ok, _ := cache.Get(context.Background())
	if !ok || cached != "old" {
		t.Fatalf("cache must be untouched, got %q ok=%v", cached, ok)
	}
}

type brokenCache struct {
	err error
}

func (c brokenCache) Get(context.Context) (string, bool, error)       { return "", false, c.err }
func (c brokenCache) Set(context.Context, string, time.Duration) error { return c.err }
func (c brokenCache) Invalidate(context.Context) error                 { return c.err }

func TestSessionSurvivesCacheOutage(t *testing.T) {
	t.Parallel()

	api := &fakeTokenAPI{valid: map[string]bool{}}
	s := NewSession(api, brokenCache{err: errors.New("redis: connection refused")}, time.Hour, nil)

	token, err := s.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if token != "tok-a" {
		t.Fatalf("expected freshly issued token, got %q", token)
	}
}

func TestSessionLifetimeCappedByExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewSession(&fakeTokenAPI{valid: map[string]bool{}}, tokencache.NewMemory(), 6*time.Hour, nil)
	s.now = func() time.Time { return now }

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if got := s.lifetime(signed); got != time.Hour {
		t.Fatalf("expected exp to cap ttl at 1h, got %s", got)
	}
	if got := s.lifetime("opaque-token"); got != 6*time.Hour {
		t.Fatalf("opaque tokens keep the configured ttl, got %s", got)
	}
}
