package cms

import (
	"context"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Amir-4m/news-editorial/internal/ports"
)

const defaultTokenTTL = 6 * time.Hour

// tokenAPI is what Session needs from Client.
type tokenAPI interface {
	Token(ctx context.Context) (string, error)
	Validate(ctx context.Context, token string) (bool, error)
}

// Session hands out a valid token, reusing the shared cache when possible.
type Session struct {
	api    tokenAPI
	cache  ports.TokenCache
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewSession wires the token source with a cache; ttl defaults to six hours.
func NewSession(api tokenAPI, cache ports.TokenCache, ttl time.Duration, log *slog.Logger) *Session {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Session{api: api, cache: cache, ttl: ttl, now: time.Now, logger: log.With("component", "cms_session")}
}

// Acquire returns a token the CMS currently accepts. A cached token that
// fails validation is replaced. On acquisition failure the cache is left as
// is; a cache that cannot be written still yields the fresh token.
func (s *Session) Acquire(ctx context.Context) (string, error) {
	token, ok, err := s.cache.Get(ctx)
	if err != nil {
		s.logger.Warn("token cache read failed", "error", err)
		ok = false
	}
	if ok {
		valid, err := s.api.Validate(ctx, token)
		if err != nil {
			return "", err
		}
		if valid {
			return token, nil
		}
		s.logger.Info("cached token rejected, acquiring a new one")
	}

	token, err = s.api.Token(ctx)
	if err != nil {
		return "", err
	}
	if err := s.cache.Set(ctx, token, s.lifetime(token)); err != nil {
		s.logger.Warn("token cache write failed", "error", err)
	}
	return token, nil
}

// Invalidate drops the shared token so the next Acquire re-authenticates.
func (s *Session) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx)
}

// lifetime caps the configured window by the JWT exp claim when present.
func (s *Session) lifetime(token string) time.Duration {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil || claims.ExpiresAt == nil {
		return s.ttl
	}
	left := claims.ExpiresAt.Time.Sub(s.now())
	if left <= 0 {
		return time.Second
	}
	if left < s.ttl {
		return left
	}
	return s.ttl
}
