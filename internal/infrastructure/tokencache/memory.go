// Package tokencache holds the CMS access token shared by every sync task.
package tokencache

import (
	"context"
	"sync"
	"time"

	"github.com/Amir-4m/news-editorial/internal/ports"
)

// Memory is a process-local token cache.
type Memory struct {
	mu      sync.Mutex
	token   string
	expires time.Time
	now     func() time.Time
}

var _ ports.TokenCache = (*Memory)(nil)

// NewMemory returns an empty cache.
func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

// Get returns the token while it has not expired.
func (m *Memory) Get(context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" || !m.now().Before(m.expires) {
		return "", false, nil
	}
	return m.token, true, nil
}

// Set replaces the token; the last writer wins.
func (m *Memory) Set(_ context.Context, token string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.expires = m.now().Add(ttl)
	return nil
}

// Invalidate drops the cached token.
func (m *Memory) Invalidate(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.expires = time.Time{}
	return nil
}
