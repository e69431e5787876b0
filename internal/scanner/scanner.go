package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Amir-4m/news-editorial/internal/domain"
)

// ErrAdapterNotFound is returned when no adapter is registered for a source.
var ErrAdapterNotFound = errors.New("adapter is not registered")

// Target is a configured listing page and the category it is mapped to.
type Target struct {
	URL        string
	CategoryID int64
}

// Link is an article detail page discovered on a target.
type Link struct {
	URL        string
	CategoryID int64
}

// Adapter captures one hand-written news source (ilna, isna, etc.).
type Adapter interface {
	Name() string
	// CollectLinks never fails as a whole: broken targets are logged and skipped.
	CollectLinks(ctx context.Context, targets []Target) []Link
	CollectArticle(ctx context.Context, link Link) (*domain.Draft, error)
}

// Registry keeps a mapping from source slugs to their adapters.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: map[string]Adapter{}}
}

// Register adds or replaces an adapter implementation.
func (r *Registry) Register(adapter Adapter) {
	if r.adapters == nil {
		r.adapters = map[string]Adapter{}
	}
	r.adapters[adapter.Name()] = adapter
}

// Resolve returns an adapter by name or ErrAdapterNotFound.
func (r *Registry) Resolve(name string) (Adapter, error) {
	if adapter, ok := r.adapters[name]; ok {
		return adapter, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrAdapterNotFound, name)
}

// Names lists registered adapters in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dedupe drops repeated links, keeping the first occurrence.
func Dedupe(links []Link) []Link {
	seen := make(map[Link]struct{}, len(links))
	out := make([]Link, 0, len(links))
	for _, l := range links {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
