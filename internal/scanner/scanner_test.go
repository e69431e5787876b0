package scanner

import (
	"context"
	"errors"
	"testing"

	"github.com/Amir-4m/news-editorial/internal/domain"
)

type stubAdapter struct{ name string }

func (s stubAdapter) Name() string { return s.name }

func (s stubAdapter) CollectLinks(context.Context, []Target) []Link { return nil }

func (s stubAdapter) CollectArticle(context.Context, Link) (*domain.Draft, error) { return nil, nil }

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(stubAdapter{name: "isna"})
	reg.Register(stubAdapter{name: "ilna"})

	if _, err := reg.Resolve("isna"); err != nil {
		t.Fatalf("resolve isna: %v", err)
	}
	if _, err := reg.Resolve("tasnim"); !errors.Is(err, ErrAdapterNotFound) {
		t.Fatalf("expected ErrAdapterNotFound, got %v", err)
	}
	if names := reg.Names(); len(names) != 2 || names[0] != "ilna" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestDedupe(t *testing.T) {
	t.Parallel()

	links := []Link{
		{URL: "https://a/1", CategoryID: 1},
		{URL: "https://a/2", CategoryID: 1},
		{URL: "https://a/1", CategoryID: 1},
		{URL: "https://a/1", CategoryID: 2},
	}
	got := Dedupe(links)
	if len(got) != 3 {
		t.Fatalf("expected 3 links, got %d", len(got))
	}
	if got[0].URL != "https://a/1" || got[2].CategoryID != 2 {
		t.Fatalf("order not preserved: %+v", got)
	}
}
