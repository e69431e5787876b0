package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Amir-4m/news-editorial/internal/domain"
	"github.com/Amir-4m/news-editorial/internal/ports"
)

type dedupeKey struct {
	source   string
	nativeID int64
}

// MemoryStore keeps everything in process memory. It honours the same
// uniqueness and compare-and-set rules as the Postgres store.
type MemoryStore struct {
	mu sync.RWMutex

	now func() time.Time

	nextArticle  int64
	articles     map[int64]*domain.Article
	byKey        map[dedupeKey]int64
	nextAgency   int64
	agencies     map[int64]*domain.Agency
	nextMapping  int64
	mappings     []domain.SiteCategory
	nextCategory int64
	categories   map[int64]*domain.Category
}

var _ ports.Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:        time.Now,
		articles:   map[int64]*domain.Article{},
		byKey:      map[dedupeKey]int64{},
		agencies:   map[int64]*domain.Agency{},
		categories: map[int64]*domain.Category{},
	}
}

// SetClock overrides the clock used for created/updated stamps.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) CreateIfAbsent(_ context.Context, article *domain.Article) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := dedupeKey{source: article.Source, nativeID: article.NativeID}
	if id, ok := m.byKey[key]; ok {
		article.ID = id
		return false, nil
	}

	if article.Priority == "" {
		article.Priority = domain.PriorityMedium
	}
	if article.Status == "" {
		article.Status = domain.StatusVoid
	}
	m.nextArticle++
	article.ID = m.nextArticle
	now := m.now()
	article.CreatedAt, article.UpdatedAt = now, now
	article.CategoryIDs = uniqueSorted(article.CategoryIDs)

	m.articles[article.ID] = article.Clone()
	m.byKey[key] = article.ID
	return true, nil
}

func (m *MemoryStore) Get(_ context.Context, id int64) (*domain.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.articles[id]
	if !ok {
		return nil, fmt.Errorf("article %d: %w", id, domain.ErrNotFound)
	}
	return a.Clone(), nil
}

func (m *MemoryStore) List(_ context.Context, filter ports.ArticleFilter) ([]domain.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Article, 0)
	for _, a := range m.articles {
		if matches(a, filter) {
			out = append(out, *a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) Update(_ context.Context, article *domain.Article, expected domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.articles[article.ID]
	if !ok {
		return fmt.Errorf("article %d: %w", article.ID, domain.ErrNotFound)
	}
	if stored.Status != expected {
		return fmt.Errorf("article %d: %w", article.ID, domain.ErrStaleStatus)
	}

	next := article.Clone()
	next.OriginalBody = stored.OriginalBody
	next.CategoryIDs = stored.CategoryIDs
	next.Source, next.NativeID, next.AgencyID = stored.Source, stored.NativeID, stored.AgencyID
	next.CreatedAt = stored.CreatedAt
	next.UpdatedAt = m.now()
	m.articles[article.ID] = next
	article.UpdatedAt = next.UpdatedAt
	return nil
}

func (m *MemoryStore) AddCategories(_ context.Context, articleID int64, categoryIDs ...int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.articles[articleID]
	if !ok {
		return fmt.Errorf("article %d: %w", articleID, domain.ErrNotFound)
	}
	a.CategoryIDs = uniqueSorted(append(a.CategoryIDs, categoryIDs...))
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, filter ports.ArticleFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if filterEmpty(filter) {
		return 0, fmt.Errorf("refusing to delete without filter")
	}
	var n int64
	for id, a := range m.articles {
		if !matches(a, filter) {
			continue
		}
		delete(m.articles, id)
		delete(m.byKey, dedupeKey{source: a.Source, nativeID: a.NativeID})
		n++
	}
	return n, nil
}

// Touch rewinds an article's updated stamp; tests use it to age records.
func (m *MemoryStore) Touch(id int64, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.articles[id]; ok {
		a.UpdatedAt = at
	}
}

func matches(a *domain.Article, f ports.ArticleFilter) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if a.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.EditorID != nil && !a.AssignedTo(*f.EditorID) {
		return false
	}
	if f.Title != "" && a.Title != f.Title {
		return false
	}
	if f.HasRemotePost && a.RemotePostID == "" {
		return false
	}
	if !f.UpdatedBefore.IsZero() && !a.UpdatedAt.Before(f.UpdatedBefore) {
		return false
	}
	if f.ExceptID != 0 && a.ID == f.ExceptID {
		return false
	}
	return true
}

func filterEmpty(f ports.ArticleFilter) bool {
	return len(f.Statuses) == 0 && f.EditorID == nil && f.Title == "" &&
		!f.HasRemotePost && f.UpdatedBefore.IsZero() && f.ExceptID == 0
}

func uniqueSorted(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m *MemoryStore) AgencyBySlug(_ context.Context, slug string) (*domain.Agency, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.agencies {
		if a.Slug == slug {
			c := *a
			return &c, nil
		}
	}
	return nil, fmt.Errorf("agency %s: %w", slug, domain.ErrNotFound)
}

func (m *MemoryStore) Agency(_ context.Context, id int64) (*domain.Agency, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agencies[id]
	if !ok {
		return nil, fmt.Errorf("agency %d: %w", id, domain.ErrNotFound)
	}
	c := *a
	return &c, nil
}

func (m *MemoryStore) Agencies(_ context.Context) ([]domain.Agency, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Agency, 0, len(m.agencies))
	for _, a := range m.agencies {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) Targets(_ context.Context, agencyID int64) ([]domain.SiteCategory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.SiteCategory
	for _, sc := range m.mappings {
		if sc.AgencyID == agencyID && sc.URL != "" {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (m *MemoryStore) CategoriesForLabel(_ context.Context, agencyID int64, label string) ([]int64, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []int64
	for _, sc := range m.mappings {
		if sc.AgencyID == agencyID && sc.Label == label {
			ids = append(ids, sc.CategoryID)
		}
	}
	return uniqueSorted(ids), nil
}

func (m *MemoryStore) AddLabel(_ context.Context, agencyID, categoryID int64, label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sc := range m.mappings {
		if sc.AgencyID == agencyID && sc.CategoryID == categoryID && sc.Label == label {
			return nil
		}
	}
	m.nextMapping++
	m.mappings = append(m.mappings, domain.SiteCategory{
		ID: m.nextMapping, AgencyID: agencyID, CategoryID: categoryID, Label: label,
	})
	return nil
}

func (m *MemoryStore) SaveAgency(_ context.Context, agency *domain.Agency) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, a := range m.agencies {
		if a.Slug == agency.Slug {
			agency.ID = id
			c := *agency
			m.agencies[id] = &c
			return nil
		}
	}
	m.nextAgency++
	agency.ID = m.nextAgency
	c := *agency
	m.agencies[agency.ID] = &c
	return nil
}

func (m *MemoryStore) SaveSiteCategory(_ context.Context, mapping *domain.SiteCategory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mapping.Label = strings.TrimSpace(mapping.Label)
	for _, sc := range m.mappings {
		if sc.AgencyID == mapping.AgencyID && sc.CategoryID == mapping.CategoryID &&
			sc.Label == mapping.Label && sc.URL == mapping.URL {
			mapping.ID = sc.ID
			return nil
		}
	}
	m.nextMapping++
	mapping.ID = m.nextMapping
	m.mappings = append(m.mappings, *mapping)
	return nil
}

func (m *MemoryStore) Category(_ context.Context, id int64) (*domain.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.categories[id]
	if !ok {
		return nil, fmt.Errorf("category %d: %w", id, domain.ErrNotFound)
	}
	out := *c
	return &out, nil
}

func (m *MemoryStore) Categories(_ context.Context, ids []int64) ([]domain.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Category
	for _, id := range uniqueSorted(ids) {
		if c, ok := m.categories[id]; ok {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *MemoryStore) CategoryByTitle(_ context.Context, title string) (*domain.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.categories {
		if c.Title == title {
			out := *c
			return &out, nil
		}
	}
	return nil, fmt.Errorf("category %q: %w", title, domain.ErrNotFound)
}

func (m *MemoryStore) SaveCategory(_ context.Context, category *domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.categories {
		if c.Title == category.Title {
			category.ID = id
			c.ExternalID = category.ExternalID
			return nil
		}
	}
	m.nextCategory++
	category.ID = m.nextCategory
	c := *category
	m.categories[category.ID] = &c
	return nil
}
