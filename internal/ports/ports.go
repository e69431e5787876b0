package ports

import (
	"context"
	"time"

	"github.com/Amir-4m/news-editorial/internal/domain"
)

// ArticleFilter narrows article listings. Zero fields are ignored.
type ArticleFilter struct {
	Statuses      []domain.Status
	EditorID      *int64
	Title         string
	HasRemotePost bool
	UpdatedBefore time.Time
	ExceptID      int64
}

// ArticleStore owns articles and the (source, native id) uniqueness invariant.
type ArticleStore interface {
	// CreateIfAbsent inserts the article unless its dedupe key exists.
	// On return article.ID is set either way.
	CreateIfAbsent(ctx context.Context, article *domain.Article) (bool, error)
	Get(ctx context.Context, id int64) (*domain.Article, error)
	List(ctx context.Context, filter ArticleFilter) ([]domain.Article, error)
	// Update writes the mutable fields only if the stored status equals expected.
	Update(ctx context.Context, article *domain.Article, expected domain.Status) error
	AddCategories(ctx context.Context, articleID int64, categoryIDs ...int64) error
	Delete(ctx context.Context, filter ArticleFilter) (int64, error)
}

// AgencyStore exposes operator-owned source configuration.
type AgencyStore interface {
	AgencyBySlug(ctx context.Context, slug string) (*domain.Agency, error)
	Agency(ctx context.Context, id int64) (*domain.Agency, error)
	Agencies(ctx context.Context) ([]domain.Agency, error)
	Targets(ctx context.Context, agencyID int64) ([]domain.SiteCategory, error)
	CategoriesForLabel(ctx context.Context, agencyID int64, label string) ([]int64, error)
	// AddLabel records label as a known variant of the category; repeated calls are no-ops.
	AddLabel(ctx context.Context, agencyID, categoryID int64, label string) error
	SaveAgency(ctx context.Context, agency *domain.Agency) error
	SaveSiteCategory(ctx context.Context, mapping *domain.SiteCategory) error
}

// CategoryStore exposes structured categories.
type CategoryStore interface {
	Category(ctx context.Context, id int64) (*domain.Category, error)
	Categories(ctx context.Context, ids []int64) ([]domain.Category, error)
	CategoryByTitle(ctx context.Context, title string) (*domain.Category, error)
	SaveCategory(ctx context.Context, category *domain.Category) error
}

// Store bundles every persistence port.
type Store interface {
	ArticleStore
	AgencyStore
	CategoryStore
	Close() error
}

// ImageStore keeps cover image binaries.
type ImageStore interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
}

// TokenCache is process-wide CMS token state with a time-to-live.
type TokenCache interface {
	Get(ctx context.Context) (string, bool, error)
	Set(ctx context.Context, token string, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

// PublishQueue hands approved articles to the sync task.
type PublishQueue interface {
	EnqueuePublish(articleID int64)
}

// Scheduler controls when periodic tasks execute.
type Scheduler interface {
	Add(spec string, job func()) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
