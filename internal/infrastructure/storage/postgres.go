package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Amir-4m/news-editorial/internal/config"
	"github.com/Amir-4m/news-editorial/internal/domain"
	"github.com/Amir-4m/news-editorial/internal/ports"
)

const (
	pingTimeout        = 5 * time.Second
	connMaxLifetime    = 5 * time.Minute
	uniqueViolationSQL = "23505"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var articleColumns = []string{
	"id", "agency_id", "source", "native_id", "title", "summary",
	"original_body", "body", "source_category", "published_at", "source_url",
	"cover_image", "editor_id", "priority", "status", "change_count",
	"comment", "remote_post_id", "created_at", "updated_at",
}

// PostgresStore persists articles, agencies and categories in Postgres.
type PostgresStore struct {
	db *sqlx.DB
}

var _ ports.Store = (*PostgresStore)(nil)

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(connMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// NewPostgresStore wires an sqlx handle.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type articleRow struct {
	ID             int64          `db:"id"`
	AgencyID       sql.NullInt64  `db:"agency_id"`
	Source         string         `db:"source"`
	NativeID       int64          `db:"native_id"`
	Title          string         `db:"title"`
	Summary        string         `db:"summary"`
	OriginalBody   string         `db:"original_body"`
	Body           string         `db:"body"`
	SourceCategory string         `db:"source_category"`
	PublishedAt    time.Time      `db:"published_at"`
	SourceURL      string         `db:"source_url"`
	CoverImage     string         `db:"cover_image"`
	EditorID       sql.NullInt64  `db:"editor_id"`
	Priority       string         `db:"priority"`
	Status         string         `db:"status"`
	ChangeCount    sql.NullInt64  `db:"change_count"`
	Comment        string         `db:"comment"`
	RemotePostID   string         `db:"remote_post_id"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r articleRow) toDomain() domain.Article {
	a := domain.Article{
		ID:             r.ID,
		AgencyID:       r.AgencyID.Int64,
		Source:         r.Source,
		NativeID:       r.NativeID,
		Title:          r.Title,
		Summary:        r.Summary,
		OriginalBody:   r.OriginalBody,
		Body:           r.Body,
		SourceCategory: r.SourceCategory,
		PublishedAt:    r.PublishedAt,
		SourceURL:      r.SourceURL,
		CoverImage:     r.CoverImage,
		Priority:       domain.Priority(r.Priority),
		Status:         domain.Status(r.Status),
		Comment:        r.Comment,
		RemotePostID:   r.RemotePostID,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.EditorID.Valid {
		id := r.EditorID.Int64
		a.EditorID = &id
	}
	if r.ChangeCount.Valid {
		n := int(r.ChangeCount.Int64)
		a.ChangeCount = &n
	}
	return a
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullCount(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolationSQL
}

// CreateIfAbsent inserts the article unless (source, native_id) already exists.
func (s *PostgresStore) CreateIfAbsent(ctx context.Context, article *domain.Article) (bool, error) {
	if article.Priority == "" {
		article.Priority = domain.PriorityMedium
	}
	if article.Status == "" {
		article.Status = domain.StatusVoid
	}

	query, args, err := psql.Insert("articles").
		Columns(
			"agency_id", "source", "native_id", "title", "summary", "original_body", "body",
			"source_category", "published_at", "source_url", "cover_image", "priority", "status",
		).
		Values(
			nullInt(nonZero(article.AgencyID)), article.Source, article.NativeID, article.Title, article.Summary,
			article.OriginalBody, article.Body, article.SourceCategory, article.PublishedAt,
			article.SourceURL, article.CoverImage, string(article.Priority), string(article.Status),
		).
		Suffix("ON CONFLICT (source, native_id) DO NOTHING RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert: %w", err)
	}

	err = s.db.QueryRowxContext(ctx, query, args...).Scan(&article.ID, &article.CreatedAt, &article.UpdatedAt)
	switch {
	case err == nil:
		if len(article.CategoryIDs) > 0 {
			if err := s.AddCategories(ctx, article.ID, article.CategoryIDs...); err != nil {
				return true, err
			}
		}
		return true, nil
	case errors.Is(err, sql.ErrNoRows), isUniqueViolation(err):
		// Lost the insert: another writer already holds the key.
	default:
		return false, fmt.Errorf("insert article: %w", err)
	}

	if err := s.db.GetContext(ctx, &article.ID,
		`SELECT id FROM articles WHERE source = $1 AND native_id = $2`,
		article.Source, article.NativeID,
	); err != nil {
		return false, fmt.Errorf("load existing article: %w", err)
	}
	return false, nil
}

func nonZero(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}

// Get loads one article with its categories.
func (s *PostgresStore) Get(ctx context.Context, id int64) (*domain.Article, error) {
	query, args, err := psql.Select(articleColumns...).From("articles").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var row articleRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("article %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get article %d: %w", id, err)
	}

	articles := []domain.Article{row.toDomain()}
	if err := s.attachCategories(ctx, articles); err != nil {
		return nil, err
	}
	return &articles[0], nil
}

// List returns articles matching the filter ordered by id.
func (s *PostgresStore) List(ctx context.Context, filter ports.ArticleFilter) ([]domain.Article, error) {
	query, args, err := psql.Select(articleColumns...).From("articles").
		Where(filterConditions(filter)).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var rows []articleRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}

	articles := make([]domain.Article, 0, len(rows))
	for _, row := range rows {
		articles = append(articles, row.toDomain())
	}
	if err := s.attachCategories(ctx, articles); err != nil {
		return nil, err
	}
	return articles, nil
}

// Update writes the mutable fields when the stored status still equals expected.
// The ingested body and the category set are not touched.
func (s *PostgresStore) Update(ctx context.Context, article *domain.Article, expected domain.Status) error {
	query, args, err := psql.Update("articles").
		SetMap(map[string]interface{}{
			"title":           article.Title,
			"summary":         article.Summary,
			"body":            article.Body,
			"source_category": article.SourceCategory,
			"cover_image":     article.CoverImage,
			"editor_id":       nullInt(article.EditorID),
			"priority":        string(article.Priority),
			"status":          string(article.Status),
			"change_count":    nullCount(article.ChangeCount),
			"comment":         article.Comment,
			"remote_post_id":  article.RemotePostID,
			"updated_at":      sq.Expr("NOW()"),
		}).
		Where(sq.Eq{"id": article.ID, "status": string(expected)}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	err = s.db.QueryRowxContext(ctx, query, args...).Scan(&article.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update article %d: %w", article.ID, err)
	}

	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM articles WHERE id = $1)`, article.ID); err != nil {
		return fmt.Errorf("check article %d: %w", article.ID, err)
	}
	if !exists {
		return fmt.Errorf("article %d: %w", article.ID, domain.ErrNotFound)
	}
	return fmt.Errorf("article %d: %w", article.ID, domain.ErrStaleStatus)
}

// AddCategories links categories to an article; existing links are kept.
func (s *PostgresStore) AddCategories(ctx context.Context, articleID int64, categoryIDs ...int64) error {
	if len(categoryIDs) == 0 {
		return nil
	}
	insert := psql.Insert("article_categories").Columns("article_id", "category_id")
	for _, id := range categoryIDs {
		insert = insert.Values(articleID, id)
	}
	query, args, err := insert.Suffix("ON CONFLICT DO NOTHING").ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("attach categories to article %d: %w", articleID, err)
	}
	return nil
}

// Delete removes articles matching a non-empty filter.
func (s *PostgresStore) Delete(ctx context.Context, filter ports.ArticleFilter) (int64, error) {
	conds := filterConditions(filter)
	if len(conds) == 0 {
		return 0, errors.New("refusing to delete without filter")
	}
	query, args, err := psql.Delete("articles").Where(conds).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete articles: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func filterConditions(f ports.ArticleFilter) sq.And {
	conds := sq.And{}
	if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		for _, st := range f.Statuses {
			statuses = append(statuses, string(st))
		}
		conds = append(conds, sq.Eq{"status": statuses})
	}
	if f.EditorID != nil {
		conds = append(conds, sq.Eq{"editor_id": *f.EditorID})
	}
	if f.Title != "" {
		conds = append(conds, sq.Eq{"title": f.Title})
	}
	if f.HasRemotePost {
		conds = append(conds, sq.NotEq{"remote_post_id": ""})
	}
	if !f.UpdatedBefore.IsZero() {
		conds = append(conds, sq.Lt{"updated_at": f.UpdatedBefore})
	}
	if f.ExceptID != 0 {
		conds = append(conds, sq.NotEq{"id": f.ExceptID})
	}
	return conds
}

func (s *PostgresStore) attachCategories(ctx context.Context, articles []domain.Article) error {
	if len(articles) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(articles))
	index := make(map[int64]int, len(articles))
	for i, a := range articles {
		ids = append(ids, a.ID)
		index[a.ID] = i
	}

	var links []struct {
		ArticleID  int64 `db:"article_id"`
		CategoryID int64 `db:"category_id"`
	}
	if err := s.db.SelectContext(ctx, &links,
		`SELECT article_id, category_id FROM article_categories WHERE article_id = ANY($1) ORDER BY article_id, category_id`,
		pq.Array(ids),
	); err != nil {
		return fmt.Errorf("load article categories: %w", err)
	}
	for _, l := range links {
		i := index[l.ArticleID]
		articles[i].CategoryIDs = append(articles[i].CategoryIDs, l.CategoryID)
	}
	return nil
}

const agencyColumns = "id, title, slug, website, crawl_enabled"

type agencyRow struct {
	ID           int64  `db:"id"`
	Title        string `db:"title"`
	Slug         string `db:"slug"`
	Website      string `db:"website"`
	CrawlEnabled bool   `db:"crawl_enabled"`
}

func (r agencyRow) toDomain() domain.Agency {
	return domain.Agency{ID: r.ID, Title: r.Title, Slug: r.Slug, Website: r.Website, CrawlEnabled: r.CrawlEnabled}
}

// AgencyBySlug loads the agency registered under slug.
func (s *PostgresStore) AgencyBySlug(ctx context.Context, slug string) (*domain.Agency, error) {
	return s.agency(ctx, "slug = $1", slug)
}

// Agency loads an agency by id.
func (s *PostgresStore) Agency(ctx context.Context, id int64) (*domain.Agency, error) {
	return s.agency(ctx, "id = $1", id)
}

func (s *PostgresStore) agency(ctx context.Context, where string, arg interface{}) (*domain.Agency, error) {
	var row agencyRow
	err := s.db.GetContext(ctx, &row, "SELECT "+agencyColumns+" FROM agencies WHERE "+where, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("agency %v: %w", arg, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get agency %v: %w", arg, err)
	}
	a := row.toDomain()
	return &a, nil
}

// Agencies lists all configured agencies.
func (s *PostgresStore) Agencies(ctx context.Context) ([]domain.Agency, error) {
	var rows []agencyRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT "+agencyColumns+" FROM agencies ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list agencies: %w", err)
	}
	out := make([]domain.Agency, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

type siteCategoryRow struct {
	ID         int64  `db:"id"`
	AgencyID   int64  `db:"agency_id"`
	CategoryID int64  `db:"category_id"`
	URL        string `db:"url"`
	Label      string `db:"label"`
}

// Targets returns the mappings that carry a scrape URL.
func (s *PostgresStore) Targets(ctx context.Context, agencyID int64) ([]domain.SiteCategory, error) {
	var rows []siteCategoryRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, agency_id, category_id, url, label FROM site_categories WHERE agency_id = $1 AND url <> '' ORDER BY id`,
		agencyID,
	); err != nil {
		return nil, fmt.Errorf("list targets for agency %d: %w", agencyID, err)
	}
	out := make([]domain.SiteCategory, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.SiteCategory(r))
	}
	return out, nil
}

// CategoriesForLabel resolves a scraped label through the agency label index.
func (s *PostgresStore) CategoriesForLabel(ctx context.Context, agencyID int64, label string) ([]int64, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, nil
	}
	var ids []int64
	if err := s.db.SelectContext(ctx, &ids,
		`SELECT DISTINCT category_id FROM site_categories WHERE agency_id = $1 AND label = $2 ORDER BY category_id`,
		agencyID, label,
	); err != nil {
		return nil, fmt.Errorf("resolve label %q: %w", label, err)
	}
	return ids, nil
}

// AddLabel records label under the category unless it is already known.
func (s *PostgresStore) AddLabel(ctx context.Context, agencyID, categoryID int64, label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO site_categories (agency_id, category_id, url, label)
		SELECT $1, $2, '', $3
		WHERE NOT EXISTS (
			SELECT 1 FROM site_categories WHERE agency_id = $1 AND category_id = $2 AND label = $3
		)
		ON CONFLICT DO NOTHING`,
		agencyID, categoryID, label,
	)
	if err != nil {
		return fmt.Errorf("add label %q to category %d: %w", label, categoryID, err)
	}
	return nil
}

// SaveAgency upserts by slug.
func (s *PostgresStore) SaveAgency(ctx context.Context, agency *domain.Agency) error {
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO agencies (title, slug, website, crawl_enabled)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (slug) DO UPDATE
		SET title = EXCLUDED.title,
		    website = EXCLUDED.website,
		    crawl_enabled = EXCLUDED.crawl_enabled
		RETURNING id`,
		agency.Title, agency.Slug, agency.Website, agency.CrawlEnabled,
	).Scan(&agency.ID)
	if err != nil {
		return fmt.Errorf("save agency %s: %w", agency.Slug, err)
	}
	return nil
}

// SaveSiteCategory upserts an agency mapping.
func (s *PostgresStore) SaveSiteCategory(ctx context.Context, mapping *domain.SiteCategory) error {
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO site_categories (agency_id, category_id, url, label)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (agency_id, category_id, label, url) DO UPDATE SET label = EXCLUDED.label
		RETURNING id`,
		mapping.AgencyID, mapping.CategoryID, mapping.URL, strings.TrimSpace(mapping.Label),
	).Scan(&mapping.ID)
	if err != nil {
		return fmt.Errorf("save site category: %w", err)
	}
	return nil
}

type categoryRow struct {
	ID         int64         `db:"id"`
	Title      string        `db:"title"`
	ExternalID sql.NullInt64 `db:"external_id"`
}

func (r categoryRow) toDomain() domain.Category {
	c := domain.Category{ID: r.ID, Title: r.Title}
	if r.ExternalID.Valid {
		id := r.ExternalID.Int64
		c.ExternalID = &id
	}
	return c
}

// Category loads one category by id.
func (s *PostgresStore) Category(ctx context.Context, id int64) (*domain.Category, error) {
	var row categoryRow
	if err := s.db.GetContext(ctx, &row, `SELECT id, title, external_id FROM categories WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("category %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get category %d: %w", id, err)
	}
	c := row.toDomain()
	return &c, nil
}

// Categories loads the given categories; unknown ids are skipped.
func (s *PostgresStore) Categories(ctx context.Context, ids []int64) ([]domain.Category, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := psql.Select("id", "title", "external_id").From("categories").
		Where(sq.Eq{"id": ids}).OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	var rows []categoryRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]domain.Category, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// CategoryByTitle loads a category by its unique title.
func (s *PostgresStore) CategoryByTitle(ctx context.Context, title string) (*domain.Category, error) {
	var row categoryRow
	if err := s.db.GetContext(ctx, &row, `SELECT id, title, external_id FROM categories WHERE title = $1`, title); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("category %q: %w", title, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get category %q: %w", title, err)
	}
	c := row.toDomain()
	return &c, nil
}

// SaveCategory upserts by title.
func (s *PostgresStore) SaveCategory(ctx context.Context, category *domain.Category) error {
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO categories (title, external_id)
		VALUES ($1, $2)
		ON CONFLICT (title) DO UPDATE SET external_id = EXCLUDED.external_id
		RETURNING id`,
		category.Title, nullInt(category.ExternalID),
	).Scan(&category.ID)
	if err != nil {
		return fmt.Errorf("save category %q: %w", category.Title, err)
	}
	return nil
}
