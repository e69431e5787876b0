package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/Amir-4m/news-editorial/internal/domain"
	"github.com/Amir-4m/news-editorial/internal/infrastructure/cms"
	"github.com/Amir-4m/news-editorial/internal/infrastructure/metrics"
	"github.com/Amir-4m/news-editorial/internal/ports"
	"github.com/Amir-4m/news-editorial/internal/textdiff"
)

const (
	remotePublished  = "publish"
	defaultQuiescent = time.Hour
)

// ErrPublishInFlight is returned when another publish of the same article
// has not finished yet.
var ErrPublishInFlight = errors.New("publish already in progress")

// CMS is the subset of the CMS client the sync service calls.
type CMS interface {
	UploadMedia(ctx context.Context, token, name string, data []byte) (int64, error)
	CreatePost(ctx context.Context, token string, post cms.Post) (int64, error)
	GetPost(ctx context.Context, token string, id int64) (cms.RemotePost, error)
}

// TokenSource hands out CMS tokens.
type TokenSource interface {
	Acquire(ctx context.Context) (string, error)
	Invalidate(ctx context.Context) error
}

// SyncDeps wires the sync service.
type SyncDeps struct {
	Store      ports.Store
	Images     ports.ImageStore
	CMS        CMS
	Tokens     TokenSource
	AuthorID   int64
	Quiescence time.Duration
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// SyncReport counts the outcome of a batch sync.
type SyncReport struct {
	Processed int
	Failed    int
}

// Sync pushes approved articles to the CMS and pulls remote edits back.
type Sync struct {
	store      ports.Store
	images     ports.ImageStore
	cms        CMS
	tokens     TokenSource
	authorID   int64
	quiescence time.Duration
	now        func() time.Time
	metrics    *metrics.Metrics
	logger     *slog.Logger

	mu         sync.Mutex
	publishing map[int64]struct{}
}

// NewSync constructs the sync service.
func NewSync(deps SyncDeps) *Sync {
	q := deps.Quiescence
	if q <= 0 {
		q = defaultQuiescent
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Sync{
		store:      deps.Store,
		images:     deps.Images,
		cms:        deps.CMS,
		tokens:     deps.Tokens,
		authorID:   deps.AuthorID,
		quiescence: q,
		now:        time.Now,
		metrics:    deps.Metrics,
		logger:     log.With("component", "sync"),
		publishing: map[int64]struct{}{},
	}
}

// Publish creates the CMS post of an approved article. On any failure the
// article stays approved so a later run can retry. The article is claimed
// before loading it; a concurrent publish of it gets ErrPublishInFlight.
func (s *Sync) Publish(ctx context.Context, articleID int64) (err error) {
	defer func() { s.metrics.SyncOutcome("publish", err) }()

	release, ok := s.claim(articleID)
	if !ok {
		return fmt.Errorf("article %d: %w", articleID, ErrPublishInFlight)
	}
	defer release()

	a, err := s.store.Get(ctx, articleID)
	if err != nil {
		return fmt.Errorf("load article: %w", err)
	}
	if err := domain.CheckTransition(domain.SystemActor, a, domain.StatusPublished); err != nil {
		return err
	}
	if a.CoverImage == "" {
		return fmt.Errorf("article %d has no cover image", a.ID)
	}
	image, err := s.images.Get(ctx, a.CoverImage)
	if err != nil {
		return fmt.Errorf("load cover image: %w", err)
	}
	categories, err := s.externalCategories(ctx, a.CategoryIDs)
	if err != nil {
		return err
	}

	token, err := s.tokens.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire cms token: %w", err)
	}
	mediaID, err := s.cms.UploadMedia(ctx, token, path.Base(a.CoverImage), image)
	if err != nil {
		s.forgetRejected(ctx, err)
		return fmt.Errorf("article %d: %w", a.ID, err)
	}
	postID, err := s.cms.CreatePost(ctx, token, cms.Post{
		Title:         a.Title,
		Content:       a.Body,
		Slug:          a.Title,
		Excerpt:       a.Summary,
		Author:        s.authorID,
		Status:        "draft",
		Categories:    categories,
		FeaturedMedia: mediaID,
	})
	if err != nil {
		s.forgetRejected(ctx, err)
		return fmt.Errorf("article %d: %w", a.ID, err)
	}

	a.RemotePostID = strconv.FormatInt(postID, 10)
	a.Status = domain.StatusPublished
	if err := s.store.Update(ctx, a, domain.StatusApproved); err != nil {
		return fmt.Errorf("record remote post %d for article %d: %w", postID, a.ID, err)
	}
	s.logger.Info("article published", "article_id", a.ID, "remote_post_id", postID, "media_id", mediaID)
	return nil
}

// Pull refreshes a published article from its CMS post. Remote content is
// authoritative; status only moves forward.
func (s *Sync) Pull(ctx context.Context, articleID int64) (err error) {
	defer func() { s.metrics.SyncOutcome("pull", err) }()

	a, err := s.store.Get(ctx, articleID)
	if err != nil {
		return fmt.Errorf("load article: %w", err)
	}
	if a.RemotePostID == "" {
		return fmt.Errorf("article %d has no remote post", a.ID)
	}
	postID, err := strconv.ParseInt(a.RemotePostID, 10, 64)
	if err != nil {
		return fmt.Errorf("article %d remote post id %q: %w", a.ID, a.RemotePostID, err)
	}

	token, err := s.tokens.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire cms token: %w", err)
	}
	remote, err := s.cms.GetPost(ctx, token, postID)
	if err != nil {
		s.forgetRejected(ctx, err)
		return fmt.Errorf("article %d: %w", a.ID, err)
	}

	expected := a.Status
	changes := textdiff.Count(a.OriginalBody, remote.Raw)
	a.ChangeCount = &changes
	a.Body = remote.Raw
	if remote.Status == remotePublished && domain.CheckTransition(domain.SystemActor, a, domain.StatusPublished) == nil {
		a.Status = domain.StatusPublished
	}
	if err := s.store.Update(ctx, a, expected); err != nil {
		return fmt.Errorf("store pulled article %d: %w", a.ID, err)
	}
	s.logger.Debug("article pulled", "article_id", a.ID, "remote_post_id", postID, "remote_status", remote.Status, "changes", changes)
	return nil
}

// ReconcilePublished pulls every published article that has been quiet for
// the quiescence window.
func (s *Sync) ReconcilePublished(ctx context.Context) (SyncReport, error) {
	articles, err := s.store.List(ctx, ports.ArticleFilter{
		Statuses:      []domain.Status{domain.StatusPublished},
		HasRemotePost: true,
		UpdatedBefore: s.now().Add(-s.quiescence),
	})
	if err != nil {
		return SyncReport{}, fmt.Errorf("list published articles: %w", err)
	}
	return s.each(ctx, "pull", articles, s.Pull), nil
}

// PublishPending retries every approved article. Articles another run is
// already publishing, or that left approved since the listing, are skipped.
func (s *Sync) PublishPending(ctx context.Context) (SyncReport, error) {
	articles, err := s.store.List(ctx, ports.ArticleFilter{Statuses: []domain.Status{domain.StatusApproved}})
	if err != nil {
		return SyncReport{}, fmt.Errorf("list approved articles: %w", err)
	}
	return s.each(ctx, "publish", articles, func(ctx context.Context, id int64) error {
		err := s.Publish(ctx, id)
		if errors.Is(err, ErrPublishInFlight) || errors.Is(err, domain.ErrInvalidTransition) {
			s.logger.Debug("publish skipped", "article_id", id, "reason", err)
			return nil
		}
		return err
	}), nil
}

func (s *Sync) claim(articleID int64) (func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.publishing[articleID]; busy {
		return nil, false
	}
	s.publishing[articleID] = struct{}{}
	return func() {
		s.mu.Lock()
		delete(s.publishing, articleID)
		s.mu.Unlock()
	}, true
}

func (s *Sync) each(ctx context.Context, op string, articles []domain.Article, fn func(context.Context, int64) error) SyncReport {
	var report SyncReport
	for _, a := range articles {
		if ctx.Err() != nil {
			break
		}
		report.Processed++
		if err := fn(ctx, a.ID); err != nil {
			report.Failed++
			s.logger.Warn("sync failed", "operation", op, "article_id", a.ID, "error", err)
		}
	}
	return report
}

func (s *Sync) externalCategories(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	categories, err := s.store.Categories(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	var out []int64
	for _, c := range categories {
		if c.ExternalID != nil {
			out = append(out, *c.ExternalID)
		}
	}
	return out, nil
}

// forgetRejected drops the shared token when the CMS refused it.
func (s *Sync) forgetRejected(ctx context.Context, err error) {
	if !errors.Is(err, cms.ErrUnauthorized) {
		return
	}
	if err := s.tokens.Invalidate(ctx); err != nil {
		s.logger.Warn("invalidate token failed", "error", err)
	}
}
