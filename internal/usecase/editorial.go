package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Amir-4m/news-editorial/internal/domain"
	"github.com/Amir-4m/news-editorial/internal/infrastructure/metrics"
	"github.com/Amir-4m/news-editorial/internal/ports"
	"github.com/Amir-4m/news-editorial/internal/textdiff"
)

// ErrInvalidRequest is returned when an action's arguments are unusable as a whole.
var ErrInvalidRequest = errors.New("invalid request")

// bulkStatuses are the targets SetStatus accepts.
var bulkStatuses = map[domain.Status]bool{
	domain.StatusJunk:      true,
	domain.StatusEditable:  true,
	domain.StatusWorthless: true,
}

// EditSubmission is an editor's rewrite of an assigned article.
type EditSubmission struct {
	ArticleID int64
	Body      string
	Title     *string
	Summary   *string
}

// Editorial performs the role-gated workflow actions. Each article of a bulk
// action is evaluated on its own; failures are reported, never raised.
type Editorial struct {
	store   ports.Store
	queue   ports.PublishQueue
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewEditorial builds the service; queue receives approved articles.
func NewEditorial(store ports.Store, queue ports.PublishQueue, m *metrics.Metrics, log *slog.Logger) *Editorial {
	if log == nil {
		log = slog.Default()
	}
	return &Editorial{store: store, queue: queue, metrics: m, logger: log.With("component", "editorial")}
}

// SetQueue replaces the publish queue.
func (e *Editorial) SetQueue(queue ports.PublishQueue) {
	e.queue = queue
}

// Assign hands editable articles to an editor.
func (e *Editorial) Assign(ctx context.Context, actor domain.Actor, ids []int64, editorID int64) ([]domain.ActionResult, error) {
	if editorID <= 0 {
		return nil, fmt.Errorf("%w: editor id is required", ErrInvalidRequest)
	}
	return e.transition(ctx, "assign", actor, ids, func(a *domain.Article) error {
		if err := requireStatus(a, domain.StatusAssigned, domain.StatusEditable); err != nil {
			return err
		}
		if err := domain.CheckTransition(actor, a, domain.StatusAssigned); err != nil {
			return err
		}
		a.EditorID = &editorID
		move(a, domain.StatusAssigned)
		return nil
	})
}

// Reassign gives a rejected article to an editor again.
func (e *Editorial) Reassign(ctx context.Context, actor domain.Actor, ids []int64, editorID int64) ([]domain.ActionResult, error) {
	if editorID <= 0 {
		return nil, fmt.Errorf("%w: editor id is required", ErrInvalidRequest)
	}
	return e.transition(ctx, "reassign", actor, ids, func(a *domain.Article) error {
		if err := requireStatus(a, domain.StatusAssigned, domain.StatusRejected); err != nil {
			return err
		}
		if err := domain.CheckTransition(actor, a, domain.StatusAssigned); err != nil {
			return err
		}
		a.EditorID = &editorID
		move(a, domain.StatusAssigned)
		return nil
	})
}

// Reopen sends rejected articles back to the editable pool.
func (e *Editorial) Reopen(ctx context.Context, actor domain.Actor, ids []int64) ([]domain.ActionResult, error) {
	return e.transition(ctx, "reopen", actor, ids, func(a *domain.Article) error {
		if err := requireStatus(a, domain.StatusEditable, domain.StatusRejected); err != nil {
			return err
		}
		if err := domain.CheckTransition(actor, a, domain.StatusEditable); err != nil {
			return err
		}
		move(a, domain.StatusEditable)
		return nil
	})
}

// SetStatus moves articles to junk, editable or worthless.
func (e *Editorial) SetStatus(ctx context.Context, actor domain.Actor, ids []int64, status domain.Status) ([]domain.ActionResult, error) {
	if !bulkStatuses[status] {
		return nil, fmt.Errorf("%w: status %s cannot be set directly", ErrInvalidRequest, status)
	}
	return e.transition(ctx, "set_status", actor, ids, func(a *domain.Article) error {
		if err := domain.CheckTransition(actor, a, status); err != nil {
			return err
		}
		move(a, status)
		return nil
	})
}

// Approve accepts edited articles and queues them for publishing.
func (e *Editorial) Approve(ctx context.Context, actor domain.Actor, ids []int64) ([]domain.ActionResult, error) {
	results, err := e.transition(ctx, "approve", actor, ids, func(a *domain.Article) error {
		if err := domain.CheckTransition(actor, a, domain.StatusApproved); err != nil {
			return err
		}
		move(a, domain.StatusApproved)
		return nil
	})
	if e.queue != nil {
		for _, r := range results {
			if r.OK {
				e.queue.EnqueuePublish(r.ArticleID)
			}
		}
	}
	return results, err
}

// Reject returns assigned or edited articles to their editor with a comment.
func (e *Editorial) Reject(ctx context.Context, actor domain.Actor, ids []int64, comment string) ([]domain.ActionResult, error) {
	comment = strings.TrimSpace(comment)
	return e.transition(ctx, "reject", actor, ids, func(a *domain.Article) error {
		if err := domain.CheckTransition(actor, a, domain.StatusRejected); err != nil {
			return err
		}
		a.Comment = comment
		move(a, domain.StatusRejected)
		return nil
	})
}

// Categorize tags triage-stage articles with one category. When an article
// had no categories yet, its scraped label is learned for the agency.
func (e *Editorial) Categorize(ctx context.Context, actor domain.Actor, ids []int64, categoryID int64) ([]domain.ActionResult, error) {
	category, err := e.store.Category(ctx, categoryID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: category %d does not exist", ErrInvalidRequest, categoryID)
	}
	if err != nil {
		return nil, fmt.Errorf("load category: %w", err)
	}

	results := make([]domain.ActionResult, 0, len(ids))
	for _, id := range uniqueIDs(ids) {
		a, err := e.store.Get(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			results = append(results, e.record("categorize", failure(id, fmt.Sprintf("article %d not found", id))))
			continue
		}
		if err != nil {
			return results, fmt.Errorf("load article %d: %w", id, err)
		}
		if !actor.Has(domain.CapChief) {
			results = append(results, e.record("categorize", failure(id, fmt.Sprintf("article %d: not permitted to categorize", id))))
			continue
		}
		if !a.Status.Triage() {
			results = append(results, e.record("categorize", failure(id,
				fmt.Sprintf("article %d: cannot categorize, current status is %s", id, strings.ToUpper(string(a.Status))))))
			continue
		}

		if len(a.CategoryIDs) == 0 && strings.TrimSpace(a.SourceCategory) != "" {
			if err := e.store.AddLabel(ctx, a.AgencyID, category.ID, a.SourceCategory); err != nil {
				return results, fmt.Errorf("learn label for article %d: %w", id, err)
			}
			e.logger.Info("label mapped to category", "agency_id", a.AgencyID, "label", a.SourceCategory, "category", category.Title)
		}
		if err := e.store.AddCategories(ctx, a.ID, category.ID); err != nil {
			return results, fmt.Errorf("categorize article %d: %w", id, err)
		}
		results = append(results, e.record("categorize", success(id, fmt.Sprintf("article %d categorized as %s", id, category.Title))))
	}
	return results, nil
}

// SubmitEdit stores the assigned editor's rewrite, recomputes the change
// count and drops same-title duplicates from the editor's queue.
func (e *Editorial) SubmitEdit(ctx context.Context, actor domain.Actor, sub EditSubmission) (domain.ActionResult, error) {
	if strings.TrimSpace(sub.Body) == "" {
		return e.record("submit_edit", failure(sub.ArticleID, fmt.Sprintf("article %d: body is empty", sub.ArticleID))), nil
	}

	var title string
	results, err := e.transition(ctx, "submit_edit", actor, []int64{sub.ArticleID}, func(a *domain.Article) error {
		if err := domain.CheckTransition(actor, a, domain.StatusEdited); err != nil {
			return err
		}
		if sub.Title != nil && strings.TrimSpace(*sub.Title) != "" {
			a.Title = strings.TrimSpace(*sub.Title)
		}
		if sub.Summary != nil {
			a.Summary = *sub.Summary
		}
		a.Body = sub.Body
		changes := textdiff.Count(a.OriginalBody, a.Body)
		a.ChangeCount = &changes
		move(a, domain.StatusEdited)
		title = a.Title
		return nil
	})
	if err != nil || len(results) == 0 {
		return domain.ActionResult{ArticleID: sub.ArticleID}, err
	}
	result := results[0]
	if !result.OK {
		return result, nil
	}

	editorID := actor.ID
	removed, err := e.store.Delete(ctx, ports.ArticleFilter{
		Statuses: []domain.Status{domain.StatusAssigned, domain.StatusRejected},
		EditorID: &editorID,
		Title:    title,
		ExceptID: sub.ArticleID,
	})
	if err != nil {
		return result, fmt.Errorf("drop duplicates of article %d: %w", sub.ArticleID, err)
	}
	if removed > 0 {
		e.logger.Info("same-title articles removed", "article_id", sub.ArticleID, "editor_id", editorID, "removed", removed)
	}
	return result, nil
}

// transition loads each article, lets apply mutate it and writes it back
// guarded by the status it was loaded with.
func (e *Editorial) transition(ctx context.Context, action string, actor domain.Actor, ids []int64, apply func(*domain.Article) error) ([]domain.ActionResult, error) {
	results := make([]domain.ActionResult, 0, len(ids))
	for _, id := range uniqueIDs(ids) {
		a, err := e.store.Get(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			results = append(results, e.record(action, failure(id, fmt.Sprintf("article %d not found", id))))
			continue
		}
		if err != nil {
			return results, fmt.Errorf("load article %d: %w", id, err)
		}

		expected := a.Status
		if err := apply(a); err != nil {
			results = append(results, e.record(action, failure(id, err.Error())))
			continue
		}
		err = e.store.Update(ctx, a, expected)
		if errors.Is(err, domain.ErrStaleStatus) || errors.Is(err, domain.ErrNotFound) {
			results = append(results, e.record(action, failure(id, fmt.Sprintf("article %d changed meanwhile, try again", id))))
			continue
		}
		if err != nil {
			return results, fmt.Errorf("update article %d: %w", id, err)
		}
		e.logger.Debug("article updated", "action", action, "article_id", id, "actor_id", actor.ID, "from", expected, "to", a.Status)
		results = append(results, e.record(action, success(id, fmt.Sprintf("article %d is now %s", id, a.Status))))
	}
	return results, nil
}

func (e *Editorial) record(action string, r domain.ActionResult) domain.ActionResult {
	e.metrics.EditorialResult(action, r.OK)
	return r
}

// requireStatus narrows a shared target to one source status.
func requireStatus(a *domain.Article, to, from domain.Status) error {
	if a.Status != from {
		return &domain.TransitionError{ArticleID: a.ID, From: a.Status, To: to, Err: domain.ErrInvalidTransition}
	}
	return nil
}

// move sets the status and keeps the editor assignment consistent with it.
func move(a *domain.Article, to domain.Status) {
	a.Status = to
	if to.ForbidsEditor() {
		a.EditorID = nil
	}
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func success(id int64, msg string) domain.ActionResult {
	return domain.ActionResult{ArticleID: id, OK: true, Message: msg}
}

func failure(id int64, msg string) domain.ActionResult {
	return domain.ActionResult{ArticleID: id, Message: msg}
}
