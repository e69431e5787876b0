package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Amir-4m/news-editorial/internal/domain"
	"github.com/Amir-4m/news-editorial/internal/ports"
	"github.com/Amir-4m/news-editorial/internal/usecase"
)

type bulkRequest struct {
	ArticleIDs []int64 `json:"article_ids" binding:"required,min=1"`
}

type assignRequest struct {
	bulkRequest
	EditorID int64 `json:"editor_id" binding:"required"`
}

type categorizeRequest struct {
	bulkRequest
	CategoryID int64 `json:"category_id" binding:"required"`
}

type statusRequest struct {
	bulkRequest
	Status string `json:"status" binding:"required"`
}

type rejectRequest struct {
	bulkRequest
	Comment string `json:"comment"`
}

type editRequest struct {
	Body    string  `json:"body" binding:"required"`
	Title   *string `json:"title"`
	Summary *string `json:"summary"`
}

type articleHandler struct {
	editorial Editorial
	log       *slog.Logger
}

// Assign handles POST /api/articles/assign
func (h *articleHandler) Assign(c *gin.Context) {
	var req assignRequest
	if !bind(c, &req) {
		return
	}
	results, err := h.editorial.Assign(c.Request.Context(), actorFrom(c), req.ArticleIDs, req.EditorID)
	h.respond(c, results, err)
}

// Categorize handles POST /api/articles/categorize
func (h *articleHandler) Categorize(c *gin.Context) {
	var req categorizeRequest
	if !bind(c, &req) {
		return
	}
	results, err := h.editorial.Categorize(c.Request.Context(), actorFrom(c), req.ArticleIDs, req.CategoryID)
	h.respond(c, results, err)
}

// SetStatus handles POST /api/articles/status
func (h *articleHandler) SetStatus(c *gin.Context) {
	var req statusRequest
	if !bind(c, &req) {
		return
	}
	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	results, err := h.editorial.SetStatus(c.Request.Context(), actorFrom(c), req.ArticleIDs, status)
	h.respond(c, results, err)
}

// Approve handles POST /api/articles/approve
func (h *articleHandler) Approve(c *gin.Context) {
	var req bulkRequest
	if !bind(c, &req) {
		return
	}
	results, err := h.editorial.Approve(c.Request.Context(), actorFrom(c), req.ArticleIDs)
	h.respond(c, results, err)
}

// Reject handles POST /api/articles/reject
func (h *articleHandler) Reject(c *gin.Context) {
	var req rejectRequest
	if !bind(c, &req) {
		return
	}
	results, err := h.editorial.Reject(c.Request.Context(), actorFrom(c), req.ArticleIDs, req.Comment)
	h.respond(c, results, err)
}

// Reassign handles POST /api/articles/reassign
func (h *articleHandler) Reassign(c *gin.Context) {
	var req assignRequest
	if !bind(c, &req) {
		return
	}
	results, err := h.editorial.Reassign(c.Request.Context(), actorFrom(c), req.ArticleIDs, req.EditorID)
	h.respond(c, results, err)
}

// Reopen handles POST /api/articles/reopen
func (h *articleHandler) Reopen(c *gin.Context) {
	var req bulkRequest
	if !bind(c, &req) {
		return
	}
	results, err := h.editorial.Reopen(c.Request.Context(), actorFrom(c), req.ArticleIDs)
	h.respond(c, results, err)
}

// SubmitEdit handles PUT /api/articles/:id/edit
func (h *articleHandler) SubmitEdit(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid article id"})
		return
	}
	var req editRequest
	if !bind(c, &req) {
		return
	}
	result, err := h.editorial.SubmitEdit(c.Request.Context(), actorFrom(c), usecase.EditSubmission{
		ArticleID: id,
		Body:      req.Body,
		Title:     req.Title,
		Summary:   req.Summary,
	})
	if err != nil {
		h.respond(c, nil, err)
		return
	}
	h.respond(c, []domain.ActionResult{result}, nil)
}

func (h *articleHandler) respond(c *gin.Context, results []domain.ActionResult, err error) {
	switch {
	case errors.Is(err, usecase.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		h.log.Error("editorial action failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	default:
		c.JSON(http.StatusOK, gin.H{"results": results})
	}
}

type agencyHandler struct {
	crawls   CrawlQueue
	agencies ports.AgencyStore
	log      *slog.Logger
}

// Crawl handles POST /api/agencies/:slug/crawl
func (h *agencyHandler) Crawl(c *gin.Context) {
	actor := actorFrom(c)
	if !actor.Has(domain.CapChief) && !actor.Has(domain.CapMonitoring) {
		c.JSON(http.StatusForbidden, gin.H{"error": "crawl requires chief or monitoring"})
		return
	}

	slug := c.Param("slug")
	agency, err := h.agencies.AgencyBySlug(c.Request.Context(), slug)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown agency " + slug})
		return
	}
	if err != nil {
		h.log.Error("load agency failed", "agency", slug, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if !agency.CrawlEnabled {
		c.JSON(http.StatusConflict, gin.H{"error": usecase.ErrAgencyDisabled.Error()})
		return
	}

	runID, err := h.crawls.QueueCollectNews(agency.Slug)
	if errors.Is(err, usecase.ErrCrawlInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": usecase.ErrCrawlInProgress.Error()})
		return
	}
	if err != nil {
		h.log.Error("queue crawl failed", "agency", agency.Slug, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task": usecase.TaskCollectNews, "run_id": runID, "agency": agency.Slug})
}

func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}
