package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Amir-4m/news-editorial/internal/domain"
	"github.com/Amir-4m/news-editorial/internal/ports"
	"github.com/Amir-4m/news-editorial/internal/usecase"
)

// Editorial is the workflow service behind the article endpoints.
type Editorial interface {
	Assign(ctx context.Context, actor domain.Actor, ids []int64, editorID int64) ([]domain.ActionResult, error)
	Categorize(ctx context.Context, actor domain.Actor, ids []int64, categoryID int64) ([]domain.ActionResult, error)
	SetStatus(ctx context.Context, actor domain.Actor, ids []int64, status domain.Status) ([]domain.ActionResult, error)
	SubmitEdit(ctx context.Context, actor domain.Actor, sub usecase.EditSubmission) (domain.ActionResult, error)
	Approve(ctx context.Context, actor domain.Actor, ids []int64) ([]domain.ActionResult, error)
	Reject(ctx context.Context, actor domain.Actor, ids []int64, comment string) ([]domain.ActionResult, error)
	Reassign(ctx context.Context, actor domain.Actor, ids []int64, editorID int64) ([]domain.ActionResult, error)
	Reopen(ctx context.Context, actor domain.Actor, ids []int64) ([]domain.ActionResult, error)
}

// CrawlQueue starts agency crawls in the background.
type CrawlQueue interface {
	QueueCollectNews(slug string) (string, error)
}

// Deps wires the router.
type Deps struct {
	Editorial Editorial
	Crawls    CrawlQueue
	Agencies  ports.AgencyStore
	Metrics   http.Handler
	Logger    *slog.Logger
}

// NewRouter creates and configures the Gin router. Callers pick the gin mode.
func NewRouter(deps Deps) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "api")

	router := gin.New()
	router.Use(recoveryMiddleware(log))
	router.Use(loggingMiddleware(log))

	router.GET("/healthz", healthCheck)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	articles := &articleHandler{editorial: deps.Editorial, log: log}
	agencies := &agencyHandler{crawls: deps.Crawls, agencies: deps.Agencies, log: log}

	api := router.Group("/api", actorMiddleware())
	{
		a := api.Group("/articles")
		{
			a.POST("/assign", articles.Assign)
			a.POST("/categorize", articles.Categorize)
			a.POST("/status", articles.SetStatus)
			a.POST("/approve", articles.Approve)
			a.POST("/reject", articles.Reject)
			a.POST("/reassign", articles.Reassign)
			a.POST("/reopen", articles.Reopen)
			a.PUT("/:id/edit", articles.SubmitEdit)
		}
		api.POST("/agencies/:slug/crawl", agencies.Crawl)
	}

	return router
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
