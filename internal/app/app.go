package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/Amir-4m/news-editorial/internal/api"
	"github.com/Amir-4m/news-editorial/internal/config"
	"github.com/Amir-4m/news-editorial/internal/domain"
	"github.com/Amir-4m/news-editorial/internal/infrastructure/cms"
	"github.com/Amir-4m/news-editorial/internal/infrastructure/fetch"
	"github.com/Amir-4m/news-editorial/internal/infrastructure/media"
	"github.com/Amir-4m/news-editorial/internal/infrastructure/metrics"
	"github.com/Amir-4m/news-editorial/internal/infrastructure/parser"
	"github.com/Amir-4m/news-editorial/internal/infrastructure/scheduler"
	"github.com/Amir-4m/news-editorial/internal/infrastructure/storage"
	"github.com/Amir-4m/news-editorial/internal/infrastructure/tokencache"
	"github.com/Amir-4m/news-editorial/internal/logging"
	"github.com/Amir-4m/news-editorial/internal/ports"
	"github.com/Amir-4m/news-editorial/internal/scanner"
	"github.com/Amir-4m/news-editorial/internal/usecase"
)

const shutdownTimeout = 15 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	db      *sqlx.DB
	redis   *redis.Client
	store   ports.Store
	metrics *metrics.Metrics

	runner    *usecase.Runner
	tasks     *usecase.Tasks
	editorial *usecase.Editorial
	scheduler *usecase.Scheduler
	router    http.Handler
}

// New builds the application. Tasks started through it are bound to ctx.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger, metrics: metrics.New()}

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}
	if err := a.wire(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *Application) openStore(ctx context.Context) error {
	switch a.cfg.Database.Driver {
	case "memory":
		a.store = storage.NewMemoryStore()
		a.logger.Warn("using in-memory store; data is lost on exit")
		return nil
	case "", "postgres":
		db, err := storage.Open(ctx, a.cfg.Database)
		if err != nil {
			return err
		}
		a.db = db
		if a.cfg.Database.MigrateOnStart {
			if err := storage.MigrateUp(db.DB, a.logger.With("component", "migrate")); err != nil {
				_ = db.Close()
				return err
			}
		}
		a.store = storage.NewPostgresStore(db)
		return nil
	default:
		return fmt.Errorf("unknown database driver %q", a.cfg.Database.Driver)
	}
}

func (a *Application) wire(ctx context.Context) error {
	cfg := a.cfg
	log := a.logger

	initial, err := domain.ParseStatus(cfg.Crawler.InitialStatus)
	if err != nil {
		return fmt.Errorf("crawler initial status: %w", err)
	}
	if !initial.Triage() {
		return fmt.Errorf("crawler initial status must be void or editable, got %s", initial)
	}

	images, err := media.NewLocal(cfg.Media.Root)
	if err != nil {
		return err
	}

	fetcher, err := fetch.New(fetch.Options{UserAgent: cfg.Crawler.UserAgent, Delay: cfg.Crawler.Delay})
	if err != nil {
		return err
	}
	registry := scanner.NewRegistry()
	parser.Register(registry, fetcher, cfg.Location(), log.With("component", "parser"))

	tokens, err := a.tokenCache()
	if err != nil {
		return err
	}
	client, err := cms.NewClient(cms.Config{
		BaseURL:  cfg.CMS.BaseURL,
		AuthURL:  cfg.CMS.AuthURL,
		Username: cfg.CMS.Username,
		Password: cfg.CMS.Password,
	}, nil)
	if err != nil {
		return err
	}
	session := cms.NewSession(client, tokens, cfg.CMS.TokenTTL, log)

	crawler := usecase.NewCrawler(usecase.CrawlerDeps{
		Store:         a.store,
		Registry:      registry,
		Images:        images,
		InitialStatus: initial,
		Metrics:       a.metrics,
		Logger:        log,
	})
	sync := usecase.NewSync(usecase.SyncDeps{
		Store:      a.store,
		Images:     images,
		CMS:        client,
		Tokens:     session,
		AuthorID:   cfg.CMS.AuthorID,
		Quiescence: cfg.Scheduler.Quiescence,
		Metrics:    a.metrics,
		Logger:     log,
	})

	a.runner = usecase.NewRunner(ctx, a.metrics, log)
	a.tasks = usecase.NewTasks(a.runner, crawler, sync)
	a.editorial = usecase.NewEditorial(a.store, a.tasks, a.metrics, log)
	a.scheduler = usecase.NewScheduler(
		scheduler.NewCronScheduler(cfg.Location(), log),
		a.store, a.tasks, cfg.Scheduler.CrawlCron, cfg.Scheduler.ReconcileCron, log,
	)

	a.router = api.NewRouter(api.Deps{
		Editorial: a.editorial,
		Crawls:    a.tasks,
		Agencies:  a.store,
		Metrics:   a.metrics.Handler(),
		Logger:    log,
	})
	return nil
}

func (a *Application) tokenCache() (ports.TokenCache, error) {
	switch a.cfg.CMS.TokenStore {
	case "", "memory":
		return tokencache.NewMemory(), nil
	case "redis":
		client, err := tokencache.NewRedisClient(a.cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.redis = client
		return tokencache.NewRedis(client, a.cfg.Redis.Key), nil
	default:
		return nil, fmt.Errorf("unknown token store %q", a.cfg.CMS.TokenStore)
	}
}

// Serve runs the scheduler and HTTP API until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown failed", "error", err)
	}
	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		a.logger.Error("scheduler stop failed", "error", err)
	}
	a.runner.Wait()
	return serveErr
}

// Crawl runs one agency crawl in the foreground.
func (a *Application) Crawl(slug string) error {
	return a.tasks.CollectNews(slug)
}

// Reconcile pulls quiet published articles and retries pending publishes.
func (a *Application) Reconcile() error {
	return a.tasks.ReconcilePublished()
}

// Migrate applies ("up") or rolls back ("down") schema migrations.
func (a *Application) Migrate(direction string, steps int) error {
	if a.db == nil {
		return errors.New("migrations require the postgres driver")
	}
	log := a.logger.With("component", "migrate")
	switch direction {
	case "", "up":
		return storage.MigrateUp(a.db.DB, log)
	case "down":
		return storage.MigrateDown(a.db.DB, steps, log)
	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}
}

// Handler exposes the HTTP router.
func (a *Application) Handler() http.Handler {
	return a.router
}

// Close releases connections.
func (a *Application) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}
