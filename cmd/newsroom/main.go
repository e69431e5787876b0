package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/Amir-4m/news-editorial/internal/app"
	"github.com/Amir-4m/news-editorial/internal/config"
	"github.com/Amir-4m/news-editorial/internal/logging"
)

var cfgFile string

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "newsroom",
		Short:         "Newsroom crawler, editorial workflow and CMS sync",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (overrides $NEWSROOM_CONFIG)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the scheduler and the editorial HTTP API",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				gin.SetMode(gin.ReleaseMode)
				return withApp(cmd.Context(), func(ctx context.Context, a *app.Application) error {
					return a.Serve(ctx)
				})
			},
		},
		&cobra.Command{
			Use:   "crawl <agency-slug>",
			Short: "Crawl one agency in the foreground",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), func(_ context.Context, a *app.Application) error {
					return a.Crawl(args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "reconcile",
			Short: "Pull published posts back and retry pending publishes",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd.Context(), func(_ context.Context, a *app.Application) error {
					return a.Reconcile()
				})
			},
		},
		&cobra.Command{
			Use:       "migrate [up|down] [steps]",
			Short:     "Apply or roll back database migrations",
			Args:      cobra.RangeArgs(0, 2),
			ValidArgs: []string{"up", "down"},
			RunE: func(cmd *cobra.Command, args []string) error {
				direction, steps := "up", 1
				if len(args) > 0 {
					direction = args[0]
				}
				if len(args) > 1 {
					n, err := strconv.Atoi(args[1])
					if err != nil {
						return fmt.Errorf("steps must be a number: %w", err)
					}
					steps = n
				}
				return withApp(cmd.Context(), func(_ context.Context, a *app.Application) error {
					return a.Migrate(direction, steps)
				})
			},
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Upsert categories, agencies and site mappings from config",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd.Context(), func(ctx context.Context, a *app.Application) error {
					return a.Seed(ctx)
				})
			},
		},
	)
	return root
}

// withApp loads configuration, builds the application and runs fn until it
// returns or the process is signalled.
func withApp(parent context.Context, fn func(context.Context, *app.Application) error) error {
	if parent == nil {
		parent = context.Background()
	}
	if cfgFile != "" {
		if err := os.Setenv("NEWSROOM_CONFIG", cfgFile); err != nil {
			return err
		}
	}
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("application setup failed", "error", err)
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Error("close failed", "error", err)
		}
	}()

	if err := fn(ctx, application); err != nil {
		logger.Error("application stopped", "error", err)
		return err
	}
	return nil
}
