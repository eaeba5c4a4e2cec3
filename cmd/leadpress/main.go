// Command leadpress runs the marketing-site backend and its maintenance jobs.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eringen/leadpress"
	"github.com/eringen/leadpress/content"
	"github.com/eringen/leadpress/generate"
	"github.com/eringen/leadpress/llm"
	"github.com/eringen/leadpress/review"
	"github.com/eringen/leadpress/store"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:           "leadpress",
		Short:         "AI consultancy site backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	cmd.AddCommand(
		serveCmd(&logLevel),
		seedCmd(&logLevel),
		generateCmd(&logLevel),
		reviewCmd(&logLevel),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "leadpress %s\n", version)
			},
		},
	)
	return cmd
}

// setup loads configuration and a logger honoring the --log-level flag.
func setup(logLevel string) (leadpress.Config, *zap.Logger, error) {
	cfg, err := leadpress.LoadConfig()
	if err != nil {
		return cfg, nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger, err := leadpress.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}

func serveCmd(logLevel *string) *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*logLevel)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app := leadpress.New(cfg, leadpress.WithLogger(logger))
			defer app.Close()
			if err := app.Setup(ctx); err != nil {
				return err
			}
			if seed {
				report, err := leadpress.Seed(ctx, app.Store, leadpress.Fixtures)
				if err != nil {
					return err
				}
				logger.Info("fixtures seeded", zap.Int("case_studies", report.CaseStudies), zap.Bool("brand_voice", report.BrandVoice))
			}

			errc := make(chan error, 1)
			go func() { errc <- app.Start(ctx) }()
			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return app.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "Load the embedded fixtures before serving")
	return cmd
}

func seedCmd(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the embedded case studies and brand voice into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*logLevel)
			if err != nil {
				return err
			}
			s, err := store.Open(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer s.Close()
			report, err := leadpress.Seed(cmd.Context(), s, leadpress.Fixtures)
			if err != nil {
				return err
			}
			logger.Info("fixtures seeded", zap.Int("case_studies", report.CaseStudies), zap.Bool("brand_voice", report.BrandVoice))
			return nil
		},
	}
}

// withApp builds a fully set up App for one-shot jobs.
func withApp(cmd *cobra.Command, logLevel string, fn func(ctx context.Context, app *leadpress.App) error) error {
	cfg, logger, err := setup(logLevel)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	app := leadpress.New(cfg, leadpress.WithLogger(logger))
	defer app.Close()
	if err := app.Setup(ctx); err != nil {
		return err
	}
	return fn(ctx, app)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func generateCmd(logLevel *string) *cobra.Command {
	var (
		topic, category string
		batch           bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one blog post, or the whole topic rotation with --batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *logLevel, func(ctx context.Context, app *leadpress.App) error {
				if app.Generator == nil {
					return llm.ErrNoAPIKey
				}
				if batch {
					report, err := app.Generator.BatchGenerate(ctx, nil)
					if perr := printJSON(cmd, report); perr != nil {
						return perr
					}
					return err
				}
				res, err := app.Generator.Generate(ctx, generate.Request{Topic: topic, Category: category})
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{
					"id":        res.Post.ID,
					"slug":      res.Post.Slug,
					"title":     res.Post.Title,
					"status":    res.Post.Status,
					"duplicate": res.Duplicate,
				})
			})
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "", "Topic to write about (default: next in rotation)")
	cmd.Flags().StringVar(&category, "category", "", "Post category")
	cmd.Flags().BoolVar(&batch, "batch", false, "Generate every topic in the rotation")
	return cmd
}

func reviewCmd(logLevel *string) *cobra.Command {
	var (
		dryRun bool
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Run the batch editorial review over stored posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := content.PostStatus(status)
			if st != "" && !st.Valid() {
				return errors.New("unknown --status; want draft, review or published")
			}
			return withApp(cmd, *logLevel, func(ctx context.Context, app *leadpress.App) error {
				if app.Batch == nil {
					return llm.ErrNoAPIKey
				}
				report, err := app.Batch.Run(ctx, review.BatchOptions{DryRun: dryRun, Status: st, Limit: limit})
				if perr := printJSON(cmd, report); perr != nil {
					return perr
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Score without writing")
	cmd.Flags().StringVar(&status, "status", "", "Only review posts with this status")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum posts to review")
	return cmd
}
