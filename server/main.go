// Package main is the entry point for the pipeline server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meikuraledutech/pipeline/api"
	"github.com/meikuraledutech/pipeline/config"
	"github.com/meikuraledutech/pipeline/engine"
	"github.com/meikuraledutech/pipeline/postgres"
	"github.com/meikuraledutech/pipeline/runner"
	"github.com/meikuraledutech/pipeline/sandbox"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command. Without a subcommand it serves.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pipeline-server",
		Short: "HTTP pipeline graph execution server",
		Long: `Stores node definitions and pipeline graphs in PostgreSQL and runs a
pipeline whenever a request hits /exec/<url> with its method.

Example:
  DATABASE_URL=postgres://localhost/pipeline pipeline-server schema create
  DATABASE_URL=postgres://localhost/pipeline pipeline-server serve --addr :8080`,
		SilenceUsage: true,
		RunE:         runServe,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file (YAML)")
	rootCmd.Flags().String("addr", "", "Address to listen on (overrides config)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE:  runServe,
	}
	serveCmd.Flags().String("addr", "", "Address to listen on (overrides config)")

	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Manage the database schema",
	}
	schemaCmd.AddCommand(
		&cobra.Command{
			Use:   "create",
			Short: "Create tables and seed the internal node definitions",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				return withStore(cmd.Context(), cfg, func(ctx context.Context, store *postgres.PGStore, _ *zap.Logger) error {
					return store.CreateSchema(ctx)
				})
			},
		},
		&cobra.Command{
			Use:   "drop",
			Short: "Drop every table",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				return withStore(cmd.Context(), cfg, func(ctx context.Context, store *postgres.PGStore, _ *zap.Logger) error {
					return store.DropSchema(ctx)
				})
			},
		},
	)

	rootCmd.AddCommand(serveCmd, schemaCmd)
	return rootCmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if f := cmd.Flags().Lookup("addr"); f != nil && f.Changed {
		cfg.Server.Address = f.Value.String()
	}
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	return cfg, nil
}

// withStore builds the logger, connects to PostgreSQL and calls fn.
func withStore(parent context.Context, cfg *config.Config, fn func(context.Context, *postgres.PGStore, *zap.Logger) error) error {
	logger, err := cfg.Logging.Logger()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer pool.Close()

	return fn(ctx, postgres.New(pool), logger)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	return withStore(cmd.Context(), cfg, func(ctx context.Context, store *postgres.PGStore, logger *zap.Logger) error {
		metrics := runner.NewMetrics()
		eng := engine.New(
			sandbox.New(sandbox.WithTimeout(cfg.Engine.ScriptTimeout)),
			engine.WithLogger(logger.Named("engine")),
			engine.WithObserver(metrics),
			engine.WithDedupeFrontier(cfg.Engine.DedupeFrontier),
			engine.WithMaxWaves(cfg.Engine.MaxWaves),
		)
		r := runner.New(store, eng,
			runner.WithLogger(logger.Named("runner")),
			runner.WithMetrics(metrics),
			runner.WithTimeout(cfg.Exec.Timeout),
		)
		app := api.New(store, r,
			api.WithLogger(logger.Named("http")),
			api.WithMetrics(metrics),
		).App()

		errCh := make(chan error, 1)
		go func() {
			logger.Info("listening", zap.String("addr", cfg.Server.Address))
			errCh <- app.Listen(cfg.Server.Address)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})
}
