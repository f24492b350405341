// Command tracker is the Courtwatch player tracking daemon and CLI.
//
// Usage:
//
//	tracker run
//	tracker fetch stats "LeBron James" --days 14
//	tracker fetch info "LeBron James"
//	tracker live
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/courtwatch/courtwatch/internal/api"
	"github.com/courtwatch/courtwatch/internal/api/handler"
	"github.com/courtwatch/courtwatch/internal/cache"
	"github.com/courtwatch/courtwatch/internal/config"
	"github.com/courtwatch/courtwatch/internal/fetch"
	"github.com/courtwatch/courtwatch/internal/identity"
	"github.com/courtwatch/courtwatch/internal/model"
	"github.com/courtwatch/courtwatch/internal/notify"
	"github.com/courtwatch/courtwatch/internal/provider/bdl"
	"github.com/courtwatch/courtwatch/internal/refresh"
	"github.com/courtwatch/courtwatch/internal/store"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "tracker",
		Short: "Courtwatch player tracking daemon and CLI",
	}

	root.AddCommand(runCmd())
	root.AddCommand(fetchCmd())
	root.AddCommand(liveCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// run command
// --------------------------------------------------------------------------

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the refresh daemon and status API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}
			if cfg.BDLAPIKey == "" {
				return fmt.Errorf("BALLDONTLIE_API_KEY is required")
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			logger.Info("Connecting to database...")
			db, err := store.New(ctx, cfg)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer db.Close()
			logger.Info("Database connected",
				"min_conns", cfg.DBPoolMinConns,
				"max_conns", cfg.DBPoolMaxConns)

			svc, appCache := buildFetchService(cfg)
			logger.Info("Cache initialized", "ttl", cfg.CacheTTL)

			sinks := []notify.Sink{notify.NewLogSink(logger)}
			if ws := notify.NewWebhookSink(cfg.AlertWebhookURL, cfg.HTTPTimeout, logger); ws != nil {
				sinks = append(sinks, ws)
				logger.Info("Alert webhook enabled", "url", cfg.AlertWebhookURL)
			}

			sched := refresh.New(svc, db, sinks, refresh.Config{
				Players:    cfg.TrackedPlayers,
				Interval:   cfg.RefreshInterval,
				WindowDays: cfg.StatsWindowDays,
				Logger:     logger,
			})

			go func() {
				if err := sched.Run(ctx); err != nil {
					logger.Error("Scheduler stopped", "error", err)
				}
			}()

			h := handler.New(sched, svc, db, appCache, cfg, logger)
			router := api.NewRouter(h, cfg)

			addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
			srv := &http.Server{
				Addr:         addr,
				Handler:      router,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 30 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			go func() {
				logger.Info("Starting Courtwatch status API",
					"addr", addr,
					"environment", cfg.Environment)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("Server failed", "error", err)
					os.Exit(1)
				}
			}()

			<-ctx.Done()
			logger.Info("Shutting down...")

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Shutdown error", "error", err)
			}
			logger.Info("Server stopped")
			return nil
		},
	}
}

// --------------------------------------------------------------------------
// fetch command
// --------------------------------------------------------------------------

func fetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "One-shot fetches against the upstream provider",
	}
	cmd.AddCommand(fetchStatsCmd())
	cmd.AddCommand(fetchInfoCmd())
	return cmd
}

func fetchStatsCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "stats <player name>",
		Short: "Fetch recent stat lines for a player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(func(ctx context.Context, svc *fetch.Service) (any, error) {
				return svc.Stats(ctx, args[0], days)
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "Stats window in days")
	return cmd
}

func fetchInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <player name>",
		Short: "Fetch biographical info for a player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(func(ctx context.Context, svc *fetch.Service) (any, error) {
				return svc.Info(ctx, args[0])
			})
		},
	}
}

// --------------------------------------------------------------------------
// live command
// --------------------------------------------------------------------------

func liveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "live",
		Short: "Fetch the live scoreboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(func(ctx context.Context, svc *fetch.Service) (any, error) {
				games, err := svc.LiveGames(ctx)
				if err != nil {
					logger.Warn("Live board unavailable", "error", err)
					games = []model.LiveGame{}
				}
				return games, nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// buildFetchService wires the provider, resolver, and cache into the
// cache-checked fetch service.
func buildFetchService(cfg *config.Config) (*fetch.Service, *cache.Cache) {
	provider := bdl.NewHandler(cfg.BDLBaseURL, cfg.BDLAPIKey, cfg.RequestsPerMinute, cfg.HTTPTimeout, logger)
	resolver := identity.New(provider, logger)
	appCache := cache.New(cfg.CacheTTL)
	return fetch.New(appCache, resolver, provider), appCache
}

// runFetch handles config loading and context cancellation for the
// one-shot commands, printing the result as indented JSON.
func runFetch(fn func(ctx context.Context, svc *fetch.Service) (any, error)) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.BDLAPIKey == "" {
		return fmt.Errorf("BALLDONTLIE_API_KEY is required")
	}

	svc, _ := buildFetchService(cfg)
	out, err := fn(ctx, svc)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
