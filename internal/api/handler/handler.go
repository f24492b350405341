// Package handler provides HTTP handlers for the tracker status API: health
// probes, tracked-player snapshots, the live scoreboard, and cache stats.
// The player endpoint is the on-demand foreground path — a name without a
// snapshot triggers a synchronous cache-checked fetch.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/courtwatch/courtwatch/internal/api/respond"
	"github.com/courtwatch/courtwatch/internal/config"
	"github.com/courtwatch/courtwatch/internal/identity"
	"github.com/courtwatch/courtwatch/internal/model"
)

// SnapshotSource exposes the refresh engine's current snapshots.
type SnapshotSource interface {
	Snapshot(name string) (model.Snapshot, bool)
	Snapshots() []model.Snapshot
}

// Fetcher is the cache-checked fetch surface for on-demand requests.
type Fetcher interface {
	Stats(ctx context.Context, name string, windowDays int) ([]model.StatLine, error)
	Info(ctx context.Context, name string) (model.PlayerInfo, error)
	LiveGames(ctx context.Context) ([]model.LiveGame, error)
}

// Pinger verifies storage connectivity for health checks.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// CacheStats exposes cache statistics.
type CacheStats interface {
	Stats() map[string]any
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	snaps   SnapshotSource
	fetcher Fetcher
	db      Pinger
	cache   CacheStats
	cfg     *config.Config
	logger  *slog.Logger
}

// New creates a Handler with shared dependencies.
func New(snaps SnapshotSource, fetcher Fetcher, db Pinger, cache CacheStats, cfg *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		snaps:   snaps,
		fetcher: fetcher,
		db:      db,
		cache:   cache,
		cfg:     cfg,
		logger:  logger,
	}
}

// Root serves API info at /.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"name":    "Courtwatch Tracker API",
		"version": "1.0.0",
		"status":  "running",
		"tracked": len(h.cfg.TrackedPlayers),
	})
}

// HealthCheck returns basic health status.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if err := h.db.HealthCheck(r.Context()); err != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "unhealthy",
			"database":  "disconnected",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckCache returns cache statistics.
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"cache":     h.cache.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ListPlayers returns the current snapshot for every tracked player.
func (h *Handler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"players": h.snaps.Snapshots(),
	})
}

// GetPlayer returns a single player's snapshot. A name the background loop
// has not refreshed is fetched synchronously through the cache.
func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || name == "" {
		respond.WriteError(w, http.StatusBadRequest, "BAD_NAME", "Invalid player name")
		return
	}

	if snap, ok := h.snaps.Snapshot(name); ok {
		respond.WriteJSONObject(w, http.StatusOK, snap)
		return
	}

	stats, err := h.fetcher.Stats(r.Context(), name, h.cfg.StatsWindowDays)
	if err != nil {
		if errors.Is(err, identity.ErrPlayerNotFound) {
			respond.WriteError(w, http.StatusNotFound, "PLAYER_NOT_FOUND", "No player matches that name")
			return
		}
		h.logger.Warn("On-demand stats fetch failed", "player", name, "error", err)
		respond.WriteError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "Upstream fetch failed")
		return
	}

	info, err := h.fetcher.Info(r.Context(), name)
	if err != nil {
		h.logger.Warn("On-demand info fetch failed", "player", name, "error", err)
		respond.WriteError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "Upstream fetch failed")
		return
	}

	respond.WriteJSONObject(w, http.StatusOK, model.Snapshot{
		Name:      name,
		Stats:     stats,
		Info:      info,
		UpdatedAt: time.Now().UTC(),
	})
}

// GetLive returns the live scoreboard. Always fetched fresh; a failed
// fetch degrades to an empty board rather than an error.
func (h *Handler) GetLive(w http.ResponseWriter, r *http.Request) {
	games, err := h.fetcher.LiveGames(r.Context())
	if err != nil {
		h.logger.Warn("Live board fetch failed", "error", err)
		games = nil
	}
	if games == nil {
		games = []model.LiveGame{}
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"games": games,
	})
}
