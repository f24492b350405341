package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/courtwatch/courtwatch/internal/alert"
	"github.com/courtwatch/courtwatch/internal/identity"
	"github.com/courtwatch/courtwatch/internal/model"
	"github.com/courtwatch/courtwatch/internal/notify"
	"github.com/courtwatch/courtwatch/pkg/retry"
)

// ErrAlreadyRunning is returned when Run is called on a running scheduler.
// The IDLE→RUNNING transition happens exactly once per process.
var ErrAlreadyRunning = errors.New("refresh scheduler already running")

// Fetcher is the cache-checked fetch surface the scheduler drives.
type Fetcher interface {
	Stats(ctx context.Context, name string, windowDays int) ([]model.StatLine, error)
	Info(ctx context.Context, name string) (model.PlayerInfo, error)
	LiveGames(ctx context.Context) ([]model.LiveGame, error)
}

// Gateway is the persistence surface used after a successful fetch.
type Gateway interface {
	GetOrCreatePlayer(ctx context.Context, name, teamHint string) (int64, error)
	UpsertStats(ctx context.Context, playerID int64, lines []model.StatLine) error
	ListAlerts(ctx context.Context) ([]model.Alert, error)
}

// Subscriber receives snapshot updates and live boards as they are
// published. The presentation layer decides what to do with them; the
// scheduler never checks who is watching.
type Subscriber interface {
	SnapshotUpdated(snap model.Snapshot)
	LiveBoard(games []model.LiveGame)
}

// Config holds scheduler parameters.
type Config struct {
	Players    []string      // tracked player names, fixed at startup
	Interval   time.Duration // sleep between cycles (default 300s)
	WindowDays int           // stats fetch window (default 30)
	Retry      retry.Config  // bounded retry for fetch failures
	Logger     *slog.Logger
}

// Scheduler owns the in-memory snapshot map and the background refresh
// loop. Snapshots are replaced whole under the mutex so a reader never
// observes a half-written record.
type Scheduler struct {
	fetcher Fetcher
	gateway Gateway
	sinks   []notify.Sink

	players    []string
	interval   time.Duration
	windowDays int
	retryCfg   retry.Config
	logger     *slog.Logger

	mu        sync.RWMutex
	running   bool
	snapshots map[string]model.Snapshot
	subs      []Subscriber
}

// New creates a Scheduler in the IDLE state.
func New(fetcher Fetcher, gateway Gateway, sinks []notify.Sink, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 300 * time.Second
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 30
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Scheduler{
		fetcher:    fetcher,
		gateway:    gateway,
		sinks:      sinks,
		players:    cfg.Players,
		interval:   cfg.Interval,
		windowDays: cfg.WindowDays,
		retryCfg:   cfg.Retry,
		logger:     cfg.Logger,
		snapshots:  make(map[string]model.Snapshot),
	}
}

// Subscribe registers a subscriber for snapshot and live board updates.
func (s *Scheduler) Subscribe(sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, sub)
}

// Snapshot returns the latest snapshot for a tracked player.
func (s *Scheduler) Snapshot(name string) (model.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[name]
	return snap, ok
}

// Snapshots returns all current snapshots sorted by player name.
func (s *Scheduler) Snapshots() []model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Snapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Run drives the refresh loop: an initial load, then one cycle per
// interval until ctx is cancelled. Cancellation is honored at the sleep
// boundary and checked around each tracked-player batch. Blocks; intended
// to be called with `go` or as the main loop of the daemon.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("Refresh scheduler started",
		"players", len(s.players),
		"interval", s.interval,
		"window_days", s.windowDays)

	// Initial load before the first sleep.
	s.runCycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runCycle(ctx)
		case <-ctx.Done():
			s.logger.Info("Refresh scheduler stopped")
			return nil
		}
	}
}

// runCycle refreshes every tracked player, then evaluates alerts and
// publishes the live board. A per-player failure is logged and the cycle
// continues with the next player.
func (s *Scheduler) runCycle(ctx context.Context) CycleResult {
	start := time.Now()
	var result CycleResult

	for _, name := range s.players {
		if ctx.Err() != nil {
			result.Duration = time.Since(start)
			return result
		}
		if err := s.refreshPlayer(ctx, name, &result); err != nil {
			result.PlayersFailed++
			result.AddErrorf("%s: %v", name, err)
			s.logger.Warn("Player refresh failed", "player", name, "error", err)
			continue
		}
		result.PlayersRefreshed++
	}

	if ctx.Err() == nil {
		s.evaluateAlerts(ctx, &result)
		s.publishLiveBoard(ctx, &result)
	}

	result.Duration = time.Since(start)
	s.logger.Info("Refresh cycle complete", "summary", result.Summary(),
		"duration", result.Duration.Round(time.Millisecond))
	return result
}

// refreshPlayer fetches stats and info with bounded retry, persists them,
// and replaces the player's snapshot. Identity misses are permanent and
// never retried; persistence failures abort only the persistence step.
func (s *Scheduler) refreshPlayer(ctx context.Context, name string, result *CycleResult) error {
	var lines []model.StatLine
	err := retry.Do(ctx, s.retryCfg, func(ctx context.Context) error {
		var ferr error
		lines, ferr = s.fetcher.Stats(ctx, name, s.windowDays)
		if errors.Is(ferr, identity.ErrPlayerNotFound) {
			return retry.Permanent(ferr)
		}
		return ferr
	})
	if err != nil {
		return fmt.Errorf("fetch stats: %w", err)
	}

	var info model.PlayerInfo
	err = retry.Do(ctx, s.retryCfg, func(ctx context.Context) error {
		var ferr error
		info, ferr = s.fetcher.Info(ctx, name)
		if errors.Is(ferr, identity.ErrPlayerNotFound) {
			return retry.Permanent(ferr)
		}
		return ferr
	})
	if err != nil {
		return fmt.Errorf("fetch info: %w", err)
	}

	snap := model.Snapshot{
		Name:      name,
		Stats:     lines,
		Info:      info,
		UpdatedAt: time.Now().UTC(),
	}

	playerID, err := s.gateway.GetOrCreatePlayer(ctx, name, info.Team)
	if err != nil {
		result.AddErrorf("%s: persist player: %v", name, err)
		s.logger.Warn("Persist player record failed", "player", name, "error", err)
	} else {
		snap.PlayerID = playerID
		if err := s.gateway.UpsertStats(ctx, playerID, lines); err != nil {
			result.AddErrorf("%s: persist stats: %v", name, err)
			s.logger.Warn("Persist stats failed", "player", name, "error", err)
		}
	}

	s.setSnapshot(snap)
	return nil
}

// setSnapshot replaces the player's snapshot whole and fans out to
// subscribers outside the lock.
func (s *Scheduler) setSnapshot(snap model.Snapshot) {
	s.mu.Lock()
	s.snapshots[snap.Name] = snap
	subs := make([]Subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.SnapshotUpdated(snap)
	}
}

// evaluateAlerts loads stored thresholds, evaluates them against current
// snapshots, and delivers fired alerts to every sink.
func (s *Scheduler) evaluateAlerts(ctx context.Context, result *CycleResult) {
	alerts, err := s.gateway.ListAlerts(ctx)
	if err != nil {
		result.AddErrorf("list alerts: %v", err)
		s.logger.Warn("Alert listing failed", "error", err)
		return
	}
	if len(alerts) == 0 {
		return
	}

	fired := alert.Evaluate(s.snapshotsByPlayerID(), alerts)
	result.AlertsFired = len(fired)
	if len(fired) == 0 {
		return
	}

	for _, sink := range s.sinks {
		if err := sink.Deliver(ctx, fired); err != nil {
			result.AddErrorf("deliver alerts: %v", err)
			s.logger.Warn("Alert delivery failed", "error", err)
		}
	}
}

func (s *Scheduler) snapshotsByPlayerID() map[int64]model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byID := make(map[int64]model.Snapshot, len(s.snapshots))
	for _, snap := range s.snapshots {
		if snap.PlayerID != 0 {
			byID[snap.PlayerID] = snap
		}
	}
	return byID
}

// publishLiveBoard fetches the live scoreboard and fans it out. A failed
// fetch degrades to an empty board: live-board staleness is preferable to
// aborting the cycle.
func (s *Scheduler) publishLiveBoard(ctx context.Context, result *CycleResult) {
	games, err := s.fetcher.LiveGames(ctx)
	if err != nil {
		result.AddErrorf("live board: %v", err)
		s.logger.Warn("Live board fetch failed", "error", err)
		games = nil
	}
	result.LiveGames = len(games)

	s.mu.RLock()
	subs := make([]Subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.RUnlock()

	for _, sub := range subs {
		sub.LiveBoard(games)
	}
}
