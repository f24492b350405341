package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtwatch/courtwatch/internal/identity"
	"github.com/courtwatch/courtwatch/internal/model"
	"github.com/courtwatch/courtwatch/internal/notify"
	"github.com/courtwatch/courtwatch/pkg/retry"
)

// --------------------------------------------------------------------------
// Fakes
// --------------------------------------------------------------------------

type fakeFetcher struct {
	mu         sync.Mutex
	statsCalls map[string]int
	statsFn    func(name string, calls int) ([]model.StatLine, error)
	infoFn     func(name string) (model.PlayerInfo, error)
	liveFn     func() ([]model.LiveGame, error)
}

func (f *fakeFetcher) Stats(ctx context.Context, name string, windowDays int) ([]model.StatLine, error) {
	f.mu.Lock()
	if f.statsCalls == nil {
		f.statsCalls = make(map[string]int)
	}
	f.statsCalls[name]++
	calls := f.statsCalls[name]
	f.mu.Unlock()

	if f.statsFn != nil {
		return f.statsFn(name, calls)
	}
	return []model.StatLine{{Points: 20}}, nil
}

func (f *fakeFetcher) Info(ctx context.Context, name string) (model.PlayerInfo, error) {
	if f.infoFn != nil {
		return f.infoFn(name)
	}
	return model.PlayerInfo{Team: "Some Team"}, nil
}

func (f *fakeFetcher) LiveGames(ctx context.Context) ([]model.LiveGame, error) {
	if f.liveFn != nil {
		return f.liveFn()
	}
	return nil, nil
}

func (f *fakeFetcher) calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statsCalls[name]
}

type fakeGateway struct {
	mu        sync.Mutex
	nextID    int64
	ids       map[string]int64
	upserts   map[int64][][]model.StatLine
	alerts    []model.Alert
	playerErr error
	upsertErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		ids:     make(map[string]int64),
		upserts: make(map[int64][][]model.StatLine),
	}
}

func (g *fakeGateway) GetOrCreatePlayer(ctx context.Context, name, teamHint string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.playerErr != nil {
		return 0, g.playerErr
	}
	if id, ok := g.ids[name]; ok {
		return id, nil
	}
	g.nextID++
	g.ids[name] = g.nextID
	return g.nextID, nil
}

func (g *fakeGateway) UpsertStats(ctx context.Context, playerID int64, lines []model.StatLine) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.upsertErr != nil {
		return g.upsertErr
	}
	g.upserts[playerID] = append(g.upserts[playerID], lines)
	return nil
}

func (g *fakeGateway) ListAlerts(ctx context.Context) ([]model.Alert, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.alerts, nil
}

type captureSink struct {
	mu      sync.Mutex
	batches [][]model.AlertFired
}

func (s *captureSink) Deliver(ctx context.Context, fired []model.AlertFired) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, fired)
	return nil
}

type captureSub struct {
	mu     sync.Mutex
	snaps  []model.Snapshot
	boards [][]model.LiveGame
}

func (s *captureSub) SnapshotUpdated(snap model.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
}

func (s *captureSub) LiveBoard(games []model.LiveGame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boards = append(s.boards, games)
}

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 1.0}
}

func newScheduler(f *fakeFetcher, g *fakeGateway, sinks []notify.Sink, players ...string) *Scheduler {
	return New(f, g, sinks, Config{
		Players:  players,
		Interval: time.Hour, // cycles driven manually in tests
		Retry:    fastRetry(),
	})
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestRunCycle_PerPlayerFailureIsolation(t *testing.T) {
	fetcher := &fakeFetcher{
		statsFn: func(name string, calls int) ([]model.StatLine, error) {
			if name == "B" {
				return nil, errors.New("upstream 502")
			}
			return []model.StatLine{{Points: 20}}, nil
		},
	}
	gateway := newFakeGateway()
	s := newScheduler(fetcher, gateway, nil, "A", "B", "C")

	result := s.runCycle(context.Background())

	assert.Equal(t, 2, result.PlayersRefreshed)
	assert.Equal(t, 1, result.PlayersFailed)

	// A and C are persisted despite B failing mid-cycle.
	assert.Len(t, gateway.upserts[gateway.ids["A"]], 1)
	assert.Len(t, gateway.upserts[gateway.ids["C"]], 1)
	_, bTracked := gateway.ids["B"]
	assert.False(t, bTracked)

	_, ok := s.Snapshot("A")
	assert.True(t, ok)
	_, ok = s.Snapshot("B")
	assert.False(t, ok)
}

func TestRunCycle_TransientFetchFailureIsRetried(t *testing.T) {
	fetcher := &fakeFetcher{
		statsFn: func(name string, calls int) ([]model.StatLine, error) {
			if calls < 3 {
				return nil, errors.New("timeout")
			}
			return []model.StatLine{{Points: 20}}, nil
		},
	}
	s := newScheduler(fetcher, newFakeGateway(), nil, "A")

	result := s.runCycle(context.Background())
	assert.Equal(t, 1, result.PlayersRefreshed)
	assert.Equal(t, 3, fetcher.calls("A"))
}

func TestRunCycle_UnknownPlayerIsNotRetried(t *testing.T) {
	fetcher := &fakeFetcher{
		statsFn: func(name string, calls int) ([]model.StatLine, error) {
			return nil, fmt.Errorf("%q: %w", name, identity.ErrPlayerNotFound)
		},
	}
	s := newScheduler(fetcher, newFakeGateway(), nil, "Ghost")

	result := s.runCycle(context.Background())
	assert.Equal(t, 1, result.PlayersFailed)
	assert.Equal(t, 1, fetcher.calls("Ghost"), "identity misses are terminal, not retried")
}

func TestRunCycle_AlertsEvaluatedAndDelivered(t *testing.T) {
	fetcher := &fakeFetcher{
		statsFn: func(name string, calls int) ([]model.StatLine, error) {
			return []model.StatLine{{Points: 30}}, nil
		},
	}
	gateway := newFakeGateway()
	sink := &captureSink{}
	s := newScheduler(fetcher, gateway, []notify.Sink{sink}, "LeBron James")

	// Alert rules reference storage IDs; seed one for the player created
	// during the first cycle.
	s.runCycle(context.Background())
	gateway.mu.Lock()
	gateway.alerts = []model.Alert{{ID: 1, PlayerID: gateway.ids["LeBron James"], StatType: "points", Threshold: 30}}
	gateway.mu.Unlock()

	result := s.runCycle(context.Background())

	assert.Equal(t, 1, result.AlertsFired)
	require.Len(t, sink.batches, 1)
	assert.Equal(t, "LeBron James", sink.batches[0][0].PlayerName)
	assert.Equal(t, 30.0, sink.batches[0][0].Value)
}

func TestRunCycle_LiveFailureDegradesToEmptyBoard(t *testing.T) {
	fetcher := &fakeFetcher{
		liveFn: func() ([]model.LiveGame, error) {
			return nil, errors.New("scoreboard down")
		},
	}
	sub := &captureSub{}
	s := newScheduler(fetcher, newFakeGateway(), nil, "A")
	s.Subscribe(sub)

	result := s.runCycle(context.Background())

	assert.Equal(t, 0, result.LiveGames)
	require.Len(t, sub.boards, 1)
	assert.Empty(t, sub.boards[0], "failed live fetch publishes an empty board")
	assert.NotEmpty(t, result.Errors)
}

func TestRunCycle_SnapshotReplacedWhole(t *testing.T) {
	points := 20.0
	var mu sync.Mutex
	fetcher := &fakeFetcher{
		statsFn: func(name string, calls int) ([]model.StatLine, error) {
			mu.Lock()
			defer mu.Unlock()
			return []model.StatLine{{Points: points}}, nil
		},
	}
	sub := &captureSub{}
	s := newScheduler(fetcher, newFakeGateway(), nil, "A")
	s.Subscribe(sub)

	s.runCycle(context.Background())
	mu.Lock()
	points = 44
	mu.Unlock()
	// Second cycle re-fetches because the fake fetcher has no cache.
	s.runCycle(context.Background())

	snap, ok := s.Snapshot("A")
	require.True(t, ok)
	assert.Equal(t, 44.0, snap.Stats[0].Points)
	assert.Len(t, sub.snaps, 2)
}

func TestRunCycle_PersistenceFailureDoesNotFailPlayer(t *testing.T) {
	gateway := newFakeGateway()
	gateway.upsertErr = errors.New("disk full")
	s := newScheduler(&fakeFetcher{}, gateway, nil, "A")

	result := s.runCycle(context.Background())

	assert.Equal(t, 1, result.PlayersRefreshed)
	assert.Equal(t, 0, result.PlayersFailed)
	assert.NotEmpty(t, result.Errors)

	// Snapshot is still updated from the successful fetch.
	snap, ok := s.Snapshot("A")
	require.True(t, ok)
	assert.Equal(t, 20.0, snap.Stats[0].Points)
}

func TestRun_CancellationStopsLoop(t *testing.T) {
	s := newScheduler(&fakeFetcher{}, newFakeGateway(), nil, "A")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// Let the initial cycle complete, then cancel during the sleep phase.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestRun_SecondStartRejected(t *testing.T) {
	s := newScheduler(&fakeFetcher{}, newFakeGateway(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	assert.ErrorIs(t, s.Run(ctx), ErrAlreadyRunning)
}
