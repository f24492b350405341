// Package identity resolves human-readable player names to upstream IDs.
//
// The first lookup for an unknown name fetches the full player directory
// and memoizes every (name, id) pair it contains; results are kept for
// process lifetime with no invalidation path. Matching is exact and
// case-sensitive, and duplicate full names resolve to the first match in
// listing order — a documented limitation, not a guarantee.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/courtwatch/courtwatch/internal/model"
)

// ErrPlayerNotFound is returned when a name has no exact directory match.
// Terminal for that name within the process: negative results are memoized
// so a bad name costs one listing fetch, not one per cycle.
var ErrPlayerNotFound = errors.New("player not found")

// Directory lists the upstream player directory.
type Directory interface {
	ListPlayers(ctx context.Context, fn func(model.PlayerRef) error) error
}

// Resolver memoizes name→ID resolution against a Directory.
type Resolver struct {
	mu      sync.Mutex
	dir     Directory
	logger  *slog.Logger
	ids     map[string]int
	missing map[string]struct{}
}

// New creates a Resolver backed by the given directory.
func New(dir Directory, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		dir:     dir,
		logger:  logger,
		ids:     make(map[string]int),
		missing: make(map[string]struct{}),
	}
}

// Resolve returns the upstream ID for name, fetching the directory listing
// on first miss. Safe for concurrent use.
func (r *Resolver) Resolve(ctx context.Context, name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.ids[name]; ok {
		return id, nil
	}
	if _, ok := r.missing[name]; ok {
		return 0, fmt.Errorf("%q: %w", name, ErrPlayerNotFound)
	}

	if err := r.loadListing(ctx); err != nil {
		return 0, fmt.Errorf("load player directory: %w", err)
	}

	if id, ok := r.ids[name]; ok {
		return id, nil
	}
	r.missing[name] = struct{}{}
	r.logger.Warn("Player name has no directory match", "name", name)
	return 0, fmt.Errorf("%q: %w", name, ErrPlayerNotFound)
}

// loadListing fetches the full directory and memoizes every entry, keeping
// the first ID seen for a duplicated name. Caller holds r.mu.
func (r *Resolver) loadListing(ctx context.Context) error {
	count := 0
	err := r.dir.ListPlayers(ctx, func(p model.PlayerRef) error {
		if _, exists := r.ids[p.Name]; !exists {
			r.ids[p.Name] = p.ID
		}
		count++
		return nil
	})
	if err != nil {
		return err
	}
	r.logger.Info("Player directory loaded", "entries", count)
	return nil
}
