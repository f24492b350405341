// Package fetch implements the cache-checked fetch client. Stats and info
// lookups consult the TTL cache before touching the network; the live
// scoreboard is always fetched fresh.
package fetch

import (
	"context"
	"fmt"

	"github.com/courtwatch/courtwatch/internal/cache"
	"github.com/courtwatch/courtwatch/internal/model"
)

// Provider is the upstream stats API surface this service consumes.
type Provider interface {
	RecentStats(ctx context.Context, playerID, count int) ([]model.StatLine, error)
	PlayerInfo(ctx context.Context, playerID int) (model.PlayerInfo, error)
	LiveGames(ctx context.Context) ([]model.LiveGame, error)
}

// Resolver maps player names to upstream IDs.
type Resolver interface {
	Resolve(ctx context.Context, name string) (int, error)
}

// Service wraps remote calls with identity resolution and TTL caching.
type Service struct {
	cache    *cache.Cache
	resolver Resolver
	provider Provider
}

// New creates a fetch service.
func New(c *cache.Cache, resolver Resolver, provider Provider) *Service {
	return &Service{cache: c, resolver: resolver, provider: provider}
}

func statsKey(name string, windowDays int) string {
	return fmt.Sprintf("%s|stats|%d", name, windowDays)
}

func infoKey(name string) string {
	return fmt.Sprintf("%s|info", name)
}

// Stats returns up to windowDays most recent stat lines for the named
// player, most-recent-first as returned by upstream. Identity misses
// surface as identity.ErrPlayerNotFound; network and parse errors
// propagate to the caller.
func (s *Service) Stats(ctx context.Context, name string, windowDays int) ([]model.StatLine, error) {
	key := statsKey(name, windowDays)
	if v, ok := s.cache.Get(key); ok {
		return v.([]model.StatLine), nil
	}

	id, err := s.resolver.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}

	lines, err := s.provider.RecentStats(ctx, id, windowDays)
	if err != nil {
		return nil, err
	}
	s.cache.Put(key, lines)
	return lines, nil
}

// Info returns the current profile snapshot for the named player.
func (s *Service) Info(ctx context.Context, name string) (model.PlayerInfo, error) {
	key := infoKey(name)
	if v, ok := s.cache.Get(key); ok {
		return v.(model.PlayerInfo), nil
	}

	id, err := s.resolver.Resolve(ctx, name)
	if err != nil {
		return model.PlayerInfo{}, err
	}

	info, err := s.provider.PlayerInfo(ctx, id)
	if err != nil {
		return model.PlayerInfo{}, err
	}
	s.cache.Put(key, info)
	return info, nil
}

// LiveGames returns the current live scoreboard, bypassing the cache.
// The error is explicit so callers can distinguish "no games right now"
// from a failed fetch; every caller in this service degrades to an empty
// board rather than propagating.
func (s *Service) LiveGames(ctx context.Context) ([]model.LiveGame, error) {
	return s.provider.LiveGames(ctx)
}
