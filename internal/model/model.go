// Package model defines the canonical records shared across the tracker:
// stat lines, player info, live games, alerts, and refresh snapshots.
// Provider packages normalize raw upstream payloads into these types.
package model

import (
	"strings"
	"time"
)

// StatLine is one game's box-score line for a player.
// A player's stat history is uniquely keyed by (player, date);
// re-fetching the same date overwrites prior values.
type StatLine struct {
	Date     time.Time `json:"date"`
	Points   float64   `json:"points"`
	Rebounds float64   `json:"rebounds"`
	Assists  float64   `json:"assists"`
	Steals   float64   `json:"steals"`
	Blocks   float64   `json:"blocks"`
	Minutes  float64   `json:"minutes"`
}

// Value returns the stat named by key. The lookup is case-insensitive.
// Returns ok=false for stat names outside the six tracked fields.
func (s StatLine) Value(key string) (float64, bool) {
	switch strings.ToLower(key) {
	case "points":
		return s.Points, true
	case "rebounds":
		return s.Rebounds, true
	case "assists":
		return s.Assists, true
	case "steals":
		return s.Steals, true
	case "blocks":
		return s.Blocks, true
	case "minutes":
		return s.Minutes, true
	default:
		return 0, false
	}
}

// PlayerInfo is the current profile snapshot for a player.
// One per player; overwritten on refresh.
type PlayerInfo struct {
	Team       string `json:"team"`
	Position   string `json:"position"`
	Height     string `json:"height"`
	Weight     string `json:"weight"`
	Country    string `json:"country"`
	Experience int    `json:"experience"`
}

// PlayerRef is a directory listing entry used for name→ID resolution.
type PlayerRef struct {
	ID   int
	Name string
}

// LiveGame is a transient scoreboard entry. Never cached beyond the
// refresh cycle that fetched it.
type LiveGame struct {
	HomeTeam  string `json:"home_team"`
	AwayTeam  string `json:"away_team"`
	HomeScore int    `json:"home_score"`
	AwayScore int    `json:"away_score"`
	Status    string `json:"status"`
}

// Alert is a stored threshold rule. Read-only to this service;
// rows are managed externally.
type Alert struct {
	ID        int64   `json:"id"`
	PlayerID  int64   `json:"player_id"`
	StatType  string  `json:"stat_type"`
	Threshold float64 `json:"threshold"`
}

// AlertFired is emitted when a player's latest stat meets or exceeds
// an alert threshold.
type AlertFired struct {
	PlayerName string  `json:"player_name"`
	StatType   string  `json:"stat_type"`
	Value      float64 `json:"value"`
	Threshold  float64 `json:"threshold"`
}

// Snapshot is the latest in-memory fetched state for a tracked player.
// Snapshots are replaced whole on refresh, never mutated field by field.
type Snapshot struct {
	Name      string     `json:"name"`
	PlayerID  int64      `json:"player_id"` // storage identifier; 0 until persisted
	Stats     []StatLine `json:"stats"`     // most-recent-first
	Info      PlayerInfo `json:"info"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Latest returns the most recent stat line, if any.
func (s Snapshot) Latest() (StatLine, bool) {
	if len(s.Stats) == 0 {
		return StatLine{}, false
	}
	return s.Stats[0], true
}
