package bdl

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/courtwatch/courtwatch/internal/model"
)

// Handler fetches and normalizes NBA data from BallDontLie.
type Handler struct {
	client *Client
	logger *slog.Logger
}

// NewHandler creates an NBA handler with the given API key.
func NewHandler(baseURL, apiKey string, requestsPerMinute int, timeout time.Duration, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		client: NewClient(baseURL, apiKey, requestsPerMinute, timeout, logger),
		logger: logger,
	}
}

// --------------------------------------------------------------------------
// Player directory (cursor-paginated)
// --------------------------------------------------------------------------

type bdlPlayerRaw struct {
	ID        int    `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Position  string `json:"position"`
	Height    string `json:"height"`
	Weight    string `json:"weight"`
	Country   string `json:"country"`
	// Seasons of NBA experience; zero for rookies.
	Experience int `json:"experience"`
	Team       *struct {
		FullName string `json:"full_name"`
	} `json:"team"`
}

// ListPlayers iterates the full player directory via cursor pagination,
// calling fn for each entry.
func (h *Handler) ListPlayers(ctx context.Context, fn func(model.PlayerRef) error) error {
	params := url.Values{"per_page": {"100"}}

	for {
		resp, err := h.client.get(ctx, "/players", params)
		if err != nil {
			return fmt.Errorf("fetch players: %w", err)
		}

		var raw []bdlPlayerRaw
		if err := json.Unmarshal(resp.Data, &raw); err != nil {
			return fmt.Errorf("decode players: %w", err)
		}

		for _, p := range raw {
			if err := fn(model.PlayerRef{ID: p.ID, Name: fullName(p)}); err != nil {
				return err
			}
		}

		if resp.Meta.NextCursor == nil {
			break
		}
		params.Set("cursor", strconv.Itoa(*resp.Meta.NextCursor))
	}
	return nil
}

func fullName(p bdlPlayerRaw) string {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		name = fmt.Sprintf("Player %d", p.ID)
	}
	return name
}

// PlayerInfo fetches the current profile snapshot for a player.
func (h *Handler) PlayerInfo(ctx context.Context, playerID int) (model.PlayerInfo, error) {
	resp, err := h.client.get(ctx, fmt.Sprintf("/players/%d", playerID), nil)
	if err != nil {
		return model.PlayerInfo{}, fmt.Errorf("fetch player %d: %w", playerID, err)
	}

	var raw bdlPlayerRaw
	if err := json.Unmarshal(resp.Data, &raw); err != nil {
		return model.PlayerInfo{}, fmt.Errorf("decode player %d: %w", playerID, err)
	}
	return normalizeInfo(raw), nil
}

func normalizeInfo(raw bdlPlayerRaw) model.PlayerInfo {
	info := model.PlayerInfo{
		Position:   raw.Position,
		Height:     raw.Height,
		Weight:     raw.Weight,
		Country:    raw.Country,
		Experience: raw.Experience,
	}
	if raw.Team != nil {
		info.Team = raw.Team.FullName
	}
	return info
}

// --------------------------------------------------------------------------
// Recent game stats
// --------------------------------------------------------------------------

type bdlStatRaw struct {
	Min  string  `json:"min"`
	Pts  float64 `json:"pts"`
	Reb  float64 `json:"reb"`
	Ast  float64 `json:"ast"`
	Stl  float64 `json:"stl"`
	Blk  float64 `json:"blk"`
	Game struct {
		Date string `json:"date"`
	} `json:"game"`
}

// RecentStats fetches up to count most recent game lines for a player.
// Order is preserved as returned by upstream (most-recent-first).
func (h *Handler) RecentStats(ctx context.Context, playerID, count int) ([]model.StatLine, error) {
	params := url.Values{
		"player_ids[]": {strconv.Itoa(playerID)},
		"per_page":     {strconv.Itoa(count)},
	}
	resp, err := h.client.get(ctx, "/stats", params)
	if err != nil {
		return nil, fmt.Errorf("fetch stats for player %d: %w", playerID, err)
	}

	var raw []bdlStatRaw
	if err := json.Unmarshal(resp.Data, &raw); err != nil {
		return nil, fmt.Errorf("decode stats for player %d: %w", playerID, err)
	}

	lines := make([]model.StatLine, 0, len(raw))
	for _, s := range raw {
		line, err := normalizeStatLine(s)
		if err != nil {
			h.logger.Warn("Skipping malformed stat line", "player_id", playerID, "error", err)
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func normalizeStatLine(raw bdlStatRaw) (model.StatLine, error) {
	date, err := parseGameDate(raw.Game.Date)
	if err != nil {
		return model.StatLine{}, err
	}
	return model.StatLine{
		Date:     date,
		Points:   raw.Pts,
		Rebounds: raw.Reb,
		Assists:  raw.Ast,
		Steals:   raw.Stl,
		Blocks:   raw.Blk,
		Minutes:  parseMinutes(raw.Min),
	}, nil
}

// parseGameDate accepts both date-only and RFC3339 timestamps; BDL has
// shipped both over time.
func parseGameDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse game date %q: %w", s, err)
	}
	return t.UTC().Truncate(24 * time.Hour), nil
}

// parseMinutes handles both "35" and "35:24" minute formats.
func parseMinutes(s string) float64 {
	if s == "" {
		return 0
	}
	parts := strings.SplitN(s, ":", 2)
	mins, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0
	}
	if len(parts) == 2 {
		if secs, err := strconv.ParseFloat(parts[1], 64); err == nil {
			mins += secs / 60.0
		}
	}
	return mins
}

// --------------------------------------------------------------------------
// Live scoreboard
// --------------------------------------------------------------------------

type bdlGameRaw struct {
	Status   string `json:"status"`
	HomeTeam struct {
		FullName string `json:"full_name"`
	} `json:"home_team"`
	VisitorTeam struct {
		FullName string `json:"full_name"`
	} `json:"visitor_team"`
	HomeScore    int `json:"home_team_score"`
	VisitorScore int `json:"visitor_team_score"`
}

// LiveGames fetches the current live scoreboard. Never cached; callers
// degrade to an empty board on error.
func (h *Handler) LiveGames(ctx context.Context) ([]model.LiveGame, error) {
	resp, err := h.client.get(ctx, "/box_scores/live", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch live games: %w", err)
	}

	var raw []bdlGameRaw
	if err := json.Unmarshal(resp.Data, &raw); err != nil {
		return nil, fmt.Errorf("decode live games: %w", err)
	}

	games := make([]model.LiveGame, len(raw))
	for i, g := range raw {
		games[i] = model.LiveGame{
			HomeTeam:  g.HomeTeam.FullName,
			AwayTeam:  g.VisitorTeam.FullName,
			HomeScore: g.HomeScore,
			AwayScore: g.VisitorScore,
			Status:    g.Status,
		}
	}
	return games, nil
}
