package bdl

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtwatch/courtwatch/internal/model"
)

func testHandler(t *testing.T, mux *http.ServeMux) *Handler {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewHandler(srv.URL, "test-key", 6000, 5*time.Second, slog.Default())
}

func TestRecentStats_MapsSixFieldsAndDropsExtras(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "12", r.URL.Query().Get("per_page"))
		assert.Equal(t, "237", r.URL.Query().Get("player_ids[]"))
		w.Write([]byte(`{"data":[
			{"min":"36:30","pts":30,"reb":8,"ast":11,"stl":2,"blk":1,
			 "fg_pct":0.52,"turnover":4,"pf":2,
			 "game":{"date":"2026-02-09","season":2025},
			 "player":{"id":237},"team":{"id":14}},
			{"min":"35","pts":25,"reb":7,"ast":9,"stl":1,"blk":0,
			 "game":{"date":"2026-02-07"}}
		],"meta":{"next_cursor":null}}`))
	})
	h := testHandler(t, mux)

	lines, err := h.RecentStats(context.Background(), 237, 12)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	latest := lines[0]
	assert.Equal(t, time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC), latest.Date)
	assert.Equal(t, 30.0, latest.Points)
	assert.Equal(t, 8.0, latest.Rebounds)
	assert.Equal(t, 11.0, latest.Assists)
	assert.Equal(t, 2.0, latest.Steals)
	assert.Equal(t, 1.0, latest.Blocks)
	assert.InDelta(t, 36.5, latest.Minutes, 0.001)

	// Order preserved as returned (most-recent-first).
	assert.True(t, lines[0].Date.After(lines[1].Date))
	assert.Equal(t, 35.0, lines[1].Minutes)
}

func TestPlayerInfo_Mapping(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/players/237", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("Authorization"))
		w.Write([]byte(`{"data":{
			"id":237,"first_name":"LeBron","last_name":"James",
			"position":"F","height":"6-9","weight":"250",
			"country":"USA","experience":22,
			"team":{"id":14,"full_name":"Los Angeles Lakers"}}}`))
	})
	h := testHandler(t, mux)

	info, err := h.PlayerInfo(context.Background(), 237)
	require.NoError(t, err)
	assert.Equal(t, model.PlayerInfo{
		Team:       "Los Angeles Lakers",
		Position:   "F",
		Height:     "6-9",
		Weight:     "250",
		Country:    "USA",
		Experience: 22,
	}, info)
}

func TestListPlayers_FollowsCursor(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/players", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cursor") == "" {
			w.Write([]byte(`{"data":[
				{"id":1,"first_name":"Stephen","last_name":"Curry"},
				{"id":2,"first_name":"Kevin","last_name":"Durant"}
			],"meta":{"next_cursor":25}}`))
			return
		}
		assert.Equal(t, "25", r.URL.Query().Get("cursor"))
		w.Write([]byte(`{"data":[
			{"id":3,"first_name":"Nikola","last_name":"Jokic"}
		],"meta":{"next_cursor":null}}`))
	})
	h := testHandler(t, mux)

	var refs []model.PlayerRef
	err := h.ListPlayers(context.Background(), func(p model.PlayerRef) error {
		refs = append(refs, p)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []model.PlayerRef{
		{ID: 1, Name: "Stephen Curry"},
		{ID: 2, Name: "Kevin Durant"},
		{ID: 3, Name: "Nikola Jokic"},
	}, refs)
}

func TestLiveGames_Mapping(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/box_scores/live", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[
			{"status":"Q3 4:12",
			 "home_team":{"full_name":"Boston Celtics"},
			 "visitor_team":{"full_name":"Miami Heat"},
			 "home_team_score":78,"visitor_team_score":71}
		],"meta":{"next_cursor":null}}`))
	})
	h := testHandler(t, mux)

	games, err := h.LiveGames(context.Background())
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, model.LiveGame{
		HomeTeam:  "Boston Celtics",
		AwayTeam:  "Miami Heat",
		HomeScore: 78,
		AwayScore: 71,
		Status:    "Q3 4:12",
	}, games[0])
}

func TestLiveGames_UpstreamErrorPropagates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/box_scores/live", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})
	h := testHandler(t, mux)

	games, err := h.LiveGames(context.Background())
	assert.Error(t, err)
	assert.Nil(t, games)
}

func TestRecentStats_BadStatusIncludesBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	})
	h := testHandler(t, mux)

	_, err := h.RecentStats(context.Background(), 1, 30)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestParseMinutes(t *testing.T) {
	assert.Equal(t, 0.0, parseMinutes(""))
	assert.Equal(t, 35.0, parseMinutes("35"))
	assert.InDelta(t, 12.5, parseMinutes("12:30"), 0.001)
	assert.Equal(t, 0.0, parseMinutes("DNP"))
}
