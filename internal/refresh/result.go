// Package refresh drives the periodic background refresh of the tracked
// player set: fetch, snapshot replacement, persistence, alert evaluation,
// and live board publication.
package refresh

import (
	"fmt"
	"time"
)

// CycleResult tracks counts and errors from one refresh cycle.
type CycleResult struct {
	PlayersRefreshed int
	PlayersFailed    int
	AlertsFired      int
	LiveGames        int
	Errors           []string
	Duration         time.Duration
}

// AddErrorf records a formatted error message.
func (r *CycleResult) AddErrorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Summary returns a human-readable summary of the cycle.
func (r *CycleResult) Summary() string {
	return fmt.Sprintf(
		"refreshed=%d failed=%d alerts_fired=%d live_games=%d errors=%d",
		r.PlayersRefreshed, r.PlayersFailed, r.AlertsFired, r.LiveGames, len(r.Errors),
	)
}
