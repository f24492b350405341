// Package alert evaluates stored thresholds against the latest refreshed
// stats. Evaluation is pure: delivery of fired alerts is the caller's
// responsibility.
package alert

import "github.com/courtwatch/courtwatch/internal/model"

// Evaluate compares each alert's threshold against the latest stat line of
// the corresponding player snapshot, keyed by storage player ID. A player
// with no snapshot or no stats is skipped silently. An alert fires when the
// stat value meets or exceeds the threshold; exact equality fires.
func Evaluate(snapshots map[int64]model.Snapshot, alerts []model.Alert) []model.AlertFired {
	var fired []model.AlertFired
	for _, a := range alerts {
		snap, ok := snapshots[a.PlayerID]
		if !ok {
			continue
		}
		latest, ok := snap.Latest()
		if !ok {
			continue
		}
		value, ok := latest.Value(a.StatType)
		if !ok {
			continue
		}
		if value >= a.Threshold {
			fired = append(fired, model.AlertFired{
				PlayerName: snap.Name,
				StatType:   a.StatType,
				Value:      value,
				Threshold:  a.Threshold,
			})
		}
	}
	return fired
}
