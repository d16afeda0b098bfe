package track

import (
	"math"
	"sort"
	"time"
)

// elapsed intervals at or below this many hours are treated as zero to keep
// duplicate timestamps from producing absurd speeds.
const minElapsedHours = 1e-6

// Step describes the movement between two consecutive fixes of the same
// individual. Steps align to the destination fix: n fixes produce n-1 steps
// and the first fix contributes no step.
type Step struct {
	Individual string    `json:"individual"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Season     string    `json:"season,omitempty"`

	DistanceMeters     float64 `json:"distance_m"`
	ElapsedHours       float64 `json:"elapsed_h"`
	SpeedMetersPerHour float64 `json:"speed_m_per_h"`
}

// Steps computes per-step kinematics for one individual's fixes. The input
// is re-sorted by timestamp if needed and is not modified. Distances are
// planar Euclidean on the projected coordinates; speed is zero whenever the
// elapsed time is at or below the duplicate-timestamp threshold. All outputs
// are non-negative.
func Steps(fixes []Fix) []Step {
	if len(fixes) < 2 {
		return nil
	}
	ordered := sortedByTime(fixes)

	steps := make([]Step, 0, len(ordered)-1)
	for i := 1; i < len(ordered); i++ {
		prev, cur := ordered[i-1], ordered[i]
		dist := math.Hypot(cur.X-prev.X, cur.Y-prev.Y)
		elapsed := cur.Timestamp.Sub(prev.Timestamp).Hours()
		if elapsed < 0 {
			elapsed = 0
		}
		speed := 0.0
		if elapsed > minElapsedHours {
			speed = dist / elapsed
		}
		steps = append(steps, Step{
			Individual:         cur.Individual,
			From:               prev.Timestamp,
			To:                 cur.Timestamp,
			X:                  cur.X,
			Y:                  cur.Y,
			Season:             cur.Season,
			DistanceMeters:     dist,
			ElapsedHours:       elapsed,
			SpeedMetersPerHour: speed,
		})
	}
	return steps
}

// sortedByTime returns the fixes in timestamp order, copying only when the
// input is out of order.
func sortedByTime(fixes []Fix) []Fix {
	if sort.SliceIsSorted(fixes, func(i, j int) bool {
		return fixes[i].Timestamp.Before(fixes[j].Timestamp)
	}) {
		return fixes
	}
	ordered := make([]Fix, len(fixes))
	copy(ordered, fixes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})
	return ordered
}
