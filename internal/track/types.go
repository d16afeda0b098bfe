// Package track holds the core movement types and the per-track kinematics
// and aggregation routines. Everything here is pure computation over fix
// slices; persistence lives in trackdb.
package track

import "time"

// Fix is a single GPS observation of one tracked individual. X/Y are
// projected meters in the source CRS; Lat/Lng are the WGS84 conversion
// (NaN when the conversion failed).
type Fix struct {
	Individual string    `json:"individual"`
	Timestamp  time.Time `json:"timestamp"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Season     string    `json:"season"`
	SeasonCode string    `json:"season_code,omitempty"`
	Sex        string    `json:"sex,omitempty"`
	Age        string    `json:"age,omitempty"`
	Daytime    bool      `json:"daytime"`
}

// Seasons in the bear year, in canonical order. Ties and defaults resolve in
// this order everywhere seasons are ranked.
var CanonicalSeasons = []string{
	"Winter sleep",
	"Den exit and reproduction",
	"Forest fruits",
	"Hyperphagia",
}

// SeasonRank returns the canonical position of a season label, or
// len(CanonicalSeasons) for labels outside the canonical set so they sort
// after the known seasons.
func SeasonRank(season string) int {
	for i, s := range CanonicalSeasons {
		if s == season {
			return i
		}
	}
	return len(CanonicalSeasons)
}

// AgeClassName expands the single-letter age codes used in the tracking data.
func AgeClassName(code string) string {
	switch code {
	case "A":
		return "Adult"
	case "J":
		return "Subadult"
	default:
		return code
	}
}

// Daytime hours: fixes between 06:00 (inclusive) and 20:00 (exclusive) local
// time count as daytime activity.
const (
	daytimeStartHour = 6
	daytimeEndHour   = 20
)

// IsDaytime reports whether a timestamp falls in the daytime activity window.
func IsDaytime(t time.Time) bool {
	h := t.Hour()
	return h >= daytimeStartHour && h < daytimeEndHour
}
