package track

import (
	"fmt"
	"math"
	"sort"
)

// Period selects the grouping window for Aggregate.
type Period string

const (
	PeriodDay    Period = "day"
	PeriodWeek   Period = "week"
	PeriodMonth  Period = "month"
	PeriodSeason Period = "season"
)

// ValidPeriods lists the accepted period values, for request validation.
var ValidPeriods = []Period{PeriodDay, PeriodWeek, PeriodMonth, PeriodSeason}

// Valid reports whether p is a recognised grouping period.
func (p Period) Valid() bool {
	for _, v := range ValidPeriods {
		if p == v {
			return true
		}
	}
	return false
}

// PeriodStat summarises one individual's movement within one period.
type PeriodStat struct {
	Individual string `json:"individual"`
	Period     string `json:"period"`

	PointCount int     `json:"point_count"`
	CentroidX  float64 `json:"centroid_x"`
	CentroidY  float64 `json:"centroid_y"`
	MinX       float64 `json:"min_x"`
	MaxX       float64 `json:"max_x"`
	MinY       float64 `json:"min_y"`
	MaxY       float64 `json:"max_y"`

	TotalDistanceMeters float64 `json:"total_distance_m"`
	AvgSpeed            float64 `json:"avg_speed"`

	Sex    string `json:"sex,omitempty"`
	Age    string `json:"age,omitempty"`
	Season string `json:"season,omitempty"`
}

// Aggregate groups fixes by individual and period and summarises each group.
// Distances are summed over consecutive fixes inside a group only; a step
// never spans a period boundary. AvgSpeed is the mean per-step distance
// (total distance over step count), kept deliberately: it is the figure the
// field biologists have been reading for years, not distance over elapsed
// time. Groups with a single point report zero distance and zero speed.
// Sex, age and season metadata come from the group's first fix in time.
func Aggregate(fixes []Fix, period Period) ([]PeriodStat, error) {
	if !period.Valid() {
		return nil, fmt.Errorf("unknown aggregation period %q", period)
	}

	type groupKey struct {
		individual string
		period     string
	}
	groups := make(map[groupKey][]Fix)
	for _, f := range fixes {
		k := groupKey{f.Individual, periodKey(period, f)}
		groups[k] = append(groups[k], f)
	}

	stats := make([]PeriodStat, 0, len(groups))
	for k, group := range groups {
		ordered := sortedByTime(group)
		first := ordered[0]

		st := PeriodStat{
			Individual: k.individual,
			Period:     k.period,
			PointCount: len(ordered),
			MinX:       math.Inf(1),
			MaxX:       math.Inf(-1),
			MinY:       math.Inf(1),
			MaxY:       math.Inf(-1),
			Sex:        first.Sex,
			Age:        first.Age,
			Season:     first.Season,
		}

		var sumX, sumY float64
		for _, f := range ordered {
			sumX += f.X
			sumY += f.Y
			st.MinX = math.Min(st.MinX, f.X)
			st.MaxX = math.Max(st.MaxX, f.X)
			st.MinY = math.Min(st.MinY, f.Y)
			st.MaxY = math.Max(st.MaxY, f.Y)
		}
		st.CentroidX = sumX / float64(len(ordered))
		st.CentroidY = sumY / float64(len(ordered))

		for i := 1; i < len(ordered); i++ {
			st.TotalDistanceMeters += math.Hypot(
				ordered[i].X-ordered[i-1].X,
				ordered[i].Y-ordered[i-1].Y,
			)
		}
		if steps := len(ordered) - 1; steps > 0 {
			st.AvgSpeed = st.TotalDistanceMeters / float64(steps)
		}

		stats = append(stats, st)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Individual != stats[j].Individual {
			return stats[i].Individual < stats[j].Individual
		}
		if period == PeriodSeason {
			return SeasonRank(stats[i].Period) < SeasonRank(stats[j].Period)
		}
		return stats[i].Period < stats[j].Period
	})
	return stats, nil
}

func periodKey(period Period, f Fix) string {
	switch period {
	case PeriodDay:
		return f.Timestamp.Format("2006-01-02")
	case PeriodWeek:
		year, week := f.Timestamp.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case PeriodMonth:
		return f.Timestamp.Format("2006-01")
	case PeriodSeason:
		return f.Season
	}
	return ""
}
