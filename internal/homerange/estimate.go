// Package homerange estimates utilisation areas for tracked individuals:
// minimum convex polygon (MCP) ranges and kernel density (KDE) isopleths.
package homerange

import (
	"sort"

	"github.com/wildtrack-data/movement.report/internal/track"
)

// Defaults follow the ecological conventions for brown bear range studies.
const (
	DefaultMCPPercent  = 95
	DefaultKDEPercent  = 95
	DefaultCorePercent = 50
	DefaultGridSize    = 100
)

// Options tunes the estimators. The zero value means "use defaults".
type Options struct {
	// MCPPercent trims the MCP to this percentage of points nearest the
	// mean center. 100 disables trimming.
	MCPPercent float64

	// KDEPercent and CorePercent are the isopleth levels for the full and
	// core kernel ranges. CorePercent must not exceed KDEPercent for the
	// core to stay inside the full range; the defaults (95/50) do.
	KDEPercent  float64
	CorePercent float64

	// GridSize is the kernel evaluation grid resolution per axis.
	GridSize int

	// Season restricts the estimate to fixes with this season label.
	// Empty means all fixes.
	Season string
}

func (o Options) withDefaults() Options {
	if o.MCPPercent <= 0 {
		o.MCPPercent = DefaultMCPPercent
	}
	if o.KDEPercent <= 0 {
		o.KDEPercent = DefaultKDEPercent
	}
	if o.CorePercent <= 0 {
		o.CorePercent = DefaultCorePercent
	}
	if o.GridSize <= 0 {
		o.GridSize = DefaultGridSize
	}
	return o
}

// Estimate is the home-range result for one individual (optionally within
// one season). Areas are square kilometers.
type Estimate struct {
	Individual string `json:"individual"`
	Season     string `json:"season,omitempty"`
	PointCount int    `json:"point_count"`

	MCPAreaKm2  float64 `json:"mcp_area_km2"`
	KDEAreaKm2  float64 `json:"kde_area_km2"`
	CoreAreaKm2 float64 `json:"core_area_km2"`
}

// Compute estimates the home range over the given fixes, which are assumed
// to belong to one individual. Fewer than 3 distinct positions span no area:
// every area comes back 0 and no error is raised. The input is not modified.
func Compute(fixes []track.Fix, opts Options) Estimate {
	opts = opts.withDefaults()

	pts := make([]point, 0, len(fixes))
	est := Estimate{Season: opts.Season}
	for _, f := range fixes {
		// The individual id comes from the group itself, not from the
		// season-matching subset: a season with no fixes still yields an
		// attributable zero-area estimate.
		if est.Individual == "" {
			est.Individual = f.Individual
		}
		if opts.Season != "" && f.Season != opts.Season {
			continue
		}
		pts = append(pts, point{f.X, f.Y})
	}
	est.PointCount = len(pts)
	if distinctCount(pts) < 3 {
		return est
	}

	est.MCPAreaKm2 = mcpAreaM2(pts, opts.MCPPercent) / 1e6

	grid := newKDEGrid(pts, opts.GridSize)
	est.KDEAreaKm2 = grid.isoplethAreaM2(opts.KDEPercent) / 1e6
	est.CoreAreaKm2 = grid.isoplethAreaM2(opts.CorePercent) / 1e6
	return est
}

// ComputeAll groups fixes by individual and estimates each one's range,
// sorted by individual id.
func ComputeAll(fixes []track.Fix, opts Options) []Estimate {
	byIndividual := make(map[string][]track.Fix)
	for _, f := range fixes {
		byIndividual[f.Individual] = append(byIndividual[f.Individual], f)
	}
	out := make([]Estimate, 0, len(byIndividual))
	for _, group := range byIndividual {
		out = append(out, Compute(group, opts))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Individual < out[j].Individual })
	return out
}

// IsoplethCells returns the centers of the kernel grid cells inside the given
// isopleth, for plotting KDE ranges. Nil when the fixes are degenerate.
func IsoplethCells(fixes []track.Fix, percent float64, gridSize int) [][2]float64 {
	if percent <= 0 {
		percent = DefaultKDEPercent
	}
	if gridSize <= 0 {
		gridSize = DefaultGridSize
	}
	pts := make([]point, len(fixes))
	for i, f := range fixes {
		pts[i] = point{f.X, f.Y}
	}
	return newKDEGrid(pts, gridSize).isoplethCells(percent)
}

// Hull returns the MCP hull vertices (projected meters, counter-clockwise)
// for plotting. Percent trims the same way Compute does.
func Hull(fixes []track.Fix, percent float64) [][2]float64 {
	if percent <= 0 {
		percent = DefaultMCPPercent
	}
	pts := make([]point, len(fixes))
	for i, f := range fixes {
		pts[i] = point{f.X, f.Y}
	}
	hull := convexHull(trimToCenter(pts, percent))
	out := make([][2]float64, len(hull))
	for i, p := range hull {
		out[i] = [2]float64{p.x, p.y}
	}
	return out
}
