// Package summary joins overall and per-season home-range estimates into the
// per-individual figures the seasonal report presents.
package summary

import (
	"sort"

	"github.com/wildtrack-data/movement.report/internal/homerange"
	"github.com/wildtrack-data/movement.report/internal/track"
)

// IndividualSummary is one row of the seasonal report. Season areas use the
// MCP estimate, matching the seasonal range polygons the report draws; every
// canonical season is present in SeasonAreasKm2, defaulting to 0.
type IndividualSummary struct {
	Individual string `json:"individual"`
	PointCount int    `json:"point_count"`

	OverallMCPKm2  float64 `json:"overall_mcp_km2"`
	OverallKDEKm2  float64 `json:"overall_kde_km2"`
	OverallCoreKm2 float64 `json:"overall_core_km2"`

	SeasonAreasKm2       map[string]float64 `json:"season_areas_km2"`
	LargestSeason        string             `json:"largest_season"`
	LargestSeasonAreaKm2 float64            `json:"largest_season_area_km2"`
}

// Summarize joins overall estimates with seasonal estimates on individual id.
// Individuals appearing in either input get a row. LargestSeason is the
// season with the greatest area; ties resolve to the earliest season in
// canonical order, so an individual with no seasonal data at all reports the
// first canonical season with area 0. Neither input is modified.
func Summarize(overall []homerange.Estimate, seasonal []homerange.Estimate) []IndividualSummary {
	rows := make(map[string]*IndividualSummary)
	get := func(individual string) *IndividualSummary {
		row, ok := rows[individual]
		if !ok {
			row = &IndividualSummary{
				Individual:     individual,
				SeasonAreasKm2: make(map[string]float64, len(track.CanonicalSeasons)),
			}
			for _, s := range track.CanonicalSeasons {
				row.SeasonAreasKm2[s] = 0
			}
			rows[individual] = row
		}
		return row
	}

	for _, est := range overall {
		if est.Individual == "" {
			continue
		}
		row := get(est.Individual)
		row.PointCount = est.PointCount
		row.OverallMCPKm2 = est.MCPAreaKm2
		row.OverallKDEKm2 = est.KDEAreaKm2
		row.OverallCoreKm2 = est.CoreAreaKm2
	}
	for _, est := range seasonal {
		// Estimates computed over an empty fix set carry no individual id;
		// they must not materialize as a blank row.
		if est.Individual == "" || est.Season == "" {
			continue
		}
		get(est.Individual).SeasonAreasKm2[est.Season] = est.MCPAreaKm2
	}

	out := make([]IndividualSummary, 0, len(rows))
	for _, row := range rows {
		row.LargestSeason, row.LargestSeasonAreaKm2 = largestSeason(row.SeasonAreasKm2)
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Individual < out[j].Individual })
	return out
}

// largestSeason scans seasons in canonical order and keeps the first maximum,
// so ties break toward the earlier season. Seasons outside the canonical set
// are considered after it, in lexical order.
func largestSeason(areas map[string]float64) (string, float64) {
	best := ""
	bestArea := 0.0
	consider := func(season string) {
		area := areas[season]
		if best == "" || area > bestArea {
			best = season
			bestArea = area
		}
	}
	seen := make(map[string]bool, len(areas))
	for _, s := range track.CanonicalSeasons {
		if _, ok := areas[s]; ok {
			consider(s)
			seen[s] = true
		}
	}
	extras := make([]string, 0)
	for s := range areas {
		if !seen[s] {
			extras = append(extras, s)
		}
	}
	sort.Strings(extras)
	for _, s := range extras {
		consider(s)
	}
	return best, bestArea
}
