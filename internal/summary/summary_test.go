package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildtrack-data/movement.report/internal/homerange"
)

func seasonEst(individual, season string, mcpKm2 float64) homerange.Estimate {
	return homerange.Estimate{Individual: individual, Season: season, MCPAreaKm2: mcpKm2}
}

func TestSummarizeLargestSeason(t *testing.T) {
	t.Parallel()
	seasonal := []homerange.Estimate{
		seasonEst("ursa", "Winter sleep", 10),
		seasonEst("ursa", "Den exit and reproduction", 25),
		seasonEst("ursa", "Forest fruits", 5),
		seasonEst("ursa", "Hyperphagia", 0),
	}
	rows := Summarize(nil, seasonal)
	require.Len(t, rows, 1)
	assert.Equal(t, "Den exit and reproduction", rows[0].LargestSeason)
	assert.InDelta(t, 25, rows[0].LargestSeasonAreaKm2, 1e-12)
}

func TestSummarizeTieBreaksCanonicalOrder(t *testing.T) {
	t.Parallel()
	seasonal := []homerange.Estimate{
		seasonEst("ursa", "Hyperphagia", 12),
		seasonEst("ursa", "Forest fruits", 12),
	}
	rows := Summarize(nil, seasonal)
	require.Len(t, rows, 1)
	assert.Equal(t, "Forest fruits", rows[0].LargestSeason, "earlier canonical season wins a tie")
}

func TestSummarizeAllZeroSeasons(t *testing.T) {
	t.Parallel()
	overall := []homerange.Estimate{{Individual: "ursa", PointCount: 2}}
	rows := Summarize(overall, nil)
	require.Len(t, rows, 1)
	assert.Equal(t, "Winter sleep", rows[0].LargestSeason, "no seasonal data picks the first canonical season")
	assert.Zero(t, rows[0].LargestSeasonAreaKm2)
	assert.Len(t, rows[0].SeasonAreasKm2, 4, "every canonical season is present")
}

func TestSummarizeJoinsOverallAndSeasonal(t *testing.T) {
	t.Parallel()
	overall := []homerange.Estimate{
		{Individual: "ursa", PointCount: 120, MCPAreaKm2: 40, KDEAreaKm2: 55, CoreAreaKm2: 12},
	}
	seasonal := []homerange.Estimate{
		seasonEst("ursa", "Forest fruits", 18),
	}
	rows := Summarize(overall, seasonal)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, 120, row.PointCount)
	assert.InDelta(t, 40, row.OverallMCPKm2, 1e-12)
	assert.InDelta(t, 55, row.OverallKDEKm2, 1e-12)
	assert.InDelta(t, 12, row.OverallCoreKm2, 1e-12)
	assert.InDelta(t, 18, row.SeasonAreasKm2["Forest fruits"], 1e-12)
	assert.Zero(t, row.SeasonAreasKm2["Winter sleep"], "missing seasons default to 0")
	assert.Equal(t, "Forest fruits", row.LargestSeason)
}

func TestSummarizeSortsAndDoesNotMutate(t *testing.T) {
	t.Parallel()
	overall := []homerange.Estimate{
		{Individual: "zoe", MCPAreaKm2: 1},
		{Individual: "adam", MCPAreaKm2: 2},
	}
	seasonal := []homerange.Estimate{seasonEst("zoe", "Hyperphagia", 3)}

	rows := Summarize(overall, seasonal)
	require.Len(t, rows, 2)
	assert.Equal(t, "adam", rows[0].Individual)
	assert.Equal(t, "zoe", rows[1].Individual)

	assert.Equal(t, "zoe", overall[0].Individual, "inputs must come back untouched")
	assert.InDelta(t, 3, seasonal[0].MCPAreaKm2, 1e-12)
}

func TestSummarizeIgnoresAnonymousEstimates(t *testing.T) {
	t.Parallel()
	overall := []homerange.Estimate{
		{Individual: "ursa", PointCount: 4, MCPAreaKm2: 2},
		{Individual: ""},
	}
	seasonal := []homerange.Estimate{
		seasonEst("ursa", "Forest fruits", 2),
		seasonEst("", "Winter sleep", 0),
	}
	rows := Summarize(overall, seasonal)
	require.Len(t, rows, 1, "estimates without an individual id never make a row")
	assert.Equal(t, "ursa", rows[0].Individual)
}

func TestSummarizeNonCanonicalSeasonStillCounts(t *testing.T) {
	t.Parallel()
	seasonal := []homerange.Estimate{
		seasonEst("ursa", "Migration", 99),
		seasonEst("ursa", "Winter sleep", 1),
	}
	rows := Summarize(nil, seasonal)
	require.Len(t, rows, 1)
	assert.Equal(t, "Migration", rows[0].LargestSeason)
	assert.InDelta(t, 99, rows[0].LargestSeasonAreaKm2, 1e-12)
}
