package report

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildtrack-data/movement.report/internal/config"
	"github.com/wildtrack-data/movement.report/internal/db"
	"github.com/wildtrack-data/movement.report/internal/track"
	"github.com/wildtrack-data/movement.report/internal/trackdb"
)

func newTestServer(t *testing.T) (*Server, *trackdb.FixStore) {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.MigrateUp("../../migrations"))

	store := trackdb.NewFixStore(database)
	return NewServer(store, config.Empty()), store
}

// seedSquare inserts a 100m square walk for the individual, one fix per hour.
func seedSquare(t *testing.T, store *trackdb.FixStore, batch, individual string, start time.Time, season string) {
	t.Helper()
	coords := [][2]float64{{0, 0}, {100, 0}, {100, 100}, {0, 100}}
	fixes := make([]track.Fix, len(coords))
	for i, c := range coords {
		fixes[i] = track.Fix{
			Individual: individual,
			Timestamp:  start.Add(time.Duration(i) * time.Hour),
			X:          c[0], Y: c[1],
			Lat: 46, Lng: 25,
			Season: season, Sex: "F", Age: "A",
			Daytime: true,
		}
	}
	ctx := context.Background()
	require.NoError(t, store.RecordBatch(ctx, trackdb.ImportBatch{
		ID: batch, Source: "seed.csv", ImportedAt: time.Now(), RowCount: len(fixes),
	}))
	require.NoError(t, store.InsertFixes(ctx, batch, fixes))
}

func getJSON(t *testing.T, srv *Server, url string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(rec, req)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return rec.Code, body
}

func TestIndividualsEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	start := time.Date(2021, 5, 10, 8, 0, 0, 0, time.UTC)
	seedSquare(t, store, "b1", "martin", start, "Forest fruits")
	seedSquare(t, store, "b1-b", "ursa", start, "Forest fruits")

	code, body := getJSON(t, srv, "/api/individuals")
	require.Equal(t, http.StatusOK, code)
	individuals := body["individuals"].([]interface{})
	require.Len(t, individuals, 2)
	first := individuals[0].(map[string]interface{})
	assert.Equal(t, "martin", first["individual"])
	assert.EqualValues(t, 4, first["point_count"])
}

func TestFixesEndpointFilters(t *testing.T) {
	srv, store := newTestServer(t)
	start := time.Date(2021, 5, 10, 8, 0, 0, 0, time.UTC)
	seedSquare(t, store, "b1", "martin", start, "Forest fruits")
	seedSquare(t, store, "b2", "ursa", start, "Hyperphagia")
	seedSquare(t, store, "b3", "vlad", start, "Hyperphagia")

	code, body := getJSON(t, srv, "/api/fixes?individual=ursa")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 4, body["count"])

	code, body = getJSON(t, srv, "/api/fixes?individual=ursa,martin")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 8, body["count"], "comma-separated individual list")

	code, body = getJSON(t, srv, "/api/fixes?season=Forest+fruits")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 4, body["count"])

	code, _ = getJSON(t, srv, "/api/fixes?start=not-a-date")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestFixesEndpointDateRangeInclusive(t *testing.T) {
	srv, store := newTestServer(t)
	start := time.Date(2021, 5, 10, 8, 0, 0, 0, time.UTC)
	seedSquare(t, store, "b1", "ursa", start, "")

	// All four fixes fall on 2021-05-10; the end date is inclusive.
	code, body := getJSON(t, srv, "/api/fixes?start=2021-05-10&end=2021-05-10")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 4, body["count"])

	code, body = getJSON(t, srv, "/api/fixes?end=2021-05-09")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, body["count"])
}

func TestStepsEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	start := time.Date(2021, 5, 10, 8, 0, 0, 0, time.UTC)
	seedSquare(t, store, "b1", "ursa", start, "")

	code, _ := getJSON(t, srv, "/api/steps")
	assert.Equal(t, http.StatusBadRequest, code, "individual is required")

	code, body := getJSON(t, srv, "/api/steps?individual=ursa")
	require.Equal(t, http.StatusOK, code)
	steps := body["steps"].([]interface{})
	require.Len(t, steps, 3, "four fixes make three steps")
	first := steps[0].(map[string]interface{})
	assert.InDelta(t, 100.0, first["distance_m"], 1e-9)
	assert.InDelta(t, 100.0, first["speed_m_per_h"], 1e-9)
}

func TestStatsEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	start := time.Date(2021, 5, 10, 8, 0, 0, 0, time.UTC)
	seedSquare(t, store, "b1", "ursa", start, "Forest fruits")

	code, _ := getJSON(t, srv, "/api/stats?period=decade")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := getJSON(t, srv, "/api/stats?period=day&individual=ursa")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "day", body["period"])
	stats := body["stats"].([]interface{})
	require.Len(t, stats, 1)
	row := stats[0].(map[string]interface{})
	assert.Equal(t, "2021-05-10", row["period"])
	assert.EqualValues(t, 4, row["point_count"])
	assert.InDelta(t, 300.0, row["total_distance_m"], 1e-9)
}

func TestHomeRangeEndpointUnits(t *testing.T) {
	srv, store := newTestServer(t)
	start := time.Date(2021, 5, 10, 8, 0, 0, 0, time.UTC)
	seedSquare(t, store, "b1", "ursa", start, "")

	code, _ := getJSON(t, srv, "/api/homerange?units=acres")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := getJSON(t, srv, "/api/homerange")
	require.Equal(t, http.StatusOK, code)
	ranges := body["home_ranges"].([]interface{})
	require.Len(t, ranges, 1)
	km2 := ranges[0].(map[string]interface{})
	assert.Equal(t, "ursa", km2["individual"])
	assert.Equal(t, "km2", km2["unit"])
	assert.InDelta(t, 0.01, km2["mcp_area"], 1e-9, "100m square is 0.01 km2")

	code, body = getJSON(t, srv, "/api/homerange?units=ha")
	require.Equal(t, http.StatusOK, code)
	ha := body["home_ranges"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "ha", ha["unit"])
	assert.InDelta(t, 1.0, ha["mcp_area"], 1e-9, "0.01 km2 is 1 ha")
}

func TestSummaryEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	start := time.Date(2021, 8, 10, 8, 0, 0, 0, time.UTC)
	seedSquare(t, store, "b1", "ursa", start, "Forest fruits")

	code, body := getJSON(t, srv, "/api/summary")
	require.Equal(t, http.StatusOK, code)
	rows := body["summary"].([]interface{})
	require.Len(t, rows, 1)
	row := rows[0].(map[string]interface{})
	assert.Equal(t, "ursa", row["individual"])
	assert.Equal(t, "Forest fruits", row["largest_season"])

	want := map[string]interface{}{
		"Winter sleep":              0.0,
		"Den exit and reproduction": 0.0,
		"Forest fruits":             0.01,
		"Hyperphagia":               0.0,
	}
	if diff := cmp.Diff(want, row["season_areas_km2"]); diff != "" {
		t.Errorf("season areas mismatch (-want +got):\n%s", diff)
	}
}

func TestStatsCacheInvalidatedByImport(t *testing.T) {
	srv, store := newTestServer(t)
	start := time.Date(2021, 5, 10, 8, 0, 0, 0, time.UTC)
	seedSquare(t, store, "b1", "ursa", start, "")

	code, body := getJSON(t, srv, "/api/stats?period=day")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body["stats"].([]interface{}), 1)

	// New batch, new dataset version: the cached day stats must not be
	// served.
	seedSquare(t, store, "b2", "martin", start, "")
	code, body = getJSON(t, srv, "/api/stats?period=day")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["stats"].([]interface{}), 2)
}

func TestConfigEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	code, body := getJSON(t, srv, "/api/config")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "EPSG:3844", body["source_crs"])
	assert.Equal(t, "Europe/Bucharest", body["timezone"])
	assert.EqualValues(t, 95, body["mcp_percent"])
	assert.Equal(t, "km2", body["area_unit"])
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/individuals", nil)
	rec := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMovementChart(t *testing.T) {
	srv, store := newTestServer(t)
	start := time.Date(2021, 5, 10, 8, 0, 0, 0, time.UTC)
	seedSquare(t, store, "b1", "ursa", start, "")

	req := httptest.NewRequest(http.MethodGet, "/charts/movement?individual=ursa", nil)
	rec := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, rec.Body.String(), "echarts")

	code, _ := getJSON(t, srv, "/charts/movement?individual=nobody")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHomeRangeChart(t *testing.T) {
	srv, store := newTestServer(t)
	start := time.Date(2021, 5, 10, 8, 0, 0, 0, time.UTC)
	seedSquare(t, store, "b1", "ursa", start, "")

	req := httptest.NewRequest(http.MethodGet, "/charts/homerange", nil)
	rec := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))

	code, _ := getJSON(t, srv, "/charts/homerange?individual=nobody")
	assert.Equal(t, http.StatusNotFound, code)
}
