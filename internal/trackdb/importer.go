package trackdb

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wildtrack-data/movement.report/internal/geo"
	"github.com/wildtrack-data/movement.report/internal/monitoring"
	"github.com/wildtrack-data/movement.report/internal/track"
)

// Timestamp layouts seen in tracking CSV exports.
var csvTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"2006/01/02 15:04:05",
	time.RFC3339,
}

// Importer loads tracking CSVs into the fix store, reprojecting on ingest.
type Importer struct {
	Store *FixStore
	Proj  geo.Projection
	Loc   *time.Location // location the CSV timestamps are recorded in
}

// ImportCSV reads a tracking CSV (Name, Timestamp, X, Y, Season, Season2,
// Sex, age) and stores its rows under a fresh batch id. Rows missing a
// usable timestamp or coordinates are dropped and counted, never fatal: the
// batch records how many rows were lost so the import report can surface the
// diagnostic. Column matching is case-insensitive; the original exports are
// inconsistent about it.
func (imp *Importer) ImportCSV(ctx context.Context, path string) (ImportBatch, error) {
	defer monitoring.TimeOp(fmt.Sprintf("csv import of %s", path))()

	f, err := os.Open(path)
	if err != nil {
		return ImportBatch{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	fixes, dropped, err := imp.parse(f)
	if err != nil {
		return ImportBatch{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	batch := ImportBatch{
		ID:           uuid.NewString(),
		Source:       path,
		ImportedAt:   time.Now(),
		RowCount:     len(fixes),
		DroppedCount: dropped,
	}
	if err := imp.Store.RecordBatch(ctx, batch); err != nil {
		return ImportBatch{}, err
	}
	if err := imp.Store.InsertFixes(ctx, batch.ID, fixes); err != nil {
		return ImportBatch{}, err
	}

	monitoring.Logf("imported %d fixes from %s (%d rows dropped), batch %s",
		batch.RowCount, path, batch.DroppedCount, batch.ID)
	return batch, nil
}

func (imp *Importer) parse(r io.Reader) (fixes []track.Fix, dropped int, err error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"name", "timestamp", "x", "y"} {
		if _, ok := col[required]; !ok {
			return nil, 0, fmt.Errorf("missing required column %q", required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	loc := imp.Loc
	if loc == nil {
		loc = time.UTC
	}

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read record: %w", err)
		}

		ts, ok := parseTimestamp(field(record, "timestamp"), loc)
		if !ok {
			dropped++
			continue
		}
		x, errX := strconv.ParseFloat(field(record, "x"), 64)
		y, errY := strconv.ParseFloat(field(record, "y"), 64)
		name := field(record, "name")
		if errX != nil || errY != nil || name == "" {
			dropped++
			continue
		}

		lat, lng := imp.Proj.Inverse(x, y)
		fixes = append(fixes, track.Fix{
			Individual: name,
			Timestamp:  ts,
			X:          x,
			Y:          y,
			Lat:        lat,
			Lng:        lng,
			// The export's Season column is a short code; Season2
			// carries the descriptive label everything reports on.
			SeasonCode: field(record, "season"),
			Season:     field(record, "season2"),
			Sex:        field(record, "sex"),
			Age:        field(record, "age"),
			Daytime:    track.IsDaytime(ts),
		})
	}
	return fixes, dropped, nil
}

func parseTimestamp(value string, loc *time.Location) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range csvTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
