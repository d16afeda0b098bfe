package trackdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildtrack-data/movement.report/internal/geo"
)

const sampleCSV = `Name,Timestamp,X,Y,Season,Season2,Sex,age
Ioana,2021-05-10 08:00:00,500000,500000,S2,Den exit and reproduction,F,A
Ioana,2021-05-10 09:00:00,500100,500000,S2,Den exit and reproduction,F,A
Mihai,2021-05-10 22:30:00,510000,490000,S3,Forest fruits,M,J
,2021-05-10 10:00:00,500000,500000,S2,Den exit and reproduction,F,A
Ioana,not-a-time,500200,500000,S2,Den exit and reproduction,F,A
Ioana,2021-05-10 11:00:00,,500000,S2,Den exit and reproduction,F,A
`

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bears.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestImporter(t *testing.T) *Importer {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Bucharest")
	require.NoError(t, err)
	return &Importer{
		Store: newTestStore(t),
		Proj:  geo.MustByCode(geo.EPSGStereo70),
		Loc:   loc,
	}
}

func TestImportCSV(t *testing.T) {
	imp := newTestImporter(t)
	ctx := context.Background()

	batch, err := imp.ImportCSV(ctx, writeCSV(t, sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, 3, batch.RowCount)
	assert.Equal(t, 3, batch.DroppedCount, "blank name, bad timestamp and missing X are dropped")
	assert.NotEmpty(t, batch.ID)

	fixes, err := imp.Store.GetFixes(ctx, FixFilter{Individual: "Ioana"})
	require.NoError(t, err)
	require.Len(t, fixes, 2)

	f := fixes[0]
	assert.Equal(t, "Den exit and reproduction", f.Season, "descriptive label comes from Season2")
	assert.Equal(t, "S2", f.SeasonCode)
	assert.Equal(t, "F", f.Sex)
	assert.Equal(t, "A", f.Age)
	assert.True(t, f.Daytime)
	// The origin of the national grid: conversion must land on it.
	assert.InDelta(t, 46.0, f.Lat, 1e-6)
	assert.InDelta(t, 25.0, f.Lng, 1e-6)

	// Timestamps keep the recording timezone.
	assert.Equal(t, 8, f.Timestamp.Hour())

	latest, err := imp.Store.LatestBatchID(ctx)
	require.NoError(t, err)
	assert.Equal(t, batch.ID, latest)
}

func TestImportCSVNighttimeFlag(t *testing.T) {
	imp := newTestImporter(t)
	ctx := context.Background()

	_, err := imp.ImportCSV(ctx, writeCSV(t, sampleCSV))
	require.NoError(t, err)

	fixes, err := imp.Store.GetFixes(ctx, FixFilter{Individual: "Mihai"})
	require.NoError(t, err)
	require.Len(t, fixes, 1)
	assert.False(t, fixes[0].Daytime, "22:30 is outside the 06:00-20:00 window")
}

func TestImportCSVMissingColumns(t *testing.T) {
	imp := newTestImporter(t)
	_, err := imp.ImportCSV(context.Background(), writeCSV(t, "Name,X,Y\nIoana,1,2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timestamp")
}

func TestImportCSVMissingFile(t *testing.T) {
	imp := newTestImporter(t)
	_, err := imp.ImportCSV(context.Background(), filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
}

func TestParseTimestampLayouts(t *testing.T) {
	loc := time.UTC
	for _, value := range []string{
		"2021-05-10 08:00:00",
		"2021-05-10T08:00:00",
		"2021-05-10 08:00",
		"10.05.2021 08:00:00",
	} {
		ts, ok := parseTimestamp(value, loc)
		assert.True(t, ok, "should parse %q", value)
		assert.Equal(t, 2021, ts.Year(), "value %q", value)
		assert.Equal(t, time.May, ts.Month(), "value %q", value)
	}
	_, ok := parseTimestamp("", loc)
	assert.False(t, ok)
	_, ok = parseTimestamp("yesterday", loc)
	assert.False(t, ok)
}
