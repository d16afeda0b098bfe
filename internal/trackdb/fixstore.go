// Package trackdb persists GPS fix rows and import batches in the tracking
// database. The fix table is the only source of truth; every analytic output
// derives from it on demand.
package trackdb

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/wildtrack-data/movement.report/internal/db"
	"github.com/wildtrack-data/movement.report/internal/track"
)

// timestamps are stored as RFC3339 text, preserving the recording offset so
// calendar grouping stays in local time.
const timeLayout = time.RFC3339

// FixStore manages persistence for fix rows.
type FixStore struct {
	db *db.DB
}

// NewFixStore creates a FixStore backed by the given database.
func NewFixStore(database *db.DB) *FixStore {
	return &FixStore{db: database}
}

// FixFilter narrows a fix query. Zero fields are ignored.
type FixFilter struct {
	Individual string
	Start      time.Time
	End        time.Time
	Season     string
}

// Individual is one roster entry: a tracked animal and its fix coverage.
type Individual struct {
	Name       string    `json:"individual"`
	Sex        string    `json:"sex,omitempty"`
	Age        string    `json:"age,omitempty"`
	PointCount int       `json:"point_count"`
	FirstFix   time.Time `json:"first_fix"`
	LastFix    time.Time `json:"last_fix"`
}

// ImportBatch records one CSV import run. The most recent batch id doubles as
// the dataset version for cache keying.
type ImportBatch struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	ImportedAt   time.Time `json:"imported_at"`
	RowCount     int       `json:"row_count"`
	DroppedCount int       `json:"dropped_count"`
}

// InsertFixes writes fixes under the given batch id in one transaction.
func (s *FixStore) InsertFixes(ctx context.Context, batchID string, fixes []track.Fix) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO fixes (individual, timestamp, x, y, lat, lng, season, season_code, sex, age, is_daytime, import_batch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range fixes {
		var lat, lng interface{}
		if !isNaN(f.Lat) {
			lat = f.Lat
		}
		if !isNaN(f.Lng) {
			lng = f.Lng
		}
		if _, err := stmt.ExecContext(ctx,
			f.Individual, f.Timestamp.Format(timeLayout), f.X, f.Y, lat, lng,
			f.Season, f.SeasonCode, f.Sex, f.Age, boolToInt(f.Daytime), batchID,
		); err != nil {
			return fmt.Errorf("failed to insert fix for %s: %w", f.Individual, err)
		}
	}
	return tx.Commit()
}

// GetFixes returns fixes matching the filter, ordered by individual and
// timestamp.
func (s *FixStore) GetFixes(ctx context.Context, filter FixFilter) ([]track.Fix, error) {
	query := `
		SELECT individual, timestamp, x, y, lat, lng, season, season_code, sex, age, is_daytime
		FROM fixes
	`
	var conds []string
	var args []interface{}
	if filter.Individual != "" {
		conds = append(conds, "individual = ?")
		args = append(args, filter.Individual)
	}
	// datetime() normalizes both sides to UTC, so a query offset that
	// differs from the stored recording offset still compares correctly.
	if !filter.Start.IsZero() {
		conds = append(conds, "datetime(timestamp) >= datetime(?)")
		args = append(args, filter.Start.Format(timeLayout))
	}
	if !filter.End.IsZero() {
		conds = append(conds, "datetime(timestamp) <= datetime(?)")
		args = append(args, filter.End.Format(timeLayout))
	}
	if filter.Season != "" {
		conds = append(conds, "season = ?")
		args = append(args, filter.Season)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY individual, timestamp"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query fixes: %w", err)
	}
	defer rows.Close()

	var fixes []track.Fix
	for rows.Next() {
		var f track.Fix
		var ts string
		var lat, lng sql.NullFloat64
		var daytime int
		if err := rows.Scan(&f.Individual, &ts, &f.X, &f.Y, &lat, &lng,
			&f.Season, &f.SeasonCode, &f.Sex, &f.Age, &daytime); err != nil {
			return nil, fmt.Errorf("failed to scan fix row: %w", err)
		}
		f.Timestamp, err = time.Parse(timeLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stored timestamp %q: %w", ts, err)
		}
		f.Lat, f.Lng = nullToNaN(lat), nullToNaN(lng)
		f.Daytime = daytime != 0
		fixes = append(fixes, f)
	}
	return fixes, rows.Err()
}

// Individuals returns the roster of tracked animals with their fix coverage,
// ordered by name. Sex and age come from each individual's earliest fix.
func (s *FixStore) Individuals(ctx context.Context) ([]Individual, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT individual, COUNT(*), MIN(timestamp), MAX(timestamp),
		       (SELECT sex FROM fixes f2 WHERE f2.individual = f.individual ORDER BY f2.timestamp LIMIT 1),
		       (SELECT age FROM fixes f2 WHERE f2.individual = f.individual ORDER BY f2.timestamp LIMIT 1)
		FROM fixes f
		GROUP BY individual
		ORDER BY individual
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query individuals: %w", err)
	}
	defer rows.Close()

	var out []Individual
	for rows.Next() {
		var ind Individual
		var first, last string
		if err := rows.Scan(&ind.Name, &ind.PointCount, &first, &last, &ind.Sex, &ind.Age); err != nil {
			return nil, fmt.Errorf("failed to scan individual row: %w", err)
		}
		if ind.FirstFix, err = time.Parse(timeLayout, first); err != nil {
			return nil, fmt.Errorf("failed to parse first fix time: %w", err)
		}
		if ind.LastFix, err = time.Parse(timeLayout, last); err != nil {
			return nil, fmt.Errorf("failed to parse last fix time: %w", err)
		}
		out = append(out, ind)
	}
	return out, rows.Err()
}

// Seasons returns the distinct season labels present in the data, in
// canonical order first and unknown labels after.
func (s *FixStore) Seasons(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT season FROM fixes WHERE season != '' ORDER BY season`)
	if err != nil {
		return nil, fmt.Errorf("failed to query seasons: %w", err)
	}
	defer rows.Close()

	var seasons []string
	for rows.Next() {
		var season string
		if err := rows.Scan(&season); err != nil {
			return nil, fmt.Errorf("failed to scan season row: %w", err)
		}
		seasons = append(seasons, season)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortSeasons(seasons)
	return seasons, nil
}

// DateRange returns the earliest and latest fix timestamps. ok is false when
// the store is empty.
func (s *FixStore) DateRange(ctx context.Context) (min, max time.Time, ok bool, err error) {
	var first, last sql.NullString
	err = s.db.QueryRowContext(ctx, `SELECT MIN(timestamp), MAX(timestamp) FROM fixes`).Scan(&first, &last)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("failed to query date range: %w", err)
	}
	if !first.Valid || !last.Valid {
		return time.Time{}, time.Time{}, false, nil
	}
	if min, err = time.Parse(timeLayout, first.String); err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	if max, err = time.Parse(timeLayout, last.String); err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	return min, max, true, nil
}

// RecordBatch stores the outcome of one import run.
func (s *FixStore) RecordBatch(ctx context.Context, batch ImportBatch) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO import_batches (id, source, imported_at, row_count, dropped_count)
		VALUES (?, ?, ?, ?, ?)
	`, batch.ID, batch.Source, batch.ImportedAt.Format(timeLayout), batch.RowCount, batch.DroppedCount)
	if err != nil {
		return fmt.Errorf("failed to record import batch: %w", err)
	}
	return nil
}

// LatestBatchID returns the most recent import batch id, which identifies the
// dataset version. Empty string when nothing has been imported.
func (s *FixStore) LatestBatchID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM import_batches ORDER BY imported_at DESC, id DESC LIMIT 1
	`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query latest batch: %w", err)
	}
	return id, nil
}

func sortSeasons(seasons []string) {
	// Stable insertion order: canonical rank first, then lexical.
	for i := 1; i < len(seasons); i++ {
		for j := i; j > 0 && seasonLess(seasons[j], seasons[j-1]); j-- {
			seasons[j], seasons[j-1] = seasons[j-1], seasons[j]
		}
	}
}

func seasonLess(a, b string) bool {
	ra, rb := track.SeasonRank(a), track.SeasonRank(b)
	if ra != rb {
		return ra < rb
	}
	return a < b
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isNaN(v float64) bool { return math.IsNaN(v) }

func nullToNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
