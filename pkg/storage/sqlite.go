package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"time"

	"github.com/lirany1/synth-report/pkg/logger"
	"github.com/lirany1/synth-report/pkg/models"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps the metrics history in a SQLite database
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewSQLiteStore creates or opens the history database
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	logger.Debugf("Opening database at: %s", dbPath)

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %v", ErrEmptyStore, err)
	}

	store := &SQLiteStore{
		db:   db,
		path: dbPath,
		now:  time.Now,
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migration failed: %v", ErrEmptyStore, err)
	}

	return store, nil
}

// migrate creates or updates the database schema
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS metrics_history (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			recorded_at DATETIME NOT NULL,
			module TEXT NOT NULL,
			slack REAL,
			delay REAL,
			power REAL,
			luts INTEGER,
			ffs INTEGER,
			dsps INTEGER,
			bram INTEGER,
			io INTEGER
		)`,

		`CREATE INDEX IF NOT EXISTS idx_metrics_module
		 ON metrics_history(module, seq)`,
	}

	for i, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}

// Append inserts a history row
func (s *SQLiteStore) Append(rec models.MetricsRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	e := newEntry(rec, s.now())

	query := `
		INSERT INTO metrics_history (
			id, recorded_at, module, slack, delay, power,
			luts, ffs, dsps, bram, io
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		e.ID,
		e.RecordedAt.Format(time.RFC3339),
		rec.Module,
		nullFloat(rec.Slack),
		nullFloat(rec.Delay),
		nullFloat(rec.Power),
		nullInt(rec.LUTs),
		nullInt(rec.FFs),
		nullInt(rec.DSPs),
		nullInt(rec.BRAM),
		nullInt(rec.IO),
	)
	if err != nil {
		return fmt.Errorf("failed to save metrics: %w", err)
	}

	logger.Debugf("Saved metrics record %s for %s", e.ID, rec.Module)
	return nil
}

const selectColumns = `
	SELECT id, recorded_at, module, slack, delay, power,
	       luts, ffs, dsps, bram, io
	FROM metrics_history
`

// Latest returns the most recently inserted record
func (s *SQLiteStore) Latest() (models.MetricsRecord, error) {
	row := s.db.QueryRow(selectColumns + ` ORDER BY seq DESC LIMIT 1`)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.MetricsRecord{}, ErrEmptyStore
	}
	if err != nil {
		return models.MetricsRecord{}, fmt.Errorf("%w: %v", ErrEmptyStore, err)
	}
	return e.Record, nil
}

// History streams rows in insertion order
func (s *SQLiteStore) History() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		rows, err := s.db.Query(selectColumns + ` ORDER BY seq ASC`)
		if err != nil {
			yield(Entry{}, fmt.Errorf("%w: %v", ErrEmptyStore, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			e, err := scanEntry(rows)
			if err != nil {
				yield(Entry{}, err)
				return
			}
			if !yield(e, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Entry{}, err)
		}
	}
}

// CleanupOldData removes history older than retentionDays
func (s *SQLiteStore) CleanupOldData(retentionDays int) (int64, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays).Format(time.RFC3339)
	result, err := s.db.Exec(`DELETE FROM metrics_history WHERE recorded_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup history: %w", err)
	}
	n, _ := result.RowsAffected()
	logger.Infof("Cleaned up %d old records from %s", n, s.path)
	return n, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var (
		e                         Entry
		recordedAt                string
		slack, delay, power       sql.NullFloat64
		luts, ffs, dsps, bram, io sql.NullInt64
	)
	err := sc.Scan(
		&e.ID,
		&recordedAt,
		&e.Record.Module,
		&slack, &delay, &power,
		&luts, &ffs, &dsps, &bram, &io,
	)
	if err != nil {
		return Entry{}, err
	}

	e.RecordedAt, err = time.Parse(time.RFC3339, recordedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: bad timestamp %q for entry %s", ErrEmptyStore, recordedAt, e.ID)
	}
	e.Record.Slack = floatPtr(slack)
	e.Record.Delay = floatPtr(delay)
	e.Record.Power = floatPtr(power)
	e.Record.LUTs = intPtr(luts)
	e.Record.FFs = intPtr(ffs)
	e.Record.DSPs = intPtr(dsps)
	e.Record.BRAM = intPtr(bram)
	e.Record.IO = intPtr(io)
	return e, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return models.Float(v.Float64)
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	return models.Int(int(v.Int64))
}
