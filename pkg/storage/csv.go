package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"time"

	"github.com/lirany1/synth-report/pkg/models"
)

const (
	timestampColumn = "Timestamp"
	idColumn        = "ID"
	timestampLayout = "2006-01-02 15:04:05"
)

// CSVStore keeps the latest record in a one-row summary file and the
// history in a second file with Timestamp and ID columns appended.
type CSVStore struct {
	summaryPath string
	historyPath string
	now         func() time.Time
}

// NewCSVStore creates a store over the given files. Nothing is read or
// created until the first call.
func NewCSVStore(summaryPath, historyPath string) *CSVStore {
	return &CSVStore{
		summaryPath: summaryPath,
		historyPath: historyPath,
		now:         time.Now,
	}
}

// Append replaces the summary file and appends a history row
func (s *CSVStore) Append(rec models.MetricsRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	if err := s.writeSummary(rec); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if s.historyPath == "" {
		return nil
	}
	if err := s.appendHistory(newEntry(rec, s.now())); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// Latest reads the summary file
func (s *CSVStore) Latest() (models.MetricsRecord, error) {
	f, err := os.Open(s.summaryPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.MetricsRecord{}, ErrEmptyStore
		}
		return models.MetricsRecord{}, fmt.Errorf("%w: %v", ErrEmptyStore, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return models.MetricsRecord{}, fmt.Errorf("%w: %s: %v", ErrEmptyStore, s.summaryPath, err)
	}
	cols, err := indexColumns(header)
	if err != nil {
		return models.MetricsRecord{}, fmt.Errorf("%w: %s: %v", ErrEmptyStore, s.summaryPath, err)
	}

	var last []string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return models.MetricsRecord{}, fmt.Errorf("%w: %s: %v", ErrEmptyStore, s.summaryPath, err)
		}
		last = row
	}
	if last == nil {
		return models.MetricsRecord{}, ErrEmptyStore
	}
	return decodeRow(s.summaryPath, cols, last)
}

// History streams the history file row by row
func (s *CSVStore) History() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		if s.historyPath == "" {
			return
		}
		f, err := os.Open(s.historyPath)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				yield(Entry{}, fmt.Errorf("%w: %v", ErrEmptyStore, err))
			}
			return
		}
		defer f.Close()

		r := csv.NewReader(f)
		header, err := r.Read()
		if err == io.EOF {
			return
		}
		if err != nil {
			yield(Entry{}, fmt.Errorf("%w: %s: %v", ErrEmptyStore, s.historyPath, err))
			return
		}
		cols, err := indexColumns(header)
		if err != nil {
			yield(Entry{}, fmt.Errorf("%w: %s: %v", ErrEmptyStore, s.historyPath, err))
			return
		}

		for {
			row, err := r.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(Entry{}, fmt.Errorf("%w: %s: %v", ErrEmptyStore, s.historyPath, err))
				return
			}
			entry, err := decodeEntry(s.historyPath, cols, row)
			if err != nil {
				yield(Entry{}, err)
				return
			}
			if !yield(entry, nil) {
				return
			}
		}
	}
}

// Close is a no-op; files are opened per call
func (s *CSVStore) Close() error {
	return nil
}

// writeSummary writes through a temp file so readers never see a partial file
func (s *CSVStore) writeSummary(rec models.MetricsRecord) error {
	dir := filepath.Dir(s.summaryPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".summary-*.csv")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	_ = w.Write(models.Columns())
	_ = w.Write(rec.Row())
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.summaryPath)
}

func (s *CSVStore) appendHistory(e Entry) error {
	if err := os.MkdirAll(filepath.Dir(s.historyPath), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.historyPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		_ = w.Write(append(models.Columns(), timestampColumn, idColumn))
	}
	_ = w.Write(append(e.Record.Row(), e.RecordedAt.Format(timestampLayout), e.ID))
	w.Flush()
	return w.Error()
}

// columnIndex maps header names to positions
type columnIndex map[string]int

func indexColumns(header []string) (columnIndex, error) {
	cols := make(columnIndex, len(header))
	for i, h := range header {
		cols[h] = i
	}
	if _, ok := cols[models.ModuleColumn]; !ok {
		return nil, fmt.Errorf("missing %s column", models.ModuleColumn)
	}
	return cols, nil
}

func (c columnIndex) get(row []string, name string) (string, bool) {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return "", false
	}
	return row[i], true
}

// decodeRow builds a record from a summary row. Non-numeric cells load as
// missing with a warning.
func decodeRow(source string, cols columnIndex, row []string) (models.MetricsRecord, error) {
	module, _ := cols.get(row, models.ModuleColumn)
	if module == "" {
		return models.MetricsRecord{}, fmt.Errorf("%w: %s: row has no module", ErrEmptyStore, source)
	}
	rec := models.NewRecord(module)
	for _, m := range models.Metrics {
		raw, ok := cols.get(row, string(m))
		if !ok {
			continue
		}
		if err := rec.SetString(m, raw); err != nil {
			warnNonNumeric(source, err)
		}
	}
	return rec, nil
}

func decodeEntry(source string, cols columnIndex, row []string) (Entry, error) {
	rec, err := decodeRow(source, cols, row)
	if err != nil {
		return Entry{}, err
	}
	e := Entry{Record: rec}
	e.ID, _ = cols.get(row, idColumn)
	if ts, ok := cols.get(row, timestampColumn); ok && ts != "" {
		t, err := time.ParseInLocation(timestampLayout, ts, time.UTC)
		if err != nil {
			return Entry{}, fmt.Errorf("%w: %s: bad timestamp %q", ErrEmptyStore, source, ts)
		}
		e.RecordedAt = t
	}
	return e, nil
}
