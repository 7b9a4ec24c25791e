// Package storage persists metrics records between pipeline invocations.
package storage

import (
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/lirany1/synth-report/pkg/config"
	"github.com/lirany1/synth-report/pkg/logger"
	"github.com/lirany1/synth-report/pkg/models"
)

// ErrEmptyStore is returned when a record is requested before any exists,
// or when the persisted summary is missing or unreadable.
var ErrEmptyStore = errors.New("summary store is empty")

// Store keeps the latest metrics record and an append-only history.
type Store interface {
	// Append adds rec to the history and makes it the latest record.
	Append(rec models.MetricsRecord) error
	// Latest returns the most recently appended record.
	Latest() (models.MetricsRecord, error)
	// History yields every entry in append order. Each call starts over.
	History() iter.Seq2[Entry, error]
	Close() error
}

// Entry is one history row
type Entry struct {
	ID         string               `json:"id" yaml:"id"`
	RecordedAt time.Time            `json:"recordedAt" yaml:"recordedAt"`
	Record     models.MetricsRecord `json:"record" yaml:"record"`
}

func newEntry(rec models.MetricsRecord, now time.Time) Entry {
	return Entry{
		ID:         uuid.New().String(),
		RecordedAt: now.UTC().Truncate(time.Second),
		Record:     rec,
	}
}

// Open creates the store selected by cfg.Store
func Open(cfg *config.Config) (Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return NewMemoryStore(), nil
	case config.StoreSQLite:
		return NewSQLiteStore(cfg.DatabasePath())
	case config.StoreCSV, "":
		return NewCSVStore(cfg.SummaryPath(), cfg.HistoryPath()), nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

// Collect drains a history sequence, keeping at most the last limit
// entries (limit <= 0 keeps all)
func Collect(seq iter.Seq2[Entry, error], limit int) ([]Entry, error) {
	var entries []Entry
	for e, err := range seq {
		if err != nil {
			return entries, err
		}
		entries = append(entries, e)
		if limit > 0 && len(entries) > limit {
			entries = entries[1:]
		}
	}
	return entries, nil
}

func validate(rec models.MetricsRecord) error {
	if rec.Module == "" {
		return errors.New("record has no module name")
	}
	return nil
}

func warnNonNumeric(source string, err error) {
	logger.Warnf("%s: %v", source, err)
}
