package storage

import (
	"iter"
	"sync"
	"time"

	"github.com/lirany1/synth-report/pkg/models"
)

// MemoryStore keeps records in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// Append adds rec to the history
func (m *MemoryStore) Append(rec models.MetricsRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, newEntry(rec.Clone(), m.now()))
	return nil
}

// Latest returns the last appended record
func (m *MemoryStore) Latest() (models.MetricsRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.entries) == 0 {
		return models.MetricsRecord{}, ErrEmptyStore
	}
	return m.entries[len(m.entries)-1].Record.Clone(), nil
}

// History yields a snapshot of the entries taken when iteration starts
func (m *MemoryStore) History() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		m.mu.RLock()
		snapshot := make([]Entry, len(m.entries))
		copy(snapshot, m.entries)
		m.mu.RUnlock()

		for _, e := range snapshot {
			if !yield(e, nil) {
				return
			}
		}
	}
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}
