package services

import (
	"sync"

	"github.com/kolamai/studio/internal/models"
)

// TimelineStore holds the session's operation history. It is append-only:
// records are never reordered, mutated, or evicted, and read order equals
// append order. The store does not inspect record ids; if two records ever
// carry the same id both are kept.
type TimelineStore struct {
	mu      sync.RWMutex
	records []models.OperationRecord
}

func NewTimelineStore() *TimelineStore {
	return &TimelineStore{
		records: make([]models.OperationRecord, 0),
	}
}

// Append adds a record to the end of the timeline.
func (ts *TimelineStore) Append(record models.OperationRecord) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.records = append(ts.records, record)
}

// Records returns a copy of the timeline in append order.
func (ts *TimelineStore) Records() []models.OperationRecord {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	records := make([]models.OperationRecord, len(ts.records))
	copy(records, ts.records)
	return records
}

// IsEmpty reports whether nothing has ever been appended this session.
func (ts *TimelineStore) IsEmpty() bool {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.records) == 0
}

// Len returns the number of appended records.
func (ts *TimelineStore) Len() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.records)
}
