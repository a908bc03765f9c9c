// Package memory contains an in-memory result sink for tests and development.
package memory

import (
	"context"
	"sync"

	"github.com/crawlkit/fetchd/internal/fetch"
)

// Sink stores delivered records for inspection.
type Sink struct {
	mu      sync.RWMutex
	records []fetch.ResultRecord
}

// New returns a memory Sink.
func New() *Sink {
	return &Sink{}
}

// Deliver records the result.
func (s *Sink) Deliver(_ context.Context, rec fetch.ResultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// Records returns a copy of everything delivered so far.
func (s *Sink) Records() []fetch.ResultRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]fetch.ResultRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of delivered records.
func (s *Sink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
