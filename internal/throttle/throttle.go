// Package throttle tracks per-domain crawl-delay reservations.
package throttle

import (
	"sync"
	"time"
)

// Decision is the outcome of an admission check. When Admitted is false,
// RetryAt carries the earliest time the domain may be fetched again.
type Decision struct {
	Admitted bool
	RetryAt  time.Time
}

// DomainMap maps domain keys to the next time each domain may be fetched.
// Entries are never evicted: the map grows with the number of distinct
// domains seen over the process lifetime.
type DomainMap struct {
	mu   sync.Mutex
	next map[string]time.Time
}

// NewDomainMap creates an empty DomainMap.
func NewDomainMap() *DomainMap {
	return &DomainMap{next: make(map[string]time.Time)}
}

// CheckAndReserve atomically admits or skips a request for the given domain.
// An unknown domain is admitted. On admit the domain's next-allowed time is
// advanced to now+delay; on skip no state changes. Safe for concurrent calls,
// including concurrent calls for the same key.
func (m *DomainMap) CheckAndReserve(key string, now time.Time, delay time.Duration) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	if next, ok := m.next[key]; ok && now.Before(next) {
		return Decision{RetryAt: next}
	}
	m.next[key] = now.Add(delay)
	return Decision{Admitted: true}
}

// Len returns the number of domains tracked.
func (m *DomainMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.next)
}
