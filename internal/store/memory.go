package store

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/meteo-station-dashboard/internal/weather"
)

var (
	// ErrNotFound is returned when no session exists for an id.
	ErrNotFound = errors.New("session not found")
)

type entry struct {
	session weather.Session
	touched time.Time
}

// MemoryStore keeps the latest snapshot of each HTTP client's session. It
// stores values; callers never share a Session through it.
type MemoryStore struct {
	mu sync.RWMutex

	data map[uuid.UUID]entry

	// retention configuration
	maxEntries int           // max number of sessions kept
	maxAge     time.Duration // idle sessions older than this are dropped
	now        func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxEntries or maxAge is <= 0, it is treated as unlimited.
func NewMemoryStore(maxEntries int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[uuid.UUID]entry),
		maxEntries: maxEntries,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Save stores sess, replacing any previous snapshot with the same id, and
// enforces retention.
func (s *MemoryStore) Save(sess weather.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.data[sess.ID] = entry{session: sess, touched: now}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := now.Add(-s.maxAge)
		for id, e := range s.data {
			if e.touched.Before(cutoff) {
				delete(s.data, id)
			}
		}
	}

	// Enforce retention by count, oldest first.
	for s.maxEntries > 0 && len(s.data) > s.maxEntries {
		var (
			oldestID uuid.UUID
			oldest   time.Time
		)
		for id, e := range s.data {
			if oldest.IsZero() || e.touched.Before(oldest) {
				oldestID, oldest = id, e.touched
			}
		}
		delete(s.data, oldestID)
	}
}

// Get returns the snapshot stored for id.
func (s *MemoryStore) Get(id uuid.UUID) (weather.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[id]
	if !ok {
		return weather.Session{}, ErrNotFound
	}
	if s.maxAge > 0 && e.touched.Before(s.now().Add(-s.maxAge)) {
		return weather.Session{}, ErrNotFound
	}
	return e.session, nil
}

// Delete forgets id.
func (s *MemoryStore) Delete(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
}

// Len returns the number of stored sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
