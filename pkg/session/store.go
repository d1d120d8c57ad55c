package session

import (
	"fmt"
	"sync"
	"time"
)

// Store is the injected session-store abstraction. Update borrows the
// session named by id for one atomic mutation: the store guarantees that two
// concurrent Update calls for the same id run serialized, while unrelated
// sessions proceed in parallel.
type Store interface {
	// Update runs fn against the (created-if-unseen) session. fn must not
	// retain the *Session past its return.
	Update(id string, fn func(*Session) error) error
	// Get returns a snapshot of the session, or nil if unknown.
	Get(id string) (*Session, error)
	// Stats reports store-wide counters for the gateway stats endpoint.
	Stats() Stats
	// Close releases background resources.
	Close()
}

// Stats holds store-wide counters.
type Stats struct {
	SessionCount  int `json:"session_count"`
	TotalMessages int `json:"total_messages"`
	ScamSessions  int `json:"scam_sessions"`
	CallbacksSent int `json:"callbacks_sent"`
}

// entry pairs a session with its own lock so updates to one identifier never
// serialize unrelated conversations. removed marks an entry the eviction
// loop already dropped from the map; a caller that looked it up before the
// eviction must not mutate it.
type entry struct {
	mu      sync.Mutex
	sess    *Session
	removed bool
}

// MemoryStore is the default single-node store: a guarded map of sessions
// with TTL-based eviction of idle engagements.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry

	maxAge          time.Duration
	cleanupInterval time.Duration

	stopCleanup chan struct{}
	closeOnce   sync.Once
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithMaxAge sets how long an idle session survives before eviction.
func WithMaxAge(d time.Duration) Option {
	return func(s *MemoryStore) { s.maxAge = d }
}

// WithCleanupInterval sets how often the eviction loop runs.
func WithCleanupInterval(d time.Duration) Option {
	return func(s *MemoryStore) { s.cleanupInterval = d }
}

// NewMemoryStore creates a store with a background eviction loop.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		entries:         make(map[string]*entry),
		maxAge:          1 * time.Hour,
		cleanupInterval: 5 * time.Minute,
		stopCleanup:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.cleanupLoop()
	return s
}

// Update implements Store.
func (s *MemoryStore) Update(id string, fn func(*Session) error) error {
	if id == "" {
		return fmt.Errorf("session id is required")
	}

	for {
		s.mu.Lock()
		e, ok := s.entries[id]
		if !ok {
			e = &entry{sess: newSession(id)}
			s.entries[id] = e
		}
		s.mu.Unlock()

		e.mu.Lock()
		if e.removed {
			// Evicted between the map lookup and taking the entry lock;
			// mutating it would orphan the update. Start over.
			e.mu.Unlock()
			continue
		}
		err := fn(e.sess)
		e.mu.Unlock()
		return err
	}
}

// Get implements Store. The returned session is a snapshot; mutating it does
// not touch store state.
func (s *MemoryStore) Get(id string) (*Session, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed || time.Since(e.sess.LastSeenAt) > s.maxAge {
		// Evicted or stale; treat as unknown.
		return nil, nil
	}
	return e.sess.Clone(), nil
}

// Stats implements Store.
func (s *MemoryStore) Stats() Stats {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	var st Stats
	for _, e := range entries {
		e.mu.Lock()
		if e.removed {
			e.mu.Unlock()
			continue
		}
		st.SessionCount++
		st.TotalMessages += len(e.sess.Messages)
		if e.sess.ScamDetected {
			st.ScamSessions++
		}
		if e.sess.CallbackSent {
			st.CallbacksSent++
		}
		e.mu.Unlock()
	}
	return st
}

// Close stops the eviction loop.
func (s *MemoryStore) Close() {
	s.closeOnce.Do(func() {
		close(s.stopCleanup)
	})
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictStale()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) evictStale() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		e.mu.Lock()
		if now.Sub(e.sess.LastSeenAt) > s.maxAge {
			e.removed = true
			delete(s.entries, id)
		}
		e.mu.Unlock()
	}
}

var _ Store = (*MemoryStore)(nil)
