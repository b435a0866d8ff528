package state

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[int64]Session
	retention time.Duration
	now       func() time.Time
}

// NewMemoryStore builds a store that forgets sessions untouched for longer than retention.
// A non-positive retention keeps sessions until they are cleared.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions:  make(map[int64]Session),
		retention: retention,
		now:       time.Now,
	}
}

// Load returns a copy of the stored session.
func (m *MemoryStore) Load(_ context.Context, userID int64) (Session, bool, error) {
	m.mu.RLock()
	s, ok := m.sessions[userID]
	m.mu.RUnlock()
	if !ok || s.Expired(m.now(), m.retention) {
		return Session{}, false, nil
	}
	return s.Clone(), true, nil
}

// Save stores a copy of s. A zero UpdatedAt is stamped with the current time.
func (m *MemoryStore) Save(_ context.Context, userID int64, s Session) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = m.now()
	}
	m.mu.Lock()
	m.sessions[userID] = s.Clone()
	m.mu.Unlock()
	return nil
}

// Clear removes the session.
func (m *MemoryStore) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if s.Expired(now, m.retention) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Sweep()
		}
	}
}
