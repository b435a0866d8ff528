package state

import (
	"context"
	"maps"
	"strconv"
	"time"
)

// State identifies a conversation step.
type State string

// StateNone marks a session that has not entered any step yet.
const StateNone State = ""

// Session is the persisted conversation of one user.
type Session struct {
	State     State             `json:"state"`
	Data      map[string]string `json:"data,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Value returns the stored selection under key.
func (s *Session) Value(key string) (string, bool) {
	v, ok := s.Data[key]
	return v, ok
}

// Int64 returns the selection under key parsed as an integer id.
func (s *Session) Int64(key string) (int64, bool) {
	v, ok := s.Data[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	return n, err == nil
}

// Put stores a selection.
func (s *Session) Put(key, value string) {
	if s.Data == nil {
		s.Data = make(map[string]string)
	}
	s.Data[key] = value
}

// PutInt64 stores an integer selection.
func (s *Session) PutInt64(key string, v int64) {
	s.Put(key, strconv.FormatInt(v, 10))
}

// Drop removes the given selections.
func (s *Session) Drop(keys ...string) {
	for _, k := range keys {
		delete(s.Data, k)
	}
}

// Clone returns a deep copy so stored sessions never alias caller state.
func (s Session) Clone() Session {
	s.Data = maps.Clone(s.Data)
	return s
}

// Expired reports whether the session has been idle longer than idle at now.
// A non-positive idle never expires.
func (s Session) Expired(now time.Time, idle time.Duration) bool {
	return idle > 0 && !s.UpdatedAt.IsZero() && now.Sub(s.UpdatedAt) > idle
}

// Store persists sessions keyed by Telegram user id.
type Store interface {
	// Load returns the session and whether one was stored.
	Load(ctx context.Context, userID int64) (Session, bool, error)
	Save(ctx context.Context, userID int64, s Session) error
	Clear(ctx context.Context, userID int64) error
}
