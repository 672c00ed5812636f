package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shopquery/backend/internal/model/conversation"
)

// ErrSessionNotFound signals an unknown session identifier. Callers treat
// this as a recoverable condition, not a failure.
var ErrSessionNotFound = errors.New("session not found")

// DefaultWindowSize bounds remembered exchanges when the caller does not
// specify a window.
const DefaultWindowSize = 10

// SessionStats is a read-only snapshot row for observability endpoints.
type SessionStats struct {
	ID             string
	TurnCount      int
	CreatedAt      time.Time
	LastAccessedAt time.Time
}

// Store owns session lifecycle and windowed conversation memory. All
// mutation happens under the write lock; reads hand out copies so no other
// component ever holds a mutable reference into a session.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*conversation.Session
}

// NewStore bootstraps the in-memory session store. Sessions are volatile
// and scoped to this process.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*conversation.Session),
	}
}

// Resolve returns the identifier of an existing session, updating its
// window size and last-accessed time, or mints a fresh session when the
// identifier is empty or unknown. A non-positive windowSize leaves an
// existing session's window untouched; at creation it falls back to
// DefaultWindowSize.
func (s *Store) Resolve(_ context.Context, sessionID string, windowSize int) string {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID != "" {
		if sess, ok := s.sessions[sessionID]; ok {
			if windowSize > 0 {
				sess.WindowSize = windowSize
			}
			sess.LastAccessedAt = now
			return sessionID
		}
	}

	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}

	sess := &conversation.Session{
		ID:             uuid.NewString(),
		WindowSize:     windowSize,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	s.sessions[sess.ID] = sess
	return sess.ID
}

// History returns a copy of the session's turns, oldest first.
func (s *Store) History(_ context.Context, sessionID string) ([]conversation.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	turns := make([]conversation.Turn, len(sess.Turns))
	copy(turns, sess.Turns)
	return turns, nil
}

// Append records one completed exchange (user turn then assistant turn) and
// trims the history to the session's window. Two concurrent appends on the
// same session serialize on the write lock, so neither pair is lost.
func (s *Store) Append(_ context.Context, sessionID, userText, assistantText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}

	sess.Turns = append(sess.Turns,
		conversation.Turn{Role: conversation.RoleUser, Content: userText},
		conversation.Turn{Role: conversation.RoleAssistant, Content: assistantText},
	)

	// One exchange is two turns; drop the oldest entries beyond the window.
	if limit := sess.WindowSize * 2; len(sess.Turns) > limit {
		sess.Turns = append(sess.Turns[:0:0], sess.Turns[len(sess.Turns)-limit:]...)
	}

	sess.LastAccessedAt = time.Now().UTC()
	return nil
}

// Clear removes the session and reports whether it existed.
func (s *Store) Clear(_ context.Context, sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return false
	}
	delete(s.sessions, sessionID)
	return true
}

// Sweep evicts every session idle for longer than maxIdle and returns the
// number removed. Candidates are snapshotted first and each is re-checked
// under the write lock, so a session touched while the sweep runs survives.
func (s *Store) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxIdle)

	s.mu.RLock()
	candidates := make([]string, 0, len(s.sessions))
	for id, sess := range s.sessions {
		if sess.LastAccessedAt.Before(cutoff) {
			candidates = append(candidates, id)
		}
	}
	s.mu.RUnlock()

	removed := 0
	for _, id := range candidates {
		s.mu.Lock()
		if sess, ok := s.sessions[id]; ok && sess.LastAccessedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
		s.mu.Unlock()
	}
	return removed
}

// Stats returns one snapshot row per live session.
func (s *Store) Stats() []SessionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make([]SessionStats, 0, len(s.sessions))
	for _, sess := range s.sessions {
		stats = append(stats, SessionStats{
			ID:             sess.ID,
			TurnCount:      len(sess.Turns),
			CreatedAt:      sess.CreatedAt,
			LastAccessedAt: sess.LastAccessedAt,
		})
	}
	return stats
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
