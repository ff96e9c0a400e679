package upload

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// State is the lifecycle position of a multipart upload.
type State string

const (
	StateInitiated     State = "initiated"
	StatePartsInFlight State = "parts_in_flight"
	StateCompleted     State = "completed"
	StateAborted       State = "aborted"
)

// Session table defaults.
const (
	DefaultSessionTTL        = 24 * time.Hour
	DefaultSessionMaxEntries = 10000
)

// UploadSession is the server side record of one multipart upload attempt.
type UploadSession struct {
	Key         string
	ShortID     string
	UploadID    string
	PartSize    int64
	State       State
	PartsIssued int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SessionTable records multipart sessions by upload id. Transitions are
// recorded, never enforced: the backend remains the authority on whether an
// upload id is usable, so unknown ids are ignored rather than rejected.
type SessionTable struct {
	mu       sync.Mutex
	sessions *expirable.LRU[string, UploadSession]
}

// NewSessionTable creates a table holding at most maxEntries sessions for ttl.
func NewSessionTable(maxEntries int, ttl time.Duration) *SessionTable {
	return &SessionTable{
		sessions: expirable.NewLRU[string, UploadSession](maxEntries, nil, ttl),
	}
}

// Start records a freshly initiated session.
func (t *SessionTable) Start(s UploadSession) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s.State = StateInitiated
	s.UpdatedAt = s.CreatedAt
	t.sessions.Add(s.UploadID, s)
}

// PartIssued counts a part URL and moves an initiated session to parts_in_flight.
func (t *SessionTable) PartIssued(uploadID string, now time.Time) {
	t.update(uploadID, now, func(s *UploadSession) {
		s.PartsIssued++
		if s.State == StateInitiated {
			s.State = StatePartsInFlight
		}
	})
}

// Finish records a terminal state.
func (t *SessionTable) Finish(uploadID string, state State, now time.Time) {
	t.update(uploadID, now, func(s *UploadSession) {
		s.State = state
	})
}

// Get returns a copy of the session.
func (t *SessionTable) Get(uploadID string) (UploadSession, bool) {
	return t.sessions.Peek(uploadID)
}

func (t *SessionTable) update(uploadID string, now time.Time, fn func(*UploadSession)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions.Peek(uploadID)
	if !ok {
		return
	}
	fn(&s)
	s.UpdatedAt = now
	t.sessions.Add(uploadID, s)
}
