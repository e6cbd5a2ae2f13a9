package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session binds an identifier to one client's transport.
type Session struct {
	ID        string
	Transport *Transport
	CreatedAt time.Time
}

// Table is the process-wide session store. All access goes through one
// mutex; registration under the lock is the atomic publication point for a
// new session, so two concurrent initializes can never share an identifier.
type Table struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewTable creates an empty session table
func NewTable() *Table {
	return &Table{
		sessions: make(map[string]*Session),
	}
}

// Create generates a fresh identifier for the transport, binds it, and
// publishes the session. The v4 UUID's 122 random bits make collisions
// negligible; the loop guards the map invariant anyway.
func (t *Table) Create(transport *Transport) *Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	var id string
	for {
		id = uuid.NewString()
		if _, exists := t.sessions[id]; !exists {
			break
		}
	}

	transport.bind(id)
	session := &Session{
		ID:        id,
		Transport: transport,
		CreatedAt: time.Now(),
	}
	t.sessions[id] = session

	return session
}

// Lookup returns the live session for an identifier
func (t *Table) Lookup(id string) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	session, exists := t.sessions[id]
	return session, exists
}

// Remove deletes a session entry. Removing an absent id is a no-op.
func (t *Table) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.sessions, id)
}

// Len returns the number of live sessions
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.sessions)
}

// Snapshot returns the current sessions. The slice is a copy; the sessions
// themselves are shared.
func (t *Table) Snapshot() []*Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	sessions := make([]*Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}
