package memory

import (
	"fmt"
	"sync"
	"time"

	"facebot/internal/domain"
	"facebot/internal/ports/output"

	"github.com/google/uuid"
)

// Compile-time check to ensure MemorySessionStore implements SessionStore interface
var _ output.SessionStore = (*MemorySessionStore)(nil)

type observerEntry struct {
	id       int
	observer output.SessionObserver
}

// MemorySessionStore struct - Output adapter holding the console state in memory.
// Sessions are kept in creation order. mu guards the state; notifyMu serialises
// observer delivery so observers see events in mutation order.
type MemorySessionStore struct {
	mu       sync.Mutex
	notifyMu sync.Mutex

	sessions  []domain.Session
	activeID  string
	observers []observerEntry
	nextObsID int

	now   func() time.Time
	newID func() string
}

// NewMemorySessionStore creates a store that already holds one default session
func NewMemorySessionStore() *MemorySessionStore {
	m := &MemorySessionStore{
		now:   time.Now,
		newID: uuid.NewString,
	}
	m.createLocked(output.SessionOptions{})
	return m
}

// CreateSession creates a session and, by default, makes it active
func (m *MemorySessionStore) CreateSession(opts ...output.SessionOption) domain.Session {
	var options output.SessionOptions
	for _, opt := range opts {
		opt(&options)
	}

	var created domain.Session
	m.mutate(func() (domain.ChangeKind, string, bool) {
		created = m.createLocked(options)
		return domain.ChangeSessionCreated, created.ID, true
	})
	return created.Clone()
}

// DeleteSession removes a session and keeps at least one session alive
func (m *MemorySessionStore) DeleteSession(id string) {
	m.mutate(func() (domain.ChangeKind, string, bool) {
		idx := m.indexLocked(id)
		if idx < 0 {
			return "", "", false
		}

		remaining := make([]domain.Session, 0, len(m.sessions)-1)
		remaining = append(remaining, m.sessions[:idx]...)
		remaining = append(remaining, m.sessions[idx+1:]...)
		m.sessions = remaining

		if len(m.sessions) == 0 {
			m.createLocked(output.SessionOptions{})
		} else if m.activeID == id {
			m.activeID = m.mostRecentLocked()
		}
		return domain.ChangeSessionDeleted, id, true
	})
}

// SelectSession changes the active session; unknown ids are ignored
func (m *MemorySessionStore) SelectSession(id string) {
	m.mutate(func() (domain.ChangeKind, string, bool) {
		if m.indexLocked(id) < 0 || m.activeID == id {
			return "", "", false
		}
		m.activeID = id
		return domain.ChangeSessionSelected, id, true
	})
}

// AppendMessage appends messages to one session's log
func (m *MemorySessionStore) AppendMessage(sessionID string, messages ...domain.Message) bool {
	return m.Reconcile(sessionID, nil, messages...)
}

// RemoveMessagesMatching drops matching messages from one session's log
func (m *MemorySessionStore) RemoveMessagesMatching(sessionID string, match output.MessagePredicate) int {
	removed := 0
	m.mutate(func() (domain.ChangeKind, string, bool) {
		idx := m.indexLocked(sessionID)
		if idx < 0 || match == nil {
			return "", "", false
		}
		var kept []domain.Message
		kept, removed = filterMessages(m.sessions[idx].Messages, match)
		if removed == 0 {
			return "", "", false
		}
		m.sessions[idx].Messages = kept
		return domain.ChangeMessagesUpdated, sessionID, true
	})
	return removed
}

// Reconcile removes matching messages and appends new ones in a single mutation.
// A nil predicate removes nothing. Returns false when the session no longer exists.
func (m *MemorySessionStore) Reconcile(sessionID string, match output.MessagePredicate, messages ...domain.Message) bool {
	found := false
	m.mutate(func() (domain.ChangeKind, string, bool) {
		idx := m.indexLocked(sessionID)
		if idx < 0 {
			return "", "", false
		}
		found = true

		current := m.sessions[idx].Messages
		removed := 0
		if match != nil {
			current, removed = filterMessages(current, match)
		}
		if removed == 0 && len(messages) == 0 {
			return "", "", false
		}

		// full slice expression forces a copy so no snapshot shares the backing array
		m.sessions[idx].Messages = append(current[:len(current):len(current)], messages...)
		return domain.ChangeMessagesUpdated, sessionID, true
	})
	return found
}

// Session returns a copy of one session
func (m *MemorySessionStore) Session(id string) (domain.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexLocked(id)
	if idx < 0 {
		return domain.Session{}, false
	}
	return m.sessions[idx].Clone(), true
}

// ActiveSessionID returns the id of the active session
func (m *MemorySessionStore) ActiveSessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID
}

// Snapshot returns a deep copy of the whole state
func (m *MemorySessionStore) Snapshot() domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Restore replaces the whole state with a snapshot
func (m *MemorySessionStore) Restore(snapshot domain.Snapshot) {
	m.mutate(func() (domain.ChangeKind, string, bool) {
		m.sessions = make([]domain.Session, 0, len(snapshot.Sessions))
		for _, session := range snapshot.Sessions {
			m.sessions = append(m.sessions, session.Clone())
		}

		if len(m.sessions) == 0 {
			m.createLocked(output.SessionOptions{})
		} else if m.indexLocked(snapshot.ActiveSessionID) >= 0 {
			m.activeID = snapshot.ActiveSessionID
		} else {
			m.activeID = m.mostRecentLocked()
		}
		return domain.ChangeRestored, m.activeID, true
	})
}

// Subscribe registers an observer
func (m *MemorySessionStore) Subscribe(observer output.SessionObserver) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextObsID++
	id := m.nextObsID
	m.observers = append(m.observers, observerEntry{id: id, observer: observer})

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, entry := range m.observers {
			if entry.id == id {
				m.observers = append(m.observers[:i:i], m.observers[i+1:]...)
				return
			}
		}
	}
}

// mutate runs fn under the state lock and, when fn reports a change, delivers the
// resulting event to observers after the lock is released.
func (m *MemorySessionStore) mutate(fn func() (kind domain.ChangeKind, sessionID string, changed bool)) {
	m.mu.Lock()
	kind, sessionID, changed := fn()
	if !changed {
		m.mu.Unlock()
		return
	}

	event := domain.ChangeEvent{Kind: kind, SessionID: sessionID, Snapshot: m.snapshotLocked()}
	observers := make([]output.SessionObserver, len(m.observers))
	for i, entry := range m.observers {
		observers[i] = entry.observer
	}

	m.notifyMu.Lock()
	m.mu.Unlock()
	defer m.notifyMu.Unlock()

	for _, observer := range observers {
		observer(event)
	}
}

func (m *MemorySessionStore) createLocked(options output.SessionOptions) domain.Session {
	title := options.Title
	if title == "" {
		title = fmt.Sprintf("Chat %d", len(m.sessions)+1)
	}

	now := m.now()
	greeting := domain.NewBotMessage(domain.GreetingText)
	greeting.CreatedAt = now

	session := domain.Session{
		ID:        m.newID(),
		Title:     title,
		CreatedAt: now,
		Messages:  []domain.Message{greeting},
	}
	m.sessions = append(m.sessions, session)

	if !options.Deactivate || m.activeID == "" {
		m.activeID = session.ID
	}
	return session
}

func (m *MemorySessionStore) indexLocked(id string) int {
	for i := range m.sessions {
		if m.sessions[i].ID == id {
			return i
		}
	}
	return -1
}

// mostRecentLocked returns the id of the newest session; later position wins ties
func (m *MemorySessionStore) mostRecentLocked() string {
	newest := -1
	for i := range m.sessions {
		if newest < 0 || !m.sessions[i].CreatedAt.Before(m.sessions[newest].CreatedAt) {
			newest = i
		}
	}
	if newest < 0 {
		return ""
	}
	return m.sessions[newest].ID
}

func (m *MemorySessionStore) snapshotLocked() domain.Snapshot {
	sessions := make([]domain.Session, len(m.sessions))
	for i := range m.sessions {
		sessions[i] = m.sessions[i].Clone()
	}
	return domain.Snapshot{Sessions: sessions, ActiveSessionID: m.activeID}
}

func filterMessages(messages []domain.Message, match output.MessagePredicate) ([]domain.Message, int) {
	kept := make([]domain.Message, 0, len(messages))
	for _, msg := range messages {
		if !match(msg) {
			kept = append(kept, msg)
		}
	}
	return kept, len(messages) - len(kept)
}
