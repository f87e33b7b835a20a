package output

import "facebot/internal/domain"

// MessagePredicate selects messages for removal
type MessagePredicate func(domain.Message) bool

// SessionObserver is notified after every completed mutation.
// Observers run in mutation order and must not mutate the store.
type SessionObserver func(event domain.ChangeEvent)

// SessionOption customises CreateSession
type SessionOption func(*SessionOptions)

// SessionOptions holds the values set by SessionOption functions
type SessionOptions struct {
	Title      string
	Deactivate bool
}

// WithTitle overrides the default "Chat N" title
func WithTitle(title string) SessionOption {
	return func(o *SessionOptions) {
		o.Title = title
	}
}

// WithoutActivation creates the session without making it active
func WithoutActivation() SessionOption {
	return func(o *SessionOptions) {
		o.Deactivate = true
	}
}

// SessionStore interface - Output port
// Owns every session and message of the console. There is always at least one
// session and exactly one of them is active. A mutation touches only the session
// it names; all others stay unchanged.
type SessionStore interface {
	// CreateSession creates a session with a fresh id, a default title and a greeting,
	// and makes it active unless WithoutActivation is given.
	CreateSession(opts ...SessionOption) domain.Session

	// DeleteSession removes a session. Deleting the active session activates the most
	// recently created remaining one; deleting the last session creates a fresh default
	// session in the same mutation. Unknown ids are ignored.
	DeleteSession(id string)

	// SelectSession makes a session active. Unknown ids are ignored.
	SelectSession(id string)

	// AppendMessage appends to one session's log. It is a no-op when the session
	// no longer exists and reports whether anything was appended.
	AppendMessage(sessionID string, messages ...domain.Message) bool

	// RemoveMessagesMatching drops every message of a session matching the predicate
	// and returns how many were removed.
	RemoveMessagesMatching(sessionID string, match MessagePredicate) int

	// Reconcile removes matching messages and appends the given ones as a single
	// mutation, so no observer ever sees one step without the other.
	Reconcile(sessionID string, match MessagePredicate, messages ...domain.Message) bool

	// Session returns a copy of one session.
	Session(id string) (domain.Session, bool)

	// ActiveSessionID returns the id of the active session.
	ActiveSessionID() string

	// Snapshot returns a deep copy of the whole state.
	Snapshot() domain.Snapshot

	// Restore replaces the whole state. An empty snapshot resets to one default session.
	Restore(snapshot domain.Snapshot)

	// Subscribe registers an observer and returns a function that removes it.
	Subscribe(observer SessionObserver) (unsubscribe func())
}
