package input

import (
	"context"

	"facebot/internal/domain"
)

// ChatConsole interface - Input port (use case)
// Defines what a user can do with the multi-session chat console
type ChatConsole interface {
	// CreateSession starts a new thread and makes it active
	CreateSession() domain.Session

	// DeleteSession removes a thread, keeping at least one alive
	DeleteSession(id string)

	// SelectSession switches the active thread
	SelectSession(id string) error

	// Session returns one thread
	Session(id string) (domain.Session, error)

	// Snapshot returns every thread and the active id
	Snapshot() domain.Snapshot

	// Busy reports whether a request for the session is still in flight
	Busy(sessionID string) bool

	// SendChat runs the chat protocol on a session and returns the settled bot messages
	SendChat(ctx context.Context, sessionID, text string) ([]domain.Message, error)

	// UploadMedia runs the upload protocol on a session and returns the settled bot messages
	UploadMedia(ctx context.Context, sessionID string, file domain.MediaFile) ([]domain.Message, error)
}
