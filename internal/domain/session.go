package domain

import "time"

// Author identifies who wrote a message
type Author string

const (
	// AuthorUser - Message typed or uploaded by the user
	AuthorUser Author = "user"
	// AuthorBot - Message produced by the console on behalf of the bot
	AuthorBot Author = "bot"
)

// PlaceholderTag marks a transient bot message shown while a request is in flight
type PlaceholderTag string

const (
	// PlaceholderNone - Regular, settled message
	PlaceholderNone PlaceholderTag = ""
	// PlaceholderThinking - Shown while a chat reply is pending
	PlaceholderThinking PlaceholderTag = "thinking"
	// PlaceholderAnalyzing - Shown while a media analysis is pending
	PlaceholderAnalyzing PlaceholderTag = "analyzing"
)

// ImageRef is a renderable image reference with an optional caption.
// Clients hide the image when it fails to load instead of breaking layout.
type ImageRef struct {
	URL     string `json:"url" validate:"required"`
	Caption string `json:"caption,omitempty"`
}

// Message is one entry of a session log
type Message struct {
	Author      Author         `json:"author" validate:"required,oneof=user bot"`
	Text        string         `json:"text"`
	Image       *ImageRef      `json:"image,omitempty"`
	Placeholder PlaceholderTag `json:"placeholder,omitempty" validate:"omitempty,oneof=thinking analyzing"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// IsPlaceholder reports whether the message carries the given placeholder tag
func (m Message) IsPlaceholder(tag PlaceholderTag) bool {
	return tag != PlaceholderNone && m.Placeholder == tag
}

// NewUserMessage builds a user authored text message
func NewUserMessage(text string) Message {
	return Message{Author: AuthorUser, Text: text, CreatedAt: time.Now()}
}

// NewBotMessage builds a bot authored text message
func NewBotMessage(text string) Message {
	return Message{Author: AuthorBot, Text: text, CreatedAt: time.Now()}
}

// NewPlaceholderMessage builds a tagged bot placeholder
func NewPlaceholderMessage(tag PlaceholderTag, text string) Message {
	return Message{Author: AuthorBot, Text: text, Placeholder: tag, CreatedAt: time.Now()}
}

// NewImageMessage builds a bot message carrying an image reference
func NewImageMessage(text string, image ImageRef) Message {
	return Message{Author: AuthorBot, Text: text, Image: &image, CreatedAt: time.Now()}
}

// Session is one independent conversation thread
type Session struct {
	ID        string    `json:"id" validate:"required"`
	Title     string    `json:"title" validate:"required"`
	CreatedAt time.Time `json:"createdAt"`
	Messages  []Message `json:"messages" validate:"required,dive"`
}

// Clone returns a copy of the session that shares no message storage with s
func (s Session) Clone() Session {
	clone := s
	clone.Messages = make([]Message, len(s.Messages))
	copy(clone.Messages, s.Messages)
	return clone
}

// Snapshot is the full console state: every session in creation order plus the active id.
// It is also the persisted shape.
type Snapshot struct {
	Sessions        []Session `json:"sessions" validate:"required,min=1,dive"`
	ActiveSessionID string    `json:"activeSessionId" validate:"required"`
}

// Find returns the session with the given id
func (s Snapshot) Find(id string) (Session, bool) {
	for _, session := range s.Sessions {
		if session.ID == id {
			return session, true
		}
	}
	return Session{}, false
}

// ChangeKind describes which mutation produced a change event
type ChangeKind string

const (
	ChangeSessionCreated  ChangeKind = "session_created"
	ChangeSessionDeleted  ChangeKind = "session_deleted"
	ChangeSessionSelected ChangeKind = "session_selected"
	ChangeMessagesUpdated ChangeKind = "messages_updated"
	ChangeRestored        ChangeKind = "restored"
)

// ChangeEvent is delivered to session store observers after a mutation completes
type ChangeEvent struct {
	Kind      ChangeKind `json:"kind"`
	SessionID string     `json:"sessionId,omitempty"`
	Snapshot  Snapshot   `json:"snapshot"`
}
