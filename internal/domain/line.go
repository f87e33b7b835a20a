package domain

import "time"

// LineEventType is the kind of webhook event the LINE channel acts on
type LineEventType string

const (
	LineEventTypeMessage LineEventType = "message"
	// Follow and join open a chat; the bot greets it
	LineEventTypeFollow LineEventType = "follow"
	LineEventTypeJoin   LineEventType = "join"
	// Unfollow and leave close a chat; its session binding is dropped
	LineEventTypeUnfollow LineEventType = "unfollow"
	LineEventTypeLeave    LineEventType = "leave"
)

// Opens reports whether the event starts a chat with the bot
func (t LineEventType) Opens() bool {
	return t == LineEventTypeFollow || t == LineEventTypeJoin
}

// Closes reports whether the event ends a chat with the bot
func (t LineEventType) Closes() bool {
	return t == LineEventTypeUnfollow || t == LineEventTypeLeave
}

// LineMessageType is the type of an incoming or outgoing LINE message
type LineMessageType string

const (
	LineMessageTypeText  LineMessageType = "text"
	LineMessageTypeImage LineMessageType = "image"
	LineMessageTypeVideo LineMessageType = "video"
)

// LineSourceType is where an event came from
type LineSourceType string

const (
	LineSourceTypeUser  LineSourceType = "user"
	LineSourceTypeGroup LineSourceType = "group"
	LineSourceTypeRoom  LineSourceType = "room"
)

// LineSource identifies the chat an event belongs to
type LineSource struct {
	Type    LineSourceType
	UserID  string
	GroupID string
	RoomID  string
}

// ChatID is the id replies are pushed to and console sessions are bound by:
// the group or room for multi-person chats, the user otherwise.
func (s LineSource) ChatID() string {
	switch s.Type {
	case LineSourceTypeGroup:
		return s.GroupID
	case LineSourceTypeRoom:
		return s.RoomID
	default:
		return s.UserID
	}
}

// LineWebhookEvent is one event of a verified webhook call
type LineWebhookEvent struct {
	ID         string
	Type       LineEventType
	Timestamp  time.Time
	Source     LineSource
	ReplyToken string
	Message    *LineMessage
}

// LineMessage is the content of a message event. Image and video content is not
// carried inline; FileName is the name the upload is recorded under.
type LineMessage struct {
	ID       string
	Type     LineMessageType
	Text     string
	FileName string
}
