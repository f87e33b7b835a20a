package http

import (
	"net/http"
	"time"

	"facebot/internal/domain"
)

var (
	// Success response
	Success = Status{Code: http.StatusOK, Message: []string{"Success"}}
	// Created response
	Created = Status{Code: http.StatusCreated, Message: []string{"Created"}}
	// Accepted response
	Accepted = Status{Code: http.StatusAccepted, Message: []string{"Accepted, the reply will appear in the session"}}
	// BadRequest response
	BadRequest = Status{Code: http.StatusBadRequest, Message: []string{"Sorry, Not responding because of incorrect syntax"}}
	// NotFound response
	NotFound = Status{Code: http.StatusNotFound, Message: []string{"Sorry, Session not found"}}
	// ConFlict response
	ConFlict = Status{Code: http.StatusConflict, Message: []string{"Sorry, A request for this session is still in progress"}}
	// UnprocessableEntity response
	UnprocessableEntity = Status{Code: http.StatusUnprocessableEntity, Message: []string{"Sorry, File was rejected"}}
	// InternalServerError response
	InternalServerError = Status{Code: http.StatusInternalServerError, Message: []string{"Internal Server Error"}}
)

// ResponseBody struct - Generic HTTP response wrapper
type ResponseBody struct {
	Status Status      `json:"status,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

// Status struct
type Status struct {
	Code    int      `json:"code,omitempty"`
	Message []string `json:"message,omitempty"`
}

// withMessage returns a copy of the status carrying a specific message
func (s Status) withMessage(message string) Status {
	s.Message = []string{message}
	return s
}

type (
	// ImageResponse struct - HTTP response DTO for an image attachment
	ImageResponse struct {
		URL     string `json:"url"`
		Caption string `json:"caption,omitempty"`
	}

	// MessageResponse struct - HTTP response DTO for one log entry
	MessageResponse struct {
		Author      string         `json:"author"`
		Text        string         `json:"text"`
		Image       *ImageResponse `json:"image,omitempty"`
		Placeholder string         `json:"placeholder,omitempty"`
		CreatedAt   *time.Time     `json:"created_at,omitempty"`
	}

	// SessionResponse struct - HTTP response DTO for a single session
	SessionResponse struct {
		ID        string            `json:"id"`
		Title     string            `json:"title"`
		CreatedAt time.Time         `json:"created_at"`
		Busy      bool              `json:"busy"`
		Messages  []MessageResponse `json:"messages"`
	}

	// SessionSummaryResponse struct - HTTP response DTO for the sidebar list
	SessionSummaryResponse struct {
		ID           string    `json:"id"`
		Title        string    `json:"title"`
		CreatedAt    time.Time `json:"created_at"`
		MessageCount int       `json:"message_count"`
		Active       bool      `json:"active"`
	}

	// SessionListResponse struct - HTTP response DTO for all sessions
	SessionListResponse struct {
		ActiveSessionID string                   `json:"active_session_id"`
		Sessions        []SessionSummaryResponse `json:"sessions"`
	}

	// ChangeEventResponse struct - Payload of one change feed event
	ChangeEventResponse struct {
		Kind      string              `json:"kind"`
		SessionID string              `json:"session_id,omitempty"`
		State     SessionListResponse `json:"state"`
	}
)

func toMessageResponses(messages []domain.Message) []MessageResponse {
	out := make([]MessageResponse, len(messages))
	for i, msg := range messages {
		out[i] = MessageResponse{
			Author:      string(msg.Author),
			Text:        msg.Text,
			Placeholder: string(msg.Placeholder),
		}
		if !msg.CreatedAt.IsZero() {
			createdAt := msg.CreatedAt
			out[i].CreatedAt = &createdAt
		}
		if msg.Image != nil {
			out[i].Image = &ImageResponse{URL: msg.Image.URL, Caption: msg.Image.Caption}
		}
	}
	return out
}

func toSessionResponse(session domain.Session, busy bool) SessionResponse {
	return SessionResponse{
		ID:        session.ID,
		Title:     session.Title,
		CreatedAt: session.CreatedAt,
		Busy:      busy,
		Messages:  toMessageResponses(session.Messages),
	}
}

func toSessionListResponse(snapshot domain.Snapshot) SessionListResponse {
	list := SessionListResponse{
		ActiveSessionID: snapshot.ActiveSessionID,
		Sessions:        make([]SessionSummaryResponse, len(snapshot.Sessions)),
	}
	for i, session := range snapshot.Sessions {
		list.Sessions[i] = SessionSummaryResponse{
			ID:           session.ID,
			Title:        session.Title,
			CreatedAt:    session.CreatedAt,
			MessageCount: len(session.Messages),
			Active:       session.ID == snapshot.ActiveSessionID,
		}
	}
	return list
}
