package output

import (
	"context"

	"facebot/internal/domain"
)

// RemoteGateway interface - Output port
// Wraps the two backend endpoints. Calls never return Go errors: every call settles
// into a tagged outcome, and each call issues exactly one request with no retries.
type RemoteGateway interface {
	// SendChat posts a text message to the chat endpoint.
	SendChat(ctx context.Context, text string) domain.ChatOutcome

	// SendMedia posts a file to the analysis endpoint.
	SendMedia(ctx context.Context, file domain.MediaFile) domain.UploadOutcome
}
