package domain

// DTOs (Data Transfer Objects) - Domain layer request/response structures

type (
	// LineWebhookRequest struct - Domain LINE webhook request DTO
	LineWebhookRequest struct {
		Events []LineWebhookEvent
	}

	// LineReplyMessageRequest struct - Domain LINE reply message request DTO
	LineReplyMessageRequest struct {
		ReplyToken string
		Messages   []LineOutgoingMessage
	}

	// LinePushMessageRequest struct - Domain LINE push message request DTO
	LinePushMessageRequest struct {
		To       string
		Messages []LineOutgoingMessage
	}

	// LineOutgoingMessage struct - Domain LINE outgoing message DTO
	LineOutgoingMessage struct {
		Type       LineMessageType
		Text       string
		ImageURL   string // For image
		PreviewURL string // For image
	}

	// LineMessageResponse struct - Domain LINE API response DTO
	LineMessageResponse struct {
		Status  string
		Message string
	}

	// LineContent struct - Binary content of a LINE media message
	LineContent struct {
		ContentType string
		Data        []byte
	}
)
