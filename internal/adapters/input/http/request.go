package http

type (
	// SendMessageRequest struct - HTTP request DTO for a chat message
	SendMessageRequest struct {
		Text string `json:"text" validate:"required,max=4000" form:"text"`
	}

	// WaitQuery struct - Makes a send or upload settle before responding
	WaitQuery struct {
		Wait bool `query:"wait"`
	}
)
