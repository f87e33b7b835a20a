package remote

import "encoding/json"

// Wire types of the backend endpoints

type chatAPIRequest struct {
	Message string `json:"message"`
}

type chatAPIResponse struct {
	Response string `json:"response"`
}

type errorAPIResponse struct {
	Error string `json:"error"`
}

type uploadAPIResponse struct {
	Message           string          `json:"message,omitempty"`
	AnnotatedFilename string          `json:"annotated_filename,omitempty"`
	Results           json.RawMessage `json:"results,omitempty"`
	BotReply          string          `json:"bot_reply,omitempty"`
	PersonInfo        *personInfoAPI  `json:"person_info,omitempty"`
}

type detectionAPI struct {
	Age        float64 `json:"age"`
	Gender     string  `json:"gender"`
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence,omitempty"`
}

type personInfoAPI struct {
	Name       string `json:"name"`
	Title      string `json:"title"`
	Authorized bool   `json:"authorized"`
}
