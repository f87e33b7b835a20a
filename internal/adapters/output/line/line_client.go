package line

import (
	"fmt"
	"io"
	"net/http"

	"facebot/internal/domain"
	"facebot/internal/ports/output"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/sirupsen/logrus"
)

// maxContentBytes bounds a downloaded LINE media message just above the largest accepted upload
const maxContentBytes = domain.MaxVideoBytes + domain.MiB

// Compile-time check to ensure LineClientAdapter implements output.LineClient interface
var _ output.LineClient = (*LineClientAdapter)(nil)

// LineClientAdapter struct - Output adapter for LINE messaging platform
type LineClientAdapter struct {
	client *messaging_api.MessagingApiAPI
	blob   *messaging_api.MessagingApiBlobAPI
}

// NewLineClientAdapter func - Creates new LINE client adapter
func NewLineClientAdapter(channelToken string) (*LineClientAdapter, error) {
	client, err := messaging_api.NewMessagingApiAPI(channelToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create LINE messaging API client: %w", err)
	}

	blob, err := messaging_api.NewMessagingApiBlobAPI(channelToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create LINE blob API client: %w", err)
	}

	return &LineClientAdapter{
		client: client,
		blob:   blob,
	}, nil
}

// ReplyMessage - Sends reply messages to LINE user via reply token
func (a *LineClientAdapter) ReplyMessage(request domain.LineReplyMessageRequest) (*domain.LineMessageResponse, error) {
	messages, err := convertMessages(request.Messages)
	if err != nil {
		return nil, err
	}

	req := &messaging_api.ReplyMessageRequest{
		ReplyToken: request.ReplyToken,
		Messages:   messages,
	}

	if _, err := a.client.ReplyMessage(req); err != nil {
		return nil, fmt.Errorf("failed to send reply message: %w", err)
	}

	logrus.Infof("Successfully sent reply message with token: %s", request.ReplyToken)

	return &domain.LineMessageResponse{
		Status:  "success",
		Message: "Reply message sent successfully",
	}, nil
}

// PushMessage - Sends push messages to LINE user directly
func (a *LineClientAdapter) PushMessage(request domain.LinePushMessageRequest) (*domain.LineMessageResponse, error) {
	messages, err := convertMessages(request.Messages)
	if err != nil {
		return nil, err
	}

	req := &messaging_api.PushMessageRequest{
		To:       request.To,
		Messages: messages,
	}

	if _, err := a.client.PushMessage(req, ""); err != nil {
		return nil, fmt.Errorf("failed to send push message: %w", err)
	}

	logrus.Infof("Successfully sent push message to: %s", request.To)

	return &domain.LineMessageResponse{
		Status:  "success",
		Message: "Push message sent successfully",
	}, nil
}

// GetMessageContent - Downloads the binary content of an image or video message
func (a *LineClientAdapter) GetMessageContent(messageID string) (*domain.LineContent, error) {
	resp, err := a.blob.GetMessageContent(messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get message content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get message content: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxContentBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read message content: %w", err)
	}

	logrus.Infof("Downloaded LINE content %s (%d bytes, %s)", messageID, len(data), resp.Header.Get("Content-Type"))

	return &domain.LineContent{
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func convertMessages(outgoing []domain.LineOutgoingMessage) ([]messaging_api.MessageInterface, error) {
	messages := make([]messaging_api.MessageInterface, 0, len(outgoing))

	for _, msg := range outgoing {
		lineMsg, err := convertToLineMessage(msg)
		if err != nil {
			logrus.Errorf("Failed to convert message: %v", err)
			continue
		}
		messages = append(messages, lineMsg)
	}

	if len(messages) == 0 {
		return nil, fmt.Errorf("no valid messages to send")
	}
	return messages, nil
}

// convertToLineMessage - Helper function to convert domain message to LINE SDK message
func convertToLineMessage(msg domain.LineOutgoingMessage) (messaging_api.MessageInterface, error) {
	switch msg.Type {
	case domain.LineMessageTypeText:
		if msg.Text == "" {
			return nil, fmt.Errorf("empty text message")
		}
		return &messaging_api.TextMessage{
			Text: msg.Text,
		}, nil

	case domain.LineMessageTypeImage:
		preview := msg.PreviewURL
		if preview == "" {
			preview = msg.ImageURL
		}
		return &messaging_api.ImageMessage{
			OriginalContentUrl: msg.ImageURL,
			PreviewImageUrl:    preview,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", msg.Type)
	}
}
