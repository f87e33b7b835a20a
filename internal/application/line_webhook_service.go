package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"facebot/internal/domain"
	"facebot/internal/ports/input"
	"facebot/internal/ports/output"

	"github.com/sirupsen/logrus"
)

// maxReplyMessages is the number of messages LINE accepts per reply token
const maxReplyMessages = 5

const (
	lineHelpText = "Send me a message to chat, or an image or video to analyze it.\n\n" +
		"Commands:\n/new - Start a new conversation\n/help - Show this message"
	lineNewSessionText = "🆕 Started a new conversation."
	lineBusyText       = "⏳ Still working on your previous request. Please wait a moment."
	lineDownloadText   = "❌ Could not download your file from LINE. Please try again."
)

// Compile-time check to ensure LineWebhookService implements input.LineWebhookService interface
var _ input.LineWebhookService = (*LineWebhookService)(nil)

// LineWebhookService struct - Application service implementing LINE webhook use cases.
// Every LINE chat (a user, group or room) is bound to a console session that is created
// without stealing the console's active thread.
type LineWebhookService struct {
	lineClient output.LineClient
	console    input.ChatConsole
	store      output.SessionStore

	mu       sync.Mutex
	sessions map[string]string // LINE chat id -> session id
}

// NewLineWebhookService func - Creates new LINE webhook service
func NewLineWebhookService(lineClient output.LineClient, console input.ChatConsole, store output.SessionStore) *LineWebhookService {
	return &LineWebhookService{
		lineClient: lineClient,
		console:    console,
		store:      store,
		sessions:   make(map[string]string),
	}
}

// HandleWebhook func - Use case: Handle incoming webhook events from LINE
func (s *LineWebhookService) HandleWebhook(ctx context.Context, request domain.LineWebhookRequest) error {
	for _, event := range request.Events {
		logrus.Infof("Received LINE event: type=%s, source=%s, chat=%s",
			event.Type, event.Source.Type, event.Source.ChatID())

		switch {
		case event.Type == domain.LineEventTypeMessage:
			if err := s.handleMessageEvent(ctx, event); err != nil {
				logrus.Errorf("Failed to handle message event: %v", err)
				return err
			}

		case event.Type.Opens():
			if err := s.greet(event); err != nil {
				logrus.Errorf("Failed to greet LINE chat: %v", err)
				return err
			}

		case event.Type.Closes():
			s.forget(event.Source.ChatID())

		default:
			logrus.Infof("Unhandled event type: %s", event.Type)
		}
	}

	return nil
}

// handleMessageEvent - Runs the chat or upload protocol on the user's session
func (s *LineWebhookService) handleMessageEvent(ctx context.Context, event domain.LineWebhookEvent) error {
	chatID := event.Source.ChatID()
	if event.Message == nil || chatID == "" {
		return nil
	}

	var replies []domain.LineOutgoingMessage

	switch event.Message.Type {
	case domain.LineMessageTypeText:
		if command := strings.TrimSpace(event.Message.Text); strings.HasPrefix(command, "/") {
			replies = s.handleCommand(command, event.Source)
			break
		}
		messages, err := s.console.SendChat(ctx, s.sessionFor(event.Source), event.Message.Text)
		replies, err = s.settle(messages, err)
		if err != nil {
			return err
		}

	case domain.LineMessageTypeImage, domain.LineMessageTypeVideo:
		file, err := s.download(event.Message)
		if err != nil {
			logrus.Errorf("Failed to download LINE content %s: %v", event.Message.ID, err)
			replies = []domain.LineOutgoingMessage{textMessage(lineDownloadText)}
			break
		}
		messages, err := s.console.UploadMedia(ctx, s.sessionFor(event.Source), file)
		replies, err = s.settle(messages, err)
		if err != nil {
			return err
		}

	default:
		logrus.Infof("Ignoring unsupported message: type=%s", event.Message.Type)
		return nil
	}

	return s.deliver(event, replies)
}

// settle converts reconciled messages into LINE messages
func (s *LineWebhookService) settle(messages []domain.Message, err error) ([]domain.LineOutgoingMessage, error) {
	if errors.Is(err, domain.ErrRequestInFlight) {
		return []domain.LineOutgoingMessage{textMessage(lineBusyText)}, nil
	}
	if err != nil {
		return nil, err
	}

	replies := make([]domain.LineOutgoingMessage, 0, len(messages))
	for _, msg := range messages {
		replies = append(replies, toLineMessages(msg)...)
	}
	return replies, nil
}

// deliver replies with the first messages and pushes the remainder
func (s *LineWebhookService) deliver(event domain.LineWebhookEvent, replies []domain.LineOutgoingMessage) error {
	if len(replies) == 0 {
		return nil
	}

	head, rest := replies, []domain.LineOutgoingMessage(nil)
	if len(replies) > maxReplyMessages {
		head, rest = replies[:maxReplyMessages], replies[maxReplyMessages:]
	}

	if event.ReplyToken != "" {
		if _, err := s.lineClient.ReplyMessage(domain.LineReplyMessageRequest{
			ReplyToken: event.ReplyToken,
			Messages:   head,
		}); err != nil {
			return fmt.Errorf("failed to send reply: %w", err)
		}
	} else {
		rest = replies
	}

	for len(rest) > 0 {
		batch := rest
		if len(batch) > maxReplyMessages {
			batch = rest[:maxReplyMessages]
		}
		rest = rest[len(batch):]

		if _, err := s.lineClient.PushMessage(domain.LinePushMessageRequest{
			To:       event.Source.ChatID(),
			Messages: batch,
		}); err != nil {
			return fmt.Errorf("failed to push messages: %w", err)
		}
	}
	return nil
}

// handleCommand - Business logic for command processing
func (s *LineWebhookService) handleCommand(text string, source domain.LineSource) []domain.LineOutgoingMessage {
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return nil
	}

	switch command := strings.ToLower(parts[0]); command {
	case "/new":
		s.newSession(source)
		return []domain.LineOutgoingMessage{textMessage(lineNewSessionText), textMessage(domain.GreetingText)}

	case "/help":
		return []domain.LineOutgoingMessage{textMessage(lineHelpText)}

	default:
		return []domain.LineOutgoingMessage{
			textMessage(fmt.Sprintf("Unknown command: %s\nType /help for available commands", command)),
		}
	}
}

// greet welcomes a new follower or a group the bot joined
func (s *LineWebhookService) greet(event domain.LineWebhookEvent) error {
	if event.Source.ChatID() == "" {
		return nil
	}
	return s.deliver(event, []domain.LineOutgoingMessage{textMessage(domain.GreetingText)})
}

// forget drops a chat's session binding. The session itself stays in the console.
func (s *LineWebhookService) forget(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.sessions[chatID]; ok {
		logrus.Infof("Unbound LINE chat %s from session %s", chatID, id)
		delete(s.sessions, chatID)
	}
}

// sessionFor returns the chat's session, creating one when missing or deleted
func (s *LineWebhookService) sessionFor(source domain.LineSource) string {
	s.mu.Lock()
	id, ok := s.sessions[source.ChatID()]
	s.mu.Unlock()

	if ok {
		if _, err := s.console.Session(id); err == nil {
			return id
		}
	}
	return s.newSession(source)
}

func (s *LineWebhookService) newSession(source domain.LineSource) string {
	chatID := source.ChatID()
	session := s.store.CreateSession(output.WithTitle(lineSessionTitle(source)), output.WithoutActivation())

	s.mu.Lock()
	s.sessions[chatID] = session.ID
	s.mu.Unlock()

	logrus.Infof("Bound LINE %s %s to session %s", source.Type, chatID, session.ID)
	return session.ID
}

func (s *LineWebhookService) download(msg *domain.LineMessage) (domain.MediaFile, error) {
	content, err := s.lineClient.GetMessageContent(msg.ID)
	if err != nil {
		return domain.MediaFile{}, err
	}

	name := msg.FileName
	if name == "" {
		name = "line-" + msg.ID
	}
	return domain.MediaFile{
		Name:     name,
		MIMEType: content.ContentType,
		Data:     content.Data,
	}, nil
}

// lineSessionTitle names a session after the tail of its chat id, e.g. "LINE 1a2b3c4d"
// for a user and "LINE group 1a2b3c4d" for a group
func lineSessionTitle(source domain.LineSource) string {
	short := source.ChatID()
	if len(short) > 8 {
		short = short[len(short)-8:]
	}
	if source.Type == domain.LineSourceTypeGroup || source.Type == domain.LineSourceTypeRoom {
		return fmt.Sprintf("LINE %s %s", source.Type, short)
	}
	return "LINE " + short
}

func textMessage(text string) domain.LineOutgoingMessage {
	return domain.LineOutgoingMessage{Type: domain.LineMessageTypeText, Text: text}
}

// toLineMessages renders one console message. LINE only fetches images over HTTPS, so
// other image links are sent as text.
func toLineMessages(msg domain.Message) []domain.LineOutgoingMessage {
	if msg.Image == nil {
		return []domain.LineOutgoingMessage{textMessage(msg.Text)}
	}
	if strings.HasPrefix(msg.Image.URL, "https://") {
		return []domain.LineOutgoingMessage{
			textMessage(msg.Text),
			{Type: domain.LineMessageTypeImage, ImageURL: msg.Image.URL, PreviewURL: msg.Image.URL},
		}
	}
	return []domain.LineOutgoingMessage{textMessage(msg.Text + "\n" + msg.Image.URL)}
}
