package http

import (
	"time"

	"facebot/internal/domain"
	"facebot/internal/ports/input"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/sirupsen/logrus"
)

// LineWebhookHandler struct - Primary/Driving adapter for LINE webhook
type LineWebhookHandler struct {
	service       input.LineWebhookService
	channelSecret string
}

// NewLineWebhookHandler func - Creates new LINE webhook handler
func NewLineWebhookHandler(service input.LineWebhookService, channelSecret string) *LineWebhookHandler {
	return &LineWebhookHandler{
		service:       service,
		channelSecret: channelSecret,
	}
}

// HandleWebhook godoc
// @Summary LINE Webhook
// @Description Verifies the channel signature and feeds message, follow, join, unfollow and
// @Description leave events into the console. Text runs the chat protocol, images and videos
// @Description the upload protocol.
// @Tags LINE
// @Accept application/json
// @Produce json
// @Success 200 {object} ResponseBody
// @Failure 400 {object} ResponseBody
// @Failure 500 {object} ResponseBody
// @Router /webhook/line [post]
func (h *LineWebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	httpReq, err := adaptor.ConvertRequest(c, false)
	if err != nil {
		logrus.Errorf("Failed to convert webhook request: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ResponseBody{Status: InternalServerError})
	}

	cb, err := webhook.ParseRequest(h.channelSecret, httpReq)
	if err != nil {
		logrus.Warnf("Rejected LINE webhook: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(ResponseBody{Status: BadRequest.withMessage("invalid signature or request")})
	}

	request := domain.LineWebhookRequest{Events: make([]domain.LineWebhookEvent, 0, len(cb.Events))}
	for _, event := range cb.Events {
		if converted, ok := toLineEvent(event); ok {
			request.Events = append(request.Events, converted)
		}
	}

	if err := h.service.HandleWebhook(c.UserContext(), request); err != nil {
		logrus.Errorf("Failed to handle webhook: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ResponseBody{Status: InternalServerError})
	}
	return c.Status(fiber.StatusOK).JSON(ResponseBody{Status: Success})
}

// toLineEvent keeps the events the console acts on and drops the rest
func toLineEvent(event webhook.EventInterface) (domain.LineWebhookEvent, bool) {
	switch e := event.(type) {
	case webhook.MessageEvent:
		message, ok := toLineMessage(e.Message)
		if !ok {
			return domain.LineWebhookEvent{}, false
		}
		return domain.LineWebhookEvent{
			ID:         e.WebhookEventId,
			Type:       domain.LineEventTypeMessage,
			Timestamp:  time.UnixMilli(e.Timestamp),
			ReplyToken: e.ReplyToken,
			Source:     toLineSource(e.Source),
			Message:    message,
		}, true
	case webhook.FollowEvent:
		return lineEvent(domain.LineEventTypeFollow, e.WebhookEventId, e.Timestamp, e.ReplyToken, e.Source), true
	case webhook.JoinEvent:
		return lineEvent(domain.LineEventTypeJoin, e.WebhookEventId, e.Timestamp, e.ReplyToken, e.Source), true
	case webhook.UnfollowEvent:
		return lineEvent(domain.LineEventTypeUnfollow, e.WebhookEventId, e.Timestamp, "", e.Source), true
	case webhook.LeaveEvent:
		return lineEvent(domain.LineEventTypeLeave, e.WebhookEventId, e.Timestamp, "", e.Source), true
	default:
		logrus.Debugf("Ignoring LINE event %T", event)
		return domain.LineWebhookEvent{}, false
	}
}

func lineEvent(kind domain.LineEventType, id string, millis int64, replyToken string, source webhook.SourceInterface) domain.LineWebhookEvent {
	return domain.LineWebhookEvent{
		ID:         id,
		Type:       kind,
		Timestamp:  time.UnixMilli(millis),
		ReplyToken: replyToken,
		Source:     toLineSource(source),
	}
}

// toLineMessage converts text, image and video content. Binary content is fetched later
// by message id, so only a file name is synthesized here.
func toLineMessage(content webhook.MessageContentInterface) (*domain.LineMessage, bool) {
	switch m := content.(type) {
	case webhook.TextMessageContent:
		return &domain.LineMessage{ID: m.Id, Type: domain.LineMessageTypeText, Text: m.Text}, true
	case webhook.ImageMessageContent:
		return &domain.LineMessage{ID: m.Id, Type: domain.LineMessageTypeImage, FileName: "line-" + m.Id + ".jpg"}, true
	case webhook.VideoMessageContent:
		return &domain.LineMessage{ID: m.Id, Type: domain.LineMessageTypeVideo, FileName: "line-" + m.Id + ".mp4"}, true
	default:
		logrus.Infof("Ignoring LINE message %T", content)
		return nil, false
	}
}

func toLineSource(source webhook.SourceInterface) domain.LineSource {
	switch s := source.(type) {
	case webhook.UserSource:
		return domain.LineSource{Type: domain.LineSourceTypeUser, UserID: s.UserId}
	case webhook.GroupSource:
		return domain.LineSource{Type: domain.LineSourceTypeGroup, UserID: s.UserId, GroupID: s.GroupId}
	case webhook.RoomSource:
		return domain.LineSource{Type: domain.LineSourceTypeRoom, UserID: s.UserId, RoomID: s.RoomId}
	default:
		return domain.LineSource{}
	}
}
