package http

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"facebot/internal/application"
	"facebot/internal/domain"
	"facebot/internal/ports/input"
	"facebot/pkg/validator"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

// uploadField is the multipart field the page shell posts files under
const uploadField = "file"

// HTTPHandler struct - Primary/Driving adapter for HTTP
type HTTPHandler struct {
	console   input.ChatConsole
	broker    *EventBroker
	ping      func() error
	validator validator.Validator

	// requests dispatched in the background
	pending sync.WaitGroup
}

// New func - Creates new HTTP handler. ping reports storage health and may be nil.
func New(console input.ChatConsole, broker *EventBroker, ping func() error) *HTTPHandler {
	return &HTTPHandler{
		console:   console,
		broker:    broker,
		ping:      ping,
		validator: validator.New(),
	}
}

// Wait blocks until every background request has settled
func (hdl *HTTPHandler) Wait() {
	hdl.pending.Wait()
}

// HealthCheck func
func (hdl *HTTPHandler) HealthCheck(c *fiber.Ctx) error {
	if hdl.ping != nil {
		if err := hdl.ping(); err != nil {
			logrus.Errorln(err)
			return c.Status(fiber.StatusInternalServerError).JSON(ResponseBody{Status: InternalServerError})
		}
	}
	return c.Status(fiber.StatusOK).JSON(ResponseBody{Status: Success, Data: ""})
}

// ListSessions godoc
// @Summary List sessions
// @Description Every session in creation order and the active session id
// @Tags SESSION
// @Produce json
// @Success 200 {object} ResponseBody{data=SessionListResponse}
// @Router /v1/api/sessions [get]
func (hdl *HTTPHandler) ListSessions(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(ResponseBody{
		Status: Success,
		Data:   toSessionListResponse(hdl.console.Snapshot()),
	})
}

// CreateSession godoc
// @Summary Create session
// @Description Starts a new session with a greeting and makes it active
// @Tags SESSION
// @Produce json
// @Success 201 {object} ResponseBody{data=SessionResponse}
// @Router /v1/api/sessions [post]
func (hdl *HTTPHandler) CreateSession(c *fiber.Ctx) error {
	session := hdl.console.CreateSession()
	return c.Status(fiber.StatusCreated).JSON(ResponseBody{
		Status: Created,
		Data:   toSessionResponse(session, false),
	})
}

// GetSession godoc
// @Summary Get session
// @Description One session with its full message log
// @Tags SESSION
// @Produce json
// @param id path string true "session id"
// @Success 200 {object} ResponseBody{data=SessionResponse}
// @Failure 404 {object} ResponseBody
// @Router /v1/api/sessions/{id} [get]
func (hdl *HTTPHandler) GetSession(c *fiber.Ctx) error {
	id := c.Params("id")
	session, err := hdl.console.Session(id)
	if err != nil {
		return hdl.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(ResponseBody{
		Status: Success,
		Data:   toSessionResponse(session, hdl.console.Busy(id)),
	})
}

// DeleteSession godoc
// @Summary Delete session
// @Description Removes a session. Deleting the last session leaves a fresh default one.
// @Tags SESSION
// @Produce json
// @param id path string true "session id"
// @Success 200 {object} ResponseBody{data=SessionListResponse}
// @Router /v1/api/sessions/{id} [delete]
func (hdl *HTTPHandler) DeleteSession(c *fiber.Ctx) error {
	hdl.console.DeleteSession(c.Params("id"))
	return c.Status(fiber.StatusOK).JSON(ResponseBody{
		Status: Success,
		Data:   toSessionListResponse(hdl.console.Snapshot()),
	})
}

// SelectSession godoc
// @Summary Select session
// @Description Makes a session the active one
// @Tags SESSION
// @Produce json
// @param id path string true "session id"
// @Success 200 {object} ResponseBody{data=SessionListResponse}
// @Failure 404 {object} ResponseBody
// @Router /v1/api/sessions/{id}/select [put]
func (hdl *HTTPHandler) SelectSession(c *fiber.Ctx) error {
	if err := hdl.console.SelectSession(c.Params("id")); err != nil {
		return hdl.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(ResponseBody{
		Status: Success,
		Data:   toSessionListResponse(hdl.console.Snapshot()),
	})
}

// SendMessage godoc
// @Summary Send chat message
// @Description Appends the message and a thinking placeholder, then settles the reply in the background.
// @Description With wait=true the reply is settled before responding.
// @Tags SESSION
// @Accept application/json
// @Produce json
// @param id path string true "session id"
// @param wait query bool false "settle before responding"
// @param SendMessage body SendMessageRequest true "SendMessage"
// @Success 200 {object} ResponseBody{data=[]MessageResponse}
// @Success 202 {object} ResponseBody
// @Failure 400 {object} ResponseBody
// @Failure 404 {object} ResponseBody
// @Failure 409 {object} ResponseBody
// @Router /v1/api/sessions/{id}/messages [post]
func (hdl *HTTPHandler) SendMessage(c *fiber.Ctx) error {
	// the id outlives the request when settled in the background
	id := utils.CopyString(c.Params("id"))

	var request SendMessageRequest
	if err := c.BodyParser(&request); err != nil {
		logrus.Errorln(err)
		return c.Status(fiber.StatusBadRequest).JSON(ResponseBody{Status: BadRequest})
	}
	if err := hdl.validator.ValidateStruct(request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ResponseBody{Status: BadRequest.withMessage(err.Error())})
	}
	if strings.TrimSpace(request.Text) == "" {
		return c.SendStatus(fiber.StatusNoContent)
	}

	if err := hdl.admit(id); err != nil {
		return hdl.fail(c, err)
	}

	var query WaitQuery
	if err := c.QueryParser(&query); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ResponseBody{Status: BadRequest})
	}

	return hdl.dispatch(c, query.Wait, func(ctx context.Context) ([]domain.Message, error) {
		return hdl.console.SendChat(ctx, id, request.Text)
	})
}

// UploadMedia godoc
// @Summary Upload media
// @Description Validates an image or video and sends it for analysis. Rejected files are
// @Description answered with 422 and a bot message in the session log.
// @Tags SESSION
// @Accept multipart/form-data
// @Produce json
// @param id path string true "session id"
// @param wait query bool false "settle before responding"
// @param file formData file true "image or video"
// @Success 200 {object} ResponseBody{data=[]MessageResponse}
// @Success 202 {object} ResponseBody
// @Failure 400 {object} ResponseBody
// @Failure 404 {object} ResponseBody
// @Failure 409 {object} ResponseBody
// @Failure 422 {object} ResponseBody
// @Router /v1/api/sessions/{id}/uploads [post]
func (hdl *HTTPHandler) UploadMedia(c *fiber.Ctx) error {
	id := utils.CopyString(c.Params("id"))

	header, err := c.FormFile(uploadField)
	if err != nil {
		logrus.Errorln(err)
		return c.Status(fiber.StatusBadRequest).JSON(ResponseBody{Status: BadRequest.withMessage("missing file field")})
	}

	f, err := header.Open()
	if err != nil {
		logrus.Errorln(err)
		return c.Status(fiber.StatusInternalServerError).JSON(ResponseBody{Status: InternalServerError})
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		logrus.Errorln(err)
		return c.Status(fiber.StatusInternalServerError).JSON(ResponseBody{Status: InternalServerError})
	}

	file := domain.MediaFile{
		Name:     header.Filename,
		MIMEType: detectMIMEType(header.Header.Get("Content-Type"), data),
		Data:     data,
	}

	if _, err := hdl.console.Session(id); err != nil {
		return hdl.fail(c, err)
	}

	if err := application.ValidateUpload(file.MIMEType, file.Size()); err != nil {
		// the console records the rejection in the log without a network call
		if _, uploadErr := hdl.console.UploadMedia(c.UserContext(), id, file); uploadErr != nil {
			return hdl.fail(c, uploadErr)
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ResponseBody{Status: UnprocessableEntity.withMessage(err.Error())})
	}

	if err := hdl.admit(id); err != nil {
		return hdl.fail(c, err)
	}

	var query WaitQuery
	if err := c.QueryParser(&query); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ResponseBody{Status: BadRequest})
	}

	return hdl.dispatch(c, query.Wait, func(ctx context.Context) ([]domain.Message, error) {
		return hdl.console.UploadMedia(ctx, id, file)
	})
}

// Events godoc
// @Summary Change feed
// @Description Server-sent events, one per session store mutation, each carrying the full session list
// @Tags SESSION
// @Produce text/event-stream
// @Success 200 {object} ChangeEventResponse
// @Router /v1/api/events [get]
func (hdl *HTTPHandler) Events(c *fiber.Ctx) error {
	return hdl.broker.Stream(c, hdl.console.Snapshot)
}

// admit rejects unknown sessions and sessions with a request still in flight
func (hdl *HTTPHandler) admit(id string) error {
	if _, err := hdl.console.Session(id); err != nil {
		return err
	}
	if hdl.console.Busy(id) {
		return domain.ErrRequestInFlight
	}
	return nil
}

// dispatch settles the request inline when wait is set, otherwise in the background
func (hdl *HTTPHandler) dispatch(c *fiber.Ctx, wait bool, run func(ctx context.Context) ([]domain.Message, error)) error {
	if wait {
		messages, err := run(c.UserContext())
		if err != nil {
			return hdl.fail(c, err)
		}
		return c.Status(fiber.StatusOK).JSON(ResponseBody{Status: Success, Data: toMessageResponses(messages)})
	}

	hdl.pending.Add(1)
	go func() {
		defer hdl.pending.Done()
		if _, err := run(context.Background()); err != nil {
			logrus.Warnf("Background request failed: %v", err)
		}
	}()
	return c.Status(fiber.StatusAccepted).JSON(ResponseBody{Status: Accepted})
}

// fail maps console errors to HTTP statuses
func (hdl *HTTPHandler) fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ResponseBody{Status: NotFound})
	case errors.Is(err, domain.ErrRequestInFlight):
		return c.Status(fiber.StatusConflict).JSON(ResponseBody{Status: ConFlict})
	default:
		logrus.Errorln(err)
		return c.Status(fiber.StatusInternalServerError).JSON(ResponseBody{Status: InternalServerError.withMessage(err.Error())})
	}
}

// detectMIMEType trusts a declared type and sniffs the content otherwise
func detectMIMEType(declared string, data []byte) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && !strings.HasPrefix(declared, "application/octet-stream") {
		return declared
	}
	return mimetype.Detect(data).String()
}
