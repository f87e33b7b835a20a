package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"facebot/internal/domain"
	"facebot/internal/ports/input"
	"facebot/internal/ports/output"

	"github.com/sirupsen/logrus"
)

// Compile-time check to ensure Reconciler implements ChatConsole interface
var _ input.ChatConsole = (*Reconciler)(nil)

type flightKey struct {
	sessionID string
	tag       domain.PlaceholderTag
}

// Reconciler struct - Application service turning user actions into session log mutations.
// Each request appends an optimistic placeholder, calls the remote gateway, and then
// replaces the placeholder with the settled messages in a single store mutation.
// Settlement always targets the session that started the request.
type Reconciler struct {
	store   output.SessionStore
	gateway output.RemoteGateway

	mu       sync.Mutex
	inFlight map[flightKey]bool
}

// NewReconciler func - Creates new reconciler
func NewReconciler(store output.SessionStore, gateway output.RemoteGateway) *Reconciler {
	return &Reconciler{
		store:    store,
		gateway:  gateway,
		inFlight: make(map[flightKey]bool),
	}
}

// CreateSession starts a new active thread
func (r *Reconciler) CreateSession() domain.Session {
	session := r.store.CreateSession()
	logrus.Infof("Created session: id=%s, title=%s", session.ID, session.Title)
	return session
}

// DeleteSession removes a thread
func (r *Reconciler) DeleteSession(id string) {
	r.store.DeleteSession(id)
	logrus.Infof("Deleted session: id=%s, active=%s", id, r.store.ActiveSessionID())
}

// SelectSession switches the active thread
func (r *Reconciler) SelectSession(id string) error {
	if _, ok := r.store.Session(id); !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	r.store.SelectSession(id)
	return nil
}

// Session returns one thread
func (r *Reconciler) Session(id string) (domain.Session, error) {
	session, ok := r.store.Session(id)
	if !ok {
		return domain.Session{}, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return session, nil
}

// Snapshot returns every thread and the active id
func (r *Reconciler) Snapshot() domain.Snapshot {
	return r.store.Snapshot()
}

// Busy reports whether any request for the session is in flight
func (r *Reconciler) Busy(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight[flightKey{sessionID, domain.PlaceholderThinking}] ||
		r.inFlight[flightKey{sessionID, domain.PlaceholderAnalyzing}]
}

// SendChat runs the chat protocol. Blank input is ignored without touching the log.
func (r *Reconciler) SendChat(ctx context.Context, sessionID, text string) ([]domain.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if _, ok := r.store.Session(sessionID); !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}

	release, err := r.acquire(sessionID, domain.PlaceholderThinking)
	if err != nil {
		return nil, err
	}
	defer release()

	if !r.store.AppendMessage(sessionID,
		domain.NewUserMessage(text),
		domain.NewPlaceholderMessage(domain.PlaceholderThinking, domain.ThinkingText),
	) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}

	outcome := r.gateway.SendChat(ctx, text)

	var reply domain.Message
	switch {
	case outcome.OK():
		reply = domain.NewBotMessage(outcome.ReplyText)
	case errors.Is(outcome.Failure, domain.ErrTimeout):
		reply = domain.NewBotMessage(domain.ChatTimeoutText)
	default:
		reply = domain.NewBotMessage(domain.ChatErrorText)
	}

	if !r.store.Reconcile(sessionID, placeholderMatcher(domain.PlaceholderThinking), reply) {
		logrus.Warnf("Chat reply dropped, session %s was deleted while the request was in flight", sessionID)
		return nil, nil
	}

	if outcome.Failure != nil {
		logrus.Warnf("Chat request failed: session=%s, error=%v", sessionID, outcome.Failure)
	}
	return []domain.Message{reply}, nil
}

// UploadMedia runs the upload protocol. A rejected file produces one bot error
// message and no network call.
func (r *Reconciler) UploadMedia(ctx context.Context, sessionID string, file domain.MediaFile) ([]domain.Message, error) {
	if _, ok := r.store.Session(sessionID); !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}

	if err := ValidateUpload(file.MIMEType, file.Size()); err != nil {
		logrus.Infof("Upload rejected: session=%s, file=%s, reason=%v", sessionID, file.Name, err)
		rejection := domain.NewBotMessage(err.Error())
		if !r.store.AppendMessage(sessionID, rejection) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
		}
		return []domain.Message{rejection}, nil
	}

	release, err := r.acquire(sessionID, domain.PlaceholderAnalyzing)
	if err != nil {
		return nil, err
	}
	defer release()

	if !r.store.AppendMessage(sessionID,
		domain.NewUserMessage(fmt.Sprintf("📤 Uploaded: %s", file.Name)),
		domain.NewPlaceholderMessage(domain.PlaceholderAnalyzing, domain.AnalyzingText),
	) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}

	outcome := r.gateway.SendMedia(ctx, file)
	messages := ProjectUpload(outcome)

	if !r.store.Reconcile(sessionID, placeholderMatcher(domain.PlaceholderAnalyzing), messages...) {
		logrus.Warnf("Analysis result dropped, session %s was deleted while the request was in flight", sessionID)
		return nil, nil
	}

	if outcome.Failure != nil {
		logrus.Warnf("Upload failed: session=%s, file=%s, error=%v", sessionID, file.Name, outcome.Failure)
	} else {
		logrus.Infof("Upload analysed: session=%s, file=%s, messages=%d", sessionID, file.Name, len(messages))
	}
	return messages, nil
}

// ProjectUpload turns an upload outcome into bot messages. On success the order is:
// server message, annotated image, face count and one message per detection (or a
// no-faces notice), identity, bot commentary. Absent fields are skipped.
func ProjectUpload(outcome domain.UploadOutcome) []domain.Message {
	if outcome.Failure != nil {
		if errors.Is(outcome.Failure, domain.ErrTimeout) {
			return []domain.Message{domain.NewBotMessage(domain.UploadTimeoutText)}
		}
		return []domain.Message{domain.NewBotMessage("❌ " + outcome.ErrorMessage())}
	}

	var messages []domain.Message
	if outcome.Message != "" {
		messages = append(messages, domain.NewBotMessage(outcome.Message))
	}

	if outcome.AnnotatedImageURL != "" {
		messages = append(messages, domain.NewImageMessage("🖼️ Annotated image", domain.ImageRef{
			URL:     outcome.AnnotatedImageURL,
			Caption: domain.AnnotatedImageCaption,
		}))
	}

	if outcome.Detections != nil {
		if len(outcome.Detections) == 0 {
			messages = append(messages, domain.NewBotMessage(domain.NoFacesText))
		} else {
			messages = append(messages, domain.NewBotMessage(faceCountText(len(outcome.Detections))))
			for i, detection := range outcome.Detections {
				messages = append(messages, domain.NewBotMessage(detectionText(i+1, detection)))
			}
		}
	}

	if outcome.Identity != nil {
		messages = append(messages, domain.NewBotMessage(identityText(*outcome.Identity)))
	}

	if outcome.BotComment != "" {
		messages = append(messages, domain.NewBotMessage(outcome.BotComment))
	}

	if len(messages) == 0 {
		messages = append(messages, domain.NewBotMessage("✅ Analysis complete."))
	}
	return messages
}

func (r *Reconciler) acquire(sessionID string, tag domain.PlaceholderTag) (func(), error) {
	key := flightKey{sessionID, tag}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight[key] {
		return nil, fmt.Errorf("%w: %s request for session %s", domain.ErrRequestInFlight, tag, sessionID)
	}
	r.inFlight[key] = true

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.inFlight, key)
	}, nil
}

func placeholderMatcher(tag domain.PlaceholderTag) output.MessagePredicate {
	return func(msg domain.Message) bool {
		return msg.IsPlaceholder(tag)
	}
}

func faceCountText(count int) string {
	if count == 1 {
		return "✅ Found 1 face in the media"
	}
	return fmt.Sprintf("✅ Found %d faces in the media", count)
}

func detectionText(ordinal int, d domain.Detection) string {
	text := fmt.Sprintf("👤 Person %d: Age %s, Gender %s, Emotion %s",
		ordinal,
		strconv.FormatFloat(d.Age, 'f', -1, 64),
		orUnknown(d.Gender),
		orUnknown(d.Emotion),
	)

	confidence := d.Confidence
	if confidence > 0 && confidence <= 1 {
		confidence *= 100
	}
	if confidence > 0 {
		text += fmt.Sprintf(" (%.0f%% confidence)", confidence)
	}
	return text
}

func identityText(identity domain.Identity) string {
	name := orUnknown(identity.Name)
	if identity.Title != "" {
		name = fmt.Sprintf("%s (%s)", name, identity.Title)
	}
	if identity.Authorized {
		return fmt.Sprintf("🪪 Identified: %s - ✅ Authorized", name)
	}
	return fmt.Sprintf("🪪 Identified: %s - ⛔ Not authorized", name)
}

func orUnknown(value string) string {
	if strings.TrimSpace(value) == "" {
		return "unknown"
	}
	return value
}
