package application

import (
	"context"
	"errors"
	"strings"
	"testing"

	"facebot/internal/adapters/output/memory"
	"facebot/internal/domain"
)

// MockLineClient implements output.LineClient for testing
type MockLineClient struct {
	ReplyMessageFunc      func(request domain.LineReplyMessageRequest) (*domain.LineMessageResponse, error)
	PushMessageFunc       func(request domain.LinePushMessageRequest) (*domain.LineMessageResponse, error)
	GetMessageContentFunc func(messageID string) (*domain.LineContent, error)

	// Captured values for assertions
	LastReplyRequest *domain.LineReplyMessageRequest
	LastPushRequest  *domain.LinePushMessageRequest

	// Track all push requests for multi-message testing
	PushRequests []domain.LinePushMessageRequest
}

func (m *MockLineClient) ReplyMessage(request domain.LineReplyMessageRequest) (*domain.LineMessageResponse, error) {
	m.LastReplyRequest = &request
	if m.ReplyMessageFunc != nil {
		return m.ReplyMessageFunc(request)
	}
	return &domain.LineMessageResponse{Status: "ok"}, nil
}

func (m *MockLineClient) PushMessage(request domain.LinePushMessageRequest) (*domain.LineMessageResponse, error) {
	m.LastPushRequest = &request
	m.PushRequests = append(m.PushRequests, request)
	if m.PushMessageFunc != nil {
		return m.PushMessageFunc(request)
	}
	return &domain.LineMessageResponse{Status: "ok"}, nil
}

func (m *MockLineClient) GetMessageContent(messageID string) (*domain.LineContent, error) {
	if m.GetMessageContentFunc != nil {
		return m.GetMessageContentFunc(messageID)
	}
	return &domain.LineContent{ContentType: "image/jpeg", Data: []byte("jpeg")}, nil
}

// Helper function to create a text message event
func createTextMessageEvent(text string) domain.LineWebhookEvent {
	return domain.LineWebhookEvent{
		Type:       domain.LineEventTypeMessage,
		ReplyToken: "test-reply-token",
		Source: domain.LineSource{
			Type:   domain.LineSourceTypeUser,
			UserID: "test-user-id",
		},
		Message: &domain.LineMessage{
			ID:   "test-message-id",
			Type: domain.LineMessageTypeText,
			Text: text,
		},
	}
}

// Helper function to create an image message event
func createImageMessageEvent() domain.LineWebhookEvent {
	event := createTextMessageEvent("")
	event.Message = &domain.LineMessage{
		ID:       "image-message-id",
		Type:     domain.LineMessageTypeImage,
		FileName: "line-image-message-id.jpg",
	}
	return event
}

func newTestLineService(lineClient *MockLineClient, gateway *MockRemoteGateway) (*LineWebhookService, *memory.MemorySessionStore) {
	reconciler, store := newTestReconciler(gateway)
	return NewLineWebhookService(lineClient, reconciler, store), store
}

func outgoingTexts(messages []domain.LineOutgoingMessage) []string {
	out := make([]string, len(messages))
	for i, msg := range messages {
		out[i] = msg.Text
	}
	return out
}

// TestHandleMessageEvent_ChatRepliesWithSettledMessage tests that a text message runs the chat protocol
func TestHandleMessageEvent_ChatRepliesWithSettledMessage(t *testing.T) {
	// Arrange
	mockLineClient := &MockLineClient{}
	gateway := &MockRemoteGateway{
		SendChatFunc: func(ctx context.Context, text string) domain.ChatOutcome {
			return domain.ChatOutcome{ReplyText: "Hi from the bot"}
		},
	}
	service, store := newTestLineService(mockLineClient, gateway)
	consoleActive := store.ActiveSessionID()

	request := domain.LineWebhookRequest{Events: []domain.LineWebhookEvent{createTextMessageEvent("hello")}}

	// Act
	err := service.HandleWebhook(context.Background(), request)

	// Assert
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if mockLineClient.LastReplyRequest == nil {
		t.Fatal("Expected reply to be sent")
	}
	if mockLineClient.LastReplyRequest.ReplyToken != "test-reply-token" {
		t.Errorf("Expected reply token 'test-reply-token', got '%s'", mockLineClient.LastReplyRequest.ReplyToken)
	}
	if got := outgoingTexts(mockLineClient.LastReplyRequest.Messages); len(got) != 1 || got[0] != "Hi from the bot" {
		t.Errorf("Expected single bot reply, got %v", got)
	}

	if store.ActiveSessionID() != consoleActive {
		t.Error("Expected LINE session not to steal the console's active session")
	}
	snapshot := store.Snapshot()
	if len(snapshot.Sessions) != 2 {
		t.Fatalf("Expected a dedicated LINE session, got %d sessions", len(snapshot.Sessions))
	}
	lineSession := snapshot.Sessions[1]
	if !strings.HasPrefix(lineSession.Title, "LINE ") {
		t.Errorf("Expected LINE session title, got '%s'", lineSession.Title)
	}
	last := lineSession.Messages[len(lineSession.Messages)-1]
	if last.Text != "Hi from the bot" {
		t.Errorf("Expected settled reply in session log, got '%s'", last.Text)
	}
}

// TestHandleMessageEvent_ReusesSessionPerUser tests that one LINE user keeps one session
func TestHandleMessageEvent_ReusesSessionPerUser(t *testing.T) {
	// Arrange
	service, store := newTestLineService(&MockLineClient{}, &MockRemoteGateway{})
	request := domain.LineWebhookRequest{Events: []domain.LineWebhookEvent{createTextMessageEvent("one")}}

	// Act
	service.HandleWebhook(context.Background(), request)
	service.HandleWebhook(context.Background(), request)

	// Assert
	if got := len(store.Snapshot().Sessions); got != 2 {
		t.Errorf("Expected 2 sessions (console default + LINE), got %d", got)
	}
}

// TestHandleMessageEvent_KeepsLiteralText tests that chat text is recorded and sent as typed
func TestHandleMessageEvent_KeepsLiteralText(t *testing.T) {
	// Arrange
	gateway := &MockRemoteGateway{}
	service, store := newTestLineService(&MockLineClient{}, gateway)
	request := domain.LineWebhookRequest{Events: []domain.LineWebhookEvent{createTextMessageEvent("  hello there \n")}}

	// Act
	err := service.HandleWebhook(context.Background(), request)

	// Assert
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(gateway.ChatCalls) != 1 || gateway.ChatCalls[0] != "  hello there \n" {
		t.Errorf("Expected untrimmed text to reach the gateway, got %q", gateway.ChatCalls)
	}
	lineSession := store.Snapshot().Sessions[1]
	var userTexts []string
	for _, msg := range lineSession.Messages {
		if msg.Author == domain.AuthorUser {
			userTexts = append(userTexts, msg.Text)
		}
	}
	if len(userTexts) != 1 || userTexts[0] != "  hello there \n" {
		t.Errorf("Expected literal user message, got %q", userTexts)
	}
}

// TestHandleMessageEvent_RecreatesDeletedSession tests rebinding after the console deletes the session
func TestHandleMessageEvent_RecreatesDeletedSession(t *testing.T) {
	// Arrange
	service, store := newTestLineService(&MockLineClient{}, &MockRemoteGateway{})
	request := domain.LineWebhookRequest{Events: []domain.LineWebhookEvent{createTextMessageEvent("one")}}
	service.HandleWebhook(context.Background(), request)
	first := store.Snapshot().Sessions[1].ID

	// Act
	store.DeleteSession(first)
	err := service.HandleWebhook(context.Background(), request)

	// Assert
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	snapshot := store.Snapshot()
	if len(snapshot.Sessions) != 2 || snapshot.Sessions[1].ID == first {
		t.Errorf("Expected a fresh LINE session, got %+v", snapshot.Sessions)
	}
}

// TestNewCommand_StartsFreshSession tests the /new command
func TestNewCommand_StartsFreshSession(t *testing.T) {
	// Arrange
	mockLineClient := &MockLineClient{}
	gateway := &MockRemoteGateway{}
	service, store := newTestLineService(mockLineClient, gateway)
	service.HandleWebhook(context.Background(), domain.LineWebhookRequest{Events: []domain.LineWebhookEvent{createTextMessageEvent("hello")}})

	// Act
	err := service.HandleWebhook(context.Background(), domain.LineWebhookRequest{Events: []domain.LineWebhookEvent{createTextMessageEvent("/new")}})

	// Assert
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got := len(store.Snapshot().Sessions); got != 3 {
		t.Errorf("Expected 3 sessions after /new, got %d", got)
	}
	if len(gateway.ChatCalls) != 1 {
		t.Errorf("Expected commands not to reach the gateway, got %d calls", len(gateway.ChatCalls))
	}
	got := outgoingTexts(mockLineClient.LastReplyRequest.Messages)
	if len(got) != 2 || got[0] != lineNewSessionText || got[1] != domain.GreetingText {
		t.Errorf("Expected confirmation and greeting, got %v", got)
	}
}

// TestHelpAndUnknownCommands tests command routing
func TestHelpAndUnknownCommands(t *testing.T) {
	tests := []struct {
		text     string
		contains string
	}{
		{text: "/help", contains: "/new"},
		{text: "/HELP", contains: "/new"},
		{text: "/dance", contains: "Unknown command: /dance"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			// Arrange
			mockLineClient := &MockLineClient{}
			service, _ := newTestLineService(mockLineClient, &MockRemoteGateway{})

			// Act
			service.HandleWebhook(context.Background(), domain.LineWebhookRequest{Events: []domain.LineWebhookEvent{createTextMessageEvent(tt.text)}})

			// Assert
			if mockLineClient.LastReplyRequest == nil {
				t.Fatal("Expected reply to be sent")
			}
			if text := mockLineClient.LastReplyRequest.Messages[0].Text; !strings.Contains(text, tt.contains) {
				t.Errorf("Expected reply to contain '%s', got '%s'", tt.contains, text)
			}
		})
	}
}

// TestHandleMessageEvent_ImageRunsUploadProtocol tests LINE image content flowing to the gateway
func TestHandleMessageEvent_ImageRunsUploadProtocol(t *testing.T) {
	// Arrange
	var requestedID string
	mockLineClient := &MockLineClient{
		GetMessageContentFunc: func(messageID string) (*domain.LineContent, error) {
			requestedID = messageID
			return &domain.LineContent{ContentType: "image/jpeg", Data: []byte("jpeg-bytes")}, nil
		},
	}
	gateway := &MockRemoteGateway{
		SendMediaFunc: func(ctx context.Context, file domain.MediaFile) domain.UploadOutcome {
			return domain.UploadOutcome{
				Success:           true,
				AnnotatedImageURL: "https://backend.example/download/a.jpg",
				Detections:        []domain.Detection{{Age: 30, Gender: "Woman", Emotion: "happy"}},
			}
		},
	}
	service, _ := newTestLineService(mockLineClient, gateway)

	// Act
	err := service.HandleWebhook(context.Background(), domain.LineWebhookRequest{Events: []domain.LineWebhookEvent{createImageMessageEvent()}})

	// Assert
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if requestedID != "image-message-id" {
		t.Errorf("Expected content of 'image-message-id' to be fetched, got '%s'", requestedID)
	}
	if len(gateway.MediaCalls) != 1 {
		t.Fatalf("Expected 1 upload, got %d", len(gateway.MediaCalls))
	}
	file := gateway.MediaCalls[0]
	if file.Name != "line-image-message-id.jpg" || file.MIMEType != "image/jpeg" || string(file.Data) != "jpeg-bytes" {
		t.Errorf("Expected LINE content to be forwarded, got %+v", file)
	}

	messages := mockLineClient.LastReplyRequest.Messages
	if len(messages) != 4 {
		t.Fatalf("Expected caption, image, count and detection, got %v", outgoingTexts(messages))
	}
	if messages[1].Type != domain.LineMessageTypeImage || messages[1].ImageURL != "https://backend.example/download/a.jpg" {
		t.Errorf("Expected image message, got %+v", messages[1])
	}
}

// TestHandleMessageEvent_NonHTTPSImageSentAsLink tests the fallback for plain http images
func TestHandleMessageEvent_NonHTTPSImageSentAsLink(t *testing.T) {
	// Arrange
	mockLineClient := &MockLineClient{}
	gateway := &MockRemoteGateway{
		SendMediaFunc: func(ctx context.Context, file domain.MediaFile) domain.UploadOutcome {
			return domain.UploadOutcome{Success: true, AnnotatedImageURL: "http://127.0.0.1:5000/download/a.jpg"}
		},
	}
	service, _ := newTestLineService(mockLineClient, gateway)

	// Act
	service.HandleWebhook(context.Background(), domain.LineWebhookRequest{Events: []domain.LineWebhookEvent{createImageMessageEvent()}})

	// Assert
	messages := mockLineClient.LastReplyRequest.Messages
	if len(messages) != 1 || messages[0].Type != domain.LineMessageTypeText {
		t.Fatalf("Expected a single text message, got %+v", messages)
	}
	if !strings.HasSuffix(messages[0].Text, "http://127.0.0.1:5000/download/a.jpg") {
		t.Errorf("Expected link in text, got '%s'", messages[0].Text)
	}
}

// TestHandleMessageEvent_DownloadFailure tests that a blob download failure is reported to the user
func TestHandleMessageEvent_DownloadFailure(t *testing.T) {
	// Arrange
	mockLineClient := &MockLineClient{
		GetMessageContentFunc: func(messageID string) (*domain.LineContent, error) {
			return nil, errors.New("content expired")
		},
	}
	gateway := &MockRemoteGateway{}
	service, _ := newTestLineService(mockLineClient, gateway)

	// Act
	err := service.HandleWebhook(context.Background(), domain.LineWebhookRequest{Events: []domain.LineWebhookEvent{createImageMessageEvent()}})

	// Assert
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(gateway.MediaCalls) != 0 {
		t.Error("Expected no upload")
	}
	if got := outgoingTexts(mockLineClient.LastReplyRequest.Messages); len(got) != 1 || got[0] != lineDownloadText {
		t.Errorf("Expected download failure text, got %v", got)
	}
}

// TestHandleMessageEvent_RejectedUploadIsReported tests that validation rejections reach the user
func TestHandleMessageEvent_RejectedUploadIsReported(t *testing.T) {
	// Arrange
	mockLineClient := &MockLineClient{
		GetMessageContentFunc: func(messageID string) (*domain.LineContent, error) {
			return &domain.LineContent{ContentType: "application/pdf", Data: []byte("%PDF")}, nil
		},
	}
	gateway := &MockRemoteGateway{}
	service, _ := newTestLineService(mockLineClient, gateway)

	// Act
	service.HandleWebhook(context.Background(), domain.LineWebhookRequest{Events: []domain.LineWebhookEvent{createImageMessageEvent()}})

	// Assert
	if len(gateway.MediaCalls) != 0 {
		t.Error("Expected no upload for a rejected file")
	}
	got := outgoingTexts(mockLineClient.LastReplyRequest.Messages)
	if len(got) != 1 || !strings.Contains(got[0], "Unsupported file type") {
		t.Errorf("Expected rejection text, got %v", got)
	}
}

// TestDeliver_SplitsReplyAndPush tests that messages past the reply limit are pushed
func TestDeliver_SplitsReplyAndPush(t *testing.T) {
	// Arrange
	mockLineClient := &MockLineClient{}
	service, _ := newTestLineService(mockLineClient, &MockRemoteGateway{})
	replies := make([]domain.LineOutgoingMessage, 12)
	for i := range replies {
		replies[i] = textMessage(string(rune('a' + i)))
	}

	// Act
	err := service.deliver(createTextMessageEvent("x"), replies)

	// Assert
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got := len(mockLineClient.LastReplyRequest.Messages); got != maxReplyMessages {
		t.Errorf("Expected %d replied messages, got %d", maxReplyMessages, got)
	}
	if len(mockLineClient.PushRequests) != 2 {
		t.Fatalf("Expected 2 push batches, got %d", len(mockLineClient.PushRequests))
	}
	if len(mockLineClient.PushRequests[0].Messages) != 5 || len(mockLineClient.PushRequests[1].Messages) != 2 {
		t.Errorf("Expected batches of 5 and 2, got %d and %d",
			len(mockLineClient.PushRequests[0].Messages), len(mockLineClient.PushRequests[1].Messages))
	}
	if mockLineClient.PushRequests[1].Messages[1].Text != "l" {
		t.Errorf("Expected order to be kept, got '%s'", mockLineClient.PushRequests[1].Messages[1].Text)
	}
	if mockLineClient.LastPushRequest.To != "test-user-id" {
		t.Errorf("Expected push to 'test-user-id', got '%s'", mockLineClient.LastPushRequest.To)
	}
}

// TestHandleMessageEvent_ReplyFailureIsReturned tests error propagation from the LINE client
func TestHandleMessageEvent_ReplyFailureIsReturned(t *testing.T) {
	// Arrange
	mockLineClient := &MockLineClient{
		ReplyMessageFunc: func(request domain.LineReplyMessageRequest) (*domain.LineMessageResponse, error) {
			return nil, errors.New("invalid reply token")
		},
	}
	service, _ := newTestLineService(mockLineClient, &MockRemoteGateway{})

	// Act
	err := service.HandleWebhook(context.Background(), domain.LineWebhookRequest{Events: []domain.LineWebhookEvent{createTextMessageEvent("hi")}})

	// Assert
	if err == nil {
		t.Error("Expected an error")
	}
}

// TestFollowAndUnfollowEvents tests the greeting and the session unbinding
func TestFollowAndUnfollowEvents(t *testing.T) {
	// Arrange
	mockLineClient := &MockLineClient{}
	service, store := newTestLineService(mockLineClient, &MockRemoteGateway{})
	source := domain.LineSource{Type: domain.LineSourceTypeUser, UserID: "test-user-id"}
	service.HandleWebhook(context.Background(), domain.LineWebhookRequest{Events: []domain.LineWebhookEvent{createTextMessageEvent("hi")}})

	// Act
	err := service.HandleWebhook(context.Background(), domain.LineWebhookRequest{Events: []domain.LineWebhookEvent{
		{Type: domain.LineEventTypeFollow, Source: source},
		{Type: domain.LineEventTypeUnfollow, Source: source},
	}})
	service.HandleWebhook(context.Background(), domain.LineWebhookRequest{Events: []domain.LineWebhookEvent{createTextMessageEvent("hi again")}})

	// Assert
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if mockLineClient.LastPushRequest == nil || mockLineClient.LastPushRequest.Messages[0].Text != domain.GreetingText {
		t.Error("Expected greeting to be pushed on follow")
	}
	if got := len(store.Snapshot().Sessions); got != 3 {
		t.Errorf("Expected a new session after unfollow, got %d sessions", got)
	}
}

// TestGroupChat_SharesOneSessionPerGroup tests that group members share the group's session
func TestGroupChat_SharesOneSessionPerGroup(t *testing.T) {
	// Arrange
	mockLineClient := &MockLineClient{}
	gateway := &MockRemoteGateway{}
	service, store := newTestLineService(mockLineClient, gateway)
	fromMember := func(userID, text string) domain.LineWebhookEvent {
		event := createTextMessageEvent(text)
		event.Source = domain.LineSource{Type: domain.LineSourceTypeGroup, UserID: userID, GroupID: "C0000000000group42"}
		return event
	}

	// Act
	err := service.HandleWebhook(context.Background(), domain.LineWebhookRequest{Events: []domain.LineWebhookEvent{
		fromMember("U-alice", "hello"),
		fromMember("U-bob", "hi"),
	}})

	// Assert
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	snapshot := store.Snapshot()
	if len(snapshot.Sessions) != 2 {
		t.Fatalf("Expected one session for the group, got %d sessions", len(snapshot.Sessions))
	}
	if title := snapshot.Sessions[1].Title; title != "LINE group 0group42" {
		t.Errorf("Expected group session title, got '%s'", title)
	}
	if len(gateway.ChatCalls) != 2 {
		t.Errorf("Expected both members to reach the gateway, got %d calls", len(gateway.ChatCalls))
	}
}

// TestJoinAndLeaveEvents tests the group greeting and the session unbinding
func TestJoinAndLeaveEvents(t *testing.T) {
	// Arrange
	mockLineClient := &MockLineClient{}
	service, store := newTestLineService(mockLineClient, &MockRemoteGateway{})
	source := domain.LineSource{Type: domain.LineSourceTypeRoom, RoomID: "R123"}
	message := createTextMessageEvent("hi")
	message.Source = source

	// Act
	joinErr := service.HandleWebhook(context.Background(), domain.LineWebhookRequest{Events: []domain.LineWebhookEvent{
		{Type: domain.LineEventTypeJoin, ReplyToken: "join-token", Source: source},
		message,
		{Type: domain.LineEventTypeLeave, Source: source},
		message,
	}})

	// Assert
	if joinErr != nil {
		t.Fatalf("Expected no error, got: %v", joinErr)
	}
	if len(mockLineClient.PushRequests) != 0 {
		t.Errorf("Expected replies only, got %d pushes", len(mockLineClient.PushRequests))
	}
	if got := len(store.Snapshot().Sessions); got != 3 {
		t.Errorf("Expected a fresh room session after leave, got %d sessions", got)
	}
}

// TestDeliver_PushesToGroupWithoutReplyToken tests that group pushes target the group
func TestDeliver_PushesToGroupWithoutReplyToken(t *testing.T) {
	// Arrange
	mockLineClient := &MockLineClient{}
	service, _ := newTestLineService(mockLineClient, &MockRemoteGateway{})
	event := domain.LineWebhookEvent{
		Type:   domain.LineEventTypeJoin,
		Source: domain.LineSource{Type: domain.LineSourceTypeGroup, GroupID: "C42"},
	}

	// Act
	err := service.HandleWebhook(context.Background(), domain.LineWebhookRequest{Events: []domain.LineWebhookEvent{event}})

	// Assert
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if mockLineClient.LastPushRequest == nil || mockLineClient.LastPushRequest.To != "C42" {
		t.Fatalf("Expected greeting pushed to the group, got %+v", mockLineClient.LastPushRequest)
	}
	if mockLineClient.LastPushRequest.Messages[0].Text != domain.GreetingText {
		t.Errorf("Expected greeting, got '%s'", mockLineClient.LastPushRequest.Messages[0].Text)
	}
}
