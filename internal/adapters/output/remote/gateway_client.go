package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"facebot/configs"
	"facebot/internal/domain"
	"facebot/internal/ports/output"

	"github.com/sirupsen/logrus"
)

// Compile-time check to ensure GatewayClientAdapter implements RemoteGateway interface
var _ output.RemoteGateway = (*GatewayClientAdapter)(nil)

// Timeout bounds in seconds
const (
	minTimeout     = 15
	maxTimeout     = 30
	defaultTimeout = 30
)

const maxResponseBytes = 10 << 20

// User facing failure messages
const (
	chatTimeoutMessage   = "Request timed out"
	chatGenericMessage   = "Failed to fetch chat response"
	uploadTimeoutMessage = "Upload timed out"
	uploadGenericMessage = "Failed to upload file"
)

// GatewayClientAdapter struct - Output adapter for the backend chat and analysis endpoints
type GatewayClientAdapter struct {
	httpClient   *http.Client
	baseURL      string
	chatPath     string
	uploadPath   string
	downloadPath string
	uploadField  string
	timeout      time.Duration
}

// NewGatewayClientAdapter func - Creates new remote gateway adapter
func NewGatewayClientAdapter(config configs.Remote) (*GatewayClientAdapter, error) {
	baseURL := strings.TrimSuffix(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:5000"
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid remote base URL %q: %w", config.BaseURL, err)
	}

	seconds := config.Timeout
	switch {
	case seconds <= 0:
		seconds = defaultTimeout
	case seconds < minTimeout:
		seconds = minTimeout
	case seconds > maxTimeout:
		seconds = maxTimeout
	}
	timeout := time.Duration(seconds) * time.Second

	// the per-call context carries the bound; the transport only limits dialing
	httpClient := &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	adapter := &GatewayClientAdapter{
		httpClient:   httpClient,
		baseURL:      baseURL,
		chatPath:     pathOrDefault(config.ChatPath, "/chat"),
		uploadPath:   pathOrDefault(config.UploadPath, "/upload"),
		downloadPath: strings.TrimSuffix(pathOrDefault(config.DownloadPath, "/download"), "/"),
		uploadField:  config.UploadField,
		timeout:      timeout,
	}
	if adapter.uploadField == "" {
		adapter.uploadField = "file"
	}

	logrus.Infof("Remote gateway initialized with base URL: %s, timeout: %v", baseURL, timeout)

	return adapter, nil
}

// SendChat posts a text message to the chat endpoint
func (a *GatewayClientAdapter) SendChat(ctx context.Context, text string) domain.ChatOutcome {
	body, err := json.Marshal(chatAPIRequest{Message: text})
	if err != nil {
		return domain.ChatOutcome{Failure: remoteFailure(0, chatGenericMessage)}
	}

	var reply chatAPIResponse
	failure := a.do(ctx, a.chatPath, "application/json", body, &reply, chatTimeoutMessage, chatGenericMessage)
	if failure != nil {
		return domain.ChatOutcome{Failure: failure}
	}
	return domain.ChatOutcome{ReplyText: reply.Response}
}

// SendMedia posts a file as multipart form data to the analysis endpoint
func (a *GatewayClientAdapter) SendMedia(ctx context.Context, file domain.MediaFile) domain.UploadOutcome {
	body, contentType, err := a.multipartBody(file)
	if err != nil {
		logrus.Errorf("Failed to build upload body for %s: %v", file.Name, err)
		return domain.UploadOutcome{Failure: remoteFailure(0, uploadGenericMessage)}
	}

	var result uploadAPIResponse
	failure := a.do(ctx, a.uploadPath, contentType, body, &result, uploadTimeoutMessage, uploadGenericMessage)
	if failure != nil {
		return domain.UploadOutcome{Failure: failure}
	}
	return a.toUploadOutcome(result)
}

// do sends one POST request and decodes a 2xx JSON body into out
func (a *GatewayClientAdapter) do(ctx context.Context, path, contentType string, body []byte, out interface{}, timeoutMsg, genericMsg string) *domain.Failure {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	endpoint := a.baseURL + path
	started := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return remoteFailure(0, genericMsg)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return a.transportFailure(ctx, endpoint, err, timeoutMsg, genericMsg)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return a.transportFailure(ctx, endpoint, err, timeoutMsg, genericMsg)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := genericMsg
		var apiErr errorAPIResponse
		if json.Unmarshal(payload, &apiErr) == nil && strings.TrimSpace(apiErr.Error) != "" {
			message = apiErr.Error
		}
		logrus.Warnf("Remote call %s failed with status %d after %v: %s", endpoint, resp.StatusCode, time.Since(started), message)
		return remoteFailure(resp.StatusCode, message)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		logrus.Warnf("Remote call %s returned an unreadable body: %v", endpoint, err)
		return remoteFailure(resp.StatusCode, genericMsg)
	}

	logrus.Infof("Remote call %s settled with status %d after %v", endpoint, resp.StatusCode, time.Since(started))
	return nil
}

// transportFailure classifies a failed round trip as a timeout or a remote failure
func (a *GatewayClientAdapter) transportFailure(ctx context.Context, endpoint string, err error, timeoutMsg, genericMsg string) *domain.Failure {
	if isTimeout(ctx, err) {
		logrus.Warnf("Remote call %s timed out after %v", endpoint, a.timeout)
		return &domain.Failure{Kind: domain.FailureTimeout, Message: timeoutMsg}
	}
	logrus.Warnf("Remote call %s failed: %v", endpoint, err)
	return remoteFailure(0, genericMsg)
}

func (a *GatewayClientAdapter) multipartBody(file domain.MediaFile) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	contentType := file.MIMEType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, a.uploadField, file.Name))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

func (a *GatewayClientAdapter) toUploadOutcome(result uploadAPIResponse) domain.UploadOutcome {
	outcome := domain.UploadOutcome{
		Success:    true,
		Message:    result.Message,
		BotComment: result.BotReply,
	}

	if result.AnnotatedFilename != "" {
		outcome.AnnotatedImageURL = a.DownloadURL(result.AnnotatedFilename)
	}

	if detections, ok := decodeDetections(result.Results); ok {
		outcome.Detections = detections
	}

	if result.PersonInfo != nil {
		outcome.Identity = &domain.Identity{
			Name:       result.PersonInfo.Name,
			Title:      result.PersonInfo.Title,
			Authorized: result.PersonInfo.Authorized,
		}
	}
	return outcome
}

// DownloadURL derives the URL an annotated file is served from
func (a *GatewayClientAdapter) DownloadURL(filename string) string {
	return fmt.Sprintf("%s%s/%s", a.baseURL, a.downloadPath, url.PathEscape(filename))
}

// decodeDetections accepts only the canonical array form of results
func decodeDetections(raw json.RawMessage) ([]domain.Detection, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, false
	}
	if trimmed[0] != '[' {
		logrus.Warn("Ignoring results in unsupported (non-array) form")
		return nil, false
	}

	var items []detectionAPI
	if err := json.Unmarshal(trimmed, &items); err != nil {
		logrus.Warnf("Ignoring unreadable results: %v", err)
		return nil, false
	}

	detections := make([]domain.Detection, len(items))
	for i, item := range items {
		detections[i] = domain.Detection{
			Age:        item.Age,
			Gender:     item.Gender,
			Emotion:    item.Emotion,
			Confidence: item.Confidence,
		}
	}
	return detections, true
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func remoteFailure(status int, message string) *domain.Failure {
	return &domain.Failure{Kind: domain.FailureRemote, StatusCode: status, Message: message}
}

func pathOrDefault(path, fallback string) string {
	if path == "" {
		return fallback
	}
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}
