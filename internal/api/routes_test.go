package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/voicebridge/voicebridge/adapters/stt"
	"github.com/voicebridge/voicebridge/domain/entities"
	"github.com/voicebridge/voicebridge/internal/auth"
	"github.com/voicebridge/voicebridge/internal/websocket"
	"github.com/voicebridge/voicebridge/usecase"
)

type stubService struct {
	bypass   string
	createFn func(avatarID, voiceID, token string) (*entities.AvatarSession, error)
	speakFn  func(sessionID, text, token string) error
	stopFn   func(sessionID, token string) error
	statusFn func(sessionID, token string) (*usecase.SessionStatus, error)
	listFn   func(token string) []usecase.SessionSummary
	tokenFn  func(avatarID string) (string, error)
}

func (s *stubService) CreateSession(_ context.Context, avatarID, voiceID, token string) (*entities.AvatarSession, error) {
	return s.createFn(avatarID, voiceID, token)
}

func (s *stubService) Speak(_ context.Context, sessionID, text, token string) error {
	return s.speakFn(sessionID, text, token)
}

func (s *stubService) StopSession(_ context.Context, sessionID, token string) error {
	return s.stopFn(sessionID, token)
}

func (s *stubService) GetStatus(sessionID, token string) (*usecase.SessionStatus, error) {
	return s.statusFn(sessionID, token)
}

func (s *stubService) ListSessions(token string) []usecase.SessionSummary {
	return s.listFn(token)
}

func (s *stubService) CreateStreamingToken(_ context.Context, avatarID string) (string, error) {
	return s.tokenFn(avatarID)
}

func (s *stubService) SessionCount() int { return 0 }

func (s *stubService) BypassToken() string {
	if s.bypass != "" {
		return s.bypass
	}
	return "default"
}

func readySession(token string) *entities.AvatarSession {
	session := entities.NewAvatarSession("avatar-1", "", token)
	session.SetRemoteID("remote-1")
	session.Transport = entities.RealtimeTransport{
		RoomURL:     "wss://media.example.com/room",
		AccessToken: "room-token",
	}
	session.SetStatus(entities.SessionStatusReady)
	return session
}

func newTestEcho(t *testing.T, service *stubService) *echo.Echo {
	t.Helper()

	logger := zap.NewNop()
	e := echo.New()

	transport, err := usecase.NewTransport(usecase.TransportDirect, "", nil)
	if err != nil {
		t.Fatalf("NewTransport failed: %v", err)
	}

	handler := NewHandler(service, transport, auth.NewTokenIssuer("test-secret"), logger)
	sttGateway := websocket.NewSTTGateway(stt.NewMockSpeechToText(logger), "zh-TW", logger)
	hub := websocket.NewAvatarHub(nil, transport, logger)
	InitRoutes(e, handler, sttGateway, hub, logger)

	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string, header map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var parsed map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("Failed to parse response %q: %v", rec.Body.String(), err)
	}
	return rec, parsed
}

func TestCreateSessionEndpoint(t *testing.T) {
	var gotToken string
	service := &stubService{
		createFn: func(avatarID, voiceID, token string) (*entities.AvatarSession, error) {
			gotToken = token
			return readySession(token), nil
		},
	}
	e := newTestEcho(t, service)

	rec, body := doJSON(t, e, http.MethodPost, "/session",
		`{"avatar_id":"avatar-1","voice_id":"voice-1"}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["success"] != true {
		t.Error("Expected success true")
	}

	data := body["data"].(map[string]interface{})
	if data["status"] != string(entities.SessionStatusReady) {
		t.Errorf("Expected ready, got %v", data["status"])
	}
	bootstrap := data["bootstrap"].(map[string]interface{})
	if bootstrap["room_url"] != "wss://media.example.com/room" {
		t.Errorf("Expected direct transport bootstrap, got %v", bootstrap)
	}

	// No header or body token falls back to the open demo token.
	if gotToken != "default" {
		t.Errorf("Expected default token, got %q", gotToken)
	}
}

func TestCreateSessionTokenFromHeader(t *testing.T) {
	var gotToken string
	service := &stubService{
		createFn: func(avatarID, voiceID, token string) (*entities.AvatarSession, error) {
			gotToken = token
			return readySession(token), nil
		},
	}
	e := newTestEcho(t, service)

	doJSON(t, e, http.MethodPost, "/session",
		`{"avatar_id":"avatar-1","token":"body-token"}`,
		map[string]string{"x-api-key": "header-token"})

	if gotToken != "header-token" {
		t.Errorf("Expected header token to win, got %q", gotToken)
	}
}

func TestCreateSessionUsesConfiguredBypassToken(t *testing.T) {
	var gotToken string
	service := &stubService{
		bypass: "open-sesame",
		createFn: func(avatarID, voiceID, token string) (*entities.AvatarSession, error) {
			gotToken = token
			return readySession(token), nil
		},
	}
	e := newTestEcho(t, service)

	doJSON(t, e, http.MethodPost, "/session", `{"avatar_id":"avatar-1"}`, nil)

	// An anonymous caller falls back to the service's configured bypass
	// value, not the literal default.
	if gotToken != "open-sesame" {
		t.Errorf("Expected configured bypass token, got %q", gotToken)
	}
}

func TestCreateSessionVendorFailure(t *testing.T) {
	service := &stubService{
		createFn: func(avatarID, voiceID, token string) (*entities.AvatarSession, error) {
			return nil, &entities.VendorError{Vendor: "heygen", Code: 400144, Message: "limit reached"}
		},
	}
	e := newTestEcho(t, service)

	rec, body := doJSON(t, e, http.MethodPost, "/session", `{"avatar_id":"avatar-1"}`, nil)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rec.Code)
	}
	if body["success"] != false {
		t.Error("Expected success false")
	}
	if msg, _ := body["error"].(string); msg == "" {
		t.Error("Expected error message")
	}
}

func TestSpeakEndpoint(t *testing.T) {
	var gotSession, gotText string
	service := &stubService{
		speakFn: func(sessionID, text, token string) error {
			gotSession, gotText = sessionID, text
			return nil
		},
	}
	e := newTestEcho(t, service)

	rec, body := doJSON(t, e, http.MethodPost, "/session/sess-1/speak", `{"text":"hello"}`, nil)

	if rec.Code != http.StatusOK || body["success"] != true {
		t.Fatalf("Expected success, got %d %v", rec.Code, body)
	}
	if gotSession != "sess-1" || gotText != "hello" {
		t.Errorf("Expected sess-1/hello, got %s/%s", gotSession, gotText)
	}

	// Empty text never reaches the service.
	rec, _ = doJSON(t, e, http.MethodPost, "/session/sess-1/speak", `{}`, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 for empty text, got %d", rec.Code)
	}
}

func TestStopEndpointMapsErrors(t *testing.T) {
	service := &stubService{
		stopFn: func(sessionID, token string) error {
			return entities.ErrUnauthorized
		},
	}
	e := newTestEcho(t, service)

	rec, body := doJSON(t, e, http.MethodPost, "/session/sess-1/stop", `{}`, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rec.Code)
	}
	if body["success"] != false {
		t.Error("Expected success false")
	}
}

func TestGetStatusEndpoint(t *testing.T) {
	service := &stubService{
		statusFn: func(sessionID, token string) (*usecase.SessionStatus, error) {
			if sessionID != "sess-1" {
				return nil, entities.ErrSessionNotFound
			}
			return &usecase.SessionStatus{
				SessionID: sessionID,
				Status:    entities.SessionStatusReady,
			}, nil
		},
	}
	e := newTestEcho(t, service)

	rec, body := doJSON(t, e, http.MethodGet, "/session/sess-1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	data := body["data"].(map[string]interface{})
	if data["status"] != string(entities.SessionStatusReady) {
		t.Errorf("Expected ready, got %v", data["status"])
	}

	rec, _ = doJSON(t, e, http.MethodGet, "/session/unknown", "", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 for unknown session, got %d", rec.Code)
	}
}

func TestListSessionsEndpoint(t *testing.T) {
	var gotToken string
	service := &stubService{
		listFn: func(token string) []usecase.SessionSummary {
			gotToken = token
			return []usecase.SessionSummary{{SessionID: "sess-1", AvatarID: "avatar-1"}}
		},
	}
	e := newTestEcho(t, service)

	rec, body := doJSON(t, e, http.MethodGet, "/sessions?token=my-token", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if gotToken != "my-token" {
		t.Errorf("Expected my-token, got %q", gotToken)
	}
	sessions := body["sessions"].([]interface{})
	if len(sessions) != 1 {
		t.Errorf("Expected 1 session, got %d", len(sessions))
	}
}

func TestCreateStreamingTokenEndpoint(t *testing.T) {
	service := &stubService{
		tokenFn: func(avatarID string) (string, error) {
			if avatarID != "avatar-1" {
				return "", errors.New("no credential mapped")
			}
			return "short-lived", nil
		},
	}
	e := newTestEcho(t, service)

	rec, body := doJSON(t, e, http.MethodPost, "/v1/streaming.create_token", `{"avatar_id":"avatar-1"}`, nil)
	if rec.Code != http.StatusOK || body["token"] != "short-lived" {
		t.Fatalf("Expected token, got %d %v", rec.Code, body)
	}

	rec, body = doJSON(t, e, http.MethodPost, "/v1/streaming.create_token", `{"avatar_id":"other"}`, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rec.Code)
	}
	if body["success"] != false {
		t.Error("Expected success false")
	}
}

func TestIssueTokenEndpoint(t *testing.T) {
	e := newTestEcho(t, &stubService{})

	rec, body := doJSON(t, e, http.MethodPost, "/api/v1/auth/token", `{"client_id":"client-1"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if token, _ := body["token"].(string); token == "" {
		t.Error("Expected signed token")
	}
	if body["client_id"] != "client-1" {
		t.Errorf("Expected client-1, got %v", body["client_id"])
	}

	rec, _ = doJSON(t, e, http.MethodPost, "/api/v1/auth/token", `{}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing client id, got %d", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	e := newTestEcho(t, &stubService{})

	rec, body := doJSON(t, e, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if body["status"] != "ok" {
		t.Errorf("Expected ok, got %v", body["status"])
	}
}
