package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/voicebridge/voicebridge/domain/entities"
	"github.com/voicebridge/voicebridge/internal/auth"
	"github.com/voicebridge/voicebridge/internal/websocket"
	"github.com/voicebridge/voicebridge/usecase"
)

// AvatarOps is the slice of the session service the REST layer uses.
type AvatarOps interface {
	CreateSession(ctx context.Context, avatarID, voiceID, token string) (*entities.AvatarSession, error)
	Speak(ctx context.Context, sessionID, text, token string) error
	StopSession(ctx context.Context, sessionID, token string) error
	GetStatus(sessionID, token string) (*usecase.SessionStatus, error)
	ListSessions(token string) []usecase.SessionSummary
	CreateStreamingToken(ctx context.Context, avatarID string) (string, error)
	SessionCount() int
	BypassToken() string
}

// Handler serves the avatar session REST API.
type Handler struct {
	service   AvatarOps
	transport usecase.AvatarTransport
	issuer    *auth.TokenIssuer
	logger    *zap.Logger
}

// NewHandler creates the REST handler.
func NewHandler(service AvatarOps, transport usecase.AvatarTransport, issuer *auth.TokenIssuer, logger *zap.Logger) *Handler {
	return &Handler{
		service:   service,
		transport: transport,
		issuer:    issuer,
		logger:    logger,
	}
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, h *Handler, sttGateway *websocket.STTGateway, avatarHub *websocket.AvatarHub, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":   "ok",
			"service":  "voicebridge-server",
			"sessions": h.service.SessionCount(),
			"clients":  avatarHub.ClientCount(),
		})
	})

	// Avatar session APIs
	e.POST("/session", h.createSession)
	e.GET("/sessions", h.listSessions)
	e.GET("/session/:id", h.getStatus)
	e.POST("/session/:id/speak", h.speak)
	e.POST("/session/:id/stop", h.stopSession)

	// Vendor-compatible streaming token endpoint
	e.POST("/v1/streaming.create_token", h.createStreamingToken)

	// Demo access tokens
	v1 := e.Group("/api/v1")
	v1.POST("/auth/token", h.issueToken)

	// WebSocket endpoints
	e.GET("/ws/stt", sttGateway.Handle)
	e.GET("/ws/avatar", func(c echo.Context) error {
		return websocket.HandleAvatarSocket(avatarHub, c, logger)
	})
}

// requestToken resolves the caller's session token: x-api-key header first,
// then the body value, then the configured open demo token.
func (h *Handler) requestToken(c echo.Context, bodyToken string) string {
	if key := c.Request().Header.Get("x-api-key"); key != "" {
		return key
	}
	if bodyToken != "" {
		return bodyToken
	}
	return h.service.BypassToken()
}

func (h *Handler) createSession(c echo.Context) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusInternalServerError, CreateSessionResponse{
			Success: false,
			Error:   "invalid request format",
		})
	}
	if req.AvatarID == "" {
		return c.JSON(http.StatusInternalServerError, CreateSessionResponse{
			Success: false,
			Error:   "avatar_id is required",
		})
	}

	token := h.requestToken(c, req.Token)

	session, err := h.service.CreateSession(c.Request().Context(), req.AvatarID, req.VoiceID, token)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, CreateSessionResponse{
			Success: false,
			Error:   err.Error(),
		})
	}

	data := &SessionData{
		SessionID: session.ID,
		Status:    string(session.Status),
	}

	bootstrap, err := h.transport.Bootstrap(c.Request().Context(), session)
	if err != nil {
		h.logger.Warn("Transport bootstrap failed",
			zap.String("sessionID", session.ID),
			zap.Error(err))
	} else {
		data.Bootstrap = bootstrap
	}

	return c.JSON(http.StatusOK, CreateSessionResponse{
		Success: true,
		Data:    data,
	})
}

func (h *Handler) speak(c echo.Context) error {
	sessionID := c.Param("id")

	var req SpeakRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusInternalServerError, BasicResponse{
			Success: false,
			Error:   "invalid request format",
		})
	}
	if req.Text == "" {
		return c.JSON(http.StatusInternalServerError, BasicResponse{
			Success: false,
			Error:   "text is required",
		})
	}

	token := h.requestToken(c, req.Token)

	if err := h.service.Speak(c.Request().Context(), sessionID, req.Text, token); err != nil {
		return c.JSON(http.StatusInternalServerError, BasicResponse{
			Success: false,
			Error:   err.Error(),
		})
	}

	return c.JSON(http.StatusOK, BasicResponse{
		Success: true,
		Message: "speak task submitted",
	})
}

func (h *Handler) stopSession(c echo.Context) error {
	sessionID := c.Param("id")

	var req StopRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusInternalServerError, BasicResponse{
			Success: false,
			Error:   "invalid request format",
		})
	}

	token := h.requestToken(c, req.Token)

	if err := h.service.StopSession(c.Request().Context(), sessionID, token); err != nil {
		return c.JSON(http.StatusInternalServerError, BasicResponse{
			Success: false,
			Error:   err.Error(),
		})
	}

	return c.JSON(http.StatusOK, BasicResponse{
		Success: true,
		Message: "session stopped",
	})
}

func (h *Handler) getStatus(c echo.Context) error {
	sessionID := c.Param("id")
	token := h.requestToken(c, c.QueryParam("token"))

	status, err := h.service.GetStatus(sessionID, token)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, StatusResponse{
			Success: false,
			Error:   err.Error(),
		})
	}

	return c.JSON(http.StatusOK, StatusResponse{
		Success: true,
		Data:    status,
	})
}

func (h *Handler) listSessions(c echo.Context) error {
	// Listing is strictly per-token; the open demo token only ever sees its
	// own sessions here.
	token := h.requestToken(c, c.QueryParam("token"))

	sessions := h.service.ListSessions(token)
	return c.JSON(http.StatusOK, ListSessionsResponse{
		Success:  true,
		Sessions: sessions,
	})
}

func (h *Handler) createStreamingToken(c echo.Context) error {
	var req CreateTokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusInternalServerError, CreateTokenResponse{
			Success: false,
			Error:   "invalid request format",
		})
	}
	if req.AvatarID == "" {
		return c.JSON(http.StatusInternalServerError, CreateTokenResponse{
			Success: false,
			Error:   "avatar_id is required",
		})
	}

	token, err := h.service.CreateStreamingToken(c.Request().Context(), req.AvatarID)
	if err != nil {
		h.logger.Error("Streaming token creation failed",
			zap.String("avatarID", req.AvatarID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, CreateTokenResponse{
			Success: false,
			Error:   err.Error(),
		})
	}

	return c.JSON(http.StatusOK, CreateTokenResponse{
		Success: true,
		Token:   token,
	})
}

func (h *Handler) issueToken(c echo.Context) error {
	var req AuthTokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.ClientID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Client ID is required",
		})
	}

	token, err := h.issuer.GenerateClientToken(req.ClientID)
	if err != nil {
		h.logger.Error("Failed to generate client token",
			zap.String("client_id", req.ClientID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	return c.JSON(http.StatusOK, AuthTokenResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(24 * time.Hour),
		ClientID:  req.ClientID,
	})
}
