package api

import (
	"time"

	"github.com/voicebridge/voicebridge/usecase"
)

// CreateSessionRequest starts a new avatar session. Token may instead be
// supplied through the x-api-key header; an empty value falls back to the
// open demo token.
type CreateSessionRequest struct {
	AvatarID string `json:"avatar_id" validate:"required"`
	VoiceID  string `json:"voice_id,omitempty"`
	Token    string `json:"token,omitempty"`
}

// SessionData is the payload of a successful session creation.
type SessionData struct {
	SessionID string                      `json:"session_id"`
	Status    string                      `json:"status"`
	Bootstrap *usecase.TransportBootstrap `json:"bootstrap,omitempty"`
}

// CreateSessionResponse is the session creation envelope.
type CreateSessionResponse struct {
	Success bool         `json:"success"`
	Data    *SessionData `json:"data,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// SpeakRequest submits text for an existing session to speak.
type SpeakRequest struct {
	Text  string `json:"text" validate:"required"`
	Token string `json:"token,omitempty"`
}

// StopRequest closes an existing session.
type StopRequest struct {
	Token string `json:"token,omitempty"`
}

// BasicResponse is the envelope for operations with no payload.
type BasicResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StatusResponse is the session status envelope.
type StatusResponse struct {
	Success bool                   `json:"success"`
	Data    *usecase.SessionStatus `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// ListSessionsResponse is the session listing envelope.
type ListSessionsResponse struct {
	Success  bool                     `json:"success"`
	Sessions []usecase.SessionSummary `json:"sessions"`
	Error    string                   `json:"error,omitempty"`
}

// CreateTokenRequest requests a short-lived vendor streaming token for the
// official browser SDK.
type CreateTokenRequest struct {
	AvatarID string `json:"avatar_id" validate:"required"`
}

// CreateTokenResponse is the streaming token envelope.
type CreateTokenResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Error   string `json:"error,omitempty"`
}

// AuthTokenRequest requests a demo access token.
type AuthTokenRequest struct {
	ClientID string `json:"client_id" validate:"required"`
}

// AuthTokenResponse carries a signed demo access token.
type AuthTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	ClientID  string    `json:"client_id"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
