package entities

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the lifecycle status of an avatar session
type SessionStatus string

const (
	SessionStatusInitializing SessionStatus = "initializing"
	SessionStatusReady        SessionStatus = "ready"
	SessionStatusSpeaking     SessionStatus = "speaking"
	SessionStatusStopped      SessionStatus = "stopped"
	SessionStatusError        SessionStatus = "error"
)

// ICEServer is one STUN/TURN relay entry handed back by the avatar vendor
// for the browser's WebRTC connection.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// RealtimeTransport holds the media-room connection parameters the vendor
// returns on session creation. Empty fields mean the vendor did not supply
// that piece for the chosen avatar.
type RealtimeTransport struct {
	RoomURL          string      `json:"room_url,omitempty"`
	AccessToken      string      `json:"access_token,omitempty"`
	ICEServers       []ICEServer `json:"ice_servers,omitempty"`
	RealtimeEndpoint string      `json:"realtime_endpoint,omitempty"`
}

// AvatarSession is one tracked connection to the avatar vendor. The session
// table in the lifecycle service is the only owner; callers receive copies.
type AvatarSession struct {
	ID        string            `json:"session_id"`
	AvatarID  string            `json:"avatar_id"`
	VoiceID   string            `json:"voice_id,omitempty"`
	Token     string            `json:"-"`
	Status    SessionStatus     `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	RemoteID  string            `json:"-"`
	Transport RealtimeTransport `json:"transport"`
	LastError string            `json:"error,omitempty"`
}

// NewAvatarSession creates a session in the initializing state with a fresh id.
func NewAvatarSession(avatarID, voiceID, token string) *AvatarSession {
	now := time.Now()
	return &AvatarSession{
		ID:        uuid.NewString(),
		AvatarID:  avatarID,
		VoiceID:   voiceID,
		Token:     token,
		Status:    SessionStatusInitializing,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetStatus transitions the session and refreshes UpdatedAt. Transitions are
// one-directional: a terminal session never changes status again.
func (s *AvatarSession) SetStatus(status SessionStatus) {
	if s.IsTerminal() {
		return
	}
	s.Status = status
	s.UpdatedAt = time.Now()
}

// MarkError records the failure and moves the session to the terminal error
// state. The session stays in the table so status queries can explain what
// happened.
func (s *AvatarSession) MarkError(msg string) {
	if s.IsTerminal() {
		return
	}
	s.Status = SessionStatusError
	s.LastError = msg
	s.UpdatedAt = time.Now()
}

// SetRemoteID records the vendor-assigned session id. Once set it never
// changes; a second call is ignored.
func (s *AvatarSession) SetRemoteID(remoteID string) {
	if s.RemoteID != "" {
		return
	}
	s.RemoteID = remoteID
}

// IsTerminal reports whether the session reached a final state.
func (s *AvatarSession) IsTerminal() bool {
	return s.Status == SessionStatusStopped || s.Status == SessionStatusError
}

// CanSpeak reports whether a speak request is allowed in the current state.
func (s *AvatarSession) CanSpeak() bool {
	return s.Status == SessionStatusReady || s.Status == SessionStatusSpeaking
}

// IdleFor reports how long ago the session was last updated.
func (s *AvatarSession) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.UpdatedAt)
}

// Clone returns a copy safe to hand outside the lifecycle service's lock.
func (s *AvatarSession) Clone() *AvatarSession {
	c := *s
	if s.Transport.ICEServers != nil {
		c.Transport.ICEServers = make([]ICEServer, len(s.Transport.ICEServers))
		copy(c.Transport.ICEServers, s.Transport.ICEServers)
	}
	return &c
}

// StatusMessage returns a short human-readable description for a status.
func StatusMessage(status SessionStatus) string {
	switch status {
	case SessionStatusInitializing:
		return "session is being created"
	case SessionStatusReady:
		return "avatar ready to speak"
	case SessionStatusSpeaking:
		return "avatar is speaking"
	case SessionStatusStopped:
		return "session stopped"
	case SessionStatusError:
		return "session failed"
	default:
		return "unknown"
	}
}
