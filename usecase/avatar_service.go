package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voicebridge/voicebridge/domain/entities"
	"github.com/voicebridge/voicebridge/domain/repositories"
)

const (
	// defaultSettleDelay approximates "the vendor finished speaking". The
	// vendor never surfaces a reliable completion event, so the session
	// optimistically reverts from speaking to ready after this delay.
	defaultSettleDelay = 2 * time.Second

	// defaultRetention keeps a stopped session queryable before removal.
	defaultRetention = time.Minute

	// defaultIdleTimeout is how long a session may sit untouched before the
	// expiry sweep stops it.
	defaultIdleTimeout = 10 * time.Minute

	// defaultBypassToken allows open demo use without real authentication.
	defaultBypassToken = "default"
)

// CredentialSource resolves an avatar identity to a vendor API credential.
type CredentialSource interface {
	APIKeyForAvatar(avatarID string) (string, error)
}

// AvatarServiceConfig tunes the lifecycle timing. Zero values fall back to
// the defaults above.
type AvatarServiceConfig struct {
	SettleDelay time.Duration
	Retention   time.Duration
	IdleTimeout time.Duration
	BypassToken string
}

// AvatarService owns the in-memory table of avatar sessions and mediates all
// interaction with the avatar vendor. All table access goes through the
// mutex: request handlers, settle/retention timers and the expiry sweep run
// on separate goroutines.
type AvatarService struct {
	mu       sync.Mutex
	sessions map[string]*entities.AvatarSession

	api    repositories.AvatarAPI
	creds  CredentialSource
	logger *zap.Logger

	settleDelay time.Duration
	retention   time.Duration
	idleTimeout time.Duration
	bypassToken string
}

// NewAvatarService creates the session lifecycle service.
func NewAvatarService(api repositories.AvatarAPI, creds CredentialSource, config AvatarServiceConfig, logger *zap.Logger) *AvatarService {
	if config.SettleDelay == 0 {
		config.SettleDelay = defaultSettleDelay
	}
	if config.Retention == 0 {
		config.Retention = defaultRetention
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = defaultIdleTimeout
	}
	if config.BypassToken == "" {
		config.BypassToken = defaultBypassToken
	}

	return &AvatarService{
		sessions:    make(map[string]*entities.AvatarSession),
		api:         api,
		creds:       creds,
		logger:      logger,
		settleDelay: config.SettleDelay,
		retention:   config.Retention,
		idleTimeout: config.IdleTimeout,
		bypassToken: config.BypassToken,
	}
}

// CreateSession allocates a session, creates the vendor-side counterpart and
// captures its realtime transport parameters. On vendor failure the session
// is kept in the table in error status so a later status query can explain
// what happened; the error is still returned to the caller.
func (s *AvatarService) CreateSession(ctx context.Context, avatarID, voiceID, token string) (*entities.AvatarSession, error) {
	session := entities.NewAvatarSession(avatarID, voiceID, token)

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	s.logger.Info("Creating avatar session",
		zap.String("sessionID", session.ID),
		zap.String("avatarID", avatarID))

	info, err := s.api.NewSession(ctx, avatarID, voiceID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		session.MarkError(err.Error())
		s.logger.Error("Vendor session creation failed",
			zap.String("sessionID", session.ID),
			zap.Error(err))
		return nil, err
	}

	session.SetRemoteID(info.SessionID)
	session.Transport = entities.RealtimeTransport{
		RoomURL:          info.RoomURL,
		AccessToken:      info.AccessToken,
		ICEServers:       info.ICEServers,
		RealtimeEndpoint: info.RealtimeEndpoint,
	}
	session.SetStatus(entities.SessionStatusReady)

	s.logger.Info("Avatar session ready",
		zap.String("sessionID", session.ID),
		zap.String("remoteSessionID", session.RemoteID))

	return session.Clone(), nil
}

// Speak submits text for synthesis on an existing session. The session must
// be in ready or speaking state. On success the session enters speaking and
// reverts to ready after the settle delay.
func (s *AvatarService) Speak(ctx context.Context, sessionID, text, token string) error {
	s.mu.Lock()
	session, err := s.lookupLocked(sessionID, token)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	if !session.CanSpeak() {
		status := session.Status
		s.mu.Unlock()
		return fmt.Errorf("%w: session is %s", entities.ErrInvalidState, status)
	}
	if session.RemoteID == "" {
		s.mu.Unlock()
		return fmt.Errorf("%w: session has no vendor counterpart", entities.ErrInvalidState)
	}

	session.SetStatus(entities.SessionStatusSpeaking)
	remoteID := session.RemoteID
	s.mu.Unlock()

	s.logger.Info("Submitting speak task",
		zap.String("sessionID", sessionID),
		zap.Int("textLength", len(text)))

	if err := s.api.Speak(ctx, remoteID, text); err != nil {
		s.mu.Lock()
		session.MarkError(err.Error())
		s.mu.Unlock()
		s.logger.Error("Speak task failed",
			zap.String("sessionID", sessionID),
			zap.Error(err))
		return err
	}

	// The vendor gives no completion event, so settle back to ready on a
	// timer unless the session moved on in the meantime.
	time.AfterFunc(s.settleDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if current, ok := s.sessions[sessionID]; ok && current.Status == entities.SessionStatusSpeaking {
			current.SetStatus(entities.SessionStatusReady)
		}
	})

	return nil
}

// StopSession closes a session. Calling it on an already-stopped session is
// a no-op success. The vendor stop is best-effort: vendor-side warnings do
// not block the local transition. The session stays queryable for the
// retention period before it is removed from the table.
func (s *AvatarService) StopSession(ctx context.Context, sessionID, token string) error {
	s.mu.Lock()
	session, err := s.lookupLocked(sessionID, token)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	if session.Status == entities.SessionStatusStopped {
		s.mu.Unlock()
		s.logger.Warn("Session already stopped", zap.String("sessionID", sessionID))
		return nil
	}

	remoteID := session.RemoteID
	s.mu.Unlock()

	s.logger.Info("Stopping avatar session", zap.String("sessionID", sessionID))

	if remoteID != "" {
		if err := s.api.StopSession(ctx, remoteID); err != nil {
			s.mu.Lock()
			session.MarkError(err.Error())
			s.mu.Unlock()
			s.logger.Error("Vendor stop failed",
				zap.String("sessionID", sessionID),
				zap.Error(err))
			return err
		}
	}

	s.mu.Lock()
	// Sessions already in error stay there; stopped is only reached from a
	// live state.
	session.SetStatus(entities.SessionStatusStopped)
	s.mu.Unlock()

	s.scheduleRemoval(sessionID)

	return nil
}

// scheduleRemoval drops a stopped session from the table once the retention
// period has passed.
func (s *AvatarService) scheduleRemoval(sessionID string) {
	time.AfterFunc(s.retention, func() {
		s.mu.Lock()
		delete(s.sessions, sessionID)
		s.mu.Unlock()
		s.logger.Info("Session removed after retention", zap.String("sessionID", sessionID))
	})
}

// SessionStatus is the status-query view of a session.
type SessionStatus struct {
	SessionID string                     `json:"session_id"`
	Status    entities.SessionStatus     `json:"status"`
	Message   string                     `json:"message"`
	Error     string                     `json:"error,omitempty"`
	CreatedAt time.Time                  `json:"created_at"`
	UpdatedAt time.Time                  `json:"updated_at"`
	Transport entities.RealtimeTransport `json:"transport"`
}

// GetStatus returns the current state of a session.
func (s *AvatarService) GetStatus(sessionID, token string) (*SessionStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.lookupLocked(sessionID, token)
	if err != nil {
		return nil, err
	}

	return &SessionStatus{
		SessionID: session.ID,
		Status:    session.Status,
		Message:   entities.StatusMessage(session.Status),
		Error:     session.LastError,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
		Transport: session.Transport,
	}, nil
}

// SessionSummary is one row of the session listing.
type SessionSummary struct {
	SessionID string                 `json:"session_id"`
	AvatarID  string                 `json:"avatar_id"`
	VoiceID   string                 `json:"voice_id,omitempty"`
	Status    entities.SessionStatus `json:"status"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// ListSessions returns every session whose recorded token matches the
// caller's token exactly. No bypass here: the listing is per-caller.
func (s *AvatarService) ListSessions(token string) []SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SessionSummary, 0, len(s.sessions))
	for _, session := range s.sessions {
		if session.Token != token {
			continue
		}
		out = append(out, SessionSummary{
			SessionID: session.ID,
			AvatarID:  session.AvatarID,
			VoiceID:   session.VoiceID,
			Status:    session.Status,
			CreatedAt: session.CreatedAt,
			UpdatedAt: session.UpdatedAt,
		})
	}
	return out
}

// CleanupExpired stops sessions idle longer than the idle timeout. Sessions
// actively speaking are never touched regardless of idle time. Failures on
// individual sessions are logged and the sweep continues.
func (s *AvatarService) CleanupExpired(ctx context.Context) {
	now := time.Now()

	s.mu.Lock()
	var candidates []string
	for id, session := range s.sessions {
		if session.Status == entities.SessionStatusSpeaking {
			continue
		}
		if session.IdleFor(now) > s.idleTimeout {
			candidates = append(candidates, id)
		}
	}
	s.mu.Unlock()

	for _, id := range candidates {
		s.stopIfStillIdle(ctx, id, now)
	}

	if len(candidates) > 0 {
		s.logger.Info("Expired session sweep finished", zap.Int("count", len(candidates)))
	}
}

// stopIfStillIdle re-checks a sweep candidate under the lock before acting on
// it. A speak that landed between candidate collection and here legally moved
// the session to speaking, so the candidacy no longer holds and the session is
// left alone. The stopped transition is taken before the vendor call: once
// stopped, a concurrent speak fails the state check instead of slipping in
// while the lock is released.
func (s *AvatarService) stopIfStillIdle(ctx context.Context, sessionID string, now time.Time) {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	if !ok || session.Status == entities.SessionStatusSpeaking || session.IdleFor(now) <= s.idleTimeout {
		s.mu.Unlock()
		return
	}

	if session.IsTerminal() {
		// Terminal sessions cannot transition again; drop them directly.
		delete(s.sessions, sessionID)
		s.mu.Unlock()
		s.logger.Info("Removed expired terminal session", zap.String("sessionID", sessionID))
		return
	}

	session.SetStatus(entities.SessionStatusStopped)
	remoteID := session.RemoteID
	s.mu.Unlock()

	s.logger.Info("Stopping expired session", zap.String("sessionID", sessionID))

	if remoteID != "" {
		if err := s.api.StopSession(ctx, remoteID); err != nil {
			s.logger.Error("Vendor stop failed for expired session",
				zap.String("sessionID", sessionID),
				zap.Error(err))
		}
	}

	s.scheduleRemoval(sessionID)
}

// CreateStreamingToken resolves the avatar to its vendor credential and
// requests a short-lived client-side access token.
func (s *AvatarService) CreateStreamingToken(ctx context.Context, avatarID string) (string, error) {
	apiKey, err := s.creds.APIKeyForAvatar(avatarID)
	if err != nil {
		return "", err
	}

	s.logger.Info("Creating streaming token", zap.String("avatarID", avatarID))

	token, err := s.api.CreateToken(ctx, apiKey)
	if err != nil {
		s.logger.Error("Streaming token creation failed",
			zap.String("avatarID", avatarID),
			zap.Error(err))
		return "", err
	}
	return token, nil
}

// BypassToken returns the configured open-demo token. Callers that receive
// no token at all fall back to this value so the bypass keeps working when it
// is customized away from the default.
func (s *AvatarService) BypassToken() string {
	return s.bypassToken
}

// SessionCount returns the number of tracked sessions.
func (s *AvatarService) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// lookupLocked finds a session and enforces the simplified demo
// authorization: token equality, with the configured bypass value accepted
// on either side. Callers must hold s.mu.
func (s *AvatarService) lookupLocked(sessionID, token string) (*entities.AvatarSession, error) {
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", entities.ErrSessionNotFound, sessionID)
	}
	if session.Token != token && token != s.bypassToken && session.Token != s.bypassToken {
		return nil, entities.ErrUnauthorized
	}
	return session, nil
}

// IsNotFound reports whether err is a missing-session error.
func IsNotFound(err error) bool {
	return errors.Is(err, entities.ErrSessionNotFound)
}

// IsUnauthorized reports whether err is a token mismatch.
func IsUnauthorized(err error) bool {
	return errors.Is(err, entities.ErrUnauthorized)
}
