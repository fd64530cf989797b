package repositories

import (
	"context"

	"github.com/voicebridge/voicebridge/domain/entities"
)

// AvatarSessionInfo is what the vendor returns on session creation: its own
// session id plus the realtime-transport parameters the browser needs to
// join the media room.
type AvatarSessionInfo struct {
	SessionID        string
	RoomURL          string
	AccessToken      string
	ICEServers       []entities.ICEServer
	RealtimeEndpoint string
}

// AvatarAPI is the session-oriented surface of the avatar vendor. None of
// these calls are idempotent at the vendor, so callers must not retry
// automatically on ambiguous failures.
type AvatarAPI interface {
	// NewSession creates a vendor session for the given avatar and optional
	// voice and returns the realtime transport parameters.
	NewSession(ctx context.Context, avatarID, voiceID string) (*AvatarSessionInfo, error)

	// Speak asks the vendor to synthesize and render the given text on the
	// remote session.
	Speak(ctx context.Context, remoteSessionID, text string) error

	// StopSession closes the remote session. Vendor-side warnings are logged
	// and swallowed; only transport-level failures are returned.
	StopSession(ctx context.Context, remoteSessionID string) error

	// CreateToken requests a short-lived streaming access token using the
	// given vendor API credential.
	CreateToken(ctx context.Context, apiKey string) (string, error)
}
