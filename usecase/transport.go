package usecase

import (
	"context"
	"fmt"

	"github.com/voicebridge/voicebridge/domain/entities"
)

// Transport kinds selectable via configuration. Exactly one is active per
// deployment.
const (
	TransportIframe = "iframe"
	TransportDirect = "direct"
	TransportSDK    = "sdk"
)

// TransportBootstrap tells the browser how to attach to the avatar's media
// stream for the chosen transport strategy.
type TransportBootstrap struct {
	Kind       string               `json:"kind"`
	IframeURL  string               `json:"iframe_url,omitempty"`
	RoomURL    string               `json:"room_url,omitempty"`
	RoomToken  string               `json:"room_token,omitempty"`
	ICEServers []entities.ICEServer `json:"ice_servers,omitempty"`
	SDKToken   string               `json:"sdk_token,omitempty"`
}

// AvatarTransport derives client attachment instructions from a session.
type AvatarTransport interface {
	Kind() string
	Bootstrap(ctx context.Context, session *entities.AvatarSession) (*TransportBootstrap, error)
}

// NewTransport selects the transport strategy for this deployment.
func NewTransport(kind, iframeBaseURL string, tokens *AvatarService) (AvatarTransport, error) {
	switch kind {
	case TransportIframe:
		return &IframeTransport{BaseURL: iframeBaseURL}, nil
	case TransportDirect, "":
		return &DirectMediaTransport{}, nil
	case TransportSDK:
		return &VendorSDKTransport{tokens: tokens}, nil
	default:
		return nil, fmt.Errorf("unknown avatar transport: %q", kind)
	}
}

// IframeTransport embeds the vendor's hosted player in an iframe.
type IframeTransport struct {
	BaseURL string
}

func (t *IframeTransport) Kind() string { return TransportIframe }

func (t *IframeTransport) Bootstrap(_ context.Context, session *entities.AvatarSession) (*TransportBootstrap, error) {
	return &TransportBootstrap{
		Kind:      TransportIframe,
		IframeURL: fmt.Sprintf("%s/avatar/iframe/%s", t.BaseURL, session.AvatarID),
	}, nil
}

// DirectMediaTransport hands the browser the media-room parameters captured
// at session creation so it joins the room itself.
type DirectMediaTransport struct{}

func (t *DirectMediaTransport) Kind() string { return TransportDirect }

func (t *DirectMediaTransport) Bootstrap(_ context.Context, session *entities.AvatarSession) (*TransportBootstrap, error) {
	if session.Transport.RoomURL == "" {
		return nil, fmt.Errorf("session %s has no realtime transport parameters", session.ID)
	}
	return &TransportBootstrap{
		Kind:       TransportDirect,
		RoomURL:    session.Transport.RoomURL,
		RoomToken:  session.Transport.AccessToken,
		ICEServers: session.Transport.ICEServers,
	}, nil
}

// VendorSDKTransport issues a short-lived vendor token for the official
// browser SDK.
type VendorSDKTransport struct {
	tokens *AvatarService
}

func (t *VendorSDKTransport) Kind() string { return TransportSDK }

func (t *VendorSDKTransport) Bootstrap(ctx context.Context, session *entities.AvatarSession) (*TransportBootstrap, error) {
	token, err := t.tokens.CreateStreamingToken(ctx, session.AvatarID)
	if err != nil {
		return nil, err
	}
	return &TransportBootstrap{
		Kind:     TransportSDK,
		SDKToken: token,
	}, nil
}
