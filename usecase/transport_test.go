package usecase

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/voicebridge/voicebridge/domain/entities"
)

func TestNewTransportSelection(t *testing.T) {
	cases := []struct {
		kind string
		want string
	}{
		{TransportIframe, TransportIframe},
		{TransportDirect, TransportDirect},
		{TransportSDK, TransportSDK},
		{"", TransportDirect},
	}

	for _, tc := range cases {
		transport, err := NewTransport(tc.kind, "http://localhost", nil)
		if err != nil {
			t.Fatalf("NewTransport(%q) failed: %v", tc.kind, err)
		}
		if transport.Kind() != tc.want {
			t.Errorf("NewTransport(%q): expected %s, got %s", tc.kind, tc.want, transport.Kind())
		}
	}

	if _, err := NewTransport("webrtc-handrolled", "", nil); err == nil {
		t.Error("Expected error for unknown transport kind")
	}
}

func TestIframeTransportBootstrap(t *testing.T) {
	transport := &IframeTransport{BaseURL: "http://localhost:8080"}
	session := entities.NewAvatarSession("avatar-1", "", "token")

	bootstrap, err := transport.Bootstrap(context.Background(), session)
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	if bootstrap.Kind != TransportIframe {
		t.Errorf("Expected iframe kind, got %s", bootstrap.Kind)
	}
	if bootstrap.IframeURL != "http://localhost:8080/avatar/iframe/avatar-1" {
		t.Errorf("Unexpected iframe URL %s", bootstrap.IframeURL)
	}
}

func TestDirectMediaTransportBootstrap(t *testing.T) {
	transport := &DirectMediaTransport{}

	session := entities.NewAvatarSession("avatar-1", "", "token")
	if _, err := transport.Bootstrap(context.Background(), session); err == nil {
		t.Error("Expected error when session has no transport parameters")
	}

	session.Transport = entities.RealtimeTransport{
		RoomURL:     "wss://media.example.com/room",
		AccessToken: "room-token",
		ICEServers:  []entities.ICEServer{{URLs: []string{"turn:relay"}}},
	}

	bootstrap, err := transport.Bootstrap(context.Background(), session)
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	if bootstrap.RoomURL != "wss://media.example.com/room" {
		t.Errorf("Expected room URL, got %s", bootstrap.RoomURL)
	}
	if bootstrap.RoomToken != "room-token" {
		t.Errorf("Expected room token, got %s", bootstrap.RoomToken)
	}
	if len(bootstrap.ICEServers) != 1 {
		t.Errorf("Expected ICE servers passed through, got %d", len(bootstrap.ICEServers))
	}
}

func TestVendorSDKTransportBootstrap(t *testing.T) {
	api := &fakeAvatarAPI{}
	service := NewAvatarService(api, &fakeCredentials{keys: map[string]string{"avatar-1": "key-1"}},
		AvatarServiceConfig{}, zap.NewNop())

	transport := &VendorSDKTransport{tokens: service}
	session := entities.NewAvatarSession("avatar-1", "", "token")

	bootstrap, err := transport.Bootstrap(context.Background(), session)
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	if bootstrap.SDKToken != "streaming-token-for-key-1" {
		t.Errorf("Expected vendor SDK token, got %s", bootstrap.SDKToken)
	}

	unmapped := entities.NewAvatarSession("avatar-x", "", "token")
	if _, err := transport.Bootstrap(context.Background(), unmapped); err == nil {
		t.Error("Expected error for unmapped avatar")
	}
}
