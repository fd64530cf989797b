package entities

import (
	"testing"
	"time"
)

func TestNewAvatarSession(t *testing.T) {
	session := NewAvatarSession("avatar-1", "voice-1", "token-1")

	if session.ID == "" {
		t.Error("Expected generated session id")
	}
	if session.Status != SessionStatusInitializing {
		t.Errorf("Expected status %s, got %s", SessionStatusInitializing, session.Status)
	}
	if session.AvatarID != "avatar-1" {
		t.Errorf("Expected avatar id avatar-1, got %s", session.AvatarID)
	}
	if session.Token != "token-1" {
		t.Errorf("Expected token token-1, got %s", session.Token)
	}
}

func TestSetStatusForwardOnly(t *testing.T) {
	session := NewAvatarSession("avatar-1", "", "token")

	session.SetStatus(SessionStatusReady)
	if session.Status != SessionStatusReady {
		t.Errorf("Expected ready, got %s", session.Status)
	}

	session.SetStatus(SessionStatusStopped)
	if session.Status != SessionStatusStopped {
		t.Errorf("Expected stopped, got %s", session.Status)
	}

	// Terminal states never transition again.
	session.SetStatus(SessionStatusReady)
	if session.Status != SessionStatusStopped {
		t.Errorf("Expected stopped to be terminal, got %s", session.Status)
	}
}

func TestMarkErrorIsTerminal(t *testing.T) {
	session := NewAvatarSession("avatar-1", "", "token")

	session.MarkError("vendor exploded")
	if session.Status != SessionStatusError {
		t.Errorf("Expected error status, got %s", session.Status)
	}
	if session.LastError != "vendor exploded" {
		t.Errorf("Expected error message recorded, got %q", session.LastError)
	}

	session.SetStatus(SessionStatusStopped)
	if session.Status != SessionStatusError {
		t.Errorf("Expected error to be terminal, got %s", session.Status)
	}

	session.MarkError("second failure")
	if session.LastError != "vendor exploded" {
		t.Errorf("Expected first error kept, got %q", session.LastError)
	}
}

func TestRemoteIDImmutable(t *testing.T) {
	session := NewAvatarSession("avatar-1", "", "token")

	session.SetRemoteID("remote-1")
	session.SetRemoteID("remote-2")

	if session.RemoteID != "remote-1" {
		t.Errorf("Expected remote id remote-1, got %s", session.RemoteID)
	}
}

func TestCanSpeak(t *testing.T) {
	cases := []struct {
		status SessionStatus
		want   bool
	}{
		{SessionStatusInitializing, false},
		{SessionStatusReady, true},
		{SessionStatusSpeaking, true},
		{SessionStatusStopped, false},
		{SessionStatusError, false},
	}

	for _, tc := range cases {
		session := NewAvatarSession("avatar-1", "", "token")
		session.Status = tc.status
		if session.CanSpeak() != tc.want {
			t.Errorf("Status %s: expected CanSpeak %v", tc.status, tc.want)
		}
	}
}

func TestIdleFor(t *testing.T) {
	session := NewAvatarSession("avatar-1", "", "token")
	session.UpdatedAt = time.Now().Add(-11 * time.Minute)

	if idle := session.IdleFor(time.Now()); idle < 10*time.Minute {
		t.Errorf("Expected idle over 10 minutes, got %s", idle)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	session := NewAvatarSession("avatar-1", "", "token")
	session.Transport.ICEServers = []ICEServer{{URLs: []string{"turn:relay"}}}

	clone := session.Clone()
	clone.Status = SessionStatusStopped
	clone.Transport.ICEServers[0] = ICEServer{URLs: []string{"turn:other"}}

	if session.Status == SessionStatusStopped {
		t.Error("Expected clone status change not to affect original")
	}
	if session.Transport.ICEServers[0].URLs[0] != "turn:relay" {
		t.Error("Expected clone ICE server change not to affect original")
	}
}
