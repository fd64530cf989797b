package websocket

import (
	"encoding/json"
	"time"
)

// Avatar control events sent by the client.
const (
	EventCreateSession = "create-session"
	EventSpeak         = "speak"
	EventStopSession   = "stop-session"
	EventGetStatus     = "get-status"
	EventPing          = "ping"
)

// Avatar control events sent by the server.
const (
	EventSessionCreated = "session-created"
	EventSessionError   = "session-error"
	EventSpeakStarted   = "speak-started"
	EventSpeakError     = "speak-error"
	EventSessionStopped = "session-stopped"
	EventStopError      = "stop-error"
	EventStatus         = "status-response"
	EventStatusError    = "status-error"
	EventPong           = "pong"
)

// Event is the envelope for all avatar control traffic. Data holds the
// event-specific payload.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// marshalEvent builds a wire-ready envelope around data.
func marshalEvent(event string, data interface{}) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = payload
	}
	return json.Marshal(Event{Event: event, Data: raw})
}

// CreateSessionData asks for a new avatar session. An empty token falls back
// to the open demo token.
type CreateSessionData struct {
	AvatarID string `json:"avatar_id"`
	VoiceID  string `json:"voice_id,omitempty"`
	Token    string `json:"token,omitempty"`
}

// SpeakData submits text for the avatar to speak.
type SpeakData struct {
	Text string `json:"text"`
}

// ErrorData carries a failure back to the client.
type ErrorData struct {
	Error string `json:"error"`
}

// SpeakStartedData confirms a speak task was accepted.
type SpeakStartedData struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message,omitempty"`
}

// SessionStoppedData confirms a session stop.
type SessionStoppedData struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message,omitempty"`
}

// PongData answers a ping.
type PongData struct {
	Timestamp int64 `json:"timestamp"`
}

// NewPongData creates a pong payload stamped with the current time.
func NewPongData() PongData {
	return PongData{Timestamp: time.Now().Unix()}
}

// Speech recognition control message types. The client sends start-stt and
// stop-stt as text frames and raw PCM16 audio as binary frames; the server
// answers with the stt-* types.
const (
	STTTypeStart       = "start-stt"
	STTTypeStop        = "stop-stt"
	STTTypeStarted     = "stt-started"
	STTTypeRecognizing = "stt-recognizing"
	STTTypeResult      = "stt-result"
	STTTypeError       = "stt-error"
	STTTypeStopped     = "stt-stopped"
)

// STTControl is a client-side recognition control frame.
type STTControl struct {
	Type       string `json:"type"`
	Language   string `json:"language,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

// STTStarted acknowledges a recognition session.
type STTStarted struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Language  string `json:"language"`
}

// STTTranscript carries a recognition hypothesis. Interim hypotheses use the
// stt-recognizing type with zero confidence; the final one uses stt-result
// with the recognizer's confidence.
type STTTranscript struct {
	Type       string  `json:"type"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
}

// STTError reports a recognition failure.
type STTError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// STTStopped confirms the recognition session ended.
type STTStopped struct {
	Type string `json:"type"`
}
