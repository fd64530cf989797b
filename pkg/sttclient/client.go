// Package sttclient is the client side of the speech recognition websocket
// protocol: start a session, stream binary PCM16 frames, receive interim and
// final transcripts.
package sttclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrHandshakeTimeout means the server never confirmed the recognition
// session. The caller may retry with a fresh Dial.
var ErrHandshakeTimeout = errors.New("timed out waiting for recognition session to start")

const defaultHandshakeTimeout = 10 * time.Second

// Config describes one recognition connection.
type Config struct {
	// URL of the recognition websocket endpoint.
	URL string

	// Language for recognition, e.g. "zh-TW". Empty uses the server default.
	Language string

	// HandshakeTimeout bounds the wait for the session confirmation. Zero
	// uses the ten second default.
	HandshakeTimeout time.Duration

	// OnRecognizing receives interim transcripts.
	OnRecognizing func(text string)

	// OnResult receives the final transcript with its confidence.
	OnResult func(text string, confidence float64)

	// OnError receives server-side recognition failures after the handshake.
	OnError func(message string)

	Logger *zap.Logger
}

// message mirrors the server's recognition wire frames.
type message struct {
	Type       string  `json:"type"`
	Language   string  `json:"language,omitempty"`
	SessionID  string  `json:"session_id,omitempty"`
	Text       string  `json:"text,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Client is one live recognition connection. It satisfies the audio pipeline
// sink contract: Active reports whether frames will be accepted, SendAudio
// pushes one frame.
type Client struct {
	cfg  Config
	conn *websocket.Conn

	writeMu sync.Mutex

	mu        sync.Mutex
	active    bool
	sessionID string

	done chan struct{}
}

// Dial connects, requests a recognition session and waits for the server to
// confirm it. No audio may be sent before Dial returns successfully.
func Dial(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}

	conn, _, err := websocket.DefaultDialer.Dial(cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.URL, err)
	}

	c := &Client{
		cfg:  cfg,
		conn: conn,
		done: make(chan struct{}),
	}

	if err := c.writeJSON(message{Type: "start-stt", Language: cfg.Language}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to request recognition session: %w", err)
	}

	started := make(chan error, 1)
	go c.readLoop(started)

	select {
	case err := <-started:
		if err != nil {
			conn.Close()
			return nil, err
		}
	case <-time.After(cfg.HandshakeTimeout):
		conn.Close()
		return nil, ErrHandshakeTimeout
	}

	return c, nil
}

// Active reports whether the recognition session accepts audio.
func (c *Client) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// SessionID returns the server-assigned recognition session id.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// SendAudio pushes one binary PCM16 frame. Frames sent while the session is
// not active are dropped silently.
func (c *Client) SendAudio(data []byte) error {
	if !c.Active() {
		return nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Stop asks the server to finish recognition. The final transcript and the
// stopped confirmation arrive through the handlers.
func (c *Client) Stop() error {
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()

	return c.writeJSON(message{Type: "stop-stt"})
}

// Close tears the connection down without waiting for a final transcript.
func (c *Client) Close() error {
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()

	return c.conn.Close()
}

// Done is closed once the server confirms the session ended or the
// connection drops.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) writeJSON(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// readLoop dispatches server frames. The first stt-started or stt-error
// resolves the handshake; everything after goes to the handlers.
func (c *Client) readLoop(started chan<- error) {
	handshakeDone := false
	defer close(c.done)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if !handshakeDone {
				started <- fmt.Errorf("connection closed during handshake: %w", err)
			}
			c.mu.Lock()
			c.active = false
			c.mu.Unlock()
			return
		}

		var msg message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.cfg.Logger.Warn("Ignoring malformed frame", zap.Error(err))
			continue
		}

		switch msg.Type {
		case "stt-started":
			c.mu.Lock()
			c.active = true
			c.sessionID = msg.SessionID
			c.mu.Unlock()
			if !handshakeDone {
				handshakeDone = true
				started <- nil
			}

		case "stt-recognizing":
			if c.cfg.OnRecognizing != nil {
				c.cfg.OnRecognizing(msg.Text)
			}

		case "stt-result":
			if c.cfg.OnResult != nil {
				c.cfg.OnResult(msg.Text, msg.Confidence)
			}

		case "stt-error":
			if !handshakeDone {
				handshakeDone = true
				started <- fmt.Errorf("recognition session rejected: %s", msg.Error)
				return
			}
			if c.cfg.OnError != nil {
				c.cfg.OnError(msg.Error)
			}

		case "stt-stopped":
			c.mu.Lock()
			c.active = false
			c.mu.Unlock()
			return

		default:
			c.cfg.Logger.Debug("Ignoring unknown frame", zap.String("type", msg.Type))
		}
	}
}
