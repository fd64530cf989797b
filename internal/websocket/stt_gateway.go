package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/voicebridge/voicebridge/domain/repositories"
)

// STTGateway upgrades browser connections and bridges their audio frames to
// the streaming recognizer.
type STTGateway struct {
	stt             repositories.SpeechToText
	defaultLanguage string
	logger          *zap.Logger
}

// NewSTTGateway creates the speech recognition gateway.
func NewSTTGateway(stt repositories.SpeechToText, defaultLanguage string, logger *zap.Logger) *STTGateway {
	return &STTGateway{
		stt:             stt,
		defaultLanguage: defaultLanguage,
		logger:          logger,
	}
}

// Handle upgrades the request and runs the recognition protocol until the
// peer disconnects.
func (g *STTGateway) Handle(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		g.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &sttClient{
		gateway: g,
		conn:    conn,
		send:    make(chan WriteData, 256),
		logger:  g.logger,
	}

	go writePump(conn, client.send)
	go client.readPump()

	return nil
}

// sttClient is one browser connection on the recognition endpoint.
type sttClient struct {
	gateway *STTGateway
	conn    *websocket.Conn
	send    chan WriteData
	logger  *zap.Logger

	mu        sync.Mutex
	closed    bool
	sessionID string
	stream    repositories.SpeechStream
}

// readPump pumps frames from the websocket connection into the recognizer.
func (c *sttClient) readPump() {
	defer func() {
		c.teardown()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processControl(message)
		case websocket.BinaryMessage:
			c.processAudioChunk(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// processControl handles start-stt and stop-stt frames.
func (c *sttClient) processControl(message []byte) {
	var msg STTControl
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Error("Failed to parse control message", zap.Error(err))
		c.sendJSON(STTError{Type: STTTypeError, Error: "invalid control message"})
		return
	}

	switch msg.Type {
	case STTTypeStart:
		c.handleStart(msg)
	case STTTypeStop:
		c.handleStop()
	default:
		c.logger.Warn("Unknown control message type", zap.String("type", msg.Type))
	}
}

// handleStart opens a recognition stream. A second start while one is active
// replaces the old stream.
func (c *sttClient) handleStart(msg STTControl) {
	language := msg.Language
	if language == "" {
		language = c.gateway.defaultLanguage
	}

	config := repositories.AudioConfig{
		SampleRate: 16000,
		Encoding:   "LINEAR16",
		Language:   language,
	}
	if msg.SampleRate > 0 {
		config.SampleRate = msg.SampleRate
	}

	stream, err := c.gateway.stt.StartStream(context.Background(), config)
	if err != nil {
		c.logger.Error("Failed to start recognition stream", zap.Error(err))
		c.sendJSON(STTError{Type: STTTypeError, Error: "failed to start speech recognition"})
		return
	}

	sessionID := uuid.New().String()

	c.mu.Lock()
	old := c.stream
	c.stream = stream
	c.sessionID = sessionID
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}

	go c.forwardResults(stream, language)

	c.logger.Info("Recognition session started",
		zap.String("sessionID", sessionID),
		zap.String("language", language))

	c.sendJSON(STTStarted{Type: STTTypeStarted, SessionID: sessionID, Language: language})
}

// handleStop closes the recognition stream. The final transcript (if any) and
// the stt-stopped confirmation are delivered by the forwarding goroutine once
// the recognizer drains.
func (c *sttClient) handleStop() {
	c.mu.Lock()
	stream := c.stream
	c.stream = nil
	c.mu.Unlock()

	if stream == nil {
		c.sendJSON(STTStopped{Type: STTTypeStopped})
		return
	}

	if err := stream.Close(); err != nil {
		c.logger.Error("Failed to close recognition stream", zap.Error(err))
	}
}

// processAudioChunk forwards one binary PCM16 frame to the recognizer. Audio
// received with no active stream is an error to the client and is dropped.
func (c *sttClient) processAudioChunk(data []byte) {
	c.mu.Lock()
	stream := c.stream
	sessionID := c.sessionID
	c.mu.Unlock()

	if stream == nil {
		c.logger.Warn("Received audio chunk but no active recognition stream")
		c.sendJSON(STTError{Type: STTTypeError, Error: "no active speech recognition session"})
		return
	}

	if err := stream.Write(data); err != nil {
		c.logger.Error("Failed to stream audio data",
			zap.String("sessionID", sessionID),
			zap.Error(err))
		c.sendJSON(STTError{Type: STTTypeError, Error: "failed to process audio"})
	}
}

// forwardResults relays recognizer hypotheses to the client until the stream
// ends, then reports either the terminal error or a clean stop.
func (c *sttClient) forwardResults(stream repositories.SpeechStream, language string) {
	for result := range stream.Results() {
		msgType := STTTypeRecognizing
		if result.IsFinal {
			msgType = STTTypeResult
		}
		lang := result.Language
		if lang == "" {
			lang = language
		}
		c.sendJSON(STTTranscript{
			Type:       msgType,
			Text:       result.Text,
			Confidence: result.Confidence,
			Language:   lang,
		})
	}

	c.mu.Lock()
	if c.stream == stream {
		c.stream = nil
	}
	c.mu.Unlock()

	if err := stream.Err(); err != nil {
		c.logger.Error("Recognition stream failed", zap.Error(err))
		c.sendJSON(STTError{Type: STTTypeError, Error: err.Error()})
		return
	}
	c.sendJSON(STTStopped{Type: STTTypeStopped})
}

// sendJSON queues a text frame, dropping it if the peer cannot keep up or is
// gone.
func (c *sttClient) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("Dropping message, send buffer full")
	}
}

// teardown releases the recognition stream and the connection after the peer
// disconnects.
func (c *sttClient) teardown() {
	c.mu.Lock()
	stream := c.stream
	c.stream = nil
	alreadyClosed := c.closed
	c.closed = true
	c.mu.Unlock()

	if stream != nil {
		stream.Close()
	}
	if !alreadyClosed {
		close(c.send)
	}
	c.conn.Close()
}
