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

	"github.com/voicebridge/voicebridge/usecase"
)

// AvatarHub maintains the set of active avatar control connections.
type AvatarHub struct {
	// Registered clients.
	clients map[string]*AvatarClient

	// Register requests from the clients.
	register chan *AvatarClient

	// Unregister requests from clients.
	unregister chan *AvatarClient

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	service   *usecase.AvatarService
	transport usecase.AvatarTransport

	logger *zap.Logger
}

// NewAvatarHub creates the avatar control hub.
func NewAvatarHub(service *usecase.AvatarService, transport usecase.AvatarTransport, logger *zap.Logger) *AvatarHub {
	return &AvatarHub{
		clients:    make(map[string]*AvatarClient),
		register:   make(chan *AvatarClient),
		unregister: make(chan *AvatarClient),
		service:    service,
		transport:  transport,
		logger:     logger,
	}
}

// Run starts the hub's main loop
func (h *AvatarHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.clientID] = client
			h.mu.Unlock()
			h.logger.Info("Avatar client registered", zap.String("clientID", client.clientID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.clientID]; ok {
				delete(h.clients, client.clientID)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("Avatar client unregistered", zap.String("clientID", client.clientID))
		}
	}
}

// ClientCount returns the number of connected avatar clients.
func (h *AvatarHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// AvatarClient is a middleman between one websocket connection and the
// session service. At most one avatar session is bound per connection.
type AvatarClient struct {
	hub *AvatarHub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	clientID string

	logger *zap.Logger

	// Session bound by create-session; guarded by mutex.
	sessionID string
	token     string

	mutex sync.Mutex
}

// HandleAvatarSocket handles avatar control requests from the peer.
func HandleAvatarSocket(hub *AvatarHub, c echo.Context, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &AvatarClient{
		hub:      hub,
		conn:     conn,
		send:     make(chan WriteData, 256),
		clientID: uuid.New().String(),
		logger:   logger,
	}

	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go writePump(conn, client.send)
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the session
// service.
func (c *AvatarClient) readPump() {
	defer func() {
		c.stopBoundSession()
		c.hub.unregister <- c
		c.conn.Close()
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

		if messageType != websocket.TextMessage {
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
			continue
		}

		c.processEvent(message)
	}
}

// processEvent dispatches one control event.
func (c *AvatarClient) processEvent(message []byte) {
	var event Event
	if err := json.Unmarshal(message, &event); err != nil {
		c.logger.Error("Failed to parse event", zap.Error(err))
		c.sendEvent(EventSessionError, ErrorData{Error: "invalid event format"})
		return
	}

	switch event.Event {
	case EventCreateSession:
		c.handleCreateSession(event.Data)
	case EventSpeak:
		c.handleSpeak(event.Data)
	case EventStopSession:
		c.handleStopSession()
	case EventGetStatus:
		c.handleGetStatus()
	case EventPing:
		c.sendEvent(EventPong, NewPongData())
	default:
		c.logger.Warn("Unknown event", zap.String("event", event.Event))
	}
}

// sessionCreatedData confirms session creation and tells the browser how to
// attach to the avatar's media stream.
type sessionCreatedData struct {
	SessionID string                      `json:"session_id"`
	Status    string                      `json:"status"`
	Bootstrap *usecase.TransportBootstrap `json:"bootstrap,omitempty"`
}

func (c *AvatarClient) handleCreateSession(data json.RawMessage) {
	var req CreateSessionData
	if err := json.Unmarshal(data, &req); err != nil {
		c.sendEvent(EventSessionError, ErrorData{Error: "invalid create-session payload"})
		return
	}
	if req.AvatarID == "" {
		c.sendEvent(EventSessionError, ErrorData{Error: "avatar_id is required"})
		return
	}
	if req.Token == "" {
		req.Token = c.hub.service.BypassToken()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	session, err := c.hub.service.CreateSession(ctx, req.AvatarID, req.VoiceID, req.Token)
	if err != nil {
		c.logger.Error("Session creation failed",
			zap.String("clientID", c.clientID),
			zap.Error(err))
		c.sendEvent(EventSessionError, ErrorData{Error: err.Error()})
		return
	}

	c.mutex.Lock()
	c.sessionID = session.ID
	c.token = req.Token
	c.mutex.Unlock()

	response := sessionCreatedData{
		SessionID: session.ID,
		Status:    string(session.Status),
	}

	bootstrap, err := c.hub.transport.Bootstrap(ctx, session)
	if err != nil {
		// The session itself is fine; the client can still query status and
		// speak. Report the missing bootstrap instead of failing the create.
		c.logger.Warn("Transport bootstrap failed",
			zap.String("sessionID", session.ID),
			zap.Error(err))
	} else {
		response.Bootstrap = bootstrap
	}

	c.sendEvent(EventSessionCreated, response)
}

func (c *AvatarClient) handleSpeak(data json.RawMessage) {
	var req SpeakData
	if err := json.Unmarshal(data, &req); err != nil {
		c.sendEvent(EventSpeakError, ErrorData{Error: "invalid speak payload"})
		return
	}
	if req.Text == "" {
		c.sendEvent(EventSpeakError, ErrorData{Error: "text is required"})
		return
	}

	sessionID, token, ok := c.boundSession()
	if !ok {
		c.sendEvent(EventSpeakError, ErrorData{Error: "no session bound to this connection"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := c.hub.service.Speak(ctx, sessionID, req.Text, token); err != nil {
		c.sendEvent(EventSpeakError, ErrorData{Error: err.Error()})
		return
	}

	c.sendEvent(EventSpeakStarted, SpeakStartedData{
		SessionID: sessionID,
		Message:   "speak task submitted",
	})
}

func (c *AvatarClient) handleStopSession() {
	sessionID, token, ok := c.boundSession()
	if !ok {
		c.sendEvent(EventStopError, ErrorData{Error: "no session bound to this connection"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := c.hub.service.StopSession(ctx, sessionID, token); err != nil {
		c.sendEvent(EventStopError, ErrorData{Error: err.Error()})
		return
	}

	c.mutex.Lock()
	c.sessionID = ""
	c.token = ""
	c.mutex.Unlock()

	c.sendEvent(EventSessionStopped, SessionStoppedData{
		SessionID: sessionID,
		Message:   "session stopped",
	})
}

func (c *AvatarClient) handleGetStatus() {
	sessionID, token, ok := c.boundSession()
	if !ok {
		c.sendEvent(EventStatusError, ErrorData{Error: "no session bound to this connection"})
		return
	}

	status, err := c.hub.service.GetStatus(sessionID, token)
	if err != nil {
		c.sendEvent(EventStatusError, ErrorData{Error: err.Error()})
		return
	}

	c.sendEvent(EventStatus, status)
}

// stopBoundSession closes the bound session when the peer disconnects, so an
// abandoned browser tab does not leave a vendor session running until the
// expiry sweep.
func (c *AvatarClient) stopBoundSession() {
	sessionID, token, ok := c.boundSession()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.hub.service.StopSession(ctx, sessionID, token); err != nil {
		c.logger.Error("Failed to stop session on disconnect",
			zap.String("sessionID", sessionID),
			zap.Error(err))
	}
}

func (c *AvatarClient) boundSession() (sessionID, token string, ok bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.sessionID, c.token, c.sessionID != ""
}

// sendEvent queues one control event, dropping it if the peer cannot keep up.
func (c *AvatarClient) sendEvent(event string, data interface{}) {
	payload, err := marshalEvent(event, data)
	if err != nil {
		c.logger.Error("Failed to marshal event",
			zap.String("event", event),
			zap.Error(err))
		return
	}

	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("Dropping event, send buffer full", zap.String("event", event))
	}
}
