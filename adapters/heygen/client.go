package heygen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/voicebridge/voicebridge/domain/entities"
	"github.com/voicebridge/voicebridge/domain/repositories"
)

const (
	defaultAPIBaseURL = "https://api.heygen.com"
	defaultTimeout    = 30 * time.Second

	// codeSuccess is the vendor's application-level success code. Anything
	// else in a 200 response is still a failure.
	codeSuccess = 100
)

// Config holds configuration for the HeyGen client.
// Required fields:
// - APIKey: the vendor-issued API credential
// Optional fields with defaults:
// - APIBaseURL: the base URL for the HeyGen API (default: "https://api.heygen.com")
// - Timeout: HTTP client timeout (default: 30s)
type Config struct {
	APIKey     string
	APIBaseURL string
	Timeout    time.Duration
}

// NewConfigFromEnv creates a Config from environment variables.
func NewConfigFromEnv() Config {
	return Config{
		APIKey:     os.Getenv("HEYGEN_API_KEY"),
		APIBaseURL: os.Getenv("HEYGEN_API_URL"),
	}
}

// Client talks to the HeyGen streaming-avatar REST API.
type Client struct {
	apiKey     string
	apiBaseURL string
	httpClient *http.Client
	logger     *zap.Logger
}

// Ensure Client implements the AvatarAPI interface
var _ repositories.AvatarAPI = (*Client)(nil)

// NewClient creates a new HeyGen API client.
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("heygen API key is required")
	}

	apiBaseURL := config.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &Client{
		apiKey:     config.APIKey,
		apiBaseURL: apiBaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger,
	}, nil
}

// envelope is the vendor's JSON response wrapper.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

type newSessionRequest struct {
	Version  string `json:"version"`
	AvatarID string `json:"avatar_id"`
	Voice    *voice `json:"voice,omitempty"`
}

type voice struct {
	VoiceID string `json:"voice_id"`
}

type newSessionData struct {
	SessionID        string               `json:"session_id"`
	URL              string               `json:"url"`
	AccessToken      string               `json:"access_token"`
	ICEServers       []entities.ICEServer `json:"ice_servers"`
	RealtimeEndpoint string               `json:"realtime_endpoint"`
}

// NewSession creates a vendor streaming session and returns the realtime
// transport parameters for the browser to join the media room.
func (c *Client) NewSession(ctx context.Context, avatarID, voiceID string) (*repositories.AvatarSessionInfo, error) {
	req := newSessionRequest{
		Version:  "v2",
		AvatarID: avatarID,
	}
	if voiceID != "" {
		req.Voice = &voice{VoiceID: voiceID}
	}

	c.logger.Info("Creating HeyGen streaming session",
		zap.String("avatarID", avatarID),
		zap.String("voiceID", voiceID))

	env, err := c.post(ctx, "/v1/streaming.new", req, c.apiKey)
	if err != nil {
		return nil, err
	}

	var data newSessionData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to decode session data: %w", err)
	}

	c.logger.Info("HeyGen session created",
		zap.String("remoteSessionID", data.SessionID),
		zap.String("roomURL", data.URL))

	return &repositories.AvatarSessionInfo{
		SessionID:        data.SessionID,
		RoomURL:          data.URL,
		AccessToken:      data.AccessToken,
		ICEServers:       data.ICEServers,
		RealtimeEndpoint: data.RealtimeEndpoint,
	}, nil
}

// Speak submits a synthesis task for the remote session.
func (c *Client) Speak(ctx context.Context, remoteSessionID, text string) error {
	body := map[string]string{
		"session_id": remoteSessionID,
		"text":       text,
	}

	_, err := c.post(ctx, "/v1/streaming.task", body, c.apiKey)
	return err
}

// StopSession closes the remote session. A vendor-side warning (non-success
// application code) is logged but does not fail the stop.
func (c *Client) StopSession(ctx context.Context, remoteSessionID string) error {
	body := map[string]string{
		"session_id": remoteSessionID,
	}

	env, err := c.postRaw(ctx, "/v1/streaming.stop", body, c.apiKey)
	if err != nil {
		return err
	}

	if env.Code != codeSuccess {
		c.logger.Warn("HeyGen reported a warning while stopping session",
			zap.String("remoteSessionID", remoteSessionID),
			zap.Int("code", env.Code),
			zap.String("message", env.Message))
	}
	return nil
}

type tokenData struct {
	Token string `json:"token"`
}

// CreateToken requests a short-lived streaming access token. The credential
// is per-avatar, so it is passed in rather than taken from the client config.
func (c *Client) CreateToken(ctx context.Context, apiKey string) (string, error) {
	env, err := c.post(ctx, "/v1/streaming.create_token", struct{}{}, apiKey)
	if err != nil {
		return "", err
	}

	var data tokenData
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Token == "" {
		return "", &entities.VendorError{
			Vendor:  "heygen",
			Message: "invalid token response format",
		}
	}

	return data.Token, nil
}

// post performs a vendor call and requires the success application code.
func (c *Client) post(ctx context.Context, path string, body interface{}, apiKey string) (*envelope, error) {
	env, err := c.postRaw(ctx, path, body, apiKey)
	if err != nil {
		return nil, err
	}

	if env.Code != codeSuccess {
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		return nil, &entities.VendorError{
			Vendor:     "heygen",
			StatusCode: http.StatusOK,
			Code:       env.Code,
			Message:    msg,
		}
	}
	return env, nil
}

// postRaw performs a vendor call and decodes the envelope without judging
// the application code.
func (c *Client) postRaw(ctx context.Context, path string, body interface{}, apiKey string) (*envelope, error) {
	requestBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBaseURL+path, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &entities.VendorError{
			Vendor:  "heygen",
			Message: fmt.Sprintf("network error: %v", err),
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &entities.VendorError{
			Vendor:     "heygen",
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &env, nil
}
