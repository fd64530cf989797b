package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/voicebridge/voicebridge/domain/entities"
)

// Config holds process-wide settings, loaded from the environment.
type Config struct {
	Port string

	// Avatar vendor API.
	HeyGenAPIURL string
	HeyGenAPIKey string

	// Path to the avatar credential table (YAML).
	AvatarCredentialsPath string

	// Transport strategy: iframe | direct | sdk.
	AvatarTransport string
	IframeBaseURL   string

	// Token accepted on either side of the session auth check for open demo
	// use.
	BypassToken string

	// Secret for demo access tokens.
	JWTSecret string

	// STT provider: google | mock.
	STTProvider     string
	DefaultLanguage string

	CleanupInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults
// suitable for local demo use.
func Load() *Config {
	cfg := &Config{
		Port:                  getEnv("PORT", "8080"),
		HeyGenAPIURL:          os.Getenv("HEYGEN_API_URL"),
		HeyGenAPIKey:          os.Getenv("HEYGEN_API_KEY"),
		AvatarCredentialsPath: getEnv("AVATAR_CREDENTIALS_PATH", "avatars.yaml"),
		AvatarTransport:       getEnv("AVATAR_TRANSPORT", "direct"),
		IframeBaseURL:         getEnv("IFRAME_BASE_URL", "http://localhost:8080"),
		BypassToken:           getEnv("SESSION_BYPASS_TOKEN", "default"),
		JWTSecret:             getEnv("JWT_SECRET", "voicebridge-demo-secret"),
		STTProvider:           getEnv("STT_PROVIDER", "google"),
		DefaultLanguage:       getEnv("STT_DEFAULT_LANGUAGE", "zh-TW"),
		CleanupInterval:       5 * time.Minute,
	}
	if v := os.Getenv("CLEANUP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.CleanupInterval = d
		}
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// AvatarCredential maps one avatar identity to the environment variable
// holding its vendor API key.
type AvatarCredential struct {
	AvatarID  string `yaml:"avatar_id"`
	Name      string `yaml:"name"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// AvatarCredentials is the avatar→credential lookup table. Lookup is an
// exact match on the avatar id.
type AvatarCredentials struct {
	avatars []AvatarCredential
	getenv  func(string) string
}

type avatarCredentialsFile struct {
	Avatars []AvatarCredential `yaml:"avatars"`
}

// LoadAvatarCredentials parses the YAML credential table at path.
func LoadAvatarCredentials(path string) (*AvatarCredentials, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read avatar credentials: %w", err)
	}
	return ParseAvatarCredentials(raw)
}

// ParseAvatarCredentials parses a YAML credential table from memory.
func ParseAvatarCredentials(raw []byte) (*AvatarCredentials, error) {
	var file avatarCredentialsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse avatar credentials: %w", err)
	}
	return &AvatarCredentials{avatars: file.Avatars, getenv: os.Getenv}, nil
}

// APIKeyForAvatar resolves an avatar id to its vendor API key. Both a
// missing table entry and an unset environment variable are configuration
// errors.
func (c *AvatarCredentials) APIKeyForAvatar(avatarID string) (string, error) {
	for _, a := range c.avatars {
		if a.AvatarID != avatarID {
			continue
		}
		if key := c.getenv(a.APIKeyEnv); key != "" {
			return key, nil
		}
		return "", fmt.Errorf("%w: environment variable %s not set", entities.ErrNoCredential, a.APIKeyEnv)
	}
	return "", fmt.Errorf("%w: %s", entities.ErrNoCredential, avatarID)
}

// Avatars returns the configured avatar entries.
func (c *AvatarCredentials) Avatars() []AvatarCredential {
	return c.avatars
}
