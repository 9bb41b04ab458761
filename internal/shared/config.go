package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override values loaded from the config file.
const (
	EnvClientID       = "SP_CLIENT_ID"
	EnvClientSecret   = "SP_CLIENT_SECRET"
	EnvRedirectURI    = "SP_REDIRECT_URI"
	EnvDatabaseURL    = "DATABASE_URL"
	EnvPushgatewayURL = "POPETL_PUSHGATEWAY_URL"
	EnvLogLevel       = "POPETL_LOG_LEVEL"
)

const placeholderPrefix = "your_"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Extract     ExtractConfig     `toml:"extract"`
	Server      ServerConfig      `toml:"server"`
	Metrics     MetricsConfig     `toml:"metrics"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and the most recent OAuth2 token.
type SpotifyConfig struct {
	ClientID     string    `toml:"client_id"`
	ClientSecret string    `toml:"client_secret"`
	RedirectURI  string    `toml:"redirect_uri"`
	AccessToken  string    `toml:"access_token"`
	RefreshToken string    `toml:"refresh_token"`
	TokenType    string    `toml:"token_type"`
	Expiry       time.Time `toml:"expiry"`
}

// DatabaseConfig contains database connection settings.
//
// URL accepts postgres://, postgresql://, sqlite:// and plain SQLite paths.
type DatabaseConfig struct {
	URL          string `toml:"url"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
	ChunkSize    int    `toml:"chunk_size"`
}

// ExtractConfig controls the recently played request.
type ExtractConfig struct {
	Limit     int     `toml:"limit"`
	RateLimit float64 `toml:"rate_limit"`
}

// ServerConfig contains settings for the local OAuth callback listener.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// MetricsConfig configures the Prometheus Pushgateway target. An empty URL disables pushing.
type MetricsConfig struct {
	PushgatewayURL string `toml:"pushgateway_url"`
	Job            string `toml:"job"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Validate reports which credential is missing, naming both the config key and the environment variable.
func (c SpotifyConfig) Validate() error {
	if unset(c.ClientID) {
		return fmt.Errorf("%w: spotify client_id (%s) is not set", ErrMissingCredentials, EnvClientID)
	}
	if unset(c.ClientSecret) {
		return fmt.Errorf("%w: spotify client_secret (%s) is not set", ErrMissingCredentials, EnvClientSecret)
	}
	return nil
}

// unset reports whether v is blank or still a "your_..." template placeholder.
func unset(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.HasPrefix(v, placeholderPrefix)
}

// Map returns the credentials in the form accepted by services.NewSpotifyService.
func (c SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     c.ClientID,
		"client_secret": c.ClientSecret,
		"redirect_uri":  c.RedirectURI,
	}
}

// Token returns the stored [oauth2.Token], or nil when no authorization has happened yet.
func (c SpotifyConfig) Token() *oauth2.Token {
	if c.AccessToken == "" && c.RefreshToken == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
		Expiry:       c.Expiry,
	}
}

// Update stores the token fields. The refresh token is kept when the new token omits it,
// since Spotify does not always rotate refresh tokens.
func (c *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("%w: token cannot be nil", ErrInvalidCredentials)
	}
	c.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		c.RefreshToken = token.RefreshToken
	}
	c.TokenType = token.TokenType
	c.Expiry = token.Expiry
	return nil
}

// Validate checks that a connection string was supplied.
func (c DatabaseConfig) Validate() error {
	if unset(c.URL) {
		return fmt.Errorf("%w: database url (%s) is not set", ErrMissingConfig, EnvDatabaseURL)
	}
	if c.ChunkSize < 0 {
		return fmt.Errorf("%w: chunk_size must not be negative", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with defaults loaded from the embedded example config.
// Credentials and the database url are left empty.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// ResolveConfig loads path when it exists, falls back to [DefaultConfig] otherwise, and applies
// environment overrides with lookup.
func ResolveConfig(path string, lookup func(string) (string, bool)) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := LoadConfig(path)
			if err != nil {
				return nil, err
			}
			config = loaded
		}
	}
	ApplyEnv(config, lookup)
	return config, nil
}

// ApplyEnv overrides config values with any environment variables that are set.
//
// lookup defaults to [os.LookupEnv].
func ApplyEnv(c *Config, lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	set(EnvClientID, &c.Credentials.Spotify.ClientID)
	set(EnvClientSecret, &c.Credentials.Spotify.ClientSecret)
	set(EnvRedirectURI, &c.Credentials.Spotify.RedirectURI)
	set(EnvDatabaseURL, &c.Database.URL)
	set(EnvPushgatewayURL, &c.Metrics.PushgatewayURL)
	set(EnvLogLevel, &c.Log.Level)
}

// SaveConfig writes the configuration back to path, replacing its contents.
func SaveConfig(path string, config *Config) error {
	if config == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
