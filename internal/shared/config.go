package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Log         LogConfig         `toml:"log"`
	Gateway     GatewayConfig     `toml:"gateway"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and the last issued token.
type SpotifyConfig struct {
	ClientID     string    `toml:"client_id"`
	ClientSecret string    `toml:"client_secret"`
	RedirectURI  string    `toml:"redirect_uri"`
	AccessToken  string    `toml:"access_token,omitempty"`
	RefreshToken string    `toml:"refresh_token,omitempty"`
	TokenType    string    `toml:"token_type,omitempty"`
	Expiry       time.Time `toml:"expiry,omitempty"`
}

// Token returns the stored token, or nil when the user never logged in.
func (s SpotifyConfig) Token() *oauth2.Token {
	if s.AccessToken == "" && s.RefreshToken == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		Expiry:       s.Expiry,
	}
}

// SetToken stores tok. A refreshed token without a refresh token keeps the previous one.
func (s *SpotifyConfig) SetToken(tok *oauth2.Token) {
	if tok == nil {
		return
	}
	s.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		s.RefreshToken = tok.RefreshToken
	}
	s.TokenType = tok.TokenType
	s.Expiry = tok.Expiry
}

// ClearToken forgets the stored token so the next command asks for a new login.
func (s *SpotifyConfig) ClearToken() {
	s.AccessToken = ""
	s.RefreshToken = ""
	s.TokenType = ""
	s.Expiry = time.Time{}
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains settings for the local OAuth callback server.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr is the host:port pair the callback server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig controls log verbosity and where TUI sessions write their logs.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// GatewayConfig tunes the throttled, retrying HTTP gateway.
type GatewayConfig struct {
	BaseURL       string   `toml:"base_url"`
	Strategy      string   `toml:"strategy"`
	RequestsLimit int      `toml:"requests_limit"`
	Cooldown      Duration `toml:"cooldown"`
	MaxRetries    int      `toml:"max_retries"`
	RetryFallback Duration `toml:"retry_fallback"`
	RetryMargin   Duration `toml:"retry_margin"`
	Timeout       Duration `toml:"timeout"`
}

// PipelineConfig holds the defaults for a discovery run.
type PipelineConfig struct {
	Mode             string `toml:"mode"`
	Threshold        int    `toml:"threshold"`
	TracksPerArtist  int    `toml:"tracks_per_artist"`
	RelatedPerArtist int    `toml:"related_per_artist"`
	PlaylistName     string `toml:"playlist_name"`
	PageSize         int    `toml:"page_size"`
	Concurrency      int    `toml:"concurrency"`
	AddLimit         int    `toml:"add_limit"`
	PlaylistLimit    int    `toml:"playlist_limit"`
	CreateAttempts   int    `toml:"create_attempts"`
	LossyWrites      bool   `toml:"lossy_writes"`
}

// Duration is a [time.Duration] written as a Go duration string ("4s", "500ms") in TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, text, err)
	}
	d.Duration = v
	return nil
}

// Validate reports every out-of-range gateway or pipeline setting at once.
func (c *Config) Validate() error {
	var errs []error
	g := c.Gateway
	if g.Strategy != "cooldown" && g.Strategy != "token-bucket" {
		errs = append(errs, fmt.Errorf("gateway.strategy must be cooldown or token-bucket, got %q", g.Strategy))
	}
	if g.RequestsLimit <= 0 {
		errs = append(errs, fmt.Errorf("gateway.requests_limit must be positive"))
	}

	p := c.Pipeline
	if p.PageSize <= 0 || p.PageSize > 50 {
		errs = append(errs, fmt.Errorf("pipeline.page_size must be between 1 and 50"))
	}
	if p.AddLimit <= 0 || p.AddLimit > 100 {
		errs = append(errs, fmt.Errorf("pipeline.add_limit must be between 1 and 100"))
	}
	if p.PlaylistLimit < p.AddLimit {
		errs = append(errs, fmt.Errorf("pipeline.playlist_limit must be at least add_limit"))
	}
	if p.CreateAttempts <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.create_attempts must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return config, nil
}

// SaveConfig writes config to path, replacing the file.
func SaveConfig(path string, config *Config) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
