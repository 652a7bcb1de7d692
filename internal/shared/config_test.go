package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./dive.db" {
			t.Errorf("expected database path ./dive.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Gateway.RequestsLimit != 50 {
			t.Errorf("expected requests limit 50, got %d", config.Gateway.RequestsLimit)
		}

		if config.Gateway.Cooldown.Duration != 4*time.Second {
			t.Errorf("expected cooldown 4s, got %v", config.Gateway.Cooldown)
		}

		if config.Gateway.RetryMargin.Duration != 500*time.Millisecond {
			t.Errorf("expected retry margin 500ms, got %v", config.Gateway.RetryMargin)
		}

		if config.Pipeline.Threshold != 15 || config.Pipeline.TracksPerArtist != 5 || config.Pipeline.RelatedPerArtist != 10 {
			t.Errorf("unexpected pipeline defaults: %+v", config.Pipeline)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `[database]
path = "/custom/path.db"

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
redirect_uri = "http://localhost:3000/callback"

[gateway]
strategy = "token-bucket"
cooldown = "2s"

[pipeline]
threshold = 3
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0o644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Credentials.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected client_id test_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		if config.Gateway.Strategy != "token-bucket" || config.Gateway.Cooldown.Duration != 2*time.Second {
			t.Errorf("gateway overrides not applied: %+v", config.Gateway)
		}

		if config.Pipeline.Threshold != 3 {
			t.Errorf("expected threshold 3, got %d", config.Pipeline.Threshold)
		}

		if config.Pipeline.TracksPerArtist != 5 {
			t.Errorf("unset values should keep defaults, got tracks_per_artist %d", config.Pipeline.TracksPerArtist)
		}
	})

	t.Run("LoadConfig Missing File", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		if !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("LoadConfig Invalid Duration", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[gateway]\ncooldown = \"soon\"\n"), 0o644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected an error for an unparseable duration")
		}
	})

	t.Run("SaveConfig Round Trips Token", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		expiry := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		config.Credentials.Spotify.SetToken(&oauth2.Token{
			AccessToken:  "access",
			RefreshToken: "refresh",
			TokenType:    "Bearer",
			Expiry:       expiry,
		})

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}

		tok := loaded.Credentials.Spotify.Token()
		if tok == nil {
			t.Fatal("expected a stored token")
		}
		if tok.AccessToken != "access" || tok.RefreshToken != "refresh" {
			t.Errorf("unexpected token: %+v", tok)
		}
		if !tok.Expiry.Equal(expiry) {
			t.Errorf("expected expiry %v, got %v", expiry, tok.Expiry)
		}
		if loaded.Gateway.Cooldown.Duration != 4*time.Second {
			t.Errorf("expected cooldown to survive a save, got %v", loaded.Gateway.Cooldown)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		config := DefaultConfig()
		config.Gateway.Strategy = "leaky"
		config.Pipeline.AddLimit = 500

		err := config.Validate()
		if !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("Validate accepts disabled retries", func(t *testing.T) {
		config := DefaultConfig()
		config.Gateway.MaxRetries = -1
		if err := config.Validate(); err != nil {
			t.Errorf("expected negative max_retries to be valid, got %v", err)
		}
	})
}

func TestSpotifyToken(t *testing.T) {
	t.Run("no token before login", func(t *testing.T) {
		var s SpotifyConfig
		if s.Token() != nil {
			t.Error("expected nil token")
		}
	})

	t.Run("refresh keeps previous refresh token", func(t *testing.T) {
		s := SpotifyConfig{AccessToken: "old", RefreshToken: "keep"}
		s.SetToken(&oauth2.Token{AccessToken: "new"})

		if s.AccessToken != "new" || s.RefreshToken != "keep" {
			t.Errorf("unexpected credentials after refresh: %+v", s)
		}
	})

	t.Run("clear", func(t *testing.T) {
		s := SpotifyConfig{ClientID: "id", AccessToken: "a", RefreshToken: "r"}
		s.ClearToken()

		if s.Token() != nil {
			t.Error("expected token to be cleared")
		}
		if s.ClientID != "id" {
			t.Error("client id should survive ClearToken")
		}
	})
}
