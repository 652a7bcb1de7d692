package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/dive/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"

	defaultRedirectURI = "http://127.0.0.1:3000/callback"
)

// Scopes are the permissions dive asks for: reading the library and playlists, and writing new playlists.
var Scopes = []string{
	"user-read-private",
	"user-read-email",
	"user-library-read",
	"playlist-read-private",
	"playlist-read-collaborative",
	"playlist-modify-public",
	"playlist-modify-private",
}

// NewOAuthConfig builds the authorization-code flow configuration from the stored credentials.
func NewOAuthConfig(cfg shared.SpotifyConfig) (*oauth2.Config, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirect := cfg.RedirectURI
	if redirect == "" {
		redirect = defaultRedirectURI
	}

	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  redirect,
		Scopes:       Scopes,
		Endpoint:     oauth2.Endpoint{AuthURL: spotifyAuthURL, TokenURL: spotifyTokenURL},
	}, nil
}

// AuthURL returns the URL the user visits to grant access.
func AuthURL(cfg *oauth2.Config, state string) string {
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// refreshableTokenSource reports every new access token the wrapped source hands out.
type refreshableTokenSource struct {
	mu       sync.Mutex
	source   oauth2.TokenSource
	last     string
	callback func(*oauth2.Token)
}

func (s *refreshableTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.source.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	changed := tok.AccessToken != s.last
	s.last = tok.AccessToken
	s.mu.Unlock()

	if changed && s.callback != nil {
		s.callback(tok)
	}
	return tok, nil
}

// TokenCredentials adapts an OAuth token to the gateway's credentials contract.
type TokenCredentials struct {
	mu       sync.Mutex
	source   oauth2.TokenSource
	expired  bool
	onExpire func()
}

// NewTokenCredentials wraps tok. onRefresh sees each refreshed token; onExpire
// runs once when the API rejects the token. Either callback may be nil.
func NewTokenCredentials(ctx context.Context, cfg *oauth2.Config, tok *oauth2.Token, onRefresh func(*oauth2.Token), onExpire func()) *TokenCredentials {
	c := &TokenCredentials{onExpire: onExpire}
	if tok == nil {
		c.expired = true
		return c
	}
	c.source = &refreshableTokenSource{
		source:   cfg.TokenSource(ctx, tok),
		last:     tok.AccessToken,
		callback: onRefresh,
	}
	return c
}

func (c *TokenCredentials) Token(context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expired || c.source == nil {
		return "", shared.ErrNotAuthenticated
	}

	tok, err := c.source.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	return tok.AccessToken, nil
}

func (c *TokenCredentials) Expire() {
	c.mu.Lock()
	already := c.expired
	c.expired = true
	c.mu.Unlock()

	if !already && c.onExpire != nil {
		c.onExpire()
	}
}
