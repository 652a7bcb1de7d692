package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/dive/internal/server"
	"github.com/desertthunder/dive/internal/services"
	"github.com/desertthunder/dive/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// AuthLogin performs the OAuth2 authorization code flow for Spotify.
//
// Starts a local HTTP server, opens the browser for user authorization and saves the exchanged tokens.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	oauthConfig, err := services.NewOAuthConfig(r.config.Credentials.Spotify)
	if err != nil {
		return fmt.Errorf("%w (set them in %s)", err, r.configPath)
	}

	token, err := r.doOAuth(ctx, oauthConfig)
	if err != nil {
		return err
	}

	if err := r.saveTokens(token); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", r.configPath)
	r.writePlain("You can now use: dive run\n")
	return nil
}

// AuthLogout forgets the stored tokens.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if r.config.Credentials.Spotify.Token() == nil {
		return r.writePlain("Not logged in\n")
	}
	if err := r.clearTokens(); err != nil {
		return err
	}
	return r.writePlain("✓ Logged out\n")
}

// AuthStatus shows who the stored token belongs to.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	spotify, err := r.spotifyService(ctx)
	if err != nil {
		return err
	}

	user, err := spotify.CurrentUser(ctx)
	if err != nil {
		return r.explain(err)
	}

	r.writePlain("✓ Logged in as %s (%s)\n", user.DisplayName, user.ID)
	if user.Product != "" {
		r.writePlain("Plan: %s\n", user.Product)
	}
	if expiry := r.config.Credentials.Spotify.Expiry; !expiry.IsZero() {
		r.writePlain("Token expires: %s\n", expiry.Local().Format(time.RFC1123))
	}
	return nil
}

// doOAuth runs the callback server until the browser comes back with a code or the wait times out.
func (r *Runner) doOAuth(ctx context.Context, oauthConfig *oauth2.Config) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := services.AuthURL(oauthConfig, state)
	oauthHandler := server.NewOAuthHandler(oauthConfig, state)
	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger), server.LogRequests(r.logger))
	router.Handler(oauthHandler)

	serveCtx, stop := context.WithCancel(ctx)
	defer stop()

	addr := r.config.Server.Addr()
	done, err := server.Serve(serveCtx, addr, router, r.logger)
	if err != nil {
		return nil, err
	}
	r.logger.Infof("started OAuth callback server at %v", addr)

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%v timeout)...\n", authTimeout)

	waitCtx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	token, err := oauthHandler.Wait(waitCtx)
	stop()
	<-done

	if err != nil {
		return nil, fmt.Errorf("authorization failed: %w", err)
	}
	return token, nil
}
