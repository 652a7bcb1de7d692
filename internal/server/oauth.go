package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/desertthunder/dive/internal/shared"
	"golang.org/x/oauth2"
)

// OAuthResult is the outcome of one authorization code callback.
type OAuthResult struct {
	Token *oauth2.Token
	Err   error
}

// OAuthHandler receives the authorization code callback, checks the state and
// exchanges the code for a token. Only the first callback is processed.
type OAuthHandler struct {
	config *oauth2.Config
	state  string
	path   string

	mu      sync.Mutex
	handled bool
	once    sync.Once
	result  chan OAuthResult
}

// NewOAuthHandler serves the path of config.RedirectURL ("/callback" when it has none).
// state must match the state sent with the authorization URL.
func NewOAuthHandler(config *oauth2.Config, state string) *OAuthHandler {
	path := "/callback"
	if u, err := url.Parse(config.RedirectURL); err == nil && u.Path != "" {
		path = u.Path
	}
	return &OAuthHandler{
		config: config,
		state:  state,
		path:   path,
		result: make(chan OAuthResult, 1),
	}
}

func (h *OAuthHandler) Routes() []string {
	return []string{"GET " + h.path}
}

func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.handled {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.handled = true
	h.mu.Unlock()

	q := r.URL.Query()
	if q.Get("state") != h.state {
		h.send(OAuthResult{Err: fmt.Errorf("%w: state mismatch", shared.ErrAuthFailed)})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := q.Get("code")
	if code == "" {
		h.send(OAuthResult{Err: fmt.Errorf("%w: %s", shared.ErrAuthFailed, q.Get("error"))})
		http.Error(w, "Authorization denied", http.StatusBadRequest)
		return
	}

	token, err := h.config.Exchange(r.Context(), code)
	if err != nil {
		h.send(OAuthResult{Err: fmt.Errorf("%w: token exchange: %w", shared.ErrAuthFailed, err)})
		http.Error(w, "Token exchange failed", http.StatusBadGateway)
		return
	}

	h.send(OAuthResult{Token: token})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, successPage)
}

func (h *OAuthHandler) send(result OAuthResult) {
	h.once.Do(func() {
		h.result <- result
		close(h.result)
	})
}

// Result receives exactly one result and is then closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.result
}

// Wait blocks until the callback was processed or ctx is done.
func (h *OAuthHandler) Wait(ctx context.Context) (*oauth2.Token, error) {
	select {
	case res := <-h.result:
		return res.Token, res.Err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: no callback received: %w", shared.ErrTimeout, ctx.Err())
	}
}

const successPage = `<!DOCTYPE html>
<html>
<head>
    <title>dive</title>
    <style>
        body { font-family: sans-serif; display: flex; align-items: center; justify-content: center;
               height: 100vh; margin: 0; background: #121212; color: #b3b3b3; }
        h1 { color: #1DB954; }
    </style>
</head>
<body>
    <div>
        <h1>Logged in to Spotify</h1>
        <p>You can close this tab and go back to the terminal.</p>
    </div>
</body>
</html>
`
