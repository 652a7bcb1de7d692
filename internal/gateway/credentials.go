package gateway

import (
	"context"
	"sync"

	"github.com/desertthunder/dive/internal/shared"
)

// Credentials supplies the bearer token for each request.
//
// Expire is called when the API rejects the token; later calls to Token
// should fail with [shared.ErrNotAuthenticated] until the user logs in again.
type Credentials interface {
	Token(ctx context.Context) (string, error)
	Expire()
}

// StaticToken is a fixed bearer token.
type StaticToken struct {
	mu      sync.Mutex
	token   string
	expired bool
}

func NewStaticToken(token string) *StaticToken {
	return &StaticToken{token: token}
}

func (s *StaticToken) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expired || s.token == "" {
		return "", shared.ErrNotAuthenticated
	}
	return s.token, nil
}

func (s *StaticToken) Expire() {
	s.mu.Lock()
	s.expired = true
	s.mu.Unlock()
}
