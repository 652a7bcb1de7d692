package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle admits outbound requests.
type Throttle interface {
	Acquire(ctx context.Context) error
}

const (
	StrategyCooldown    = "cooldown"
	StrategyTokenBucket = "token-bucket"
)

// NewThrottle builds the throttle named by strategy.
func NewThrottle(strategy string, limit int, window time.Duration) (Throttle, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("throttle limit must be positive, got %d", limit)
	}
	switch strategy {
	case StrategyCooldown, "":
		return NewCooldownThrottle(limit, window), nil
	case StrategyTokenBucket:
		return NewTokenBucket(limit, window), nil
	}
	return nil, fmt.Errorf("unknown throttle strategy %q", strategy)
}

// CooldownThrottle counts admitted requests. Once the count passes limit, each
// caller sleeps cooldown * floor(count/limit) and then moves the count back down,
// resetting it to zero when it returns to the limit.
type CooldownThrottle struct {
	mu       sync.Mutex
	count    int
	limit    int
	cooldown time.Duration
	sleep    func(ctx context.Context, d time.Duration) error

	throttled int
}

func NewCooldownThrottle(limit int, cooldown time.Duration) *CooldownThrottle {
	return &CooldownThrottle{limit: limit, cooldown: cooldown, sleep: sleepContext}
}

func (t *CooldownThrottle) Acquire(ctx context.Context) error {
	t.mu.Lock()
	t.count++
	n := t.count
	if n <= t.limit {
		t.mu.Unlock()
		return nil
	}
	t.throttled++
	t.mu.Unlock()

	err := t.sleep(ctx, t.cooldown*time.Duration(n/t.limit))

	t.mu.Lock()
	if t.count-1 == t.limit {
		t.count = 0
	} else {
		t.count--
	}
	t.mu.Unlock()
	return err
}

// Throttled is the number of requests that had to wait.
func (t *CooldownThrottle) Throttled() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.throttled
}

// TokenBucket spreads limit requests evenly over window with a burst of limit.
type TokenBucket struct {
	limiter *rate.Limiter
}

func NewTokenBucket(limit int, window time.Duration) *TokenBucket {
	every := window / time.Duration(limit)
	return &TokenBucket{limiter: rate.NewLimiter(rate.Every(every), limit)}
}

func (b *TokenBucket) Acquire(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
