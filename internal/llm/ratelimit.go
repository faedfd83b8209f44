package llm

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"
)

// ErrLimiterClosed is returned to callers still waiting when the client is
// closed.
var ErrLimiterClosed = errors.New("llm: rate limiter closed")

// tokenBucket spaces model calls to at most rate per second, letting up to
// burst calls through back to back. Tokens are refilled when a call reserves
// one, so an idle session costs nothing.
type tokenBucket struct {
	mu     sync.Mutex
	rate   float64
	burst  float64
	tokens float64
	last   time.Time
	now    func() time.Time

	closed    chan struct{}
	closeOnce sync.Once
}

// newTokenBucket returns nil (no limit) when rps <= 0.
func newTokenBucket(rps float64, burst int) *tokenBucket {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &tokenBucket{
		rate:   rps,
		burst:  float64(burst),
		tokens: float64(burst),
		now:    time.Now,
		closed: make(chan struct{}),
	}
}

// reserve takes a token and returns how long the caller has to wait before
// spending it. The balance may go negative; later callers queue behind.
func (b *tokenBucket) reserve() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	if !b.last.IsZero() {
		b.tokens = math.Min(b.burst, b.tokens+now.Sub(b.last).Seconds()*b.rate)
	}
	b.last = now
	b.tokens--
	if b.tokens >= 0 {
		return 0
	}
	return time.Duration(-b.tokens / b.rate * float64(time.Second))
}

// release hands back a token whose caller gave up waiting.
func (b *tokenBucket) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = math.Min(b.burst, b.tokens+1)
}

// Wait blocks until the caller may issue a request.
func (b *tokenBucket) Wait(ctx context.Context) error {
	if b == nil {
		return nil
	}
	select {
	case <-b.closed:
		return NewPermanentError(ErrLimiterClosed)
	default:
	}
	d := b.reserve()
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		b.release()
		return ctx.Err()
	case <-b.closed:
		b.release()
		return NewPermanentError(ErrLimiterClosed)
	}
}

func (b *tokenBucket) Close() {
	if b == nil {
		return
	}
	b.closeOnce.Do(func() { close(b.closed) })
}
