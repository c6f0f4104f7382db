package rate

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Limiter gates outbound Gmail and Sheets calls so a run stays under the
// per-user quotas.
type Limiter interface {
	Wait(ctx context.Context) error
}

// TokenBucket releases tokens at a fixed rate and holds up to burst of them.
type TokenBucket struct {
	ticker   *time.Ticker
	tokens   chan struct{}
	stop     chan struct{}
	stopDone chan struct{}
	stopOnce sync.Once
}

// NewTokenBucket returns a limiter that releases rps tokens per second and
// allows bursts of up to burst calls (at least one).
func NewTokenBucket(rps, burst int) *TokenBucket {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	tb := &TokenBucket{
		ticker:   time.NewTicker(time.Second / time.Duration(rps)),
		tokens:   make(chan struct{}, burst),
		stop:     make(chan struct{}),
		stopDone: make(chan struct{}),
	}
	// the first call of a run proceeds immediately
	tb.tokens <- struct{}{}
	go tb.run()
	return tb
}

func (t *TokenBucket) run() {
	defer close(t.stopDone)
	for {
		select {
		case <-t.stop:
			return
		case <-t.ticker.C:
			select {
			case t.tokens <- struct{}{}:
			default:
			}
		}
	}
}

// Wait blocks until a token is available or the context is canceled.
func (t *TokenBucket) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate wait canceled: %w", ctx.Err())
	case <-t.tokens:
		return nil
	}
}

// Stop releases the ticker goroutine. It is safe to call more than once.
func (t *TokenBucket) Stop() {
	t.stopOnce.Do(func() {
		t.ticker.Stop()
		close(t.stop)
	})
	<-t.stopDone
}

var _ Limiter = (*TokenBucket)(nil)
