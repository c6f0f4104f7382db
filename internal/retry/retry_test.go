package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nalgeon/be"
)

type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	_ = ctx
	r.delays = append(r.delays, d)
	return nil
}

func TestDoSucceedsAfterFailures(t *testing.T) {
	rec := &recordingSleeper{}
	p := Policy{MaxAttempts: 4, InitialDelay: time.Second, Factor: 2, Sleep: rec.sleep}

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	be.Err(t, err, nil)
	be.Equal(t, calls, 3)
	be.Equal(t, rec.delays, []time.Duration{time.Second, 2 * time.Second})
}

func TestDoExhaustsAttempts(t *testing.T) {
	rec := &recordingSleeper{}
	p := Policy{MaxAttempts: 4, InitialDelay: 100 * time.Millisecond, Factor: 2, Sleep: rec.sleep}
	boom := errors.New("boom")

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return boom
	})
	be.True(t, errors.Is(err, boom))
	be.Equal(t, calls, 4)
	be.Equal(t, rec.delays, []time.Duration{
		100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond,
	})
}

func TestDoStopsOnPermanentError(t *testing.T) {
	rec := &recordingSleeper{}
	permanent := errors.New("bad request")
	p := Policy{
		MaxAttempts: 5,
		Sleep:       rec.sleep,
		Retryable:   func(err error) bool { return !errors.Is(err, permanent) },
	}

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return permanent
	})
	be.True(t, errors.Is(err, permanent))
	be.Equal(t, calls, 1)
	be.Equal(t, len(rec.delays), 0)
}

func TestDoZeroValueUsesDefaults(t *testing.T) {
	rec := &recordingSleeper{}
	p := Policy{Sleep: rec.sleep}

	calls := 0
	_ = p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("nope")
	})
	be.Equal(t, calls, DefaultMaxAttempts)
	be.Equal(t, len(rec.delays), DefaultMaxAttempts-1)
}

func TestDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 3, InitialDelay: time.Hour}

	calls := 0
	err := p.Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("down")
	})
	be.True(t, errors.Is(err, context.Canceled))
	be.Equal(t, calls, 1)
}
