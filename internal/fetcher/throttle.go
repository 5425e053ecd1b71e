package fetcher

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Throttle enforces a polite delay of Base plus uniform [0, Jitter) before
// each fetch. One Throttle belongs to one source worker.
type Throttle struct {
	base   time.Duration
	jitter time.Duration
	clock  Clock

	mu  sync.Mutex
	rng *rand.Rand
}

// NewThrottle creates a Throttle with one second of jitter.
func NewThrottle(base time.Duration, clock Clock, rng *rand.Rand) *Throttle {
	if clock == nil {
		clock = SystemClock{}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Throttle{base: base, jitter: time.Second, clock: clock, rng: rng}
}

// WithJitter overrides the jitter span. Zero disables jitter.
func (t *Throttle) WithJitter(d time.Duration) *Throttle {
	t.jitter = d
	return t
}

// Delay returns the next delay without sleeping.
func (t *Throttle) Delay() time.Duration {
	if t.base <= 0 && t.jitter <= 0 {
		return 0
	}
	t.mu.Lock()
	f := t.rng.Float64()
	t.mu.Unlock()
	return t.base + time.Duration(f*float64(t.jitter))
}

// Wait sleeps for the next delay.
func (t *Throttle) Wait(ctx context.Context) error {
	d := t.Delay()
	if d <= 0 {
		return ctx.Err()
	}
	return t.clock.Sleep(ctx, d)
}
