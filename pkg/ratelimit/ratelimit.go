package ratelimit

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// Limiter caps the request rate across every caller sharing it.
// It is safe for concurrent use by multiple goroutines.
type Limiter struct {
	lim *rate.Limiter
}

// NewLimiter creates a limiter allowing rps requests per second with a burst
// of one. If rps is <= 0, the limiter does not block.
func NewLimiter(rps float64) *Limiter {
	if rps <= 0 {
		return &Limiter{}
	}
	return &Limiter{lim: rate.NewLimiter(rate.Limit(rps), 1)}
}

// Wait blocks until the next request may go out or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.lim == nil {
		return nil
	}
	return l.lim.Wait(ctx)
}

// Pacer is a fixed pause between pages, optionally jittered by up to
// +/- Jitter*Interval. Jitter is clamped to [0, 1].
type Pacer struct {
	Interval time.Duration
	Jitter   float64
}

// Delay returns the duration of the next pause.
func (p Pacer) Delay() time.Duration {
	if p.Interval <= 0 {
		return 0
	}
	j := p.Jitter
	if j < 0 {
		j = 0
	} else if j > 1 {
		j = 1
	}
	if j == 0 {
		return p.Interval
	}
	factor := (rand.Float64() * 2) - 1.0
	return p.Interval + time.Duration(float64(p.Interval)*j*factor)
}

// Wait sleeps for Delay or until ctx is done.
func (p Pacer) Wait(ctx context.Context) error {
	d := p.Delay()
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
