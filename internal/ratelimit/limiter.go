// Package ratelimit enforces the politeness interval between consecutive
// requests to the records portal.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter gates navigation so the site never sees requests faster than the
// configured minimum interval.
type Limiter interface {
	// Wait blocks until the next request may proceed, or the context ends.
	Wait(ctx context.Context) error
}

// Politeness is a token-bucket limiter with burst 1: exactly one request per
// interval, no catching up after idle periods beyond a single token.
type Politeness struct {
	limiter *rate.Limiter
}

// NewPoliteness creates a limiter with the given minimum inter-request
// delay. A non-positive interval falls back to the 2s default.
func NewPoliteness(interval time.Duration) *Politeness {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Politeness{
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Wait blocks until a request may proceed.
func (p *Politeness) Wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return p.limiter.Wait(ctx)
}
