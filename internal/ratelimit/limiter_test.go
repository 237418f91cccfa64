package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestPoliteness_EnforcesInterval(t *testing.T) {
	p := NewPoliteness(50 * time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := p.Wait(context.Background()); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	}
	// First request is immediate, the next two each wait the interval.
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("3 requests took %v, want at least ~100ms", elapsed)
	}
}

func TestPoliteness_SingleBurst(t *testing.T) {
	p := NewPoliteness(time.Hour)
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := p.Wait(ctx); err == nil {
		t.Error("second immediate request proceeded despite interval")
	}
}

func TestPoliteness_ContextCancel(t *testing.T) {
	p := NewPoliteness(time.Hour)
	if err := p.Wait(context.Background()); err != nil { // drain the token
		t.Fatalf("first Wait failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := p.Wait(ctx); err == nil {
		t.Error("Wait returned nil with an expired context")
	}
}

func TestNewPoliteness_DefaultInterval(t *testing.T) {
	p := NewPoliteness(0)
	if p == nil {
		t.Fatal("nil limiter")
	}
	if err := p.Wait(context.Background()); err != nil {
		t.Errorf("limiter with default interval rejected the first request: %v", err)
	}
}
