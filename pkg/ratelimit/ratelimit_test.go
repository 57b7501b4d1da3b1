package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_Unlimited(t *testing.T) {
	l := NewLimiter(0)

	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("unlimited limiter blocked for %v", time.Since(start))
	}
}

func TestLimiter_Paces(t *testing.T) {
	l := NewLimiter(20) // 50ms interval

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// first token is immediate, the next two wait ~50ms each
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("expected at least ~100ms for 3 waits, got %v", elapsed)
	}
}

func TestLimiter_ContextCancel(t *testing.T) {
	l := NewLimiter(0.1)
	_ = l.Wait(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); err == nil {
		t.Error("expected error when context expires before next token")
	}
}

func TestLimiter_NilSafe(t *testing.T) {
	var l *Limiter
	if err := l.Wait(context.Background()); err != nil {
		t.Errorf("expected nil limiter to be a no-op, got %v", err)
	}
}

func TestPacer_Delay(t *testing.T) {
	if d := (Pacer{}).Delay(); d != 0 {
		t.Errorf("expected zero delay, got %v", d)
	}
	if d := (Pacer{Interval: time.Second}).Delay(); d != time.Second {
		t.Errorf("expected exact interval without jitter, got %v", d)
	}

	p := Pacer{Interval: 100 * time.Millisecond, Jitter: 0.5}
	for i := 0; i < 100; i++ {
		d := p.Delay()
		if d < 50*time.Millisecond || d > 150*time.Millisecond {
			t.Fatalf("jittered delay %v outside [50ms, 150ms]", d)
		}
	}

	clamped := Pacer{Interval: 10 * time.Millisecond, Jitter: 5}
	for i := 0; i < 100; i++ {
		if d := clamped.Delay(); d < 0 || d > 20*time.Millisecond {
			t.Fatalf("clamped delay %v outside [0, 20ms]", d)
		}
	}
}

func TestPacer_WaitCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := (Pacer{Interval: time.Hour}).Wait(ctx); err == nil {
		t.Error("expected canceled context to abort the pause")
	}
	if err := (Pacer{}).Wait(ctx); err == nil {
		t.Error("expected canceled context to surface even with no pause")
	}
}
