package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testBreaker(threshold int) (*CircuitBreaker, *time.Time, *[]CircuitState) {
	var transitions []CircuitState
	b := NewCircuitBreaker("discord-bot", CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: threshold,
		OpenTimeout:      5 * time.Second,
		HalfOpenMaxReq:   1,
	}, WithStateChangeHook(func(_ string, _, to CircuitState) {
		transitions = append(transitions, to)
	}))
	now := time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	return b, &now, &transitions
}

func TestCircuitBreaker_BasicTransitions(t *testing.T) {
	b, now, transitions := testBreaker(2)

	if err := b.Allow(); err != nil {
		t.Fatalf("expected allow in closed state: %v", err)
	}
	b.RecordFailure()
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("expected closed after first failure, got %s", state)
	}
	b.RecordFailure()
	if state := b.State(); state != CircuitStateOpen {
		t.Fatalf("expected open after threshold failures, got %s", state)
	}
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected circuit open error, got %v", err)
	}

	*now = now.Add(6 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("expected half-open probe to pass, got %v", err)
	}
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected second half-open probe to be rejected, got %v", err)
	}
	b.RecordSuccess()
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("expected closed after successful probe, got %s", state)
	}

	want := []CircuitState{CircuitStateOpen, CircuitStateHalfOpen, CircuitStateClosed}
	if len(*transitions) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, *transitions)
	}
	for i := range want {
		if (*transitions)[i] != want[i] {
			t.Fatalf("expected transitions %v, got %v", want, *transitions)
		}
	}
}

func TestCircuitBreaker_Execute(t *testing.T) {
	b, _, _ := testBreaker(1)
	boom := errors.New("boom")

	if err := b.Execute(t.Context(), func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	called := false
	err := b.Execute(t.Context(), func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Fatalf("expected open breaker to short-circuit, err=%v called=%v", err, called)
	}
}

func TestCircuitBreaker_ExecuteIgnoresCallerCancellation(t *testing.T) {
	b, _, _ := testBreaker(1)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_ = b.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("expected cancellation not to trip breaker, got %s", state)
	}
}

func TestCircuitBreaker_DisabledPassesThrough(t *testing.T) {
	b := NewCircuitBreaker("qstash", CircuitBreakerConfig{Enabled: false, FailureThreshold: 1})
	boom := errors.New("boom")
	for range 3 {
		if err := b.Execute(t.Context(), func(context.Context) error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("expected passthrough error, got %v", err)
		}
	}
}
