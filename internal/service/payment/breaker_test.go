package payment

import (
	"testing"
	"time"
)

func newTestBreaker(threshold int, cooldown time.Duration) (*CircuitBreaker, *time.Time) {
	cb := NewCircuitBreaker(threshold, cooldown, nil)
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return now }
	return cb, &now
}

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, 30*time.Second)

	cb.RecordFailure()
	cb.RecordFailure()
	if !cb.Allow() {
		t.Fatal("breaker must stay closed below threshold")
	}

	cb.RecordFailure()
	if cb.Allow() {
		t.Fatal("breaker must open at threshold")
	}
}

func TestCircuitBreaker_AutoResetsAfterCooldown(t *testing.T) {
	cb, now := newTestBreaker(1, 30*time.Second)

	cb.RecordFailure()
	if cb.Allow() {
		t.Fatal("breaker must be open")
	}

	*now = now.Add(29 * time.Second)
	if cb.Allow() {
		t.Fatal("breaker must stay open before cooldown elapses")
	}

	*now = now.Add(time.Second)
	if !cb.Allow() {
		t.Fatal("breaker must auto-close once cooldown elapses")
	}

	// После сброса счётчик начинается заново: одна неудача снова открывает.
	cb.RecordFailure()
	if cb.Allow() {
		t.Fatal("breaker must reopen after a fresh failure past threshold")
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb, _ := newTestBreaker(2, 30*time.Second)

	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	if !cb.Allow() {
		t.Fatal("success must reset the consecutive failure count")
	}
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	cb, now := newTestBreaker(1, 10*time.Second)

	var transitions []bool
	cb.OnStateChange(func(open bool) {
		transitions = append(transitions, open)
	})

	cb.RecordFailure()
	*now = now.Add(11 * time.Second)
	if !cb.Allow() {
		t.Fatal("breaker must auto-close")
	}

	if len(transitions) != 2 || !transitions[0] || transitions[1] {
		t.Fatalf("expected [open close] transitions, got %v", transitions)
	}
}
