package payment_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	"github.com/vladislavdragonenkov/retail/internal/service/payment"
)

// countingStrategy считает попытки и отдаёт результаты по порядку.
type countingStrategy struct {
	mu      sync.Mutex
	calls   int
	results []error
	ref     string
}

func (s *countingStrategy) Authorize(int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.calls < len(s.results) {
		err = s.results[s.calls]
	}
	s.calls++
	if err != nil {
		return "", err
	}
	return s.ref, nil
}

func (s *countingStrategy) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func fastConfig() payment.Config {
	cfg := payment.DefaultConfig()
	cfg.BackoffBase = time.Millisecond
	cfg.BackoffMax = 2 * time.Millisecond
	cfg.BackoffJitter = 0
	return cfg
}

func declined(reason string) error {
	return fmt.Errorf("%w: %s", domain.ErrPaymentDeclined, reason)
}

func TestGatewayAuthorize_DispatchCaseInsensitive(t *testing.T) {
	g := payment.NewGateway(fastConfig(), nil, nil, nil)
	g.Register("card", payment.NewCardStrategy(nil))

	ref, err := g.Authorize(context.Background(), 1000, "CARD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(ref, "TXN-") {
		t.Fatalf("expected card strategy to handle CARD, got %q", ref)
	}
}

func TestGatewayAuthorize_UnknownMethodFallsBack(t *testing.T) {
	g := payment.NewGateway(fastConfig(), nil, nil, nil)
	g.Register("card", payment.NewCardStrategy(nil))

	ref, err := g.Authorize(context.Background(), 1000, "giftcard")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(ref, "PAY-") {
		t.Fatalf("expected fallback PAY- reference, got %q", ref)
	}
}

func TestGatewayAuthorize_RetriesUntilSuccess(t *testing.T) {
	s := &countingStrategy{
		results: []error{declined("flaky"), declined("flaky"), nil},
		ref:     "TXN-1",
	}
	g := payment.NewGateway(fastConfig(), nil, nil, nil)
	g.Register("card", s)

	ref, err := g.Authorize(context.Background(), 1000, "card")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref != "TXN-1" {
		t.Fatalf("expected TXN-1, got %q", ref)
	}
	if s.Calls() != 3 {
		t.Fatalf("expected 3 attempts, got %d", s.Calls())
	}
}

func TestGatewayAuthorize_ExhaustsAttempts(t *testing.T) {
	s := &countingStrategy{
		results: []error{declined("no"), declined("no"), declined("no")},
	}
	g := payment.NewGateway(fastConfig(), nil, nil, nil)
	g.Register("cash", s)

	_, err := g.Authorize(context.Background(), 1000, "cash")
	if !errors.Is(err, domain.ErrPaymentDeclined) {
		t.Fatalf("expected ErrPaymentDeclined, got %v", err)
	}
	if s.Calls() != 3 {
		t.Fatalf("expected exactly MaxAttempts attempts, got %d", s.Calls())
	}
}

func TestGatewayAuthorize_OpenBreakerShortCircuits(t *testing.T) {
	cfg := fastConfig()
	cfg.BreakerThreshold = 1
	breaker := payment.NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown, nil)

	s := &countingStrategy{results: []error{declined("down")}}
	g := payment.NewGateway(cfg, breaker, nil, nil)
	g.Register("card", s)

	// Первая авторизация открывает breaker после единственной неудачи.
	if _, err := g.Authorize(context.Background(), 1000, "card"); !errors.Is(err, domain.ErrPaymentDeclined) {
		t.Fatalf("expected decline, got %v", err)
	}
	attempts := s.Calls()

	// Вторая не должна трогать стратегию вовсе.
	if _, err := g.Authorize(context.Background(), 1000, "card"); !errors.Is(err, domain.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if s.Calls() != attempts {
		t.Fatalf("strategy must not be invoked while breaker is open")
	}
}

func TestGatewayAuthorize_StopsRetryingWhenBreakerTrips(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxAttempts = 5
	cfg.BreakerThreshold = 2
	breaker := payment.NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown, nil)

	s := &countingStrategy{
		results: []error{declined("down"), declined("down"), declined("down"), declined("down"), declined("down")},
	}
	g := payment.NewGateway(cfg, breaker, nil, nil)
	g.Register("card", s)

	_, err := g.Authorize(context.Background(), 1000, "card")
	// Исходом остаётся отказ последней попытки, не circuit_open.
	if !errors.Is(err, domain.ErrPaymentDeclined) {
		t.Fatalf("expected ErrPaymentDeclined, got %v", err)
	}
	if s.Calls() != cfg.BreakerThreshold {
		t.Fatalf("expected retries to stop at breaker threshold, got %d attempts", s.Calls())
	}
}

func TestGatewayAuthorize_ContextCancelledDuringBackoff(t *testing.T) {
	cfg := fastConfig()
	cfg.BackoffBase = time.Second
	cfg.BackoffMax = time.Second

	s := &countingStrategy{results: []error{declined("flaky"), nil}, ref: "TXN-2"}
	g := payment.NewGateway(cfg, nil, nil, nil)
	g.Register("card", s)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	if _, err := g.Authorize(ctx, 1000, "card"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestGatewayRefund_IgnoresOpenBreaker(t *testing.T) {
	cfg := fastConfig()
	cfg.BreakerThreshold = 1
	breaker := payment.NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown, nil)
	breaker.RecordFailure()

	g := payment.NewGateway(cfg, breaker, nil, nil)

	ref, err := g.Refund(context.Background(), "TXN-42", 1000)
	if err != nil {
		t.Fatalf("refund must not consult the breaker: %v", err)
	}
	if !strings.HasPrefix(ref, "REF-") {
		t.Fatalf("expected REF- reference, got %q", ref)
	}
}
