package payment

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

// Config параметры retry и circuit breaker платёжного шлюза.
type Config struct {
	MaxAttempts   int
	BackoffBase   time.Duration
	BackoffMax    time.Duration
	BackoffJitter time.Duration

	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:      3,
		BackoffBase:      100 * time.Millisecond,
		BackoffMax:       2 * time.Second,
		BackoffJitter:    50 * time.Millisecond,
		BreakerThreshold: 5,
		BreakerCooldown:  30 * time.Second,
	}
}

// Gateway — платёжный шлюз: диспетчеризация по стратегиям метода оплаты,
// retry с экспоненциальной задержкой и общий circuit breaker поверх всего.
type Gateway struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
	fallback   Strategy

	cfg     Config
	breaker *CircuitBreaker
	logger  *log.Entry
}

var _ domain.PaymentGateway = (*Gateway)(nil)

// NewGateway создаёт шлюз. breaker == nil означает собственный breaker
// с параметрами из cfg; fallback == nil — безусловно одобряющий запасной путь.
func NewGateway(cfg Config, breaker *CircuitBreaker, fallback Strategy, logger *log.Entry) *Gateway {
	if logger == nil {
		logger = log.New().WithField("component", "payment-gateway")
	}
	if breaker == nil {
		breaker = NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown, logger)
	}
	if fallback == nil {
		fallback = NewFallbackStrategy(nil)
	}

	return &Gateway{
		strategies: make(map[string]Strategy),
		fallback:   fallback,
		cfg:        cfg,
		breaker:    breaker,
		logger:     logger,
	}
}

// Breaker возвращает circuit breaker шлюза (для подписки метрик).
func (g *Gateway) Breaker() *CircuitBreaker {
	return g.breaker
}

// Register привязывает стратегию к методу оплаты. Имя метода
// нормализуется к нижнему регистру.
func (g *Gateway) Register(method string, s Strategy) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.strategies[strings.ToLower(method)] = s
}

func (g *Gateway) strategyFor(method string) Strategy {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if s, ok := g.strategies[strings.ToLower(method)]; ok {
		return s
	}
	return g.fallback
}

// Authorize пытается авторизовать платёж с retry. Если breaker открыт,
// попытки не выполняются вовсе. Если breaker открылся между попытками,
// оставшиеся retry отбрасываются, а исходом остаётся последний отказ.
func (g *Gateway) Authorize(ctx context.Context, amountMinor int64, method string) (string, error) {
	if !g.breaker.Allow() {
		g.logger.WithField("method", method).Warn("Payment blocked: circuit breaker open")
		return "", domain.ErrCircuitOpen
	}

	strategy := g.strategyFor(method)

	var lastErr error
	delay := g.cfg.BackoffBase

	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		ref, err := strategy.Authorize(amountMinor)
		if err == nil {
			g.breaker.RecordSuccess()
			if attempt > 1 {
				g.logger.WithFields(log.Fields{
					"method":  method,
					"attempt": attempt,
				}).Info("Payment authorized after retry")
			}
			return ref, nil
		}

		lastErr = err
		g.breaker.RecordFailure()

		if attempt == g.cfg.MaxAttempts {
			break
		}
		if !g.breaker.Allow() {
			g.logger.WithFields(log.Fields{
				"method":  method,
				"attempt": attempt,
			}).Warn("Retries abandoned: circuit breaker opened")
			break
		}

		g.logger.WithFields(log.Fields{
			"method":  method,
			"attempt": attempt,
			"delay":   delay,
			"error":   err,
		}).Warn("Payment attempt failed, retrying")

		if err := g.wait(ctx, g.jittered(delay)); err != nil {
			return "", err
		}

		delay *= 2
		if delay > g.cfg.BackoffMax {
			delay = g.cfg.BackoffMax
		}
	}

	g.logger.WithFields(log.Fields{
		"method": method,
		"error":  lastErr,
	}).Error("Payment authorization failed")
	return "", lastErr
}

// Refund выполняет возврат средств. Breaker сознательно не проверяется:
// компенсации должны проходить даже при лежащем провайдере авторизаций.
func (g *Gateway) Refund(ctx context.Context, reference string, amountMinor int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ref := fmt.Sprintf("REF-%d", epochMillis())
	g.logger.WithFields(log.Fields{
		"original_reference": reference,
		"refund_reference":   ref,
		"amount_minor":       amountMinor,
	}).Info("Refund issued")
	return ref, nil
}

// jittered добавляет симметричный случайный разброс к задержке.
func (g *Gateway) jittered(delay time.Duration) time.Duration {
	j := g.cfg.BackoffJitter
	if j <= 0 {
		return delay
	}
	d := delay + time.Duration(rand.Int63n(int64(2*j)+1)) - j
	if d < 0 {
		return 0
	}
	return d
}

func (g *Gateway) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
