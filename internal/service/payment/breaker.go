package payment

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// CircuitBreaker защищает платёжный провайдер от шторма запросов.
// Открывается после threshold подряд идущих неудач и автоматически
// закрывается по истечении cooldown: отдельного half-open состояния нет,
// сброс происходит при первой проверке после дедлайна. Один экземпляр
// разделяется всеми checkout процесса.
type CircuitBreaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration

	consecutiveFailures int
	openUntil           time.Time

	now           func() time.Time
	onStateChange func(open bool)
	logger        *log.Entry
}

// NewCircuitBreaker создаёт breaker с заданным порогом и временем остывания.
func NewCircuitBreaker(threshold int, cooldown time.Duration, logger *log.Entry) *CircuitBreaker {
	if logger == nil {
		logger = log.New().WithField("component", "circuit-breaker")
	}

	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		logger:    logger,
	}
}

// OnStateChange регистрирует callback переходов open/closed (для метрик).
func (cb *CircuitBreaker) OnStateChange(fn func(open bool)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// Allow сообщает, можно ли выполнять попытку. Если окно остывания истекло,
// breaker сбрасывается в закрытое состояние прямо здесь.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.openUntil.IsZero() {
		return true
	}

	if cb.now().Before(cb.openUntil) {
		return false
	}

	// Cooldown истёк: закрываемся и обнуляем счётчик неудач.
	cb.openUntil = time.Time{}
	cb.consecutiveFailures = 0
	cb.logger.Info("Circuit breaker closed after cooldown")
	if cb.onStateChange != nil {
		cb.onStateChange(false)
	}
	return true
}

// RecordSuccess сбрасывает счётчик подряд идущих неудач.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFailures = 0
}

// RecordFailure фиксирует неудачу; при достижении порога открывает breaker.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures++
	if cb.consecutiveFailures < cb.threshold || !cb.openUntil.IsZero() {
		return
	}

	cb.openUntil = cb.now().Add(cb.cooldown)
	cb.logger.WithFields(log.Fields{
		"failures": cb.consecutiveFailures,
		"cooldown": cb.cooldown,
	}).Warn("Circuit breaker opened")
	if cb.onStateChange != nil {
		cb.onStateChange(true)
	}
}
