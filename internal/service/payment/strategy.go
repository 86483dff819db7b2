package payment

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

// Strategy — способ авторизации платежа конкретным методом.
// Возвращает reference провайдера либо ошибку, обёрнутую в ErrPaymentDeclined.
type Strategy interface {
	Authorize(amountMinor int64) (string, error)
}

// SuccessPolicy решает судьбу отдельной попытки авторизации.
// Вынесена в функцию, чтобы тесты могли подменять недетерминизм.
type SuccessPolicy func() bool

// AlwaysApprove одобряет каждую попытку.
func AlwaysApprove() SuccessPolicy {
	return func() bool { return true }
}

// SuccessRate одобряет попытку с вероятностью rate (0..1).
// rng может быть nil, тогда используется общий генератор math/rand.
func SuccessRate(rate float64, rng *rand.Rand) SuccessPolicy {
	return func() bool {
		if rng != nil {
			return rng.Float64() < rate
		}
		return rand.Float64() < rate
	}
}

func epochMillis() int64 {
	return time.Now().UnixMilli()
}

// CashStrategy отклоняет любые наличные платежи: касса работает только
// с безналичными методами.
type CashStrategy struct{}

var _ Strategy = (*CashStrategy)(nil)

// NewCashStrategy создаёт стратегию для наличных.
func NewCashStrategy() *CashStrategy {
	return &CashStrategy{}
}

// Authorize всегда возвращает отказ.
func (s *CashStrategy) Authorize(int64) (string, error) {
	return "", fmt.Errorf("%w: cash payments are not accepted", domain.ErrPaymentDeclined)
}

// CardStrategy авторизует платежи по карте согласно политике успеха.
type CardStrategy struct {
	policy SuccessPolicy
}

var _ Strategy = (*CardStrategy)(nil)

// NewCardStrategy создаёт карточную стратегию. policy == nil означает
// детерминированное одобрение каждой попытки.
func NewCardStrategy(policy SuccessPolicy) *CardStrategy {
	if policy == nil {
		policy = AlwaysApprove()
	}
	return &CardStrategy{policy: policy}
}

// Authorize выполняет попытку авторизации карты.
func (s *CardStrategy) Authorize(int64) (string, error) {
	if !s.policy() {
		return "", fmt.Errorf("%w: card authorization failed", domain.ErrPaymentDeclined)
	}
	return fmt.Sprintf("TXN-%d", epochMillis()), nil
}

// CryptoStrategy одобряет криптоплатежи безусловно.
type CryptoStrategy struct{}

var _ Strategy = (*CryptoStrategy)(nil)

// NewCryptoStrategy создаёт стратегию для криптовалюты.
func NewCryptoStrategy() *CryptoStrategy {
	return &CryptoStrategy{}
}

// Authorize возвращает reference вида CRYPTO-<millis>.
func (s *CryptoStrategy) Authorize(int64) (string, error) {
	return fmt.Sprintf("CRYPTO-%d", epochMillis()), nil
}

// FallbackStrategy обслуживает методы без зарегистрированной стратегии.
type FallbackStrategy struct {
	policy SuccessPolicy
}

var _ Strategy = (*FallbackStrategy)(nil)

// NewFallbackStrategy создаёт запасную стратегию. policy == nil означает
// безусловное одобрение.
func NewFallbackStrategy(policy SuccessPolicy) *FallbackStrategy {
	if policy == nil {
		policy = AlwaysApprove()
	}
	return &FallbackStrategy{policy: policy}
}

// Authorize возвращает reference вида PAY-<millis> либо отказ.
func (s *FallbackStrategy) Authorize(int64) (string, error) {
	if !s.policy() {
		return "", fmt.Errorf("%w: payment provider rejected the charge", domain.ErrPaymentDeclined)
	}
	return fmt.Sprintf("PAY-%d", epochMillis()), nil
}
