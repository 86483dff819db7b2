package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

// GatewayMock — конфигурируемый мок платёжного шлюза для тестов саги
// и workflow возвратов. По умолчанию одобряет всё.
type GatewayMock struct {
	mu             sync.Mutex
	authorizeCalls int
	refundCalls    int

	// AuthorizeFn подменяет поведение Authorize; nil — одобрить.
	AuthorizeFn func(ctx context.Context, amountMinor int64, method string) (string, error)
	// RefundFn подменяет поведение Refund; nil — успешный возврат.
	RefundFn func(ctx context.Context, reference string, amountMinor int64) (string, error)
}

var _ domain.PaymentGateway = (*GatewayMock)(nil)

// NewGatewayMock создаёт мок шлюза.
func NewGatewayMock() *GatewayMock {
	return &GatewayMock{}
}

// Authorize учитывает вызов и делегирует AuthorizeFn.
func (m *GatewayMock) Authorize(ctx context.Context, amountMinor int64, method string) (string, error) {
	m.mu.Lock()
	m.authorizeCalls++
	fn := m.AuthorizeFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, amountMinor, method)
	}
	return fmt.Sprintf("TXN-MOCK-%d", amountMinor), nil
}

// Refund учитывает вызов и делегирует RefundFn.
func (m *GatewayMock) Refund(ctx context.Context, reference string, amountMinor int64) (string, error) {
	m.mu.Lock()
	m.refundCalls++
	fn := m.RefundFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, reference, amountMinor)
	}
	return "REF-MOCK", nil
}

// AuthorizeCalls возвращает число вызовов Authorize.
func (m *GatewayMock) AuthorizeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authorizeCalls
}

// RefundCalls возвращает число вызовов Refund.
func (m *GatewayMock) RefundCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refundCalls
}
