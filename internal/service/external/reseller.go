package external

import (
	"context"
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

// ResellerAdapter — интеграция с API конкретного реселлера.
type ResellerAdapter interface {
	PlaceOrder(ctx context.Context, order domain.ResellerOrder) error
}

// ResellerGateway маршрутизирует заказы по зарегистрированным адаптерам.
// Имена нормализуются к нижнему регистру; неизвестный реселлер уходит
// в адаптер "default", если тот зарегистрирован.
type ResellerGateway struct {
	mu       sync.RWMutex
	adapters map[string]ResellerAdapter
	logger   *log.Entry
}

var _ domain.ResellerNotifier = (*ResellerGateway)(nil)

// NewResellerGateway создаёт пустой шлюз реселлеров.
func NewResellerGateway(logger *log.Entry) *ResellerGateway {
	if logger == nil {
		logger = log.New().WithField("component", "reseller-gateway")
	}
	return &ResellerGateway{
		adapters: make(map[string]ResellerAdapter),
		logger:   logger,
	}
}

// RegisterAdapter привязывает адаптер к имени реселлера.
func (g *ResellerGateway) RegisterAdapter(name string, a ResellerAdapter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.adapters[strings.ToLower(name)] = a
}

// Place отправляет заказ реселлеру name.
func (g *ResellerGateway) Place(ctx context.Context, name string, order domain.ResellerOrder) error {
	g.mu.RLock()
	adapter, ok := g.adapters[strings.ToLower(name)]
	if !ok {
		adapter, ok = g.adapters["default"]
	}
	g.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: no reseller adapter for %q", domain.ErrExternalService, name)
	}

	if err := adapter.PlaceOrder(ctx, order); err != nil {
		return err
	}

	g.logger.WithFields(log.Fields{
		"reseller": strings.ToLower(name),
		"sale_id":  order.SaleID,
	}).Info("Reseller order placed")
	return nil
}

// AcceptAllAdapter — адаптер, принимающий любой заказ. Используется как
// "default" и в тестах.
type AcceptAllAdapter struct {
	mu     sync.Mutex
	orders []domain.ResellerOrder
}

var _ ResellerAdapter = (*AcceptAllAdapter)(nil)

// NewAcceptAllAdapter создаёт принимающий всё адаптер.
func NewAcceptAllAdapter() *AcceptAllAdapter {
	return &AcceptAllAdapter{}
}

// PlaceOrder запоминает заказ и подтверждает приём.
func (a *AcceptAllAdapter) PlaceOrder(_ context.Context, order domain.ResellerOrder) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.orders = append(a.orders, order)
	return nil
}

// Orders возвращает принятые заказы.
func (a *AcceptAllAdapter) Orders() []domain.ResellerOrder {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.ResellerOrder, len(a.orders))
	copy(out, a.orders)
	return out
}
