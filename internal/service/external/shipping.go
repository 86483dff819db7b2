package external

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

// ShippingService — клиент внешнего сервиса доставки.
type ShippingService struct {
	mu           sync.Mutex
	calls        int
	lastTracking string

	// Err подменяет результат вызова (для тестов и стендов).
	Err error
	// Delay имитирует сетевую задержку; прерывается контекстом.
	Delay time.Duration

	logger *log.Entry
}

var _ domain.ShipmentNotifier = (*ShippingService)(nil)

// NewShippingService создаёт клиент доставки.
func NewShippingService(logger *log.Entry) *ShippingService {
	if logger == nil {
		logger = log.New().WithField("component", "shipping-service")
	}
	return &ShippingService{logger: logger}
}

// Create регистрирует отгрузку и получает tracking-номер.
func (s *ShippingService) Create(ctx context.Context, saleID, userID int64, lines []domain.SaleLine) error {
	s.mu.Lock()
	s.calls++
	errOut := s.Err
	delay := s.Delay
	s.mu.Unlock()

	if err := sleepCtx(ctx, delay); err != nil {
		return err
	}
	if errOut != nil {
		return errOut
	}

	tracking := fmt.Sprintf("SHIP-%d", time.Now().UnixMilli())
	s.mu.Lock()
	s.lastTracking = tracking
	s.mu.Unlock()

	s.logger.WithFields(log.Fields{
		"sale_id":  saleID,
		"user_id":  userID,
		"tracking": tracking,
		"lines":    len(lines),
	}).Info("Shipment created")
	return nil
}

// Calls возвращает число выполненных вызовов.
func (s *ShippingService) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// LastTracking возвращает tracking-номер последней отгрузки.
func (s *ShippingService) LastTracking() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTracking
}
