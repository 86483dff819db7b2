package external

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

// InventoryService — клиент внешней системы складского учёта.
// Сток в ней синхронизируется после коммита продажи; ошибка здесь
// трактуется сагой как ExternalServiceError и запускает компенсацию.
type InventoryService struct {
	mu    sync.Mutex
	calls int

	// Err подменяет результат вызова (для тестов и стендов).
	Err error
	// Delay имитирует сетевую задержку; прерывается контекстом.
	Delay time.Duration

	logger *log.Entry
}

var _ domain.InventorySyncNotifier = (*InventoryService)(nil)

// NewInventoryService создаёт клиент синхронизации стока.
func NewInventoryService(logger *log.Entry) *InventoryService {
	if logger == nil {
		logger = log.New().WithField("component", "inventory-service")
	}
	return &InventoryService{logger: logger}
}

// Notify отправляет проданные позиции во внешнюю систему.
func (s *InventoryService) Notify(ctx context.Context, saleID int64, lines []domain.SaleLine) error {
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

	s.logger.WithFields(log.Fields{
		"sale_id": saleID,
		"lines":   len(lines),
	}).Info("Inventory sync sent")
	return nil
}

// Calls возвращает число выполненных вызовов.
func (s *InventoryService) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
