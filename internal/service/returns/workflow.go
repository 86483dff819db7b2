package returns

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	"github.com/vladislavdragonenkov/retail/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/retail/internal/metrics"
)

// Workflow управляет жизненным циклом заявок на возврат: создание по
// завершённой продаже, одобрение с возвратом средств и восстановлением
// стока, отклонение с фиксацией причины.
type Workflow struct {
	store   domain.Store
	gateway domain.PaymentGateway

	// publisher и metrics опциональны: nil отключает события и метрики.
	publisher kafka.Publisher
	metrics   *metrics.CheckoutMetrics

	logger *log.Entry
	now    func() time.Time
}

// NewWorkflow создаёт workflow возвратов.
func NewWorkflow(store domain.Store, gateway domain.PaymentGateway, publisher kafka.Publisher, m *metrics.CheckoutMetrics, logger *log.Entry) *Workflow {
	if logger == nil {
		logger = log.New().WithField("component", "returns-workflow")
	}

	return &Workflow{
		store:     store,
		gateway:   gateway,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// newRMANumber генерирует человекочитаемый номер заявки.
func newRMANumber() string {
	return "RMA-" + uuid.NewString()[:8]
}

// Request создаёт заявку на возврат по продаже. Предусловия: пользователь
// аутентифицирован, продажа существует, принадлежит ему, завершена, и по
// ней нет незакрытой заявки. Каждое нарушение — своя ошибка.
func (w *Workflow) Request(ctx context.Context, userID, saleID int64, reason string) (domain.ReturnRequest, error) {
	if err := ctx.Err(); err != nil {
		return domain.ReturnRequest{}, err
	}
	if userID == 0 {
		return domain.ReturnRequest{}, domain.ErrNotLoggedIn
	}

	sale, err := w.store.Sales().Get(saleID)
	if err != nil {
		return domain.ReturnRequest{}, err
	}
	if sale.UserID != userID {
		return domain.ReturnRequest{}, domain.ErrReturnNotOwned
	}
	if sale.Status != domain.SaleStatusCompleted {
		return domain.ReturnRequest{}, domain.ErrReturnWrongStatus
	}

	open, err := w.store.Returns().HasOpenForSale(saleID)
	if err != nil {
		return domain.ReturnRequest{}, err
	}
	if open {
		return domain.ReturnRequest{}, domain.ErrReturnDuplicate
	}

	req := domain.ReturnRequest{
		SaleID:      saleID,
		UserID:      userID,
		RMANumber:   newRMANumber(),
		Reason:      reason,
		Status:      domain.ReturnStatusPending,
		RequestedAt: w.now().UTC(),
	}

	// Хранилище повторно проверяет дубликат атомарно: гонка двух запросов
	// по одной продаже разрешается именно здесь.
	req.ID, err = w.store.Returns().Create(req)
	if err != nil {
		return domain.ReturnRequest{}, err
	}

	w.logger.WithFields(log.Fields{
		"return_id": req.ID,
		"sale_id":   saleID,
		"rma":       req.RMANumber,
	}).Info("Return requested")

	if w.metrics != nil {
		w.metrics.RecordReturnRequested()
	}
	w.publish(kafka.NewReturnEvent(kafka.EventTypeReturnRequested, req.ID, saleID, userID, req.RMANumber, string(req.Status)))
	return req, nil
}

// Approve одобряет pending-заявку: возвращает средства, помечает продажу
// возвращённой и восстанавливает сток. Если записи о платеже нет или
// возврат средств не прошёл, заявка отклоняется с пояснением.
//
// Заявка клеймится условным Pending→Approved ДО обращения к платёжному
// шлюзу: из двух конкурентных одобрений до перевода денег доходит ровно
// одно. Провал refund откатывает клейм вместе с транзакцией.
func (w *Workflow) Approve(ctx context.Context, returnID int64) (domain.ReturnRequest, error) {
	req, err := w.store.Returns().Get(returnID)
	if err != nil {
		return domain.ReturnRequest{}, err
	}
	if req.Status.Terminal() {
		return domain.ReturnRequest{}, domain.ErrReturnAlreadyProcessed
	}

	pay, err := w.store.Payments().GetForSale(req.SaleID)
	if errors.Is(err, domain.ErrPaymentNotFound) {
		// Возвращать нечего: одобрение невозможно без платежа.
		return w.resolve(req, domain.ReturnStatusRejected, "", "no payment record for sale")
	}
	if err != nil {
		return domain.ReturnRequest{}, err
	}

	resolvedAt := w.now().UTC()
	var refundRef string
	var refundErr error
	err = w.store.Atomically(ctx, func(uow domain.UnitOfWork) error {
		ok, err := uow.Returns().Resolve(req.ID, domain.ReturnStatusApproved, "", "", resolvedAt)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrReturnAlreadyProcessed
		}

		refundRef, refundErr = w.gateway.Refund(ctx, pay.Reference, pay.AmountMinor)
		if refundErr != nil {
			return refundErr
		}

		ok, err = uow.Returns().SetRefundReference(req.ID, refundRef)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrReturnNotFound
		}
		return nil
	})
	if refundErr != nil {
		w.logger.WithError(refundErr).WithField("return_id", returnID).Error("Refund failed, rejecting return")
		return w.resolve(req, domain.ReturnStatusRejected, "", fmt.Sprintf("refund failed: %v", refundErr))
	}
	if err != nil {
		return domain.ReturnRequest{}, err
	}

	resolved := w.finalize(req, domain.ReturnStatusApproved, refundRef, "", resolvedAt)

	if w.metrics != nil {
		w.metrics.RecordRefundIssued(pay.Method)
	}

	// Возврат товара на склад и смена статуса продажи best-effort:
	// деньги уже возвращены, эти шаги только чинят учёт.
	if _, err := w.store.Sales().SetStatus(req.SaleID, domain.SaleStatusRefunded); err != nil {
		w.logger.WithError(err).WithField("sale_id", req.SaleID).Error("Failed to mark sale refunded")
	}
	lines, err := w.store.Sales().Lines(req.SaleID)
	if err != nil {
		w.logger.WithError(err).WithField("sale_id", req.SaleID).Error("Failed to load sale lines for restock")
	} else {
		for _, line := range lines {
			if _, err := w.store.Catalog().Restock(line.ProductID, line.Qty); err != nil {
				w.logger.WithError(err).WithField("product_id", line.ProductID).Error("Failed to restock returned item")
			}
		}
	}

	return resolved, nil
}

// Reject отклоняет pending-заявку с пояснением.
func (w *Workflow) Reject(ctx context.Context, returnID int64, note string) (domain.ReturnRequest, error) {
	if err := ctx.Err(); err != nil {
		return domain.ReturnRequest{}, err
	}

	req, err := w.store.Returns().Get(returnID)
	if err != nil {
		return domain.ReturnRequest{}, err
	}
	if req.Status.Terminal() {
		return domain.ReturnRequest{}, domain.ErrReturnAlreadyProcessed
	}

	return w.resolve(req, domain.ReturnStatusRejected, "", note)
}

// ListForUser возвращает заявки пользователя (0 — все).
func (w *Workflow) ListForUser(userID int64) ([]domain.ReturnRequest, error) {
	return w.store.Returns().ListForUser(userID)
}

// resolve атомарно переводит заявку в терминальный статус и публикует событие.
func (w *Workflow) resolve(req domain.ReturnRequest, status domain.ReturnStatus, refundRef, note string) (domain.ReturnRequest, error) {
	resolvedAt := w.now().UTC()

	ok, err := w.store.Returns().Resolve(req.ID, status, refundRef, note, resolvedAt)
	if err != nil {
		return domain.ReturnRequest{}, err
	}
	if !ok {
		// Конкурентное разрешение успело раньше.
		return domain.ReturnRequest{}, domain.ErrReturnAlreadyProcessed
	}

	return w.finalize(req, status, refundRef, note, resolvedAt), nil
}

// finalize отражает уже записанное разрешение заявки: лог, метрики, событие.
func (w *Workflow) finalize(req domain.ReturnRequest, status domain.ReturnStatus, refundRef, note string, resolvedAt time.Time) domain.ReturnRequest {
	req.Status = status
	req.RefundReference = refundRef
	req.ResolutionNote = note
	req.ResolvedAt = resolvedAt

	w.logger.WithFields(log.Fields{
		"return_id":  req.ID,
		"sale_id":    req.SaleID,
		"resolution": string(status),
		"note":       note,
	}).Info("Return resolved")

	if w.metrics != nil {
		w.metrics.RecordReturnResolution(string(status))
		w.metrics.RecordReturnDuration(resolvedAt.Sub(req.RequestedAt))
	}

	eventType := kafka.EventTypeReturnRejected
	if status == domain.ReturnStatusApproved {
		eventType = kafka.EventTypeReturnApproved
	}
	w.publish(kafka.NewReturnEvent(eventType, req.ID, req.SaleID, req.UserID, req.RMANumber, string(status)))

	return req
}

func (w *Workflow) publish(event *kafka.ReturnEvent) {
	if w.publisher == nil {
		return
	}
	key := strconv.FormatInt(event.SaleID, 10)
	if err := w.publisher.Publish(kafka.TopicReturnEvents, key, event); err != nil {
		w.logger.WithError(err).Warn("Failed to publish return event")
	}
}
