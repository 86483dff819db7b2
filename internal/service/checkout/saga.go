package checkout

import (
	"context"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/cart"
	"github.com/vladislavdragonenkov/retail/internal/domain"
	"github.com/vladislavdragonenkov/retail/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/retail/internal/metrics"
)

// State — шаг checkout-саги; используется в логах.
type State string

const (
	StateValidating   State = "validating"
	StateReserving    State = "reserving"
	StateAuthorizing  State = "authorizing"
	StatePersisting   State = "persisting"
	StateNotifying    State = "notifying"
	StateCommitted    State = "committed"
	StateCompensating State = "compensating"
	StateFailed       State = "failed"
)

// Request — параметры одного checkout.
type Request struct {
	UserID int64
	Method string
	// Reseller — имя реселлера для best-effort уведомления после коммита;
	// пустая строка означает розничную продажу без реселлера.
	Reseller string
}

// Result — итог checkout. При OK заполняются SaleID и Receipt,
// иначе Code и Reason.
type Result struct {
	OK      bool
	SaleID  int64
	Receipt string
	Code    domain.FailureCode
	Reason  string
}

// Saga проводит продажу через фиксированную последовательность шагов:
// валидация, проверка стока, авторизация платежа, атомарная запись,
// уведомление внешних систем. Провал после авторизации компенсируется
// возвратом средств.
type Saga struct {
	store     domain.Store
	gateway   domain.PaymentGateway
	inventory domain.InventorySyncNotifier
	shipping  domain.ShipmentNotifier
	reseller  domain.ResellerNotifier

	// publisher и metrics опциональны: nil отключает события и метрики.
	publisher kafka.Publisher
	metrics   *metrics.CheckoutMetrics

	notifyTimeout time.Duration
	logger        *log.Entry
	now           func() time.Time
}

// NewSaga создаёт checkout-сагу. inventory, shipping, reseller, publisher
// и m могут быть nil, соответствующие шаги тогда пропускаются.
func NewSaga(
	store domain.Store,
	gateway domain.PaymentGateway,
	inventory domain.InventorySyncNotifier,
	shipping domain.ShipmentNotifier,
	reseller domain.ResellerNotifier,
	publisher kafka.Publisher,
	m *metrics.CheckoutMetrics,
	notifyTimeout time.Duration,
	logger *log.Entry,
) *Saga {
	if logger == nil {
		logger = log.New().WithField("component", "checkout-saga")
	}
	if notifyTimeout <= 0 {
		notifyTimeout = 5 * time.Second
	}

	return &Saga{
		store:         store,
		gateway:       gateway,
		inventory:     inventory,
		shipping:      shipping,
		reseller:      reseller,
		publisher:     publisher,
		metrics:       m,
		notifyTimeout: notifyTimeout,
		logger:        logger,
		now:           time.Now,
	}
}

// Checkout проводит продажу содержимого корзины. Корзина очищается только
// при успешном коммите; при любом провале она остаётся нетронутой.
func (s *Saga) Checkout(ctx context.Context, req Request, crt *cart.Cart) Result {
	started := s.now()
	if s.metrics != nil {
		s.metrics.CheckoutStarted()
		defer func() {
			s.metrics.CheckoutFinished()
			s.metrics.RecordCheckoutDuration(req.Method, s.now().Sub(started))
		}()
	}

	logger := s.logger.WithFields(log.Fields{
		"user_id": req.UserID,
		"method":  req.Method,
	})

	// Validating: пользователь, корзина, существование товаров.
	if req.UserID == 0 {
		return s.fail(logger, req, StateValidating, domain.ErrNotLoggedIn)
	}

	// Единственный снимок корзины: и продажа, и чек строятся из него.
	// Конкурентное изменение корзины после этой точки на checkout не влияет.
	snapshot := crt.Snapshot()
	if len(snapshot) == 0 {
		return s.fail(logger, req, StateValidating, domain.ErrEmptyCart)
	}

	saleLines := toSaleLines(snapshot)
	subtotal := domain.LinesTotalMinor(saleLines)
	total := subtotal

	sale := domain.Sale{
		UserID:        req.UserID,
		Timestamp:     s.now().UTC(),
		SubtotalMinor: subtotal,
		TotalMinor:    total,
		Status:        domain.SaleStatusCompleted,
	}
	if errs := sale.ValidateInvariants(saleLines); len(errs) > 0 {
		return s.fail(logger, req, StateValidating, errs[0])
	}

	for _, line := range saleLines {
		if _, err := s.store.Catalog().GetByID(line.ProductID); err != nil {
			return s.fail(logger, req, StateValidating, err)
		}
	}

	// Reserving: предварительная проверка доступности. Окончательное
	// списание происходит атомарно на шаге Persisting, эта проверка лишь
	// отсекает заведомо невыполнимые заказы до обращения к платёжке.
	for _, line := range saleLines {
		p, err := s.store.Catalog().GetByID(line.ProductID)
		if err != nil {
			return s.fail(logger, req, StateReserving, err)
		}
		if p.Stock < line.Qty {
			return s.fail(logger, req, StateReserving, domain.ErrInsufficientStock)
		}
	}

	// Authorizing: деньги списываются до записи продажи.
	reference, err := s.gateway.Authorize(ctx, total, req.Method)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordPaymentFailure()
		}
		return s.fail(logger, req, StateAuthorizing, err)
	}

	logger = logger.WithField("payment_reference", reference)
	logger.Info("Payment authorized")

	// Persisting: резерв стока, продажа и платёж в одной транзакции.
	var saleID int64
	err = s.store.Atomically(ctx, func(uow domain.UnitOfWork) error {
		for _, line := range saleLines {
			ok, err := uow.Catalog().Reserve(line.ProductID, line.Qty)
			if err != nil {
				return err
			}
			if !ok {
				// Конкурирующий checkout успел забрать сток после
				// предварительной проверки.
				return domain.ErrStockConflict
			}
		}

		var err error
		saleID, err = uow.Sales().Create(sale, saleLines)
		if err != nil {
			return err
		}

		_, err = uow.Payments().Record(domain.Payment{
			SaleID:      saleID,
			Method:      req.Method,
			Reference:   reference,
			AmountMinor: total,
			Status:      domain.PaymentStatusApproved,
			Timestamp:   s.now().UTC(),
		})
		return err
	})
	if err != nil {
		// Транзакция откатилась целиком: компенсируем только платёж.
		if domain.IsCompensable(domain.ClassifyFailure(err)) {
			s.compensate(ctx, logger, req, 0, nil, reference, total)
		}
		return s.fail(logger, req, StatePersisting, err)
	}

	logger = logger.WithField("sale_id", saleID)

	// Notifying: внешние системы с собственным таймаутом.
	if err := s.notify(ctx, saleID, req.UserID, saleLines); err != nil {
		if domain.IsCompensable(domain.ClassifyFailure(domain.ErrExternalService)) {
			s.compensate(ctx, logger, req, saleID, saleLines, reference, total)
		}
		return s.fail(logger, req, StateNotifying, domain.ErrExternalService)
	}

	// Committed.
	crt.Clear()
	logger.Info("Checkout committed")

	if s.metrics != nil {
		s.metrics.RecordCheckoutOutcome("committed")
	}
	s.publish(kafka.TopicCheckoutEvents, strconv.FormatInt(saleID, 10),
		kafka.NewCheckoutEvent(kafka.EventTypeCheckoutCompleted, saleID, req.UserID, req.Method, total, ""))

	// Уведомление реселлера best-effort: ошибка не меняет исход продажи.
	if s.reseller != nil && req.Reseller != "" {
		order := domain.ResellerOrder{SaleID: saleID, UserID: req.UserID, Lines: saleLines}
		if err := s.reseller.Place(ctx, req.Reseller, order); err != nil {
			logger.WithError(err).Warn("Reseller notification failed")
		}
	}

	return Result{
		OK:      true,
		SaleID:  saleID,
		Receipt: BuildReceipt(saleID, snapshot, subtotal, total, req.Method, reference),
	}
}

// notify синхронизирует сток и создаёт отгрузку. Любая ошибка трактуется
// как провал шага Notifying.
func (s *Saga) notify(ctx context.Context, saleID, userID int64, lines []domain.SaleLine) error {
	nctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()

	if s.inventory != nil {
		if err := s.inventory.Notify(nctx, saleID, lines); err != nil {
			return err
		}
	}
	if s.shipping != nil {
		if err := s.shipping.Create(nctx, saleID, userID, lines); err != nil {
			return err
		}
	}
	return nil
}

// compensate возвращает средства и, если продажа уже записана, помечает её
// возвращённой и восстанавливает сток. Ошибка refund логируется, но не
// подменяет исходную причину провала.
func (s *Saga) compensate(ctx context.Context, logger *log.Entry, req Request, saleID int64, lines []domain.SaleLine, reference string, amountMinor int64) {
	logger = logger.WithField("state", string(StateCompensating))
	logger.Warn("Compensating failed checkout")

	if _, err := s.gateway.Refund(ctx, reference, amountMinor); err != nil {
		logger.WithError(err).Error("Compensation refund failed")
	} else if s.metrics != nil {
		s.metrics.RecordRefundIssued(req.Method)
	}

	if saleID != 0 {
		if _, err := s.store.Sales().SetStatus(saleID, domain.SaleStatusRefunded); err != nil {
			logger.WithError(err).Error("Failed to mark sale refunded during compensation")
		}
		for _, line := range lines {
			if _, err := s.store.Catalog().Restock(line.ProductID, line.Qty); err != nil {
				logger.WithError(err).WithField("product_id", line.ProductID).
					Error("Failed to restock during compensation")
			}
		}
	}

	s.publish(kafka.TopicCheckoutEvents, strconv.FormatInt(req.UserID, 10),
		kafka.NewCheckoutEvent(kafka.EventTypeCheckoutCompensated, saleID, req.UserID, req.Method, amountMinor, ""))
}

func (s *Saga) fail(logger *log.Entry, req Request, state State, err error) Result {
	code := domain.ClassifyFailure(err)

	logger.WithFields(log.Fields{
		"state": string(state),
		"code":  string(code),
	}).WithError(err).Warn("Checkout failed")

	if s.metrics != nil {
		s.metrics.RecordCheckoutOutcome("failed")
		s.metrics.RecordCheckoutError(string(code))
	}
	s.publish(kafka.TopicCheckoutEvents, strconv.FormatInt(req.UserID, 10),
		kafka.NewCheckoutEvent(kafka.EventTypeCheckoutFailed, 0, req.UserID, req.Method, 0, string(code)))

	return Result{Code: code, Reason: err.Error()}
}

func (s *Saga) publish(topic, key string, event interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(topic, key, event); err != nil {
		s.logger.WithError(err).WithField("topic", topic).Warn("Failed to publish event")
	}
}

func toSaleLines(lines []domain.CartLine) []domain.SaleLine {
	out := make([]domain.SaleLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, domain.SaleLine{
			ProductID:      l.ProductID,
			Qty:            l.Qty,
			UnitPriceMinor: l.UnitPriceMinor,
		})
	}
	return out
}
