package app

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/retail/internal/health"
	"github.com/vladislavdragonenkov/retail/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/retail/internal/metrics"
	"github.com/vladislavdragonenkov/retail/internal/service/checkout"
	"github.com/vladislavdragonenkov/retail/internal/service/external"
	"github.com/vladislavdragonenkov/retail/internal/service/payment"
	"github.com/vladislavdragonenkov/retail/internal/service/returns"
)

// Dependencies содержит все зависимости приложения.
// NOTE: inventory, shipping и reseller — stub-клиенты внешних систем;
// в production окружении их заменяют реальные интеграции.
type Dependencies struct {
	Store   domain.Store
	Gateway *payment.Gateway
	Saga    *checkout.Saga
	Returns *returns.Workflow
	Metrics *metrics.CheckoutMetrics

	Inventory *external.InventoryService
	Shipping  *external.ShippingService
	Reseller  *external.ResellerGateway

	// Producer — nil, если Kafka не настроена: события тогда не публикуются.
	Producer *kafka.Producer

	StorageChecker healthcheck.Checker
	Logger         *log.Entry

	closeStore func() error
}

// newDependencies собирает граф компонентов согласно конфигурации.
func newDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	handle, err := initStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	m := metrics.NewCheckoutMetrics()

	gateway := payment.NewGateway(cfg.Payment, nil, fallbackStrategy(cfg), logger.WithField("component", "payment-gateway"))
	gateway.Register("cash", payment.NewCashStrategy())
	gateway.Register("card", payment.NewCardStrategy(cardPolicy(cfg)))
	gateway.Register("crypto", payment.NewCryptoStrategy())
	gateway.Breaker().OnStateChange(m.SetCircuitBreakerOpen)

	inventorySvc := external.NewInventoryService(logger.WithField("component", "inventory-service"))
	shippingSvc := external.NewShippingService(logger.WithField("component", "shipping-service"))
	resellerGw := external.NewResellerGateway(logger.WithField("component", "reseller-gateway"))
	resellerGw.RegisterAdapter("default", external.NewAcceptAllAdapter())

	// Ошибка инициализации Kafka не фатальна: работаем без событий.
	producer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	var publisher kafka.Publisher
	if producer != nil {
		publisher = producer
	}

	saga := checkout.NewSaga(
		handle.store,
		gateway,
		inventorySvc,
		shippingSvc,
		resellerGw,
		publisher,
		m,
		cfg.NotifyTimeout,
		logger.WithField("component", "checkout-saga"),
	)

	workflow := returns.NewWorkflow(
		handle.store,
		gateway,
		publisher,
		m,
		logger.WithField("component", "returns-workflow"),
	)

	return &Dependencies{
		Store:          handle.store,
		Gateway:        gateway,
		Saga:           saga,
		Returns:        workflow,
		Metrics:        m,
		Inventory:      inventorySvc,
		Shipping:       shippingSvc,
		Reseller:       resellerGw,
		Producer:       producer,
		StorageChecker: handle.checker,
		Logger:         logger,
		closeStore:     handle.closeFn,
	}, nil
}

// Close освобождает ресурсы: Kafka producer и подключение к хранилищу.
func (d *Dependencies) Close() {
	closeKafka(d.Producer, d.Logger)

	if d.closeStore != nil {
		if err := d.closeStore(); err != nil {
			d.Logger.WithError(err).Warn("failed to close storage")
		}
	}
}

// cardPolicy выбирает политику одобрения карточных платежей: значение
// вне (0, 1) означает детерминированное одобрение каждой попытки.
func cardPolicy(cfg Config) payment.SuccessPolicy {
	if cfg.CardSuccessRate <= 0 || cfg.CardSuccessRate >= 1 {
		return nil
	}
	return payment.SuccessRate(cfg.CardSuccessRate, nil)
}

// fallbackStrategy настраивает обработку незарегистрированных методов оплаты.
func fallbackStrategy(cfg Config) payment.Strategy {
	if cfg.FallbackAlwaysApprove {
		return payment.NewFallbackStrategy(nil)
	}
	return payment.NewFallbackStrategy(payment.SuccessRate(0.5, nil))
}
