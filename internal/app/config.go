package app

import (
	"time"

	"github.com/vladislavdragonenkov/retail/internal/service/payment"
)

// StorageDriver выбирает реализацию хранилища.
type StorageDriver string

const (
	// StorageDriverMemory — in-memory хранилище для разработки и тестов.
	StorageDriverMemory StorageDriver = "memory"
	// StorageDriverPostgres — PostgreSQL через pgx.
	StorageDriverPostgres StorageDriver = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	MetricsAddr string

	StorageDriver       StorageDriver
	PostgresDSN         string
	PostgresAutoMigrate bool

	// KafkaBrokers — список брокеров через запятую; пустая строка
	// отключает публикацию событий.
	KafkaBrokers string

	// NotifyTimeout ограничивает время post-commit уведомлений внешних
	// систем; превышение трактуется как ExternalServiceError.
	NotifyTimeout time.Duration

	// Payment — параметры retry и circuit breaker платёжного шлюза.
	Payment payment.Config

	// CardSuccessRate — вероятность одобрения карточной попытки.
	// Значение вне (0, 1) означает детерминированное одобрение.
	CardSuccessRate float64

	// FallbackAlwaysApprove управляет судьбой незарегистрированных методов
	// оплаты: true — одобрять детерминированно, false — монетка 50/50.
	FallbackAlwaysApprove bool
}

// DefaultConfig возвращает конфигурацию по умолчанию: in-memory хранилище,
// метрики на :9090, детерминированная карточная стратегия.
func DefaultConfig() Config {
	return Config{
		MetricsAddr:           ":9090",
		StorageDriver:         StorageDriverMemory,
		PostgresAutoMigrate:   true,
		NotifyTimeout:         5 * time.Second,
		Payment:               payment.DefaultConfig(),
		CardSuccessRate:       1,
		FallbackAlwaysApprove: true,
	}
}
