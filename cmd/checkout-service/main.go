package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/app"
)

const (
	envMetricsAddr           = "RETAIL_METRICS_ADDR"
	envStorageDriver         = "RETAIL_STORAGE_DRIVER"
	envPostgresDSN           = "RETAIL_POSTGRES_DSN"
	envPostgresAutoMigrate   = "RETAIL_POSTGRES_AUTO_MIGRATE"
	envKafkaBrokers          = "RETAIL_KAFKA_BROKERS"
	envNotifyTimeout         = "RETAIL_NOTIFY_TIMEOUT"
	envPaymentMaxAttempts    = "RETAIL_PAYMENT_MAX_ATTEMPTS"
	envBreakerThreshold      = "RETAIL_BREAKER_THRESHOLD"
	envBreakerCooldown       = "RETAIL_BREAKER_COOLDOWN"
	envCardSuccessRate       = "RETAIL_CARD_SUCCESS_RATE"
	envFallbackAlwaysApprove = "RETAIL_FALLBACK_ALWAYS_APPROVE"
)

// envLookup абстрагирует os.LookupEnv для тестов.
type envLookup func(key string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
}

// readConfigFromEnv собирает конфигурацию из переменных окружения поверх
// значений по умолчанию. Некорректные значения не прерывают запуск:
// возвращаются предупреждения, а поле сохраняет дефолт.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	if v, ok := lookup(envMetricsAddr); ok && strings.TrimSpace(v) != "" {
		cfg.MetricsAddr = strings.TrimSpace(v)
	}
	if v, ok := lookup(envStorageDriver); ok && strings.TrimSpace(v) != "" {
		cfg.StorageDriver = app.StorageDriver(strings.ToLower(strings.TrimSpace(v)))
	}
	if v, ok := lookup(envPostgresDSN); ok && strings.TrimSpace(v) != "" {
		cfg.PostgresDSN = strings.TrimSpace(v)
	}
	if v, ok := lookup(envPostgresAutoMigrate); ok {
		parsed, err := parseBool(v)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", envPostgresAutoMigrate, err))
		} else {
			cfg.PostgresAutoMigrate = parsed
		}
	}
	if v, ok := lookup(envKafkaBrokers); ok {
		cfg.KafkaBrokers = strings.TrimSpace(v)
	}
	if v, ok := lookup(envNotifyTimeout); ok {
		parsed, err := parseDuration(v, func(d time.Duration) bool { return d > 0 }, "must be > 0")
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", envNotifyTimeout, err))
		} else {
			cfg.NotifyTimeout = parsed
		}
	}
	if v, ok := lookup(envPaymentMaxAttempts); ok {
		parsed, err := parseInt(v, func(n int) bool { return n > 0 }, "must be > 0")
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", envPaymentMaxAttempts, err))
		} else {
			cfg.Payment.MaxAttempts = parsed
		}
	}
	if v, ok := lookup(envBreakerThreshold); ok {
		parsed, err := parseInt(v, func(n int) bool { return n > 0 }, "must be > 0")
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", envBreakerThreshold, err))
		} else {
			cfg.Payment.BreakerThreshold = parsed
		}
	}
	if v, ok := lookup(envBreakerCooldown); ok {
		parsed, err := parseDuration(v, func(d time.Duration) bool { return d > 0 }, "must be > 0")
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", envBreakerCooldown, err))
		} else {
			cfg.Payment.BreakerCooldown = parsed
		}
	}
	if v, ok := lookup(envCardSuccessRate); ok {
		parsed, err := parseFloat(v, func(f float64) bool { return f >= 0 && f <= 1 }, "must be in [0, 1]")
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", envCardSuccessRate, err))
		} else {
			cfg.CardSuccessRate = parsed
		}
	}
	if v, ok := lookup(envFallbackAlwaysApprove); ok {
		parsed, err := parseBool(v)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", envFallbackAlwaysApprove, err))
		} else {
			cfg.FallbackAlwaysApprove = parsed
		}
	}

	return cfg, warnings
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value %q", value)
	}
}

func parseInt(value string, valid func(int) bool, constraint string) (int, error) {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid integer value %q", value)
	}
	if !valid(parsed) {
		return 0, fmt.Errorf("value %d is out of range: %s", parsed, constraint)
	}
	return parsed, nil
}

func parseDuration(value string, valid func(time.Duration) bool, constraint string) (time.Duration, error) {
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid duration value %q", value)
	}
	if !valid(parsed) {
		return 0, fmt.Errorf("value %s is out of range: %s", parsed, constraint)
	}
	return parsed, nil
}

func parseFloat(value string, valid func(float64) bool, constraint string) (float64, error) {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value %q", value)
	}
	if !valid(parsed) {
		return 0, fmt.Errorf("value %v is out of range: %s", parsed, constraint)
	}
	return parsed, nil
}

func main() {
	setupLogger()

	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, warning := range warnings {
		log.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"metrics_addr": cfg.MetricsAddr,
		"storage":      string(cfg.StorageDriver),
	}).Info("запускаем checkout-service")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("checkout-service остановлен")
}
