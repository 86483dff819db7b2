package app

import (
	"context"

	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/retail/internal/health"
	"github.com/vladislavdragonenkov/retail/internal/version"
)

// Run собирает компоненты checkout-движка, поднимает HTTP-сервер метрик
// и health-проверок и блокируется до отмены контекста.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := newDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if deps.StorageChecker != nil {
		healthHandler.RegisterChecker("storage", deps.StorageChecker)
	}
	if deps.Producer != nil {
		healthHandler.RegisterChecker("kafka", healthcheck.NewSimpleChecker("kafka", func() error {
			return nil
		}))
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	logger.WithFields(log.Fields{
		"storage": string(cfg.StorageDriver),
		"kafka":   deps.Producer != nil,
	}).Info("checkout engine is ready")

	<-ctx.Done()
	logger.Info("получен сигнал остановки, завершаем работу")
	shutdownHTTP(metricsSrv, logger)

	return ctx.Err()
}
