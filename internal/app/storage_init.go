package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/retail/internal/health"
	"github.com/vladislavdragonenkov/retail/internal/storage/memory"
	"github.com/vladislavdragonenkov/retail/internal/storage/postgres"
)

// storeHandle связывает хранилище с его health-проверкой и функцией закрытия.
type storeHandle struct {
	store   domain.Store
	checker healthcheck.Checker
	closeFn func() error
}

// initStore создаёт хранилище согласно cfg.StorageDriver.
func initStore(ctx context.Context, cfg Config, logger *log.Entry) (storeHandle, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		logger.Info("using in-memory storage")
		return storeHandle{
			store:   memory.NewStore(),
			checker: healthcheck.NewSimpleChecker("storage", func() error { return nil }),
		}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return storeHandle{}, fmt.Errorf("postgres storage driver requires a DSN")
		}

		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return storeHandle{}, fmt.Errorf("init postgres storage: %w", err)
		}

		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return storeHandle{}, fmt.Errorf("apply postgres migrations: %w", err)
			}
			logger.Info("postgres migrations applied")
		}

		logger.Info("using postgres storage")
		return storeHandle{
			store: store,
			checker: healthcheck.NewSimpleChecker("storage", func() error {
				return store.Ping(context.Background())
			}),
			closeFn: store.Close,
		}, nil

	default:
		return storeHandle{}, fmt.Errorf("unsupported storage driver: %s", cfg.StorageDriver)
	}
}
