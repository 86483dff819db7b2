package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

const (
	defaultConnTimeout     = 5 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute
)

// querier объединяет *sql.DB и *sql.Tx: репозитории работают поверх него
// и не знают, выполняются ли они внутри транзакции.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store — PostgreSQL-реализация domain.Store.
type Store struct {
	db *sql.DB
}

var _ domain.Store = (*Store)(nil)

// Open открывает подключение к PostgreSQL и проверяет доступность базы.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{db: db}, nil
}

// NewStoreWithDB оборачивает готовое подключение; используется в тестах.
func NewStoreWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB возвращает raw SQL DB, когда нужен низкоуровневый доступ.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping проверяет доступность подключения.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// EnsureSchema применяет все up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

// Close закрывает подключение к БД.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Catalog возвращает репозиторий каталога.
func (s *Store) Catalog() domain.ProductCatalog {
	return &productRepository{q: s.db}
}

// Sales возвращает репозиторий продаж.
func (s *Store) Sales() domain.SaleStore {
	return &saleRepository{q: s.db, db: s.db}
}

// Payments возвращает леджер платежей.
func (s *Store) Payments() domain.PaymentLedger {
	return &paymentRepository{q: s.db}
}

// Returns возвращает леджер возвратов.
func (s *Store) Returns() domain.ReturnLedger {
	return &returnRepository{q: s.db}
}

// Atomically выполняет fn внутри одной SQL-транзакции.
func (s *Store) Atomically(ctx context.Context, fn func(domain.UnitOfWork) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(txUnitOfWork{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// txUnitOfWork отдаёт репозитории, привязанные к открытой транзакции.
type txUnitOfWork struct {
	tx *sql.Tx
}

var _ domain.UnitOfWork = txUnitOfWork{}

func (u txUnitOfWork) Catalog() domain.ProductCatalog { return &productRepository{q: u.tx} }
func (u txUnitOfWork) Sales() domain.SaleStore        { return &saleRepository{q: u.tx} }
func (u txUnitOfWork) Payments() domain.PaymentLedger { return &paymentRepository{q: u.tx} }
func (u txUnitOfWork) Returns() domain.ReturnLedger   { return &returnRepository{q: u.tx} }
