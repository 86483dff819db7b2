package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sqlmock expectations: %v", err)
		}
		_ = db.Close()
	})

	return NewStoreWithDB(db), mock
}

func TestProductRepository_Add(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO products").
		WithArgs("widget", int64(250), int32(5), int64(0), sql.NullTime{}, sql.NullTime{}).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	id, err := store.Catalog().Add(domain.Product{Name: "widget", PriceMinor: 250, Stock: 5})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected id 1, got %d", id)
	}
}

func TestProductRepository_GetByID_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, name, price_minor").
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err := store.Catalog().GetByID(99)
	if !errors.Is(err, domain.ErrProductMissing) {
		t.Fatalf("expected ErrProductMissing, got %v", err)
	}
}

func TestProductRepository_Reserve(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE products").
		WithArgs(int64(1), int32(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := store.Catalog().Reserve(1, 2)
	if err != nil || !ok {
		t.Fatalf("expected reserve to succeed, got ok=%v err=%v", ok, err)
	}
}

func TestProductRepository_Reserve_Insufficient(t *testing.T) {
	store, mock := newMockStore(t)

	// Условный UPDATE не зацепил строк, товар при этом существует.
	mock.ExpectExec("UPDATE products").
		WithArgs(int64(1), int32(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id FROM products").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	ok, err := store.Catalog().Reserve(1, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected reserve to fail on insufficient stock")
	}
}

func TestProductRepository_Reserve_Missing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE products").
		WithArgs(int64(99), int32(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id FROM products").
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err := store.Catalog().Reserve(99, 1)
	if !errors.Is(err, domain.ErrProductMissing) {
		t.Fatalf("expected ErrProductMissing, got %v", err)
	}
}

func TestProductRepository_Restock_NegativeQty(t *testing.T) {
	store, _ := newMockStore(t)

	// До базы дело не доходит.
	_, err := store.Catalog().Restock(1, -1)
	if !errors.Is(err, domain.ErrRestockQtyNegative) {
		t.Fatalf("expected ErrRestockQtyNegative, got %v", err)
	}
}

func TestSaleRepository_Create(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO sales").
		WithArgs(int64(42), now, int64(500), int64(500), "completed").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec("INSERT INTO sale_lines").
		WithArgs(int64(7), int64(1), int32(2), int64(250)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := store.Sales().Create(
		domain.Sale{UserID: 42, Timestamp: now, SubtotalMinor: 500, TotalMinor: 500, Status: domain.SaleStatusCompleted},
		[]domain.SaleLine{{ProductID: 1, Qty: 2, UnitPriceMinor: 250}},
	)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if id != 7 {
		t.Fatalf("expected sale id 7, got %d", id)
	}
}

func TestSaleRepository_Get_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, user_id, ts").
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err := store.Sales().Get(99)
	if !errors.Is(err, domain.ErrSaleNotFound) {
		t.Fatalf("expected ErrSaleNotFound, got %v", err)
	}
}

func TestSaleRepository_SetStatus(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE sales").
		WithArgs(int64(7), "refunded").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := store.Sales().SetStatus(7, domain.SaleStatusRefunded)
	if err != nil || !ok {
		t.Fatalf("set status: ok=%v err=%v", ok, err)
	}

	mock.ExpectExec("UPDATE sales").
		WithArgs(int64(99), "refunded").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err = store.Sales().SetStatus(99, domain.SaleStatusRefunded)
	if err != nil || ok {
		t.Fatalf("expected no rows updated, got ok=%v err=%v", ok, err)
	}
}

func TestPaymentRepository_GetForSale(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT id, sale_id, method").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sale_id", "method", "reference", "amount_minor", "status", "ts"}).
			AddRow(int64(1), int64(7), "card", "TXN-1", int64(500), "approved", now))

	p, err := store.Payments().GetForSale(7)
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if p.Reference != "TXN-1" || p.AmountMinor != 500 {
		t.Fatalf("unexpected payment: %+v", p)
	}

	mock.ExpectQuery("SELECT id, sale_id, method").
		WithArgs(int64(8)).
		WillReturnError(sql.ErrNoRows)

	if _, err := store.Payments().GetForSale(8); !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestReturnRepository_Create_Duplicate(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("INSERT INTO returns").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := store.Returns().Create(domain.ReturnRequest{
		SaleID: 7, UserID: 42, RMANumber: "RMA-1", Status: domain.ReturnStatusPending, RequestedAt: now,
	})
	if !errors.Is(err, domain.ErrReturnDuplicate) {
		t.Fatalf("expected ErrReturnDuplicate, got %v", err)
	}
}

func TestReturnRepository_Resolve(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE returns").
		WithArgs(int64(3), "approved", "REF-1", "", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := store.Returns().Resolve(3, domain.ReturnStatusApproved, "REF-1", "", now)
	if err != nil || !ok {
		t.Fatalf("resolve: ok=%v err=%v", ok, err)
	}

	// Заявка уже терминальна: условный UPDATE не находит строк.
	mock.ExpectExec("UPDATE returns").
		WithArgs(int64(3), "rejected", "", "late", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err = store.Returns().Resolve(3, domain.ReturnStatusRejected, "", "late", now)
	if err != nil || ok {
		t.Fatalf("expected resolve to miss, got ok=%v err=%v", ok, err)
	}
}

func TestReturnRepository_SetRefundReference(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE returns").
		WithArgs(int64(3), "REF-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := store.Returns().SetRefundReference(3, "REF-1")
	if err != nil || !ok {
		t.Fatalf("set refund reference: ok=%v err=%v", ok, err)
	}

	mock.ExpectExec("UPDATE returns").
		WithArgs(int64(99), "REF-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err = store.Returns().SetRefundReference(99, "REF-1")
	if err != nil || ok {
		t.Fatalf("expected miss for unknown return, got ok=%v err=%v", ok, err)
	}
}

func TestReturnRepository_HasOpenForSale(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	open, err := store.Returns().HasOpenForSale(7)
	if err != nil || !open {
		t.Fatalf("expected open return, got open=%v err=%v", open, err)
	}
}

func TestStore_Atomically_Commit(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE products").
		WithArgs(int64(1), int32(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Atomically(context.Background(), func(uow domain.UnitOfWork) error {
		ok, err := uow.Catalog().Reserve(1, 1)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrStockConflict
		}
		return nil
	})
	if err != nil {
		t.Fatalf("atomically: %v", err)
	}
}

func TestStore_Atomically_RollbackOnError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE products").
		WithArgs(int64(1), int32(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id FROM products").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectRollback()

	err := store.Atomically(context.Background(), func(uow domain.UnitOfWork) error {
		ok, err := uow.Catalog().Reserve(1, 1)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrStockConflict
		}
		return nil
	})
	if !errors.Is(err, domain.ErrStockConflict) {
		t.Fatalf("expected ErrStockConflict, got %v", err)
	}
}
