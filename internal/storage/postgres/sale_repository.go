package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

type saleRepository struct {
	q querier
	// db не nil вне Atomically: Create тогда открывает собственную
	// транзакцию, чтобы продажа и строки записывались вместе.
	db *sql.DB
}

var _ domain.SaleStore = (*saleRepository)(nil)

func (r *saleRepository) Create(sale domain.Sale, lines []domain.SaleLine) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	q := r.q
	var tx *sql.Tx
	if r.db != nil {
		var err error
		tx, err = r.db.BeginTx(ctx, nil)
		if err != nil {
			return 0, fmt.Errorf("begin tx: %w", err)
		}
		q = tx
	}

	id, err := createSale(ctx, q, sale, lines)
	if tx != nil {
		if err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("commit create sale: %w", err)
		}
		return id, nil
	}
	return id, err
}

func createSale(ctx context.Context, q querier, sale domain.Sale, lines []domain.SaleLine) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO sales (user_id, ts, subtotal_minor, total_minor, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`,
		sale.UserID, sale.Timestamp, sale.SubtotalMinor, sale.TotalMinor, string(sale.Status),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert sale: %w", err)
	}

	for _, line := range lines {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO sale_lines (sale_id, product_id, qty, unit_price_minor)
			VALUES ($1, $2, $3, $4)
		`, id, line.ProductID, line.Qty, line.UnitPriceMinor); err != nil {
			return 0, fmt.Errorf("insert sale line: %w", err)
		}
	}

	return id, nil
}

func (r *saleRepository) Get(id int64) (domain.Sale, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var sale domain.Sale
	var status string

	err := r.q.QueryRowContext(ctx, `
		SELECT id, user_id, ts, subtotal_minor, total_minor, status
		FROM sales
		WHERE id = $1
	`, id).Scan(&sale.ID, &sale.UserID, &sale.Timestamp, &sale.SubtotalMinor, &sale.TotalMinor, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Sale{}, domain.ErrSaleNotFound
		}
		return domain.Sale{}, fmt.Errorf("select sale: %w", err)
	}
	sale.Status = domain.SaleStatus(status)

	return sale, nil
}

func (r *saleRepository) Lines(saleID int64) ([]domain.SaleLine, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.q.QueryContext(ctx, `
		SELECT sale_id, product_id, qty, unit_price_minor
		FROM sale_lines
		WHERE sale_id = $1
		ORDER BY product_id ASC
	`, saleID)
	if err != nil {
		return nil, fmt.Errorf("load sale lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.SaleLine, 0)
	for rows.Next() {
		var line domain.SaleLine
		if err := rows.Scan(&line.SaleID, &line.ProductID, &line.Qty, &line.UnitPriceMinor); err != nil {
			return nil, fmt.Errorf("scan sale line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sale lines: %w", err)
	}

	if len(lines) == 0 {
		// Отличаем продажу без строк от несуществующей.
		if _, err := r.Get(saleID); err != nil {
			return nil, err
		}
	}

	return lines, nil
}

func (r *saleRepository) SetStatus(id int64, status domain.SaleStatus) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `
		UPDATE sales
		SET status = $2
		WHERE id = $1
	`, id, string(status))
	if err != nil {
		return false, fmt.Errorf("update sale status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}
