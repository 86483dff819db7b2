package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type productRepository struct {
	q querier
}

var _ domain.ProductCatalog = (*productRepository)(nil)

func (r *productRepository) Add(p domain.Product) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var id int64
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO products (name, price_minor, stock, promo_price_minor, promo_start, promo_end)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`,
		p.Name, p.PriceMinor, p.Stock, p.PromoPriceMinor,
		nullTime(p.PromoStart), nullTime(p.PromoEnd),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert product: %w", err)
	}
	return id, nil
}

func (r *productRepository) GetByID(id int64) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var p domain.Product
	var promoStart, promoEnd sql.NullTime

	err := r.q.QueryRowContext(ctx, `
		SELECT id, name, price_minor, stock, promo_price_minor, promo_start, promo_end
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.PriceMinor, &p.Stock, &p.PromoPriceMinor, &promoStart, &promoEnd)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductMissing
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	p.PromoStart = promoStart.Time
	p.PromoEnd = promoEnd.Time

	return p, nil
}

func (r *productRepository) List() ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.q.QueryContext(ctx, `
		SELECT id, name, price_minor, stock, promo_price_minor, promo_start, promo_end
		FROM products
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		var p domain.Product
		var promoStart, promoEnd sql.NullTime
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceMinor, &p.Stock, &p.PromoPriceMinor, &promoStart, &promoEnd); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		p.PromoStart = promoStart.Time
		p.PromoEnd = promoEnd.Time
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, nil
}

// Reserve выполняет условный декремент стока одним UPDATE: проверка
// "stock >= qty" и списание атомарны на стороне базы.
func (r *productRepository) Reserve(id int64, qty int32) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2
		WHERE id = $1
		  AND stock >= $2
	`, id, qty)
	if err != nil {
		return false, fmt.Errorf("reserve stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return true, nil
	}

	exists, err := r.exists(ctx, id)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, domain.ErrProductMissing
	}
	return false, nil
}

func (r *productRepository) Restock(id int64, qty int32) (bool, error) {
	if qty < 0 {
		return false, domain.ErrRestockQtyNegative
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + $2
		WHERE id = $1
	`, id, qty)
	if err != nil {
		return false, fmt.Errorf("restock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return false, domain.ErrProductMissing
	}
	return true, nil
}

func (r *productRepository) exists(ctx context.Context, id int64) (bool, error) {
	var found int64
	err := r.q.QueryRowContext(ctx, `SELECT id FROM products WHERE id = $1`, id).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check product exists: %w", err)
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
