package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

type paymentRepository struct {
	q querier
}

var _ domain.PaymentLedger = (*paymentRepository)(nil)

func (r *paymentRepository) Record(p domain.Payment) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var id int64
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO payments (sale_id, method, reference, amount_minor, status, ts)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`,
		p.SaleID, p.Method, p.Reference, p.AmountMinor, string(p.Status), p.Timestamp,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert payment: %w", err)
	}
	return id, nil
}

func (r *paymentRepository) GetForSale(saleID int64) (domain.Payment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var p domain.Payment
	var status string

	err := r.q.QueryRowContext(ctx, `
		SELECT id, sale_id, method, reference, amount_minor, status, ts
		FROM payments
		WHERE sale_id = $1
	`, saleID).Scan(&p.ID, &p.SaleID, &p.Method, &p.Reference, &p.AmountMinor, &status, &p.Timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Payment{}, domain.ErrPaymentNotFound
		}
		return domain.Payment{}, fmt.Errorf("select payment: %w", err)
	}
	p.Status = domain.PaymentStatus(status)

	return p, nil
}
