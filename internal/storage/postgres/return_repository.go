package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

type returnRepository struct {
	q querier
}

var _ domain.ReturnLedger = (*returnRepository)(nil)

func (r *returnRepository) Create(req domain.ReturnRequest) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var id int64
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO returns (sale_id, user_id, rma_number, reason, status, requested_at, refund_reference, resolution_note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`,
		req.SaleID, req.UserID, req.RMANumber, req.Reason, string(req.Status),
		req.RequestedAt, req.RefundReference, req.ResolutionNote,
	).Scan(&id)
	if err != nil {
		// Частичный уникальный индекс по sale_id среди pending-заявок.
		if isUniqueViolation(err) {
			return 0, domain.ErrReturnDuplicate
		}
		return 0, fmt.Errorf("insert return: %w", err)
	}
	return id, nil
}

func (r *returnRepository) Get(id int64) (domain.ReturnRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	req, err := scanReturn(r.q.QueryRowContext(ctx, `
		SELECT id, sale_id, user_id, rma_number, reason, status, requested_at, resolved_at, refund_reference, resolution_note
		FROM returns
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ReturnRequest{}, domain.ErrReturnNotFound
		}
		return domain.ReturnRequest{}, fmt.Errorf("select return: %w", err)
	}
	return req, nil
}

func (r *returnRepository) HasOpenForSale(saleID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var exists bool
	err := r.q.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM returns WHERE sale_id = $1 AND status = 'pending'
		)
	`, saleID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check open return: %w", err)
	}
	return exists, nil
}

// Resolve закрывает заявку условным UPDATE: условие "status = 'pending'"
// выполняется базой атомарно, двойного одобрения не бывает.
func (r *returnRepository) Resolve(id int64, status domain.ReturnStatus, refundRef, note string, resolvedAt time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `
		UPDATE returns
		SET status = $2,
		    refund_reference = $3,
		    resolution_note = $4,
		    resolved_at = $5
		WHERE id = $1
		  AND status = 'pending'
	`, id, string(status), refundRef, note, resolvedAt)
	if err != nil {
		return false, fmt.Errorf("resolve return: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *returnRepository) SetRefundReference(id int64, refundRef string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `
		UPDATE returns
		SET refund_reference = $2
		WHERE id = $1
	`, id, refundRef)
	if err != nil {
		return false, fmt.Errorf("set refund reference: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *returnRepository) ListForUser(userID int64) ([]domain.ReturnRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.q.QueryContext(ctx, `
		SELECT id, sale_id, user_id, rma_number, reason, status, requested_at, resolved_at, refund_reference, resolution_note
		FROM returns
		WHERE $1 = 0 OR user_id = $1
		ORDER BY id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list returns: %w", err)
	}
	defer rows.Close()

	result := make([]domain.ReturnRequest, 0)
	for rows.Next() {
		req, err := scanReturn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan return row: %w", err)
		}
		result = append(result, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate return rows: %w", err)
	}

	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReturn(row rowScanner) (domain.ReturnRequest, error) {
	var req domain.ReturnRequest
	var status string
	var resolvedAt sql.NullTime

	if err := row.Scan(
		&req.ID, &req.SaleID, &req.UserID, &req.RMANumber, &req.Reason,
		&status, &req.RequestedAt, &resolvedAt, &req.RefundReference, &req.ResolutionNote,
	); err != nil {
		return domain.ReturnRequest{}, err
	}
	req.Status = domain.ReturnStatus(status)
	req.ResolvedAt = resolvedAt.Time

	return req, nil
}
