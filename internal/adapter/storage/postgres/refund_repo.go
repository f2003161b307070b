package postgres

import (
	"context"
	"errors"
	"fmt"

	"payment-orchestrator/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RefundRepo implements ports.RefundRepository.
type RefundRepo struct {
	pool Pool
}

// NewRefundRepo creates a new RefundRepo.
func NewRefundRepo(pool Pool) *RefundRepo {
	return &RefundRepo{pool: pool}
}

const refundColumns = `id, payment_id, amount, status, reason, provider_refund_id, created_at, updated_at`

// Create inserts a new refund within the caller's saga transaction.
func (r *RefundRepo) Create(ctx context.Context, tx pgx.Tx, refund *domain.Refund) error {
	query := `INSERT INTO refunds (` + refundColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := tx.Exec(ctx, query,
		refund.ID, refund.PaymentID, refund.Amount, string(refund.Status),
		refund.Reason, refund.ProviderRefundID, refund.CreatedAt, refund.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert refund: %w", err)
	}
	return nil
}

// GetByID fetches a refund by UUID.
func (r *RefundRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE id = $1`

	ref, err := scanRefund(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return ref, nil
}

// UpdateStatus transitions a refund's status within tx.
func (r *RefundRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.RefundStatus, providerRefundID *string) error {
	query := `UPDATE refunds SET status=$1, provider_refund_id=COALESCE($2, provider_refund_id), updated_at=NOW() WHERE id=$3`
	tag, err := tx.Exec(ctx, query, string(status), providerRefundID, id)
	if err != nil {
		return fmt.Errorf("update refund status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("refund not found: %s", id)
	}
	return nil
}

// ListByPaymentForUpdate locks every existing refund row for paymentID,
// serializing the amount-conservation check against concurrent refund
// attempts on the same payment.
func (r *RefundRepo) ListByPaymentForUpdate(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) ([]domain.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE payment_id = $1 ORDER BY created_at ASC FOR UPDATE`

	rows, err := tx.Query(ctx, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("list refunds for update: %w", err)
	}
	defer rows.Close()

	var refunds []domain.Refund
	for rows.Next() {
		ref, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		refunds = append(refunds, *ref)
	}
	return refunds, rows.Err()
}

func scanRefund(row scanner) (*domain.Refund, error) {
	ref := &domain.Refund{}
	var status string
	err := row.Scan(
		&ref.ID, &ref.PaymentID, &ref.Amount, &status,
		&ref.Reason, &ref.ProviderRefundID, &ref.CreatedAt, &ref.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan refund: %w", err)
	}
	ref.Status = domain.RefundStatus(status)
	return ref, nil
}
