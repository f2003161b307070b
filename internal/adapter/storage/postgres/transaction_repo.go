package postgres

import (
	"context"
	"fmt"

	"payment-orchestrator/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository, the append-only
// per-payment step log.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create appends a step-log row within the caller's saga transaction. Rows
// are never updated afterward.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, payment_id, status, raw_response, error_message, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := tx.Exec(ctx, query, t.ID, t.PaymentID, string(t.Status), t.RawResponse, t.ErrorMessage, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction step: %w", err)
	}
	return nil
}

// ListByPayment returns every step-log row for a payment in chronological
// order.
func (r *TransactionRepo) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]domain.Transaction, error) {
	query := `SELECT id, payment_id, status, raw_response, error_message, created_at
		FROM transactions WHERE payment_id = $1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("list transaction steps: %w", err)
	}
	defer rows.Close()

	var steps []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var status string
		if err := rows.Scan(&t.ID, &t.PaymentID, &status, &t.RawResponse, &t.ErrorMessage, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction step: %w", err)
		}
		t.Status = domain.PaymentStatus(status)
		steps = append(steps, t)
	}
	return steps, rows.Err()
}
