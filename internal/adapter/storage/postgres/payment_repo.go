package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	pool Pool
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

const paymentColumns = `id, external_id, merchant_id, amount, currency, status, provider,
	provider_transaction_id, description, metadata, webhook_url, created_at, updated_at`

// Create inserts a new payment within the caller's saga transaction.
func (r *PaymentRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	query := `INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := tx.Exec(ctx, query,
		p.ID, p.ExternalID, p.MerchantID, p.Amount, p.Currency, string(p.Status), p.Provider,
		p.ProviderTransactionID, p.Description, p.Metadata, p.WebhookURL, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetByID fetches a payment by UUID without locking.
func (r *PaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return r.scan(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate locks the payment row within tx, serializing concurrent
// refund/reconciliation attempts against it.
func (r *PaymentRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`
	return r.scan(tx.QueryRow(ctx, query, id))
}

// GetByExternalID fetches a payment by the merchant's own reference id,
// the lookup the idempotency fast path falls back to.
func (r *PaymentRepo) GetByExternalID(ctx context.Context, merchantID uuid.UUID, externalID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE merchant_id = $1 AND external_id = $2`
	return r.scan(r.pool.QueryRow(ctx, query, merchantID, externalID))
}

// GetByProviderTransactionID fetches a payment by the provider's own
// transaction id, used to reconcile inbound webhook callbacks.
func (r *PaymentRepo) GetByProviderTransactionID(ctx context.Context, provider, providerTransactionID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE provider = $1 AND provider_transaction_id = $2`
	return r.scan(r.pool.QueryRow(ctx, query, provider, providerTransactionID))
}

// UpdateStatus transitions a payment's status within tx, optionally
// recording the provider transaction id assigned at charge time.
func (r *PaymentRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.PaymentStatus, providerTransactionID *string) error {
	query := `UPDATE payments SET status=$1, provider_transaction_id=COALESCE($2, provider_transaction_id), updated_at=NOW() WHERE id=$3`
	tag, err := tx.Exec(ctx, query, string(status), providerTransactionID, id)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment not found: %s", id)
	}
	return nil
}

// List fetches payments with filtering and pagination for the merchant
// dashboard.
func (r *PaymentRepo) List(ctx context.Context, params ports.PaymentListParams) ([]domain.Payment, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("merchant_id = $%d", argIdx))
	args = append(args, params.MerchantID)
	argIdx++

	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, string(*params.Status))
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM payments %s", where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}

	page, pageSize := params.Page, params.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	dataQuery := fmt.Sprintf(`SELECT %s FROM payments %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		paymentColumns, where, argIdx, argIdx+1)
	args = append(args, pageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPaymentRow(rows)
		if err != nil {
			return nil, 0, err
		}
		payments = append(payments, *p)
	}
	return payments, total, rows.Err()
}

// GetStats aggregates dashboard statistics for a merchant, optionally
// restricted to payments created at or after periodStart.
func (r *PaymentRepo) GetStats(ctx context.Context, merchantID uuid.UUID, periodStart *time.Time) (*ports.PaymentStats, error) {
	condition := "merchant_id = $1"
	args := []any{merchantID}
	if periodStart != nil {
		condition += " AND created_at >= $2"
		args = append(args, *periodStart)
	}

	query := fmt.Sprintf(`SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = 'completed') AS completed,
		COUNT(*) FILTER (WHERE status = 'failed') AS failed,
		COUNT(*) FILTER (WHERE status IN ('refunded','partially_refunded')) AS refunded,
		COALESCE(SUM(amount::numeric) FILTER (WHERE status = 'completed'), 0) AS total_volume
		FROM payments WHERE %s`, condition)

	stats := &ports.PaymentStats{}
	var totalVolume string
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&stats.TotalPayments, &stats.Completed, &stats.Failed, &stats.Refunded, &totalVolume,
	)
	if err != nil {
		return nil, fmt.Errorf("get payment stats: %w", err)
	}
	stats.TotalVolume = totalVolume
	return stats, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *PaymentRepo) scan(row pgx.Row) (*domain.Payment, error) {
	p, err := scanPaymentRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func scanPaymentRow(row scanner) (*domain.Payment, error) {
	p := &domain.Payment{}
	var status string
	err := row.Scan(
		&p.ID, &p.ExternalID, &p.MerchantID, &p.Amount, &p.Currency, &status, &p.Provider,
		&p.ProviderTransactionID, &p.Description, &p.Metadata, &p.WebhookURL, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	p.Status = domain.PaymentStatus(status)
	return p, nil
}
