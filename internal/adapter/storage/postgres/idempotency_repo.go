package postgres

import (
	"context"
	"fmt"
	"time"

	"payment-orchestrator/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo implements ports.IdempotencyRepository.
type IdempotencyRepo struct {
	pool Pool
}

// NewIdempotencyRepo creates a new IdempotencyRepo.
func NewIdempotencyRepo(pool Pool) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool}
}

// Insert records a new (merchant, key) pair as processing, inside the
// caller's advisory-locked transaction.
func (r *IdempotencyRepo) Insert(ctx context.Context, tx pgx.Tx, rec *domain.IdempotencyRecord) error {
	query := `INSERT INTO idempotency_records
		(key, merchant_id, request_fingerprint, request_path, request_method, status, created_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := tx.Exec(ctx, query,
		rec.Key, rec.MerchantID, rec.RequestFingerprint, rec.RequestPath, rec.RequestMethod,
		string(rec.Status), rec.CreatedAt, rec.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert idempotency record: %w", err)
	}
	return nil
}

// Get fetches the record for (key, merchantID).
func (r *IdempotencyRepo) Get(ctx context.Context, key string, merchantID uuid.UUID) (*domain.IdempotencyRecord, error) {
	query := `SELECT key, merchant_id, request_fingerprint, request_path, request_method,
		status, response_body, response_status_code, created_at, expires_at
		FROM idempotency_records WHERE key = $1 AND merchant_id = $2`

	rec := &domain.IdempotencyRecord{}
	var status string
	err := r.pool.QueryRow(ctx, query, key, merchantID).Scan(
		&rec.Key, &rec.MerchantID, &rec.RequestFingerprint, &rec.RequestPath, &rec.RequestMethod,
		&status, &rec.ResponseBody, &rec.ResponseStatusCode, &rec.CreatedAt, &rec.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}
	rec.Status = domain.IdempotencyStatus(status)
	return rec, nil
}

// Complete stores the final response and marks the record completed.
func (r *IdempotencyRepo) Complete(ctx context.Context, tx pgx.Tx, key string, merchantID uuid.UUID, responseStatusCode int, responseBody []byte) error {
	query := `UPDATE idempotency_records
		SET status=$1, response_status_code=$2, response_body=$3
		WHERE key=$4 AND merchant_id=$5`
	_, err := tx.Exec(ctx, query, string(domain.IdempotencyStatusCompleted), responseStatusCode, responseBody, key, merchantID)
	if err != nil {
		return fmt.Errorf("complete idempotency record: %w", err)
	}
	return nil
}

// Delete removes the record for (key, merchantID), used when a request
// aborts before completion so a retry can start clean.
func (r *IdempotencyRepo) Delete(ctx context.Context, key string, merchantID uuid.UUID) error {
	query := `DELETE FROM idempotency_records WHERE key=$1 AND merchant_id=$2`
	_, err := r.pool.Exec(ctx, query, key, merchantID)
	if err != nil {
		return fmt.Errorf("delete idempotency record: %w", err)
	}
	return nil
}

// DeleteExpired purges records whose expiry has passed, for the periodic
// cleanup job; returns the number of rows removed.
func (r *IdempotencyRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM idempotency_records WHERE expires_at <= $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired idempotency records: %w", err)
	}
	return tag.RowsAffected(), nil
}
