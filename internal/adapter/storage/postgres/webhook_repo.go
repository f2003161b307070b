package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WebhookRepo implements ports.WebhookRepository.
type WebhookRepo struct {
	pool Pool
}

// NewWebhookRepository creates a PostgreSQL-backed WebhookRepository.
func NewWebhookRepository(pool Pool) ports.WebhookRepository {
	return &WebhookRepo{pool: pool}
}

func (r *WebhookRepo) Create(ctx context.Context, event *domain.WebhookEvent) error {
	query := `INSERT INTO webhook_events
		(id, payment_id, event_type, payload, destination_url, attempts, max_attempts, next_retry_at, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err := r.pool.Exec(ctx, query,
		event.ID, event.PaymentID, event.EventType, event.Payload, event.DestinationURL,
		event.Attempts, event.MaxAttempts, event.NextRetryAt, string(event.Status), event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook event: %w", err)
	}
	return nil
}

func (r *WebhookRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WebhookEvent, error) {
	query := `SELECT id, payment_id, event_type, payload, destination_url, attempts, max_attempts,
		next_retry_at, last_error, status, created_at, sent_at
		FROM webhook_events WHERE id = $1`

	e := &domain.WebhookEvent{}
	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.PaymentID, &e.EventType, &e.Payload, &e.DestinationURL,
		&e.Attempts, &e.MaxAttempts, &e.NextRetryAt, &e.LastError, &status,
		&e.CreatedAt, &e.SentAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get webhook event: %w", err)
	}
	e.Status = domain.WebhookStatus(status)
	return e, nil
}

func (r *WebhookRepo) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	query := `UPDATE webhook_events SET status=$1, sent_at=$2, next_retry_at=NULL WHERE id=$3`
	_, err := r.pool.Exec(ctx, query, string(domain.WebhookStatusSent), sentAt, id)
	if err != nil {
		return fmt.Errorf("mark webhook sent: %w", err)
	}
	return nil
}

func (r *WebhookRepo) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	query := `UPDATE webhook_events SET status=$1, last_error=$2, next_retry_at=NULL WHERE id=$3`
	_, err := r.pool.Exec(ctx, query, string(domain.WebhookStatusFailed), lastError, id)
	if err != nil {
		return fmt.Errorf("mark webhook failed: %w", err)
	}
	return nil
}

func (r *WebhookRepo) RecordFailedAttempt(ctx context.Context, id uuid.UUID, nextRetryAt time.Time, lastError string) error {
	query := `UPDATE webhook_events
		SET attempts = attempts + 1, next_retry_at=$1, last_error=$2, status=$3
		WHERE id=$4`
	_, err := r.pool.Exec(ctx, query, nextRetryAt, lastError, string(domain.WebhookStatusPending), id)
	if err != nil {
		return fmt.Errorf("record webhook attempt: %w", err)
	}
	return nil
}

func (r *WebhookRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.WebhookEvent, error) {
	query := `SELECT id, payment_id, event_type, payload, destination_url, attempts, max_attempts,
		next_retry_at, last_error, status, created_at, sent_at
		FROM webhook_events
		WHERE status = $1 AND (next_retry_at IS NULL OR next_retry_at <= $2) AND attempts < max_attempts
		ORDER BY next_retry_at ASC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, string(domain.WebhookStatusPending), now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due webhooks: %w", err)
	}
	defer rows.Close()

	var events []domain.WebhookEvent
	for rows.Next() {
		var e domain.WebhookEvent
		var status string
		if err := rows.Scan(
			&e.ID, &e.PaymentID, &e.EventType, &e.Payload, &e.DestinationURL,
			&e.Attempts, &e.MaxAttempts, &e.NextRetryAt, &e.LastError, &status,
			&e.CreatedAt, &e.SentAt,
		); err != nil {
			return nil, fmt.Errorf("scan due webhook: %w", err)
		}
		e.Status = domain.WebhookStatus(status)
		events = append(events, e)
	}
	return events, rows.Err()
}
