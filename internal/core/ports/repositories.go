package ports

import (
	"context"
	"time"

	"payment-orchestrator/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MerchantRepository defines persistence operations for merchants.
type MerchantRepository interface {
	Create(ctx context.Context, merchant *domain.Merchant) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error)
	GetByAccessKey(ctx context.Context, accessKey string) (*domain.Merchant, error)
	GetByUsername(ctx context.Context, username string) (*domain.Merchant, error)
	UpdateWebhookURL(ctx context.Context, merchantID uuid.UUID, webhookURL *string) error
	UpdateKeys(ctx context.Context, merchantID uuid.UUID, accessKey, secretKeyEnc string) error
}

// ApiKeyRepository defines persistence for opaque merchant API credentials.
type ApiKeyRepository interface {
	Create(ctx context.Context, key *domain.ApiKey) error
	GetByHashedKey(ctx context.Context, hashedKey string) (*domain.ApiKey, error)
	TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error
}

// PaymentRepository defines persistence operations for payments.
type PaymentRepository interface {
	Create(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Payment, error)
	GetByExternalID(ctx context.Context, merchantID uuid.UUID, externalID string) (*domain.Payment, error)
	GetByProviderTransactionID(ctx context.Context, provider, providerTransactionID string) (*domain.Payment, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.PaymentStatus, providerTransactionID *string) error
	List(ctx context.Context, params PaymentListParams) ([]domain.Payment, int64, error)
	GetStats(ctx context.Context, merchantID uuid.UUID, periodStart *time.Time) (*PaymentStats, error)
}

// PaymentListParams holds filter and pagination for listing payments.
type PaymentListParams struct {
	MerchantID uuid.UUID
	Status     *domain.PaymentStatus
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

// PaymentStats holds aggregated dashboard statistics.
type PaymentStats struct {
	TotalPayments int64
	Completed     int64
	Failed        int64
	Refunded      int64
	TotalVolume   string // decimal string, merchant's primary currency
}

// TransactionRepository defines persistence for the append-only
// per-payment step log.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]domain.Transaction, error)
}

// RefundRepository defines persistence operations for refunds.
type RefundRepository interface {
	Create(ctx context.Context, tx pgx.Tx, refund *domain.Refund) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Refund, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.RefundStatus, providerRefundID *string) error
	// ListByPaymentForUpdate locks the payment's existing refund rows so the
	// amount-conservation check and the new insert happen atomically.
	ListByPaymentForUpdate(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) ([]domain.Refund, error)
}

// IdempotencyRepository defines the durable (Postgres) tier of the
// idempotency engine, the fallback of record when the Redis fast path
// misses or the request spans a server restart.
type IdempotencyRepository interface {
	// Insert reserves the key in the "processing" state. A unique-constraint
	// violation on (key, merchant_id) must surface as domain-level conflict
	// detection by the caller.
	Insert(ctx context.Context, tx pgx.Tx, rec *domain.IdempotencyRecord) error
	Get(ctx context.Context, key string, merchantID uuid.UUID) (*domain.IdempotencyRecord, error)
	Complete(ctx context.Context, tx pgx.Tx, key string, merchantID uuid.UUID, responseStatusCode int, responseBody []byte) error
	Delete(ctx context.Context, key string, merchantID uuid.UUID) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// WebhookRepository defines persistence for outbound webhook delivery
// attempts.
type WebhookRepository interface {
	Create(ctx context.Context, event *domain.WebhookEvent) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WebhookEvent, error)
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
	RecordFailedAttempt(ctx context.Context, id uuid.UUID, nextRetryAt time.Time, lastError string) error
	// ListDue returns up to limit pending events whose retry time has
	// arrived, for the periodic sweeper.
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.WebhookEvent, error)
}

// AuditRepository defines persistence for the append-only audit trail.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
