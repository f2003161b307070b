package ports

import (
	"context"
	"time"

	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/money"

	"github.com/google/uuid"
)

// EncryptionService handles AES-256-GCM encryption/decryption of secret
// key material at rest.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations for the ambient
// merchant-dashboard surface.
type TokenService interface {
	Generate(merchantID uuid.UUID, accessKey string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	MerchantID uuid.UUID
	AccessKey  string
}

// IdempotencyCache is the Redis-layer fast path of the idempotency engine.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// TTL reports the remaining lifetime of key. A non-positive duration
	// with a nil error means the key carries no expiry or does not exist.
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// ErrIdempotencyConflict is returned when a reused idempotency key carries
// a request fingerprint that does not match the original.
var ErrIdempotencyConflict = idempotencyConflictError{}

type idempotencyConflictError struct{}

func (idempotencyConflictError) Error() string { return "idempotency key conflict" }

// IdempotencyEngine coordinates the two-tier (Redis + Postgres) idempotency
// check described in SPEC_FULL.md §4.5, guarded by a Postgres advisory
// lock keyed per (idempotency-key, merchant).
type IdempotencyEngine interface {
	// Check consults the cache first, then persistence if absent. Returns
	// ErrIdempotencyConflict if a record exists with a different
	// fingerprint.
	Check(ctx context.Context, key string, merchantID uuid.UUID, fingerprint string) (CheckResult, error)
	// StartProcessing reserves the key under an advisory lock. Returns
	// ErrIdempotencyConflict on a fingerprint mismatch against a
	// concurrently-inserted record; returns nil (silently) if a matching
	// record already exists.
	StartProcessing(ctx context.Context, key string, merchantID uuid.UUID, fingerprint, path, method string) error
	// Complete persists the final response against the reserved key and
	// mirrors it to cache, preserving remaining TTL.
	Complete(ctx context.Context, key string, merchantID uuid.UUID, statusCode int, responseBody []byte) error
	// Remove deletes the key from both tiers, for requests that abort
	// before completion.
	Remove(ctx context.Context, key string, merchantID uuid.UUID) error
}

// CheckResult is the outcome of IdempotencyEngine.Check.
type CheckResult struct {
	Exists           bool
	Processing       bool
	CachedResponse   []byte
	CachedStatusCode int
}

// --- Payment provider abstraction ---

// ProviderChargeRequest is the normalized request a Provider receives to
// attempt a charge.
type ProviderChargeRequest struct {
	PaymentID uuid.UUID
	Amount    money.Money
	Metadata  map[string]string
}

// ProviderChargeResult is the normalized outcome of a charge attempt.
type ProviderChargeResult struct {
	Success               bool
	Status                domain.PaymentStatus
	ProviderTransactionID string
	ErrorCode             string
	RawResponse           []byte
}

// ProviderRefundRequest is the normalized request a Provider receives to
// attempt a refund against a previously charged transaction.
type ProviderRefundRequest struct {
	ProviderTransactionID string
	Amount                money.Money
}

// ProviderRefundResult is the normalized outcome of a refund attempt.
type ProviderRefundResult struct {
	Success          bool
	ProviderRefundID string
	ErrorCode        string
	RawResponse      []byte
}

// Provider is the four-operation abstraction a payment processor adapter
// implements: charge, refund, and the two webhook-authenticity operations
// used when the processor calls back in.
type Provider interface {
	Name() string
	Charge(ctx context.Context, req ProviderChargeRequest) (ProviderChargeResult, error)
	Refund(ctx context.Context, req ProviderRefundRequest) (ProviderRefundResult, error)
	VerifyWebhookSignature(headers map[string]string, body []byte) bool
	ParseWebhookEvent(body []byte) (ProviderWebhookEvent, error)
}

// ProviderWebhookEvent is the normalized shape of an inbound reconciliation
// callback from a provider.
type ProviderWebhookEvent struct {
	ProviderTransactionID string
	Status                domain.PaymentStatus
	ErrorCode             string
}

// ProviderRegistry resolves a named provider, case-insensitively.
type ProviderRegistry interface {
	Get(name string) (Provider, bool)
	Names() []string
}

// BreakerManager hands out a per-provider circuit breaker and reports its
// current state, guarding every outbound provider call.
type BreakerManager interface {
	Execute(ctx context.Context, provider string, fn func(ctx context.Context) (any, error)) (any, error)
	State(provider string) string
}

// ErrCircuitOpen is returned by BreakerManager.Execute when the named
// provider's breaker is open.
var ErrCircuitOpen = breakerOpenError{}

type breakerOpenError struct{}

func (breakerOpenError) Error() string { return "circuit breaker open" }

// --- Saga-backed core services ---

// PaymentService drives the charge saga: idempotency, validation,
// persistence, provider invocation, and webhook enqueue.
type PaymentService interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*domain.Payment, error)
	GetPayment(ctx context.Context, merchantID, id uuid.UUID) (*domain.Payment, error)
	ListPayments(ctx context.Context, params PaymentListParams) ([]domain.Payment, int64, error)
	// HandleProviderWebhook reconciles an inbound provider callback against
	// the payment it names, flipping pending payments to their resolved
	// status and enqueueing a merchant webhook on change.
	HandleProviderWebhook(ctx context.Context, provider string, event ProviderWebhookEvent) error
}

// CreatePaymentRequest holds validated input for payment creation.
type CreatePaymentRequest struct {
	MerchantID uuid.UUID
	ExternalID *string
	Amount     money.Money
	Provider   string
	Description string
	Metadata   map[string]string
	WebhookURL *string
}

// RefundService drives the refund saga under the amount-conservation
// invariant.
type RefundService interface {
	CreateRefund(ctx context.Context, req CreateRefundRequest) (*domain.Refund, *domain.Payment, error)
	GetRefund(ctx context.Context, merchantID, id uuid.UUID) (*domain.Refund, error)
	Refundable(ctx context.Context, merchantID, paymentID uuid.UUID) (*RefundableSummary, error)
}

// CreateRefundRequest holds validated input for refund creation.
type CreateRefundRequest struct {
	MerchantID uuid.UUID
	PaymentID  uuid.UUID
	Amount     *money.Money // nil = full remaining refund
	Reason     string
}

// RefundableSummary answers "how much of this payment remains refundable".
type RefundableSummary struct {
	PaymentAmount      string
	TotalRefunded      string
	PendingRefunds     string
	AvailableForRefund string
}

// WebhookService enqueues and delivers outbound merchant notifications.
type WebhookService interface {
	Enqueue(ctx context.Context, merchantID uuid.UUID, paymentID *uuid.UUID, eventType string, payload any, destinationURL string) error
	Send(ctx context.Context, webhookID uuid.UUID) error
	SweepDue(ctx context.Context) (int, error)
}

// WebhookQueue is the durable delayed-delivery queue a webhook id is
// published to; consumed by the worker loop.
type WebhookQueue interface {
	Publish(ctx context.Context, webhookID uuid.UUID, delay time.Duration) error
	Consume(ctx context.Context) (uuid.UUID, func(ack bool, requeue bool), error)
}

// --- Ambient auth / merchant-management surface ---

// AuthService defines authentication business logic for the ambient
// merchant-dashboard surface.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
	Login(ctx context.Context, username, password string) (string, time.Time, error)
}

// RegisterRequest holds input for merchant registration.
type RegisterRequest struct {
	Username     string
	Password     string
	MerchantName string
	WebhookURL   *string
}

// RegisterResponse holds the registration result shown once. ApiKey is the
// plaintext X-API-Key credential for the payments/refunds surface; only its
// hash is ever persisted.
type RegisterResponse struct {
	MerchantID uuid.UUID
	AccessKey  string
	SecretKey  string
	ApiKey     string
}

// MerchantManagementService defines ambient profile/key-management
// operations on the dashboard surface.
type MerchantManagementService interface {
	GetProfile(ctx context.Context, merchantID uuid.UUID) (*domain.Merchant, error)
	UpdateWebhookURL(ctx context.Context, merchantID uuid.UUID, webhookURL string) error
	RotateKeys(ctx context.Context, merchantID uuid.UUID) (*RegisterResponse, error)
}

// ReportingService defines ambient dashboard/reporting business logic.
type ReportingService interface {
	GetDashboardStats(ctx context.Context, merchantID uuid.UUID, period string) (*PaymentStats, error)
	ListPayments(ctx context.Context, params PaymentListParams) ([]domain.Payment, int64, error)
}

// AuditService records an audited change, best-effort and asynchronously.
type AuditService interface {
	Log(ctx context.Context, entry domain.AuditLog)
}
