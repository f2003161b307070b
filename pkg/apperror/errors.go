package apperror

import (
	"fmt"
	"net/http"
)

// Kind is the conceptual error category a handler maps to one HTTP status
// and a stable wire code, replacing the teacher's per-domain SEC/PAY/AUTH/
// SYS string codes with the fixed taxonomy this service needs.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindUnauthorized        Kind = "unauthorized"
	KindForbidden           Kind = "forbidden"
	KindNotFound            Kind = "not_found"
	KindIdempotencyConflict Kind = "idempotency_conflict"
	KindRateLimited         Kind = "rate_limited"
	KindProvider            Kind = "provider"
	KindCircuitOpen         Kind = "circuit_open"
	KindInternal            Kind = "internal"
)

var kindStatus = map[Kind]int{
	KindValidation:          http.StatusBadRequest,
	KindUnauthorized:        http.StatusUnauthorized,
	KindForbidden:           http.StatusForbidden,
	KindNotFound:            http.StatusNotFound,
	KindIdempotencyConflict: http.StatusConflict,
	KindRateLimited:         http.StatusTooManyRequests,
	KindProvider:            http.StatusBadGateway,
	KindCircuitOpen:         http.StatusServiceUnavailable,
	KindInternal:            http.StatusInternalServerError,
}

// AppError is a structured error that maps to an HTTP response.
type AppError struct {
	Kind    Kind           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"` // wrapped internal error, never exposed to the client
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the status bound to this error's Kind.
func (e *AppError) HTTPStatus() int {
	if status, ok := kindStatus[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// New creates a new AppError of the given kind.
func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

// Wrap wraps an internal error with an AppError of the given kind.
func Wrap(kind Kind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

// WithDetails attaches structured detail fields and returns e for chaining.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

// ---- Validation (400) ----

// Validation reports that input violates a stated invariant: amount,
// currency, refund exceeds available, URL not permitted, and similar.
func Validation(message string) *AppError {
	return New(KindValidation, message)
}

// ---- Authentication & authorization (401/403) ----

func Unauthorized(message string) *AppError {
	return New(KindUnauthorized, message)
}

func ErrInvalidCredentials() *AppError {
	return Unauthorized("invalid credentials")
}

func ErrInvalidToken() *AppError {
	return Unauthorized("invalid or expired token")
}

func ErrInvalidSignature() *AppError {
	return Unauthorized("invalid signature")
}

func Forbidden(message string) *AppError {
	return New(KindForbidden, message)
}

func ErrMerchantSuspended() *AppError {
	return Forbidden("merchant account is suspended")
}

// ErrInvalidAPIKey reports a missing, unknown, or deactivated X-API-Key on
// the merchant payment/refund surface.
func ErrInvalidAPIKey() *AppError {
	return Unauthorized("invalid or inactive API key")
}

// ---- Not found (404) ----

// NotFound reports an absent entity, or one owned by another merchant
// (rendered identically to an absent entity, to avoid enumeration).
func NotFound(entity string) *AppError {
	return New(KindNotFound, fmt.Sprintf("%s not found", entity))
}

// ---- Idempotency (409) ----

func IdempotencyConflict(message string) *AppError {
	return New(KindIdempotencyConflict, message)
}

func ErrUsernameExists() *AppError {
	return New(KindValidation, "username already exists")
}

// ---- Rate limiting (429) ----

func RateLimited(message string) *AppError {
	return New(KindRateLimited, message)
}

func ErrRateLimitExceeded() *AppError {
	return RateLimited("rate limit exceeded")
}

// ---- Provider & breaker (502/503) ----

// Provider reports that the remote processor returned an error, surfacing
// its own error code in the message.
func Provider(providerErrorCode string, err error) *AppError {
	return Wrap(KindProvider, fmt.Sprintf("provider error: %s", providerErrorCode), err)
}

// CircuitOpen reports that a provider's breaker rejected the call outright.
func CircuitOpen(provider string) *AppError {
	return New(KindCircuitOpen, fmt.Sprintf("%s is temporarily unavailable", provider))
}

// ---- Internal (500) ----

// Internal wraps an unexpected internal error.
func Internal(err error) *AppError {
	return Wrap(KindInternal, "internal server error", err)
}

// InternalError is an alias of Internal, kept for the ambient call sites
// that predate the Kind taxonomy.
func InternalError(err error) *AppError {
	return Internal(err)
}

func ErrDatabaseError(err error) *AppError {
	return Wrap(KindInternal, "internal database error", err)
}

func ErrLockTimeout(err error) *AppError {
	return Wrap(KindInternal, "lock acquisition timeout", err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap(KindInternal, "encryption service failure", err)
}
