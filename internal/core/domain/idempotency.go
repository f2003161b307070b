package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyStatus is the lifecycle state of an IdempotencyRecord.
type IdempotencyStatus string

const (
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	IdempotencyStatusCompleted  IdempotencyStatus = "completed"
)

// IdempotencyRecord is one row per (merchant, key) pair, gating at-most-once
// execution of a client request.
type IdempotencyRecord struct {
	Key                string            `json:"key"`
	MerchantID         uuid.UUID         `json:"merchant_id"`
	RequestFingerprint string            `json:"request_fingerprint"`
	RequestPath        string            `json:"request_path"`
	RequestMethod      string            `json:"request_method"`
	Status             IdempotencyStatus `json:"status"`
	ResponseBody       []byte            `json:"response_body,omitempty"`
	ResponseStatusCode int               `json:"response_status_code,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	ExpiresAt          time.Time         `json:"expires_at"`
}

// AdvisoryLockKey builds the cooperative-lock key used for startProcessing.
func AdvisoryLockKey(key string, merchantID uuid.UUID) string {
	return "idempotency:" + key + ":" + merchantID.String()
}
