package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WebhookStatus is the delivery state of a WebhookEvent.
type WebhookStatus string

const (
	WebhookStatusPending WebhookStatus = "pending"
	WebhookStatusSent    WebhookStatus = "sent"
	WebhookStatusFailed  WebhookStatus = "failed"
)

// DefaultWebhookMaxAttempts is the attempt ceiling applied at enqueue time.
const DefaultWebhookMaxAttempts = 5

// DefaultRetrySchedule is the ordered backoff applied between delivery
// attempts; overflow clamps to the last entry.
var DefaultRetrySchedule = []time.Duration{
	60 * time.Second,
	300 * time.Second,
	900 * time.Second,
	3600 * time.Second,
}

// WebhookEvent is one delivery-attempt stream to a merchant endpoint.
type WebhookEvent struct {
	ID            uuid.UUID       `json:"id"`
	PaymentID     *uuid.UUID      `json:"payment_id,omitempty"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	DestinationURL string         `json:"destination_url"`
	SignatureHeader string        `json:"-"`
	Attempts      int             `json:"attempts"`
	MaxAttempts   int             `json:"max_attempts"`
	NextRetryAt   *time.Time      `json:"next_retry_at,omitempty"`
	LastError     *string         `json:"last_error,omitempty"`
	Status        WebhookStatus   `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	SentAt        *time.Time      `json:"sent_at,omitempty"`
}

// RetryDelay returns the backoff duration for the given zero-based attempt
// index, clamped to the last schedule entry on overflow.
func RetryDelay(schedule []time.Duration, attemptIndex int) time.Duration {
	if attemptIndex < 0 {
		attemptIndex = 0
	}
	if attemptIndex >= len(schedule) {
		attemptIndex = len(schedule) - 1
	}
	return schedule[attemptIndex]
}
