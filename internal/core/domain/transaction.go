package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Transaction is an append-only step log entry for a payment: one row
// per status transition or provider interaction. Rows are never updated,
// only created; ordering within a payment is strictly monotonic by
// CreatedAt.
type Transaction struct {
	ID           uuid.UUID       `json:"id"`
	PaymentID    uuid.UUID       `json:"payment_id"`
	Status       PaymentStatus   `json:"status"`
	RawResponse  json.RawMessage `json:"raw_response,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
