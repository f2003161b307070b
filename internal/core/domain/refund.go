package domain

import (
	"time"

	"github.com/google/uuid"
)

// RefundStatus is the lifecycle state of a Refund.
type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusCompleted RefundStatus = "completed"
	RefundStatusFailed    RefundStatus = "failed"
)

// Refund is a proposed movement of money back, bound to a payment.
type Refund struct {
	ID               uuid.UUID    `json:"id"`
	PaymentID        uuid.UUID    `json:"payment_id"`
	Amount           string       `json:"amount"`
	Status           RefundStatus `json:"status"`
	Reason           string       `json:"reason,omitempty"`
	ProviderRefundID *string      `json:"provider_refund_id,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}
