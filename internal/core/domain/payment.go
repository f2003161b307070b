package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the lifecycle state of a Payment.
type PaymentStatus string

const (
	PaymentStatusPending            PaymentStatus = "pending"
	PaymentStatusProcessing         PaymentStatus = "processing"
	PaymentStatusCompleted          PaymentStatus = "completed"
	PaymentStatusFailed             PaymentStatus = "failed"
	PaymentStatusRefunded           PaymentStatus = "refunded"
	PaymentStatusPartiallyRefunded  PaymentStatus = "partially_refunded"
)

// paymentTransitions enumerates the allowed from->to status moves.
var paymentTransitions = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentStatusPending: {
		PaymentStatusProcessing: true,
		PaymentStatusCompleted:  true,
		PaymentStatusFailed:     true,
	},
	PaymentStatusProcessing: {
		PaymentStatusCompleted: true,
		PaymentStatusFailed:    true,
	},
	PaymentStatusCompleted: {
		PaymentStatusRefunded:          true,
		PaymentStatusPartiallyRefunded: true,
	},
	PaymentStatusFailed:    {},
	PaymentStatusRefunded:  {},
	PaymentStatusPartiallyRefunded: {
		PaymentStatusRefunded: true,
	},
}

// CanTransition reports whether moving from 'from' to 'to' is permitted
// by the status-transition table.
func CanTransition(from, to PaymentStatus) bool {
	if from == to {
		return false
	}
	allowed, ok := paymentTransitions[from]
	if !ok {
		return false
	}
	return allowed[to]
}

// Payment is the request to move money through a provider. It is the
// aggregate root: transactions, refunds and webhook events live under it.
type Payment struct {
	ID                    uuid.UUID         `json:"id"`
	ExternalID            *string           `json:"external_id,omitempty"`
	MerchantID            uuid.UUID         `json:"merchant_id"`
	Amount                string            `json:"amount"`   // decimal string, 4 fractional digits
	Currency              string            `json:"currency"` // uppercase ISO-4217
	Status                PaymentStatus     `json:"status"`
	Provider              string            `json:"provider"`
	ProviderTransactionID *string           `json:"provider_transaction_id,omitempty"`
	Description           string            `json:"description,omitempty"`
	Metadata              map[string]string `json:"metadata,omitempty"`
	WebhookURL            *string           `json:"-"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

// IsRefundable reports whether a refund may be attempted against this
// payment's current status (the amount-conservation check is separate).
func (p *Payment) IsRefundable() bool {
	return p.Status == PaymentStatusCompleted || p.Status == PaymentStatusPartiallyRefunded
}
