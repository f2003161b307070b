package domain

import (
	"time"

	"github.com/google/uuid"
)

// MerchantStatus represents the state of a merchant account.
type MerchantStatus string

const (
	MerchantStatusActive    MerchantStatus = "active"
	MerchantStatusSuspended MerchantStatus = "suspended"
)

// Merchant represents a registered merchant in the system. It is ambient
// surface (§10): the core never looks at anything but the merchant-id
// attribution string the authentication collaborator resolves.
type Merchant struct {
	ID           uuid.UUID      `json:"id"`
	Username     string         `json:"username"`
	PasswordHash string         `json:"-"`
	MerchantName string         `json:"merchant_name"`
	AccessKey    string         `json:"access_key"`
	SecretKeyEnc string         `json:"-"`
	WebhookURL   *string        `json:"webhook_url,omitempty"`
	Status       MerchantStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// IsActive returns true if the merchant account is active.
func (m *Merchant) IsActive() bool {
	return m.Status == MerchantStatusActive
}
