package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionPaymentCreated   AuditAction = "payment.created"
	AuditActionPaymentStatus    AuditAction = "payment.status_changed"
	AuditActionRefundCreated    AuditAction = "refund.created"
	AuditActionRefundStatus     AuditAction = "refund.status_changed"
	AuditActionRegister         AuditAction = "merchant.registered"
	AuditActionLogin            AuditAction = "merchant.login"
	AuditActionRotateKeys       AuditAction = "merchant.rotate_keys"
	AuditActionUpdateWebhookURL AuditAction = "merchant.update_webhook_url"
)

// AuditLog records a single audited change to an entity, for post-hoc
// reconstruction. Append-only; never updated or deleted by the service.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	MerchantID   *uuid.UUID  `json:"merchant_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	OldValue     string      `json:"old_value,omitempty"`
	NewValue     string      `json:"new_value,omitempty"`
	Actor        string      `json:"actor,omitempty"`
	ActorType    string      `json:"actor_type,omitempty"`
	IPAddress    string      `json:"ip_address"`
	UserAgent    string      `json:"user_agent,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}
