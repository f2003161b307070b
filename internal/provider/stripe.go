package provider

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/internal/crypto"

	"time"
)

// declineAmount is the deterministic decline trigger: "card_declined".
const declineAmount = "100.9900"

// pendingAmount is the deterministic pending trigger: resolved later by a
// reconciliation webhook.
const pendingAmount = "100.5000"

// Stripe is a deterministic simulator of the stripe provider. It never
// makes a network call; outcomes are a pure function of the charge amount,
// and its webhook signature header follows the "t=<ts>,v1=<hex>" format
// used by real Stripe webhooks (see crypto.SignWebhook/VerifyWebhookSignature).
type Stripe struct {
	webhookSecret string
	now           func() time.Time
}

// NewStripe builds a Stripe simulator signing inbound/outbound webhooks
// with webhookSecret.
func NewStripe(webhookSecret string) *Stripe {
	return &Stripe{webhookSecret: webhookSecret, now: time.Now}
}

// Name implements ports.Provider.
func (s *Stripe) Name() string { return "stripe" }

// Charge implements ports.Provider.
func (s *Stripe) Charge(ctx context.Context, req ports.ProviderChargeRequest) (ports.ProviderChargeResult, error) {
	id, err := generateTransactionID("ch_")
	if err != nil {
		return ports.ProviderChargeResult{}, err
	}

	amountStr := req.Amount.String()
	switch amountStr {
	case declineAmount:
		raw, _ := json.Marshal(map[string]any{"status": "failed", "error_code": "card_declined"})
		return ports.ProviderChargeResult{
			Success:     false,
			Status:      domain.PaymentStatusFailed,
			ErrorCode:   "card_declined",
			RawResponse: raw,
		}, nil
	case pendingAmount:
		raw, _ := json.Marshal(map[string]any{"status": "pending", "transaction_id": id})
		return ports.ProviderChargeResult{
			Success:               true,
			Status:                domain.PaymentStatusPending,
			ProviderTransactionID: id,
			RawResponse:           raw,
		}, nil
	default:
		raw, _ := json.Marshal(map[string]any{"status": "completed", "transaction_id": id})
		return ports.ProviderChargeResult{
			Success:               true,
			Status:                domain.PaymentStatusCompleted,
			ProviderTransactionID: id,
			RawResponse:           raw,
		}, nil
	}
}

// Refund implements ports.Provider. Refunds against a known transaction id
// always succeed in the simulator.
func (s *Stripe) Refund(ctx context.Context, req ports.ProviderRefundRequest) (ports.ProviderRefundResult, error) {
	id, err := generateTransactionID("re_")
	if err != nil {
		return ports.ProviderRefundResult{}, err
	}
	raw, _ := json.Marshal(map[string]any{"status": "completed", "refund_id": id})
	return ports.ProviderRefundResult{
		Success:          true,
		ProviderRefundID: id,
		RawResponse:      raw,
	}, nil
}

// VerifyWebhookSignature implements ports.Provider.
func (s *Stripe) VerifyWebhookSignature(headers map[string]string, body []byte) bool {
	header, ok := headers["Stripe-Signature"]
	if !ok {
		return false
	}
	return crypto.VerifyWebhookSignature(s.webhookSecret, body, header, s.now())
}

// ParseWebhookEvent implements ports.Provider.
func (s *Stripe) ParseWebhookEvent(body []byte) (ports.ProviderWebhookEvent, error) {
	var payload struct {
		TransactionID string `json:"transaction_id"`
		Status        string `json:"status"`
		ErrorCode     string `json:"error_code"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ports.ProviderWebhookEvent{}, fmt.Errorf("stripe: parse webhook event: %w", err)
	}

	return ports.ProviderWebhookEvent{
		ProviderTransactionID: payload.TransactionID,
		Status:                domain.PaymentStatus(payload.Status),
		ErrorCode:             payload.ErrorCode,
	}, nil
}

func generateTransactionID(prefix string) (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating transaction id: %w", err)
	}
	return prefix + hex.EncodeToString(buf), nil
}
