package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"
)

// VNPay is a second deterministic provider simulator, giving the registry
// a genuinely different webhook signature header to dispatch on: a single
// hex HMAC-SHA256 digest under X-VNPay-Signature, with no embedded
// timestamp (unlike stripe's "t=...,v1=..." format).
type VNPay struct {
	secret string
}

// NewVNPay builds a VNPay simulator signing with secret.
func NewVNPay(secret string) *VNPay {
	return &VNPay{secret: secret}
}

// Name implements ports.Provider.
func (v *VNPay) Name() string { return "vnpay" }

// Charge implements ports.Provider.
func (v *VNPay) Charge(ctx context.Context, req ports.ProviderChargeRequest) (ports.ProviderChargeResult, error) {
	id, err := generateTransactionID("vnp_")
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

// Refund implements ports.Provider.
func (v *VNPay) Refund(ctx context.Context, req ports.ProviderRefundRequest) (ports.ProviderRefundResult, error) {
	id, err := generateTransactionID("vnr_")
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
func (v *VNPay) VerifyWebhookSignature(headers map[string]string, body []byte) bool {
	header, ok := headers["X-VNPay-Signature"]
	if !ok {
		return false
	}
	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}

// ParseWebhookEvent implements ports.Provider.
func (v *VNPay) ParseWebhookEvent(body []byte) (ports.ProviderWebhookEvent, error) {
	var payload struct {
		TransactionID string `json:"transaction_id"`
		Status        string `json:"status"`
		ErrorCode     string `json:"error_code"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ports.ProviderWebhookEvent{}, fmt.Errorf("vnpay: parse webhook event: %w", err)
	}

	return ports.ProviderWebhookEvent{
		ProviderTransactionID: payload.TransactionID,
		Status:                domain.PaymentStatus(payload.Status),
		ErrorCode:             payload.ErrorCode,
	}, nil
}
