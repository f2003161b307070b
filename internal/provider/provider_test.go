package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/internal/crypto"
	"payment-orchestrator/internal/money"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(NewStripe("whsec"))
	r.Register(NewVNPay("vnsecret"))

	p, ok := r.Get("STRIPE")
	require.True(t, ok)
	assert.Equal(t, "stripe", p.Name())

	_, ok = r.Get("unknown")
	assert.False(t, ok)

	assert.ElementsMatch(t, []string{"stripe", "vnpay"}, r.Names())
}

func TestStripe_Charge(t *testing.T) {
	s := NewStripe("whsec")
	ctx := context.Background()

	decline, _ := money.Parse("USD", "100.99")
	res, err := s.Charge(ctx, ports.ProviderChargeRequest{PaymentID: uuid.New(), Amount: decline})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, domain.PaymentStatusFailed, res.Status)
	assert.Equal(t, "card_declined", res.ErrorCode)

	pending, _ := money.Parse("USD", "100.50")
	res, err = s.Charge(ctx, ports.ProviderChargeRequest{PaymentID: uuid.New(), Amount: pending})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, domain.PaymentStatusPending, res.Status)
	assert.NotEmpty(t, res.ProviderTransactionID)

	ok, _ := money.Parse("USD", "50.00")
	res, err = s.Charge(ctx, ports.ProviderChargeRequest{PaymentID: uuid.New(), Amount: ok})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, domain.PaymentStatusCompleted, res.Status)
	assert.Contains(t, res.ProviderTransactionID, "ch_")
}

func TestStripe_Refund(t *testing.T) {
	s := NewStripe("whsec")
	amt, _ := money.Parse("USD", "10.00")
	res, err := s.Refund(context.Background(), ports.ProviderRefundRequest{ProviderTransactionID: "ch_abc", Amount: amt})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Contains(t, res.ProviderRefundID, "re_")
}

func TestStripe_VerifyWebhookSignature(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := &Stripe{webhookSecret: "whsec", now: func() time.Time { return now }}
	body := []byte(`{"transaction_id":"ch_1","status":"completed"}`)
	header := crypto.SignWebhook("whsec", body, now)

	assert.True(t, s.VerifyWebhookSignature(map[string]string{"Stripe-Signature": header}, body))
	assert.False(t, s.VerifyWebhookSignature(map[string]string{}, body))
	assert.False(t, s.VerifyWebhookSignature(map[string]string{"Stripe-Signature": "t=1,v1=bad"}, body))
}

func TestStripe_ParseWebhookEvent(t *testing.T) {
	s := NewStripe("whsec")
	body := []byte(`{"transaction_id":"ch_1","status":"completed"}`)
	ev, err := s.ParseWebhookEvent(body)
	require.NoError(t, err)
	assert.Equal(t, "ch_1", ev.ProviderTransactionID)
	assert.Equal(t, domain.PaymentStatusCompleted, ev.Status)
}

func TestVNPay_Charge(t *testing.T) {
	v := NewVNPay("vnsecret")
	decline, _ := money.Parse("USD", "100.99")
	res, err := v.Charge(context.Background(), ports.ProviderChargeRequest{PaymentID: uuid.New(), Amount: decline})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "card_declined", res.ErrorCode)
}

func TestVNPay_VerifyWebhookSignature(t *testing.T) {
	v := NewVNPay("vnsecret")
	body := []byte(`{"transaction_id":"vnp_1","status":"completed"}`)
	mac := hmac.New(sha256.New, []byte("vnsecret"))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, v.VerifyWebhookSignature(map[string]string{"X-VNPay-Signature": sig}, body))
	assert.False(t, v.VerifyWebhookSignature(map[string]string{"X-VNPay-Signature": "deadbeef"}, body))
	assert.False(t, v.VerifyWebhookSignature(map[string]string{}, body))
}
