package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestMerchant_IsActive(t *testing.T) {
	tests := []struct {
		name   string
		status MerchantStatus
		want   bool
	}{
		{"active", MerchantStatusActive, true},
		{"suspended", MerchantStatusSuspended, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Merchant{Status: tt.status}
			assert.Equal(t, tt.want, m.IsActive())
		})
	}
}

func TestPayment_IsRefundable(t *testing.T) {
	tests := []struct {
		name   string
		status PaymentStatus
		want   bool
	}{
		{"pending", PaymentStatusPending, false},
		{"processing", PaymentStatusProcessing, false},
		{"completed", PaymentStatusCompleted, true},
		{"failed", PaymentStatusFailed, false},
		{"refunded", PaymentStatusRefunded, false},
		{"partially refunded", PaymentStatusPartiallyRefunded, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Payment{Status: tt.status}
			assert.Equal(t, tt.want, p.IsRefundable())
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to PaymentStatus
		want     bool
	}{
		{PaymentStatusPending, PaymentStatusProcessing, true},
		{PaymentStatusPending, PaymentStatusCompleted, true},
		{PaymentStatusPending, PaymentStatusFailed, true},
		{PaymentStatusPending, PaymentStatusRefunded, false},
		{PaymentStatusPending, PaymentStatusPartiallyRefunded, false},
		{PaymentStatusProcessing, PaymentStatusPending, false},
		{PaymentStatusProcessing, PaymentStatusCompleted, true},
		{PaymentStatusProcessing, PaymentStatusFailed, true},
		{PaymentStatusCompleted, PaymentStatusRefunded, true},
		{PaymentStatusCompleted, PaymentStatusPartiallyRefunded, true},
		{PaymentStatusCompleted, PaymentStatusProcessing, false},
		{PaymentStatusFailed, PaymentStatusPending, false},
		{PaymentStatusFailed, PaymentStatusCompleted, false},
		{PaymentStatusRefunded, PaymentStatusPartiallyRefunded, false},
		{PaymentStatusPartiallyRefunded, PaymentStatusRefunded, true},
		{PaymentStatusPartiallyRefunded, PaymentStatusCompleted, false},
		{PaymentStatusPending, PaymentStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestAdvisoryLockKey(t *testing.T) {
	id := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	key := AdvisoryLockKey("order-1", id)
	assert.Equal(t, "idempotency:order-1:550e8400-e29b-41d4-a716-446655440000", key)
}

func TestRetryDelay(t *testing.T) {
	schedule := DefaultRetrySchedule
	assert.Equal(t, schedule[0], RetryDelay(schedule, 0))
	assert.Equal(t, schedule[1], RetryDelay(schedule, 1))
	assert.Equal(t, schedule[len(schedule)-1], RetryDelay(schedule, 99))
	assert.Equal(t, schedule[0], RetryDelay(schedule, -1))
}

func TestIsAllowedCurrency(t *testing.T) {
	assert.True(t, IsAllowedCurrency("USD"))
	assert.False(t, IsAllowedCurrency("XXX"))
}

func TestApiKey_HasPermission(t *testing.T) {
	k := &ApiKey{Permissions: []string{"payments:write", "refunds:write"}}
	assert.True(t, k.HasPermission("payments:write"))
	assert.False(t, k.HasPermission("payments:read"))
}
