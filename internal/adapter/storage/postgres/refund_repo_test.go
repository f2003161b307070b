package postgres

import (
	"context"
	"testing"
	"time"

	"payment-orchestrator/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRefund(paymentID uuid.UUID) *domain.Refund {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Refund{
		ID:        uuid.New(),
		PaymentID: paymentID,
		Amount:    "25.0000",
		Status:    domain.RefundStatusPending,
		Reason:    "customer request",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func refundColumnNames() []string {
	return []string{"id", "payment_id", "amount", "status", "reason", "provider_refund_id", "created_at", "updated_at"}
}

func refundRow(r *domain.Refund) *pgxmock.Rows {
	return pgxmock.NewRows(refundColumnNames()).AddRow(
		r.ID, r.PaymentID, r.Amount, string(r.Status), r.Reason, r.ProviderRefundID, r.CreatedAt, r.UpdatedAt,
	)
}

func TestRefundRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRefundRepo(mock)
	paymentID := uuid.New()
	r := newTestRefund(paymentID)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO refunds").
		WithArgs(r.ID, r.PaymentID, r.Amount, string(r.Status), r.Reason, r.ProviderRefundID, r.CreatedAt, r.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, r)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefundRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRefundRepo(mock)
	r := newTestRefund(uuid.New())

	mock.ExpectQuery("SELECT .+ FROM refunds WHERE id").
		WithArgs(r.ID).
		WillReturnRows(refundRow(r))

	result, err := repo.GetByID(context.Background(), r.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, r.Amount, result.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefundRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRefundRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM refunds WHERE id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(refundColumnNames()))

	result, err := repo.GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefundRepo_UpdateStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRefundRepo(mock)
	refundID := uuid.New()
	providerRefundID := "re_xyz"

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE refunds SET status").
		WithArgs(string(domain.RefundStatusCompleted), &providerRefundID, refundID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateStatus(context.Background(), tx, refundID, domain.RefundStatusCompleted, &providerRefundID)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefundRepo_ListByPaymentForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRefundRepo(mock)
	paymentID := uuid.New()
	r1 := newTestRefund(paymentID)
	r2 := newTestRefund(paymentID)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM refunds WHERE payment_id .+ FOR UPDATE").
		WithArgs(paymentID).
		WillReturnRows(pgxmock.NewRows(refundColumnNames()).
			AddRow(r1.ID, r1.PaymentID, r1.Amount, string(r1.Status), r1.Reason, r1.ProviderRefundID, r1.CreatedAt, r1.UpdatedAt).
			AddRow(r2.ID, r2.PaymentID, r2.Amount, string(r2.Status), r2.Reason, r2.ProviderRefundID, r2.CreatedAt, r2.UpdatedAt))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	refunds, err := repo.ListByPaymentForUpdate(context.Background(), tx, paymentID)
	require.NoError(t, err)
	assert.Len(t, refunds, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
