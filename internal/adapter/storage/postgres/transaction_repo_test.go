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

func newTestStep(paymentID uuid.UUID) *domain.Transaction {
	return &domain.Transaction{
		ID:          uuid.New(),
		PaymentID:   paymentID,
		Status:      domain.PaymentStatusCompleted,
		RawResponse: []byte(`{"id":"ch_abc"}`),
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestTransactionRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	paymentID := uuid.New()
	step := newTestStep(paymentID)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(step.ID, step.PaymentID, string(step.Status), step.RawResponse, step.ErrorMessage, step.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, step)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_ListByPayment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	paymentID := uuid.New()
	step1 := newTestStep(paymentID)
	step1.Status = domain.PaymentStatusPending
	step2 := newTestStep(paymentID)
	step2.Status = domain.PaymentStatusCompleted

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE payment_id").
		WithArgs(paymentID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "payment_id", "status", "raw_response", "error_message", "created_at"}).
			AddRow(step1.ID, step1.PaymentID, string(step1.Status), step1.RawResponse, step1.ErrorMessage, step1.CreatedAt).
			AddRow(step2.ID, step2.PaymentID, string(step2.Status), step2.RawResponse, step2.ErrorMessage, step2.CreatedAt))

	steps, err := repo.ListByPayment(context.Background(), paymentID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, domain.PaymentStatusPending, steps[0].Status)
	assert.Equal(t, domain.PaymentStatusCompleted, steps[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
