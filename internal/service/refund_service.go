package service

import (
	"context"
	"fmt"

	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/internal/money"
	"payment-orchestrator/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RefundServiceImpl implements ports.RefundService, rebuilding the
// teacher's ProcessRefund around amount-conservation over refund/payment
// rows instead of wallet-balance add-back: a refund may never push the
// sum of completed and in-flight refunds past the original payment amount.
type RefundServiceImpl struct {
	paymentRepo ports.PaymentRepository
	refundRepo  ports.RefundRepository
	txRepo      ports.TransactionRepository
	auditSvc    ports.AuditService
	providers   ports.ProviderRegistry
	breaker     ports.BreakerManager
	webhookSvc  ports.WebhookService
	transactor  ports.DBTransactor
	log         zerolog.Logger
}

// NewRefundService creates a new RefundServiceImpl.
func NewRefundService(
	paymentRepo ports.PaymentRepository,
	refundRepo ports.RefundRepository,
	txRepo ports.TransactionRepository,
	auditSvc ports.AuditService,
	providers ports.ProviderRegistry,
	breaker ports.BreakerManager,
	webhookSvc ports.WebhookService,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *RefundServiceImpl {
	return &RefundServiceImpl{
		paymentRepo: paymentRepo,
		refundRepo:  refundRepo,
		txRepo:      txRepo,
		auditSvc:    auditSvc,
		providers:   providers,
		breaker:     breaker,
		webhookSvc:  webhookSvc,
		transactor:  transactor,
		log:         log,
	}
}

// refundTotals sums the completed and still-pending refunds against a
// payment, both denominated in the payment's currency.
func refundTotals(currency string, existing []domain.Refund) (completed, pending money.Money, err error) {
	completed = money.Zero(currency)
	pending = money.Zero(currency)
	for _, r := range existing {
		amt, perr := money.Parse(currency, r.Amount)
		if perr != nil {
			return money.Money{}, money.Money{}, fmt.Errorf("parse refund amount: %w", perr)
		}
		switch r.Status {
		case domain.RefundStatusCompleted:
			if completed, err = completed.Add(amt); err != nil {
				return money.Money{}, money.Money{}, err
			}
		case domain.RefundStatusPending:
			if pending, err = pending.Add(amt); err != nil {
				return money.Money{}, money.Money{}, err
			}
		}
	}
	return completed, pending, nil
}

// CreateRefund implements ports.RefundService. It locks the payment row,
// recomputes available-for-refund from the existing refund rows under the
// same lock, then inserts the new refund pending before ever calling the
// provider.
func (s *RefundServiceImpl) CreateRefund(ctx context.Context, req ports.CreateRefundRequest) (*domain.Refund, *domain.Payment, error) {
	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, nil, apperror.Internal(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	payment, err := s.paymentRepo.GetByIDForUpdate(ctx, tx, req.PaymentID)
	if err != nil {
		return nil, nil, apperror.Internal(fmt.Errorf("lock payment: %w", err))
	}
	if payment == nil || payment.MerchantID != req.MerchantID {
		return nil, nil, apperror.NotFound("payment")
	}
	if !payment.IsRefundable() {
		return nil, nil, apperror.Validation(fmt.Sprintf("payment in status %q is not refundable", payment.Status))
	}

	paymentAmount, err := money.Parse(payment.Currency, payment.Amount)
	if err != nil {
		return nil, nil, apperror.Internal(fmt.Errorf("parse payment amount: %w", err))
	}

	existing, err := s.refundRepo.ListByPaymentForUpdate(ctx, tx, payment.ID)
	if err != nil {
		return nil, nil, apperror.Internal(fmt.Errorf("list existing refunds: %w", err))
	}

	completedTotal, pendingTotal, err := refundTotals(payment.Currency, existing)
	if err != nil {
		return nil, nil, apperror.Internal(err)
	}

	committed, err := completedTotal.Add(pendingTotal)
	if err != nil {
		return nil, nil, apperror.Internal(err)
	}
	available, err := paymentAmount.Sub(committed)
	if err != nil {
		return nil, nil, apperror.Internal(err)
	}

	var refundAmount money.Money
	if req.Amount != nil {
		refundAmount = *req.Amount
	} else {
		refundAmount = available
	}
	if refundAmount.Currency != payment.Currency {
		return nil, nil, apperror.Validation("refund currency must match payment currency")
	}
	if err := refundAmount.RequirePositive(); err != nil {
		return nil, nil, apperror.Validation("refund amount must be positive")
	}
	exceeds, err := refundAmount.GreaterThan(available)
	if err != nil {
		return nil, nil, apperror.Internal(err)
	}
	if exceeds {
		return nil, nil, apperror.Validation(fmt.Sprintf("refund amount %s exceeds available %s", refundAmount.String(), available.String()))
	}

	refund := &domain.Refund{
		ID:        uuid.New(),
		PaymentID: payment.ID,
		Amount:    refundAmount.String(),
		Status:    domain.RefundStatusPending,
		Reason:    req.Reason,
	}
	if err := s.refundRepo.Create(ctx, tx, refund); err != nil {
		return nil, nil, apperror.Internal(fmt.Errorf("insert refund: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, apperror.Internal(fmt.Errorf("commit refund reservation: %w", err))
	}

	s.auditSvc.Log(ctx, domain.AuditLog{
		MerchantID:   &payment.MerchantID,
		Action:       domain.AuditActionRefundCreated,
		ResourceType: "refund",
		ResourceID:   refund.ID.String(),
		NewValue:     refund.Amount,
	})

	return s.resolveRefund(ctx, payment, refund, completedTotal, refundAmount)
}

// resolveRefund calls the provider through its breaker and persists the
// refund's and payment's final state. A provider decline resolves the
// refund to failed without touching the payment, mirroring the charge
// saga's "decline is a normal terminal outcome" rule.
func (s *RefundServiceImpl) resolveRefund(ctx context.Context, payment *domain.Payment, refund *domain.Refund, completedBefore, refundAmount money.Money) (*domain.Refund, *domain.Payment, error) {
	provider, ok := s.providers.Get(payment.Provider)
	if !ok {
		return nil, nil, apperror.Validation(fmt.Sprintf("unknown provider %q", payment.Provider))
	}

	var providerTxID string
	if payment.ProviderTransactionID != nil {
		providerTxID = *payment.ProviderTransactionID
	}

	result, callErr := s.breaker.Execute(ctx, payment.Provider, func(ctx context.Context) (any, error) {
		return provider.Refund(ctx, ports.ProviderRefundRequest{
			ProviderTransactionID: providerTxID,
			Amount:                refundAmount,
		})
	})

	var refundResult ports.ProviderRefundResult
	if callErr != nil {
		refundResult = ports.ProviderRefundResult{Success: false, ErrorCode: providerErrorCode(callErr)}
	} else {
		refundResult = result.(ports.ProviderRefundResult)
	}

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, nil, apperror.Internal(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if !refundResult.Success {
		if err := s.refundRepo.UpdateStatus(ctx, tx, refund.ID, domain.RefundStatusFailed, nil); err != nil {
			return nil, nil, apperror.Internal(fmt.Errorf("mark refund failed: %w", err))
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, nil, apperror.Internal(fmt.Errorf("commit refund failure: %w", err))
		}
		refund.Status = domain.RefundStatusFailed
		s.auditSvc.Log(ctx, domain.AuditLog{
			MerchantID:   &payment.MerchantID,
			Action:       domain.AuditActionRefundStatus,
			ResourceType: "refund",
			ResourceID:   refund.ID.String(),
			NewValue:     string(domain.RefundStatusFailed),
		})
		return refund, payment, nil
	}

	var providerRefundID *string
	if refundResult.ProviderRefundID != "" {
		providerRefundID = &refundResult.ProviderRefundID
	}
	if err := s.refundRepo.UpdateStatus(ctx, tx, refund.ID, domain.RefundStatusCompleted, providerRefundID); err != nil {
		return nil, nil, apperror.Internal(fmt.Errorf("mark refund completed: %w", err))
	}

	newCompletedTotal, err := completedBefore.Add(refundAmount)
	if err != nil {
		return nil, nil, apperror.Internal(err)
	}
	paymentAmount, err := money.Parse(payment.Currency, payment.Amount)
	if err != nil {
		return nil, nil, apperror.Internal(fmt.Errorf("parse payment amount: %w", err))
	}

	newPaymentStatus := domain.PaymentStatusPartiallyRefunded
	if newCompletedTotal.Equal(paymentAmount) {
		newPaymentStatus = domain.PaymentStatusRefunded
	}

	// A refund resolution is a manual/refund-driven update, so it is gated
	// on the status-transition table, unlike the charge saga's own first
	// resolution of a payment.
	if domain.CanTransition(payment.Status, newPaymentStatus) {
		if err := s.paymentRepo.UpdateStatus(ctx, tx, payment.ID, newPaymentStatus, nil); err != nil {
			return nil, nil, apperror.Internal(fmt.Errorf("update payment status: %w", err))
		}
		step := &domain.Transaction{
			ID:        uuid.New(),
			PaymentID: payment.ID,
			Status:    newPaymentStatus,
		}
		if err := s.txRepo.Create(ctx, tx, step); err != nil {
			return nil, nil, apperror.Internal(fmt.Errorf("insert refund step: %w", err))
		}
		payment.Status = newPaymentStatus
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, apperror.Internal(fmt.Errorf("commit refund resolution: %w", err))
	}

	refund.Status = domain.RefundStatusCompleted
	refund.ProviderRefundID = providerRefundID
	s.auditSvc.Log(ctx, domain.AuditLog{
		MerchantID:   &payment.MerchantID,
		Action:       domain.AuditActionRefundStatus,
		ResourceType: "refund",
		ResourceID:   refund.ID.String(),
		NewValue:     string(domain.RefundStatusCompleted),
	})
	s.auditSvc.Log(ctx, domain.AuditLog{
		MerchantID:   &payment.MerchantID,
		Action:       domain.AuditActionPaymentStatus,
		ResourceType: "payment",
		ResourceID:   payment.ID.String(),
		NewValue:     string(payment.Status),
	})

	if payment.WebhookURL != nil && *payment.WebhookURL != "" {
		if err := s.webhookSvc.Enqueue(ctx, payment.MerchantID, &payment.ID, "refund.completed", refund, *payment.WebhookURL); err != nil {
			s.log.Warn().Err(err).Str("refund_id", refund.ID.String()).Msg("failed to enqueue refund webhook")
		}
	}

	return refund, payment, nil
}

// GetRefund implements ports.RefundService. A refund whose payment is
// owned by another merchant is reported absent, to avoid enumeration.
func (s *RefundServiceImpl) GetRefund(ctx context.Context, merchantID, id uuid.UUID) (*domain.Refund, error) {
	refund, err := s.refundRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("get refund: %w", err))
	}
	if refund == nil {
		return nil, apperror.NotFound("refund")
	}
	payment, err := s.paymentRepo.GetByID(ctx, refund.PaymentID)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("get owning payment: %w", err))
	}
	if payment == nil || payment.MerchantID != merchantID {
		return nil, apperror.NotFound("refund")
	}
	return refund, nil
}

// Refundable implements ports.RefundService, reporting how much of a
// payment remains available to refund.
func (s *RefundServiceImpl) Refundable(ctx context.Context, merchantID, paymentID uuid.UUID) (*ports.RefundableSummary, error) {
	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("get payment: %w", err))
	}
	if payment == nil || payment.MerchantID != merchantID {
		return nil, apperror.NotFound("payment")
	}

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	existing, err := s.refundRepo.ListByPaymentForUpdate(ctx, tx, payment.ID)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("list refunds: %w", err))
	}

	completedTotal, pendingTotal, err := refundTotals(payment.Currency, existing)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	paymentAmount, err := money.Parse(payment.Currency, payment.Amount)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("parse payment amount: %w", err))
	}
	committed, err := completedTotal.Add(pendingTotal)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	available, err := paymentAmount.Sub(committed)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	return &ports.RefundableSummary{
		PaymentAmount:      paymentAmount.String(),
		TotalRefunded:      completedTotal.String(),
		PendingRefunds:     pendingTotal.String(),
		AvailableForRefund: available.String(),
	}, nil
}
