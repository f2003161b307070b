package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/internal/saga"
	"payment-orchestrator/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// PaymentServiceImpl implements ports.PaymentService, driving the charge
// saga and provider-webhook reconciliation described for the teacher's
// PaymentServiceImpl.ProcessPayment, rebuilt around the saga builder, the
// provider registry, and the per-provider circuit breaker instead of
// direct wallet-balance arithmetic.
type PaymentServiceImpl struct {
	paymentRepo ports.PaymentRepository
	txRepo      ports.TransactionRepository
	auditSvc    ports.AuditService
	providers   ports.ProviderRegistry
	breaker     ports.BreakerManager
	webhookSvc  ports.WebhookService
	transactor  ports.DBTransactor
	log         zerolog.Logger
}

// NewPaymentService creates a new PaymentServiceImpl.
func NewPaymentService(
	paymentRepo ports.PaymentRepository,
	txRepo ports.TransactionRepository,
	auditSvc ports.AuditService,
	providers ports.ProviderRegistry,
	breaker ports.BreakerManager,
	webhookSvc ports.WebhookService,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		paymentRepo: paymentRepo,
		txRepo:      txRepo,
		auditSvc:    auditSvc,
		providers:   providers,
		breaker:     breaker,
		webhookSvc:  webhookSvc,
		transactor:  transactor,
		log:         log,
	}
}

// chargeContext is the opaque value the charge saga's steps read from and
// mutate, generalizing the teacher's local variables into a single
// threaded value the saga.Step closures share.
type chargeContext struct {
	req       ports.CreatePaymentRequest
	provider  ports.Provider
	payment   *domain.Payment
	tx        pgx.Tx
	prevState domain.PaymentStatus
}

// CreatePayment implements ports.PaymentService.
func (s *PaymentServiceImpl) CreatePayment(ctx context.Context, req ports.CreatePaymentRequest) (*domain.Payment, error) {
	if err := req.Amount.RequirePositive(); err != nil {
		return nil, apperror.Validation("amount must be positive")
	}
	if !domain.IsAllowedCurrency(req.Amount.Currency) {
		return nil, apperror.Validation(fmt.Sprintf("currency %s is not on the allow-list", req.Amount.Currency))
	}
	provider, ok := s.providers.Get(req.Provider)
	if !ok {
		return nil, apperror.Validation(fmt.Sprintf("unknown provider %q", req.Provider))
	}

	cc := &chargeContext{req: req, provider: provider}

	built := saga.New("charge", s.log).
		AddStep(saga.Step{
			Name:       "persist",
			Do:         func(ctx context.Context) error { return s.stepPersist(ctx, cc) },
			Compensate: func(ctx context.Context) error { return s.compensatePersist(ctx, cc) },
		}).
		AddStep(saga.Step{
			Name: "invoke_provider",
			Do:   func(ctx context.Context) error { return s.stepInvokeProvider(ctx, cc) },
		}).
		AddStep(saga.Step{
			Name: "enqueue_webhook",
			Do:   func(ctx context.Context) error { return s.stepEnqueueWebhook(ctx, cc) },
		})

	result := built.Run(ctx)
	if !result.Success {
		return nil, apperror.Internal(result.Err)
	}

	return cc.payment, nil
}

// stepPersist opens the enclosing transaction, inserts the pending payment
// and its initial step-log row, and audits creation.
func (s *PaymentServiceImpl) stepPersist(ctx context.Context, cc *chargeContext) error {
	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	cc.tx = tx

	payment := &domain.Payment{
		ID:          uuid.New(),
		ExternalID:  cc.req.ExternalID,
		MerchantID:  cc.req.MerchantID,
		Amount:      cc.req.Amount.String(),
		Currency:    cc.req.Amount.Currency,
		Status:      domain.PaymentStatusPending,
		Provider:    cc.provider.Name(),
		Description: cc.req.Description,
		Metadata:    cc.req.Metadata,
		WebhookURL:  cc.req.WebhookURL,
	}
	if err := s.paymentRepo.Create(ctx, tx, payment); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("insert payment: %w", err)
	}

	step := &domain.Transaction{
		ID:        uuid.New(),
		PaymentID: payment.ID,
		Status:    domain.PaymentStatusPending,
	}
	if err := s.txRepo.Create(ctx, tx, step); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("insert initial step: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit persist step: %w", err)
	}

	cc.payment = payment
	s.auditSvc.Log(ctx, domain.AuditLog{
		MerchantID:   &payment.MerchantID,
		Action:       domain.AuditActionPaymentCreated,
		ResourceType: "payment",
		ResourceID:   payment.ID.String(),
		NewValue:     string(payment.Status),
	})
	return nil
}

// compensatePersist runs only if a later step fails: it flips the payment
// to failed and audits the reversal, since a charge that never reached the
// provider cannot be left pending forever.
func (s *PaymentServiceImpl) compensatePersist(ctx context.Context, cc *chargeContext) error {
	if cc.payment == nil {
		return nil
	}
	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin compensation tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := s.paymentRepo.UpdateStatus(ctx, tx, cc.payment.ID, domain.PaymentStatusFailed, nil); err != nil {
		return fmt.Errorf("compensate payment status: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit compensation: %w", err)
	}

	cc.payment.Status = domain.PaymentStatusFailed
	s.auditSvc.Log(ctx, domain.AuditLog{
		MerchantID:   &cc.payment.MerchantID,
		Action:       domain.AuditActionPaymentStatus,
		ResourceType: "payment",
		ResourceID:   cc.payment.ID.String(),
		NewValue:     string(domain.PaymentStatusFailed),
	})
	return nil
}

// stepInvokeProvider flips the payment to processing, calls the provider
// through its named breaker, and records the resolved status. A provider
// decline (success=false) is a normal terminal outcome, not a saga error:
// it never triggers compensation of the persist step.
func (s *PaymentServiceImpl) stepInvokeProvider(ctx context.Context, cc *chargeContext) error {
	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	cc.prevState = cc.payment.Status
	if err := s.paymentRepo.UpdateStatus(ctx, tx, cc.payment.ID, domain.PaymentStatusProcessing, nil); err != nil {
		return fmt.Errorf("flip to processing: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit processing flip: %w", err)
	}
	cc.payment.Status = domain.PaymentStatusProcessing

	result, err := s.breaker.Execute(ctx, cc.provider.Name(), func(ctx context.Context) (any, error) {
		return cc.provider.Charge(ctx, ports.ProviderChargeRequest{
			PaymentID: cc.payment.ID,
			Amount:    cc.req.Amount,
			Metadata:  cc.req.Metadata,
		})
	})
	if err != nil {
		// Breaker rejection or transport failure: the charge never reached a
		// decision, so the payment is recorded failed rather than left
		// processing forever.
		return s.recordProviderOutcome(ctx, cc, ports.ProviderChargeResult{
			Success:   false,
			Status:    domain.PaymentStatusFailed,
			ErrorCode: providerErrorCode(err),
		}, err)
	}

	chargeResult := result.(ports.ProviderChargeResult)
	return s.recordProviderOutcome(ctx, cc, chargeResult, nil)
}

func providerErrorCode(err error) string {
	if errors.Is(err, ports.ErrCircuitOpen) {
		return "circuit_open"
	}
	return "provider_unreachable"
}

// recordProviderOutcome maps a provider result onto the payment's status,
// persists it, appends a step-log row, and audits the change. This is the
// charge saga's own first resolution of the payment, not a webhook-driven
// or manual update, so it does not gate itself on domain.CanTransition:
// that table governs reconciliation and refund-driven updates, which is
// why a decline or a still-pending provider result may legitimately leave
// "processing" for "failed" or "pending" even though "processing"→"pending"
// is not itself a listed transition.
func (s *PaymentServiceImpl) recordProviderOutcome(ctx context.Context, cc *chargeContext, result ports.ProviderChargeResult, callErr error) error {
	newStatus := resolveChargeStatus(result)

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var providerTxID *string
	if result.ProviderTransactionID != "" {
		providerTxID = &result.ProviderTransactionID
	}
	if err := s.paymentRepo.UpdateStatus(ctx, tx, cc.payment.ID, newStatus, providerTxID); err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}

	step := &domain.Transaction{
		ID:          uuid.New(),
		PaymentID:   cc.payment.ID,
		Status:      newStatus,
		RawResponse: json.RawMessage(result.RawResponse),
	}
	if result.ErrorCode != "" {
		msg := result.ErrorCode
		if callErr != nil {
			msg = fmt.Sprintf("%s: %v", result.ErrorCode, callErr)
		}
		step.ErrorMessage = &msg
	}
	if err := s.txRepo.Create(ctx, tx, step); err != nil {
		return fmt.Errorf("insert provider step: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit provider outcome: %w", err)
	}

	cc.payment.Status = newStatus
	if providerTxID != nil {
		cc.payment.ProviderTransactionID = providerTxID
	}
	s.auditSvc.Log(ctx, domain.AuditLog{
		MerchantID:   &cc.payment.MerchantID,
		Action:       domain.AuditActionPaymentStatus,
		ResourceType: "payment",
		ResourceID:   cc.payment.ID.String(),
		NewValue:     string(newStatus),
	})
	return nil
}

// resolveChargeStatus maps a provider's charge result onto a PaymentStatus
// per the §4.7 rule: success&&completed→completed, success&&other→pending,
// failure→failed.
func resolveChargeStatus(result ports.ProviderChargeResult) domain.PaymentStatus {
	if !result.Success {
		return domain.PaymentStatusFailed
	}
	if result.Status == domain.PaymentStatusCompleted {
		return domain.PaymentStatusCompleted
	}
	return domain.PaymentStatusPending
}

// stepEnqueueWebhook enqueues a merchant notification if a webhook URL was
// supplied. Enqueue failures are logged, not propagated: webhook delivery
// is best-effort and never blocks the API response.
func (s *PaymentServiceImpl) stepEnqueueWebhook(ctx context.Context, cc *chargeContext) error {
	if cc.payment.WebhookURL == nil || *cc.payment.WebhookURL == "" {
		return nil
	}
	eventType := fmt.Sprintf("payment.%s", cc.payment.Status)
	if err := s.webhookSvc.Enqueue(ctx, cc.payment.MerchantID, &cc.payment.ID, eventType, cc.payment, *cc.payment.WebhookURL); err != nil {
		s.log.Warn().Err(err).Str("payment_id", cc.payment.ID.String()).Msg("failed to enqueue payment webhook")
	}
	return nil
}

// GetPayment implements ports.PaymentService. A payment owned by another
// merchant is reported absent rather than forbidden, to avoid enumeration.
func (s *PaymentServiceImpl) GetPayment(ctx context.Context, merchantID, id uuid.UUID) (*domain.Payment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("get payment: %w", err))
	}
	if payment == nil || payment.MerchantID != merchantID {
		return nil, apperror.NotFound("payment")
	}
	return payment, nil
}

// ListPayments implements ports.PaymentService.
func (s *PaymentServiceImpl) ListPayments(ctx context.Context, params ports.PaymentListParams) ([]domain.Payment, int64, error) {
	payments, total, err := s.paymentRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.Internal(fmt.Errorf("list payments: %w", err))
	}
	return payments, total, nil
}

// HandleProviderWebhook implements ports.PaymentService, reconciling an
// inbound provider callback under a row lock on the payment it names. An
// invalid transition is ignored and logged rather than surfaced, since the
// provider's retry of a callback it already delivered is expected.
func (s *PaymentServiceImpl) HandleProviderWebhook(ctx context.Context, provider string, event ports.ProviderWebhookEvent) error {
	payment, err := s.paymentRepo.GetByProviderTransactionID(ctx, provider, event.ProviderTransactionID)
	if err != nil {
		return apperror.Internal(fmt.Errorf("find payment by provider transaction id: %w", err))
	}
	if payment == nil {
		return apperror.NotFound("payment")
	}

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.Internal(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	locked, err := s.paymentRepo.GetByIDForUpdate(ctx, tx, payment.ID)
	if err != nil {
		return apperror.Internal(fmt.Errorf("lock payment: %w", err))
	}
	if locked == nil {
		return apperror.NotFound("payment")
	}

	if !domain.CanTransition(locked.Status, event.Status) {
		s.log.Warn().
			Str("payment_id", locked.ID.String()).
			Str("from", string(locked.Status)).
			Str("to", string(event.Status)).
			Msg("ignoring invalid reconciliation transition")
		return nil
	}

	if err := s.paymentRepo.UpdateStatus(ctx, tx, locked.ID, event.Status, &event.ProviderTransactionID); err != nil {
		return apperror.Internal(fmt.Errorf("update payment status: %w", err))
	}

	step := &domain.Transaction{
		ID:        uuid.New(),
		PaymentID: locked.ID,
		Status:    event.Status,
	}
	if event.ErrorCode != "" {
		step.ErrorMessage = &event.ErrorCode
	}
	if err := s.txRepo.Create(ctx, tx, step); err != nil {
		return apperror.Internal(fmt.Errorf("insert reconciliation step: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return apperror.Internal(fmt.Errorf("commit reconciliation: %w", err))
	}

	locked.Status = event.Status
	s.auditSvc.Log(ctx, domain.AuditLog{
		MerchantID:   &locked.MerchantID,
		Action:       domain.AuditActionPaymentStatus,
		ResourceType: "payment",
		ResourceID:   locked.ID.String(),
		NewValue:     string(event.Status),
	})

	if locked.WebhookURL != nil && *locked.WebhookURL != "" {
		eventType := fmt.Sprintf("payment.%s", locked.Status)
		if err := s.webhookSvc.Enqueue(ctx, locked.MerchantID, &locked.ID, eventType, locked, *locked.WebhookURL); err != nil {
			s.log.Warn().Err(err).Str("payment_id", locked.ID.String()).Msg("failed to enqueue reconciliation webhook")
		}
	}

	return nil
}
