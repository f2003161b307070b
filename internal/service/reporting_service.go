package service

import (
	"context"
	"time"

	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/pkg/apperror"

	"github.com/google/uuid"
)

// reportingService implements ports.ReportingService.
type reportingService struct {
	paymentRepo ports.PaymentRepository
}

// NewReportingService creates a new reporting service.
func NewReportingService(paymentRepo ports.PaymentRepository) ports.ReportingService {
	return &reportingService{paymentRepo: paymentRepo}
}

// GetDashboardStats returns aggregated payment stats for the merchant.
func (s *reportingService) GetDashboardStats(ctx context.Context, merchantID uuid.UUID, period string) (*ports.PaymentStats, error) {
	var periodStart *time.Time

	switch period {
	case "day":
		t := time.Now().AddDate(0, 0, -1)
		periodStart = &t
	case "week":
		t := time.Now().AddDate(0, 0, -7)
		periodStart = &t
	case "month":
		t := time.Now().AddDate(0, -1, 0)
		periodStart = &t
	case "all", "":
		// No time filter
	default:
		return nil, apperror.Validation("invalid period: must be day, week, month, or all")
	}

	stats, err := s.paymentRepo.GetStats(ctx, merchantID, periodStart)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return stats, nil
}

// ListPayments returns a paginated list of payments for the merchant.
func (s *reportingService) ListPayments(ctx context.Context, params ports.PaymentListParams) ([]domain.Payment, int64, error) {
	payments, total, err := s.paymentRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return payments, total, nil
}
