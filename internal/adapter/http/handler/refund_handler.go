package handler

import (
	"payment-orchestrator/internal/adapter/http/dto"
	"payment-orchestrator/internal/adapter/http/middleware"
	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/internal/money"
	"payment-orchestrator/pkg/apperror"
	"payment-orchestrator/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RefundHandler handles refund-related endpoints.
type RefundHandler struct {
	refundSvc ports.RefundService
}

// NewRefundHandler creates a new RefundHandler.
func NewRefundHandler(refundSvc ports.RefundService) *RefundHandler {
	return &RefundHandler{refundSvc: refundSvc}
}

// CreateRefund handles POST /api/v1/payments/:id/refunds.
func (h *RefundHandler) CreateRefund(c *gin.Context) {
	merchantID, ok := c.Get(middleware.CtxMerchantID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.NotFound("payment"))
		return
	}

	var req dto.CreateRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	var amount *money.Money
	if req.Amount != nil {
		parsed, err := money.Parse("", *req.Amount)
		if err != nil {
			response.Error(c, apperror.Validation("invalid amount: "+err.Error()))
			return
		}
		amount = &parsed
	}

	refund, payment, err := h.refundSvc.CreateRefund(c.Request.Context(), ports.CreateRefundRequest{
		MerchantID: merchantID.(uuid.UUID),
		PaymentID:  paymentID,
		Amount:     amount,
		Reason:     req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.RefundCreatedResponse{
		Refund:        toRefundResponse(refund),
		PaymentStatus: string(payment.Status),
	})
}

// GetRefund handles GET /api/v1/refunds/:id.
func (h *RefundHandler) GetRefund(c *gin.Context) {
	merchantID, ok := c.Get(middleware.CtxMerchantID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.NotFound("refund"))
		return
	}

	refund, err := h.refundSvc.GetRefund(c.Request.Context(), merchantID.(uuid.UUID), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toRefundResponse(refund))
}

// Refundable handles GET /api/v1/payments/:id/refundable.
func (h *RefundHandler) Refundable(c *gin.Context) {
	merchantID, ok := c.Get(middleware.CtxMerchantID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.NotFound("payment"))
		return
	}

	summary, err := h.refundSvc.Refundable(c.Request.Context(), merchantID.(uuid.UUID), paymentID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.RefundableResponse{
		PaymentAmount:      summary.PaymentAmount,
		TotalRefunded:      summary.TotalRefunded,
		PendingRefunds:     summary.PendingRefunds,
		AvailableForRefund: summary.AvailableForRefund,
	})
}

func toRefundResponse(r *domain.Refund) dto.RefundResponse {
	return dto.RefundResponse{
		ID:               r.ID.String(),
		PaymentID:        r.PaymentID.String(),
		Amount:           r.Amount,
		Status:           string(r.Status),
		Reason:           r.Reason,
		ProviderRefundID: r.ProviderRefundID,
		CreatedAt:        r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:        r.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
