package handler

import (
	"io"
	"net/http"

	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/pkg/apperror"
	"payment-orchestrator/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ProviderWebhookHandler handles inbound reconciliation callbacks from
// payment providers.
type ProviderWebhookHandler struct {
	paymentSvc ports.PaymentService
	registry   ports.ProviderRegistry
	log        zerolog.Logger
}

// NewProviderWebhookHandler creates a new ProviderWebhookHandler.
func NewProviderWebhookHandler(paymentSvc ports.PaymentService, registry ports.ProviderRegistry, log zerolog.Logger) *ProviderWebhookHandler {
	return &ProviderWebhookHandler{paymentSvc: paymentSvc, registry: registry, log: log}
}

// Handle handles POST /api/v1/webhooks/:provider.
func (h *ProviderWebhookHandler) Handle(c *gin.Context) {
	name := c.Param("provider")
	provider, ok := h.registry.Get(name)
	if !ok {
		response.Error(c, apperror.NotFound("provider"))
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.Validation("cannot read request body"))
		return
	}

	headers := make(map[string]string, len(c.Request.Header))
	for k := range c.Request.Header {
		headers[k] = c.Request.Header.Get(k)
	}

	if !provider.VerifyWebhookSignature(headers, body) {
		response.Error(c, apperror.ErrInvalidSignature())
		return
	}

	event, err := provider.ParseWebhookEvent(body)
	if err != nil {
		h.log.Warn().Err(err).Str("provider", name).Msg("failed to parse provider webhook payload")
		c.JSON(http.StatusOK, gin.H{"received": true, "processed": false})
		return
	}

	if err := h.paymentSvc.HandleProviderWebhook(c.Request.Context(), name, event); err != nil {
		h.log.Warn().Err(err).Str("provider", name).Msg("failed to reconcile provider webhook")
		c.JSON(http.StatusOK, gin.H{"received": true, "processed": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
