package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"payment-orchestrator/internal/core/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuditLogService struct {
	mu      sync.Mutex
	entries []domain.AuditLog
}

func (s *fakeAuditLogService) Log(ctx context.Context, entry domain.AuditLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

func (s *fakeAuditLogService) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *fakeAuditLogService) first() domain.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[0]
}

func TestAuditLog_PaymentSuccess(t *testing.T) {
	audit := &fakeAuditLogService{}

	r := gin.New()
	r.Use(AuditLog(audit))
	r.POST("/api/v1/payments", func(c *gin.Context) {
		c.Set(CtxMerchantID, uuid.New())
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	require.Eventually(t, func() bool { return audit.len() == 1 }, time.Second, 10*time.Millisecond)
	entry := audit.first()
	assert.Equal(t, domain.AuditActionPaymentCreated, entry.Action)
	assert.Equal(t, "payment", entry.ResourceType)
}

func TestAuditLog_SkipsGET(t *testing.T) {
	audit := &fakeAuditLogService{}

	r := gin.New()
	r.Use(AuditLog(audit))
	r.GET("/api/v1/payments/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/pay_123", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, audit.len())
}

func TestAuditLog_SkipsFailedRequests(t *testing.T) {
	audit := &fakeAuditLogService{}

	r := gin.New()
	r.Use(AuditLog(audit))
	r.POST("/api/v1/payments", func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad"})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, audit.len())
}

func TestMapPathToAction(t *testing.T) {
	tests := []struct {
		path     string
		method   string
		action   domain.AuditAction
		resource string
	}{
		{"/api/v1/auth/register", "POST", domain.AuditActionRegister, "merchant"},
		{"/api/v1/auth/login", "POST", domain.AuditActionLogin, "session"},
		{"/api/v1/payments", "POST", domain.AuditActionPaymentCreated, "payment"},
		{"/api/v1/payments/pay_123/refunds", "POST", domain.AuditActionRefundCreated, "refund"},
		{"/api/v1/merchants/me/webhook-url", "PUT", domain.AuditActionUpdateWebhookURL, "merchant"},
		{"/api/v1/merchants/me/rotate-keys", "POST", domain.AuditActionRotateKeys, "merchant"},
		{"/unknown", "POST", "", ""},
	}

	for _, tc := range tests {
		action, resource := mapPathToAction(tc.path, tc.method)
		assert.Equal(t, tc.action, action, "path=%s method=%s", tc.path, tc.method)
		assert.Equal(t, tc.resource, resource, "path=%s method=%s", tc.path, tc.method)
	}
}
