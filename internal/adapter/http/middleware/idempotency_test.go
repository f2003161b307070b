package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"payment-orchestrator/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIdempotencyEngine struct {
	mu      sync.Mutex
	records map[string]*fakeIdempotencyRecord
}

type fakeIdempotencyRecord struct {
	fingerprint string
	processing  bool
	statusCode  int
	body        []byte
}

func newFakeIdempotencyEngine() *fakeIdempotencyEngine {
	return &fakeIdempotencyEngine{records: make(map[string]*fakeIdempotencyRecord)}
}

func (e *fakeIdempotencyEngine) recKey(key string, merchantID uuid.UUID) string {
	return merchantID.String() + ":" + key
}

func (e *fakeIdempotencyEngine) Check(ctx context.Context, key string, merchantID uuid.UUID, fingerprint string) (ports.CheckResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.records[e.recKey(key, merchantID)]
	if !ok {
		return ports.CheckResult{}, nil
	}
	if rec.fingerprint != fingerprint {
		return ports.CheckResult{}, ports.ErrIdempotencyConflict
	}
	return ports.CheckResult{Exists: true, Processing: rec.processing, CachedResponse: rec.body, CachedStatusCode: rec.statusCode}, nil
}

func (e *fakeIdempotencyEngine) StartProcessing(ctx context.Context, key string, merchantID uuid.UUID, fingerprint, path, method string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	rk := e.recKey(key, merchantID)
	if rec, ok := e.records[rk]; ok {
		if rec.fingerprint != fingerprint {
			return ports.ErrIdempotencyConflict
		}
		return nil
	}
	e.records[rk] = &fakeIdempotencyRecord{fingerprint: fingerprint, processing: true}
	return nil
}

func (e *fakeIdempotencyEngine) Complete(ctx context.Context, key string, merchantID uuid.UUID, statusCode int, body []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.records[e.recKey(key, merchantID)]
	if !ok {
		return nil
	}
	rec.processing = false
	rec.statusCode = statusCode
	rec.body = body
	return nil
}

func (e *fakeIdempotencyEngine) Remove(ctx context.Context, key string, merchantID uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.records, e.recKey(key, merchantID))
	return nil
}

func setupIdempotencyRouter(engine ports.IdempotencyEngine, merchantID uuid.UUID, hits *int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(CtxMerchantID, merchantID)
		c.Next()
	})
	r.Use(Idempotency(engine, zerolog.Nop()))
	r.POST("/api/v1/payments", func(c *gin.Context) {
		*hits++
		c.JSON(http.StatusCreated, gin.H{"id": "pay_1"})
	})
	return r
}

func TestIdempotency_NoHeaderPassesThrough(t *testing.T) {
	engine := newFakeIdempotencyEngine()
	hits := 0
	r := setupIdempotencyRouter(engine, uuid.New(), &hits)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(`{}`))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, hits)
}

func TestIdempotency_ReplaysCachedResponse(t *testing.T) {
	engine := newFakeIdempotencyEngine()
	merchantID := uuid.New()
	hits := 0
	r := setupIdempotencyRouter(engine, merchantID, &hits)

	body := `{"amount":"10.00"}`
	req1 := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(body))
	req1.Header.Set(HeaderIdempotencyKey, "key-1")
	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, req1)
	require.Equal(t, http.StatusCreated, w1.Code)
	assert.Equal(t, 1, hits)

	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(body))
	req2.Header.Set(HeaderIdempotencyKey, "key-1")
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req2)

	assert.Equal(t, http.StatusCreated, w2.Code)
	assert.Equal(t, w1.Body.String(), w2.Body.String())
	assert.Equal(t, 1, hits, "handler must not run again on replay")
}

func TestIdempotency_ConflictOnFingerprintMismatch(t *testing.T) {
	engine := newFakeIdempotencyEngine()
	merchantID := uuid.New()
	hits := 0
	r := setupIdempotencyRouter(engine, merchantID, &hits)

	req1 := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(`{"amount":"10.00"}`))
	req1.Header.Set(HeaderIdempotencyKey, "key-2")
	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, req1)
	require.Equal(t, http.StatusCreated, w1.Code)

	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(`{"amount":"99.00"}`))
	req2.Header.Set(HeaderIdempotencyKey, "key-2")
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req2)

	assert.Equal(t, http.StatusConflict, w2.Code)
	assert.Equal(t, 1, hits)
}

func TestIdempotency_RejectsOversizedKey(t *testing.T) {
	engine := newFakeIdempotencyEngine()
	hits := 0
	r := setupIdempotencyRouter(engine, uuid.New(), &hits)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(`{}`))
	req.Header.Set(HeaderIdempotencyKey, strings.Repeat("a", 300))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, hits)
}

func TestIdempotency_GETPassesThrough(t *testing.T) {
	engine := newFakeIdempotencyEngine()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Idempotency(engine, zerolog.Nop()))
	r.GET("/api/v1/payments", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments", nil)
	req.Header.Set(HeaderIdempotencyKey, "key-3")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
