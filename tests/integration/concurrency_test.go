package integration

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentIdempotentPayments fires the same Idempotency-Key at the
// create-payment endpoint from many goroutines at once. Exactly one of
// them runs the handler; the rest either replay its cached response or,
// while it is still in flight, get 409.
func TestConcurrentIdempotentPayments(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	apiKey := registerAndGetAPIKey(t, app, "concurrent_idem_merchant")

	body, _ := json.Marshal(map[string]interface{}{
		"amount":   "10.0000",
		"currency": "USD",
		"provider": "stripe",
	})

	concurrency := 20
	var wg sync.WaitGroup
	var successCount atomic.Int64
	var inFlightCount atomic.Int64
	ids := make([]string, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			req := apiKeyRequest(t, app, http.MethodPost, "/api/v1/payments", apiKey, body)
			req.Header.Set("Idempotency-Key", "concurrent-fixed-key")

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return
			}
			defer resp.Body.Close()
			respBody, _ := io.ReadAll(resp.Body)

			if resp.StatusCode == http.StatusCreated {
				successCount.Add(1)
				var parsed struct {
					ID string `json:"id"`
				}
				_ = json.Unmarshal(respBody, &parsed)
				ids[idx] = parsed.ID
			} else if resp.StatusCode == http.StatusConflict {
				inFlightCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(concurrency), successCount.Load()+inFlightCount.Load(), "every request gets 201 (original or replay) or 409 while the key is in flight")

	unique := make(map[string]struct{})
	for _, id := range ids {
		if id != "" {
			unique[id] = struct{}{}
		}
	}
	assert.Len(t, unique, 1, "idempotency key collapses concurrent requests onto a single payment")
}

// TestConcurrentPaymentCreation verifies that concurrently created payments
// for the same merchant each receive a distinct ID and are all listable.
func TestConcurrentPaymentCreation(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	apiKey := registerAndGetAPIKey(t, app, "concurrent_create_merchant")

	concurrency := 25
	var wg sync.WaitGroup
	var successCount atomic.Int64
	ids := make([]string, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			body, _ := json.Marshal(map[string]interface{}{
				"amount":      "5.0000",
				"currency":    "USD",
				"provider":    "stripe",
				"external_id": fmt.Sprintf("order-%d", idx),
			})
			req := apiKeyRequest(t, app, http.MethodPost, "/api/v1/payments", apiKey, body)

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return
			}
			defer resp.Body.Close()
			respBody, _ := io.ReadAll(resp.Body)

			if resp.StatusCode == http.StatusCreated {
				successCount.Add(1)
				var parsed struct {
					ID string `json:"id"`
				}
				_ = json.Unmarshal(respBody, &parsed)
				ids[idx] = parsed.ID
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, int64(concurrency), successCount.Load())

	unique := make(map[string]struct{})
	for _, id := range ids {
		require.NotEmpty(t, id)
		unique[id] = struct{}{}
	}
	assert.Len(t, unique, concurrency, "each concurrent payment creation gets its own id")
}

// TestConcurrentRefundsRespectAmountConservation fires many concurrent
// partial-refund requests against a single payment, each smaller than the
// payment total but summing well past it. The amount-conservation check
// must reject every refund beyond what the payment has left.
func TestConcurrentRefundsRespectAmountConservation(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	apiKey := registerAndGetAPIKey(t, app, "concurrent_refund_merchant")

	createBody, _ := json.Marshal(map[string]interface{}{
		"amount":   "100.0000",
		"currency": "USD",
		"provider": "stripe",
	})
	createReq := apiKeyRequest(t, app, http.MethodPost, "/api/v1/payments", apiKey, createBody)
	createResp, err := http.DefaultClient.Do(createReq)
	require.NoError(t, err)
	defer createResp.Body.Close()
	createRespBody, _ := io.ReadAll(createResp.Body)
	require.Equal(t, http.StatusCreated, createResp.StatusCode, string(createRespBody))

	var payment struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(createRespBody, &payment))

	// 10 concurrent refunds of 30.00 each against a 100.00 payment: at most
	// 3 can succeed (90.00 total) before amount conservation kicks in.
	concurrency := 10
	refundAmount := "30.0000"

	var wg sync.WaitGroup
	var successCount atomic.Int64
	var conflictCount atomic.Int64

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body, _ := json.Marshal(map[string]interface{}{
				"amount": refundAmount,
				"reason": "concurrent test",
			})
			req := apiKeyRequest(t, app, http.MethodPost, "/api/v1/payments/"+payment.ID+"/refunds", apiKey, body)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return
			}
			defer resp.Body.Close()
			_, _ = io.ReadAll(resp.Body)

			switch resp.StatusCode {
			case http.StatusCreated:
				successCount.Add(1)
			default:
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	totalProcessed := successCount.Load() + conflictCount.Load()
	assert.Equal(t, int64(concurrency), totalProcessed, "every refund attempt completes")
	assert.LessOrEqual(t, successCount.Load(), int64(3), "amount conservation caps successful refunds at 3 * 30.00 <= 100.00")
}
