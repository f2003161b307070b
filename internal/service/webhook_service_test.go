package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"payment-orchestrator/internal/core/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockHTTPClient implements HTTPClient for testing.
type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func newResponse(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(nil)}
}

type fakeWebhookRepo struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*domain.WebhookEvent
}

func newFakeWebhookRepo() *fakeWebhookRepo {
	return &fakeWebhookRepo{byID: make(map[uuid.UUID]*domain.WebhookEvent)}
}

func (r *fakeWebhookRepo) Create(ctx context.Context, event *domain.WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *event
	r.byID[event.ID] = &cp
	return nil
}

func (r *fakeWebhookRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r *fakeWebhookRepo) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return nil
	}
	e.Status = domain.WebhookStatusSent
	e.SentAt = &sentAt
	return nil
}

func (r *fakeWebhookRepo) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return nil
	}
	e.Status = domain.WebhookStatusFailed
	e.LastError = &lastError
	e.Attempts++
	return nil
}

func (r *fakeWebhookRepo) RecordFailedAttempt(ctx context.Context, id uuid.UUID, nextRetryAt time.Time, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return nil
	}
	e.Attempts++
	e.NextRetryAt = &nextRetryAt
	e.LastError = &lastError
	return nil
}

func (r *fakeWebhookRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.WebhookEvent
	for _, e := range r.byID {
		if e.Status != domain.WebhookStatusPending {
			continue
		}
		if e.NextRetryAt != nil && e.NextRetryAt.After(now) {
			continue
		}
		if e.Attempts >= e.MaxAttempts {
			continue
		}
		out = append(out, *e)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

type fakeWebhookQueue struct {
	mu        sync.Mutex
	published []uuid.UUID
}

func (q *fakeWebhookQueue) Publish(ctx context.Context, webhookID uuid.UUID, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, webhookID)
	return nil
}

func (q *fakeWebhookQueue) Consume(ctx context.Context) (uuid.UUID, func(ack bool, requeue bool), error) {
	return uuid.Nil, nil, nil
}

func newWebhookService(client HTTPClient) (*WebhookServiceImpl, *fakeWebhookRepo, *fakeWebhookQueue) {
	repo := newFakeWebhookRepo()
	queue := &fakeWebhookQueue{}
	svc := NewWebhookService(repo, queue, client, "whsec_test", false, 0, nil, newTestLogger())
	return svc, repo, queue
}

func TestEnqueue_RejectsNonHTTPSURL(t *testing.T) {
	svc, _, _ := newWebhookService(&mockHTTPClient{})
	err := svc.Enqueue(context.Background(), uuid.New(), nil, "payment.completed", map[string]string{"id": "p1"}, "http://merchant.example.com/hook")
	require.Error(t, err)
}

func TestEnqueue_RejectsPrivateIPTarget(t *testing.T) {
	svc, _, _ := newWebhookService(&mockHTTPClient{})
	err := svc.Enqueue(context.Background(), uuid.New(), nil, "payment.completed", map[string]string{"id": "p1"}, "https://192.168.1.5/hook")
	require.Error(t, err)
}

func TestEnqueue_RejectsLoopbackTarget(t *testing.T) {
	svc, _, _ := newWebhookService(&mockHTTPClient{})
	err := svc.Enqueue(context.Background(), uuid.New(), nil, "payment.completed", map[string]string{"id": "p1"}, "https://localhost/hook")
	require.Error(t, err)
}

func TestEnqueue_RejectsCloudMetadataTarget(t *testing.T) {
	svc, _, _ := newWebhookService(&mockHTTPClient{})
	err := svc.Enqueue(context.Background(), uuid.New(), nil, "payment.completed", map[string]string{"id": "p1"}, "https://169.254.169.254/latest/meta-data")
	require.Error(t, err)
}

func TestEnqueue_RejectsInternalSuffix(t *testing.T) {
	svc, _, _ := newWebhookService(&mockHTTPClient{})
	err := svc.Enqueue(context.Background(), uuid.New(), nil, "payment.completed", map[string]string{"id": "p1"}, "https://service.internal/hook")
	require.Error(t, err)
}

func TestEnqueue_AcceptsValidHTTPSTarget(t *testing.T) {
	svc, repo, queue := newWebhookService(&mockHTTPClient{})
	err := svc.Enqueue(context.Background(), uuid.New(), nil, "payment.completed", map[string]string{"id": "p1"}, "https://merchant.example.com/hook")
	require.NoError(t, err)
	assert.Len(t, repo.byID, 1)
	assert.Len(t, queue.published, 1)

	var event *domain.WebhookEvent
	for _, e := range repo.byID {
		event = e
	}
	var fields map[string]any
	require.NoError(t, json.Unmarshal(event.Payload, &fields))
	assert.Equal(t, "payment.completed", fields["event_type"])
	assert.NotNil(t, fields["timestamp"])
}

func TestSend_MarksSentOn2xx(t *testing.T) {
	client := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
		assert.NotEmpty(t, req.Header.Get("X-Webhook-Signature"))
		assert.Equal(t, "payment.completed", req.Header.Get("X-Event-Type"))
		return newResponse(http.StatusOK), nil
	}}
	svc, repo, _ := newWebhookService(client)

	require.NoError(t, svc.Enqueue(context.Background(), uuid.New(), nil, "payment.completed", map[string]string{"id": "p1"}, "https://merchant.example.com/hook"))

	var id uuid.UUID
	for k := range repo.byID {
		id = k
	}
	require.NoError(t, svc.Send(context.Background(), id))

	stored, _ := repo.GetByID(context.Background(), id)
	assert.Equal(t, domain.WebhookStatusSent, stored.Status)
}

func TestSend_RetriesOnNon2xx(t *testing.T) {
	client := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
		return newResponse(http.StatusInternalServerError), nil
	}}
	svc, repo, queue := newWebhookService(client)

	require.NoError(t, svc.Enqueue(context.Background(), uuid.New(), nil, "payment.failed", map[string]string{"id": "p1"}, "https://merchant.example.com/hook"))

	var id uuid.UUID
	for k := range repo.byID {
		id = k
	}
	require.NoError(t, svc.Send(context.Background(), id))

	stored, _ := repo.GetByID(context.Background(), id)
	assert.Equal(t, domain.WebhookStatusPending, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.NotNil(t, stored.NextRetryAt)
	assert.Len(t, queue.published, 2) // initial enqueue + retry republish
}

func TestSend_MarksFailedAfterMaxAttempts(t *testing.T) {
	client := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}}
	svc, repo, _ := newWebhookService(client)

	require.NoError(t, svc.Enqueue(context.Background(), uuid.New(), nil, "payment.failed", map[string]string{"id": "p1"}, "https://merchant.example.com/hook"))

	var id uuid.UUID
	for k := range repo.byID {
		id = k
	}
	event := repo.byID[id]
	event.Attempts = event.MaxAttempts - 1

	require.NoError(t, svc.Send(context.Background(), id))

	stored, _ := repo.GetByID(context.Background(), id)
	assert.Equal(t, domain.WebhookStatusFailed, stored.Status)
}

func TestSend_SkipsAlreadySentEvent(t *testing.T) {
	called := false
	client := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
		called = true
		return newResponse(http.StatusOK), nil
	}}
	svc, repo, _ := newWebhookService(client)

	require.NoError(t, svc.Enqueue(context.Background(), uuid.New(), nil, "payment.completed", map[string]string{"id": "p1"}, "https://merchant.example.com/hook"))
	var id uuid.UUID
	for k := range repo.byID {
		id = k
	}
	repo.byID[id].Status = domain.WebhookStatusSent

	require.NoError(t, svc.Send(context.Background(), id))
	assert.False(t, called)
}

func TestSweepDue_RepublishesDueEvents(t *testing.T) {
	svc, repo, queue := newWebhookService(&mockHTTPClient{})

	past := time.Now().Add(-time.Minute)
	event := &domain.WebhookEvent{
		ID:          uuid.New(),
		EventType:   "payment.failed",
		Status:      domain.WebhookStatusPending,
		Attempts:    1,
		MaxAttempts: domain.DefaultWebhookMaxAttempts,
		NextRetryAt: &past,
	}
	require.NoError(t, repo.Create(context.Background(), event))

	n, err := svc.SweepDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, queue.published, 1)
}
