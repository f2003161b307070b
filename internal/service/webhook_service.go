package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/internal/crypto"
	"payment-orchestrator/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HTTPClient is the interface webhookService needs from an HTTP client,
// the same seam the teacher's webhook_service.go tests against.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// deniedWebhookHosts is the fixed deny-list of loopback/metadata hostnames
// no merchant webhook URL may target, on top of the private-range checks
// below.
var deniedWebhookHosts = map[string]bool{
	"localhost":                true,
	"127.0.0.1":                true,
	"0.0.0.0":                  true,
	"::1":                      true,
	"169.254.169.254":          true, // AWS/GCP/Azure instance metadata
	"metadata.google.internal": true,
}

// WebhookServiceImpl implements ports.WebhookService, generalizing the
// teacher's webhook_service.go signing/send/retry shape onto the durable
// queue adapter, the HMAC header format of internal/crypto, and the
// SSRF-safe URL validation this spec requires that the teacher's
// unchecked merchant-supplied webhook_url never needed.
type WebhookServiceImpl struct {
	webhookRepo ports.WebhookRepository
	queue       ports.WebhookQueue
	httpClient  HTTPClient
	secret      string
	allowHTTP   bool // development-mode relaxation of the https-only rule
	maxRetries  int
	retryDelays []time.Duration
	log         zerolog.Logger
}

// NewWebhookService creates a new WebhookServiceImpl. secret is the
// service-wide webhook signing key; allowHTTP should be true only outside
// production. maxRetries and retryDelays configure the retry schedule
// applied by handleFailure, falling back to the package defaults when
// either is left empty.
func NewWebhookService(
	webhookRepo ports.WebhookRepository,
	queue ports.WebhookQueue,
	httpClient HTTPClient,
	secret string,
	allowHTTP bool,
	maxRetries int,
	retryDelays []time.Duration,
	log zerolog.Logger,
) *WebhookServiceImpl {
	if maxRetries <= 0 {
		maxRetries = domain.DefaultWebhookMaxAttempts
	}
	if len(retryDelays) == 0 {
		retryDelays = domain.DefaultRetrySchedule
	}
	return &WebhookServiceImpl{
		webhookRepo: webhookRepo,
		queue:       queue,
		httpClient:  httpClient,
		secret:      secret,
		allowHTTP:   allowHTTP,
		maxRetries:  maxRetries,
		retryDelays: retryDelays,
		log:         log,
	}
}

// Enqueue implements ports.WebhookService. The destination URL is
// validated before anything is persisted; the payload is wrapped in a
// canonical envelope carrying event_type and timestamp alongside the
// caller's fields.
func (s *WebhookServiceImpl) Enqueue(ctx context.Context, merchantID uuid.UUID, paymentID *uuid.UUID, eventType string, payload any, destinationURL string) error {
	if err := validateWebhookURL(destinationURL, s.allowHTTP); err != nil {
		return apperror.Validation(err.Error())
	}

	canonical, err := canonicalWebhookPayload(eventType, payload)
	if err != nil {
		return apperror.Internal(fmt.Errorf("marshal webhook payload: %w", err))
	}

	event := &domain.WebhookEvent{
		ID:             uuid.New(),
		PaymentID:      paymentID,
		EventType:      eventType,
		Payload:        canonical,
		DestinationURL: destinationURL,
		MaxAttempts:    s.maxRetries,
		Status:         domain.WebhookStatusPending,
	}
	if err := s.webhookRepo.Create(ctx, event); err != nil {
		return apperror.Internal(fmt.Errorf("insert webhook event: %w", err))
	}

	if err := s.queue.Publish(ctx, event.ID, 0); err != nil {
		return apperror.Internal(fmt.Errorf("publish webhook event: %w", err))
	}
	return nil
}

// canonicalWebhookPayload merges event_type and timestamp into payload's
// JSON representation. encoding/json sorts map keys on marshal, which is
// enough determinism for a signed webhook body.
func canonicalWebhookPayload(eventType string, payload any) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		// payload wasn't a JSON object; wrap it under "data" instead of
		// silently dropping event_type/timestamp.
		fields = map[string]any{"data": json.RawMessage(raw)}
	}
	fields["event_type"] = eventType
	fields["timestamp"] = time.Now().Unix()
	return json.Marshal(fields)
}

// Send implements ports.WebhookService: it delivers one attempt and
// updates the row's terminal/retry state.
func (s *WebhookServiceImpl) Send(ctx context.Context, webhookID uuid.UUID) error {
	event, err := s.webhookRepo.GetByID(ctx, webhookID)
	if err != nil {
		return apperror.Internal(fmt.Errorf("get webhook event: %w", err))
	}
	if event == nil {
		return nil // already removed; treat as delivered
	}
	if event.Status == domain.WebhookStatusSent || event.Status == domain.WebhookStatusFailed {
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	sig := crypto.SignWebhook(s.secret, event.Payload, time.Now())
	req, err := http.NewRequestWithContext(sendCtx, http.MethodPost, event.DestinationURL, bytes.NewReader(event.Payload))
	if err != nil {
		return s.handleFailure(ctx, event, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", sig)
	req.Header.Set("X-Webhook-Id", event.ID.String())
	req.Header.Set("X-Event-Type", event.EventType)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return s.handleFailure(ctx, event, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := s.webhookRepo.MarkSent(ctx, event.ID, time.Now()); err != nil {
			return apperror.Internal(fmt.Errorf("mark webhook sent: %w", err))
		}
		return nil
	}

	return s.handleFailure(ctx, event, fmt.Sprintf("unexpected status %d", resp.StatusCode))
}

// handleFailure applies the retry schedule or terminates the event as
// failed once max_attempts is reached.
func (s *WebhookServiceImpl) handleFailure(ctx context.Context, event *domain.WebhookEvent, lastError string) error {
	attempts := event.Attempts + 1
	if attempts >= event.MaxAttempts {
		if err := s.webhookRepo.MarkFailed(ctx, event.ID, lastError); err != nil {
			return apperror.Internal(fmt.Errorf("mark webhook failed: %w", err))
		}
		s.log.Warn().Str("webhook_id", event.ID.String()).Str("last_error", lastError).Msg("webhook delivery exhausted retries")
		return nil
	}

	delay := domain.RetryDelay(s.retryDelays, attempts-1)
	nextRetryAt := time.Now().Add(delay)
	if err := s.webhookRepo.RecordFailedAttempt(ctx, event.ID, nextRetryAt, lastError); err != nil {
		return apperror.Internal(fmt.Errorf("record failed attempt: %w", err))
	}
	if err := s.queue.Publish(ctx, event.ID, delay); err != nil {
		return apperror.Internal(fmt.Errorf("republish webhook event: %w", err))
	}
	return nil
}

// SweepDue implements ports.WebhookService, republishing rows whose
// retry time has arrived but that never made it back onto the queue
// (e.g. after a worker crash).
func (s *WebhookServiceImpl) SweepDue(ctx context.Context) (int, error) {
	due, err := s.webhookRepo.ListDue(ctx, time.Now(), 100)
	if err != nil {
		return 0, apperror.Internal(fmt.Errorf("list due webhooks: %w", err))
	}
	for _, event := range due {
		if err := s.queue.Publish(ctx, event.ID, 0); err != nil {
			s.log.Warn().Err(err).Str("webhook_id", event.ID.String()).Msg("failed to republish due webhook")
		}
	}
	return len(due), nil
}

// validateWebhookURL enforces the SSRF rules applied at enqueue time:
// scheme, host deny-list, private/link-local ranges, and internal-TLD
// suffixes.
func validateWebhookURL(raw string, allowHTTP bool) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid webhook url")
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "https" && !(allowHTTP && scheme == "http") {
		return fmt.Errorf("webhook url scheme must be https")
	}

	host := u.Hostname()
	lowerHost := strings.ToLower(host)
	if deniedWebhookHosts[lowerHost] {
		return fmt.Errorf("webhook host %q is not permitted", host)
	}
	if strings.HasSuffix(lowerHost, ".internal") || strings.HasSuffix(lowerHost, ".local") {
		return fmt.Errorf("webhook host %q is not permitted", host)
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsUnspecified() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
			return fmt.Errorf("webhook host %q resolves to a disallowed address range", host)
		}
	}

	return nil
}
