// Package worker runs the background processes that drive outbound webhook
// delivery: a queue consumer that dispatches ready deliveries as soon as
// they arrive, and a sweeper that republishes deliveries whose retry time
// has come due. Grounded on CedrosPay-server's WebhookQueueWorker poll loop,
// split across two goroutines since delivery here is driven by a durable
// Redis queue rather than a single ticker-polled store.
package worker

import (
	"context"
	"time"

	"payment-orchestrator/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultSweepInterval is how often the sweeper looks for due retries when
// the caller does not override it.
const DefaultSweepInterval = 60 * time.Second

// WebhookWorker consumes the webhook delivery queue and periodically sweeps
// for deliveries whose retry time has come due.
type WebhookWorker struct {
	service       ports.WebhookService
	queue         ports.WebhookQueue
	log           zerolog.Logger
	sweepInterval time.Duration
}

// New builds a WebhookWorker. sweepInterval <= 0 uses DefaultSweepInterval.
func New(service ports.WebhookService, queue ports.WebhookQueue, log zerolog.Logger, sweepInterval time.Duration) *WebhookWorker {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	return &WebhookWorker{
		service:       service,
		queue:         queue,
		log:           log.With().Str("component", "webhook_worker").Logger(),
		sweepInterval: sweepInterval,
	}
}

// Run blocks, running the consume loop and the sweep loop until ctx is
// cancelled.
func (w *WebhookWorker) Run(ctx context.Context) {
	done := make(chan struct{}, 2)

	go func() {
		w.consumeLoop(ctx)
		done <- struct{}{}
	}()
	go func() {
		w.sweepLoop(ctx)
		done <- struct{}{}
	}()

	<-done
	<-done
}

func (w *WebhookWorker) consumeLoop(ctx context.Context) {
	w.log.Info().Msg("webhook consumer started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("webhook consumer stopping")
			return
		default:
		}

		id, ack, err := w.queue.Consume(ctx)
		if err != nil {
			w.log.Error().Err(err).Msg("failed to consume webhook queue")
			continue
		}
		if ack == nil {
			// nothing ready within the poll window
			continue
		}

		w.deliver(ctx, id, ack)
	}
}

func (w *WebhookWorker) deliver(ctx context.Context, id uuid.UUID, ack func(ack bool, requeue bool)) {
	deliverCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err := w.service.Send(deliverCtx, id)
	if err == nil {
		ack(true, false)
		return
	}

	w.log.Warn().Err(err).Str("webhook_id", id.String()).Msg("webhook delivery attempt failed")
	// Send already recorded the failure and next retry time on the
	// webhook row; the sweeper re-publishes it to the queue when due, so
	// this attempt is simply dropped rather than requeued immediately.
	ack(false, false)
}

func (w *WebhookWorker) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	w.log.Info().Dur("interval", w.sweepInterval).Msg("webhook sweeper started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("webhook sweeper stopping")
			return
		case <-ticker.C:
			n, err := w.service.SweepDue(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("webhook sweep failed")
				continue
			}
			if n > 0 {
				w.log.Debug().Int("count", n).Msg("webhook sweep republished due deliveries")
			}
		}
	}
}
