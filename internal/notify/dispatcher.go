package notify

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/LungheSam/FareFlow-Server/internal/config"
	"github.com/LungheSam/FareFlow-Server/internal/logging"
)

var deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fareflow_notifications_total",
	Help: "Notification delivery attempts by channel and result",
}, []string{"channel", "result"})

// Dispatcher drains the notification outbox: claims due rows, attempts every
// channel, and reschedules with exponential backoff until the attempt cap.
// Delivery failure never touches ledger state; at-least-once per channel.
type Dispatcher struct {
	queue    Queue
	channels []Channel
	cfg      config.OutboxConfig
}

func NewDispatcher(queue Queue, cfg config.OutboxConfig, channels ...Channel) *Dispatcher {
	return &Dispatcher{queue: queue, channels: channels, cfg: cfg}
}

// Run polls until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Drain(ctx); err != nil {
				logging.Error().Err(err).Msg("outbox drain failed")
			}
		}
	}
}

// Drain processes one claimed batch. Exported for tests and for a final
// flush during shutdown.
func (d *Dispatcher) Drain(ctx context.Context) error {
	msgs, err := d.queue.ClaimDue(ctx, d.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, msg := range msgs {
		d.deliver(ctx, msg)
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	log := logging.Logger().With().Str("notification_id", msg.ID).Str("kind", string(msg.Kind)).Logger()

	failed := false
	for _, ch := range d.channels {
		if err := ch.Send(ctx, msg.Kind, msg.Payload); err != nil {
			failed = true
			deliveriesTotal.WithLabelValues(ch.Name(), "failure").Inc()
			log.Warn().Err(err).Str("channel", ch.Name()).Bool("breaker_open", IsOpen(err)).Msg("notification delivery failed")
			continue
		}
		deliveriesTotal.WithLabelValues(ch.Name(), "success").Inc()
	}

	attempts := msg.Attempts + 1
	if !failed {
		if err := d.queue.MarkSent(ctx, msg.ID); err != nil {
			log.Error().Err(err).Msg("failed to mark notification sent")
		}
		return
	}

	if attempts >= d.cfg.MaxAttempts {
		log.Error().Int("attempts", attempts).Msg("notification dead-lettered")
		if err := d.queue.MarkDead(ctx, msg.ID, attempts); err != nil {
			log.Error().Err(err).Msg("failed to dead-letter notification")
		}
		return
	}

	next := time.Now().Add(d.backoff(attempts))
	if err := d.queue.Reschedule(ctx, msg.ID, attempts, next); err != nil {
		log.Error().Err(err).Msg("failed to reschedule notification")
	}
}

// backoff doubles per attempt: base, 2*base, 4*base, ...
func (d *Dispatcher) backoff(attempts int) time.Duration {
	backoff := d.cfg.BaseBackoff
	for i := 1; i < attempts; i++ {
		backoff *= 2
	}
	return backoff
}
