package notify

import (
	"context"
	"log"
	"time"

	"github.com/Domenick1991/carpool/internal/domain"
	"github.com/Domenick1991/carpool/internal/kafka"
	"github.com/Domenick1991/carpool/internal/repository"
)

const drainBatchSize = 100

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

// Dispatcher drains undelivered outbox records to the notifications topic
// and marks them delivered. Delivery is at-least-once: a crash between
// publish and mark replays the record on the next drain.
type Dispatcher struct {
	notifications repository.NotificationRepository
	producer      Producer
	topic         string
	pollInterval  time.Duration
	now           func() time.Time
}

func NewDispatcher(notifications repository.NotificationRepository, producer Producer, topic string, pollInterval time.Duration) *Dispatcher {
	return &Dispatcher{
		notifications: notifications,
		producer:      producer,
		topic:         topic,
		pollInterval:  pollInterval,
		now:           time.Now,
	}
}

// Run blocks until ctx ends. New records are pushed through the store
// subscription; the poll ticker catches anything the subscription missed.
func (d *Dispatcher) Run(ctx context.Context) error {
	pending := make(chan struct{}, 1)
	wake := func() {
		select {
		case pending <- struct{}{}:
		default:
		}
	}

	cancel, err := d.notifications.WatchUndelivered(ctx, func(domain.Notification) { wake() })
	if err != nil {
		return err
	}
	defer cancel()

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	if err := d.Drain(ctx); err != nil {
		log.Printf("notify: initial drain: %v", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-pending:
		}
		if err := d.Drain(ctx); err != nil {
			log.Printf("notify: drain: %v", err)
		}
	}
}

// Drain delivers every undelivered record it can. A record that fails to
// publish stays undelivered and is retried on the next pass.
func (d *Dispatcher) Drain(ctx context.Context) error {
	undelivered, err := d.notifications.ListUndelivered(ctx, drainBatchSize)
	if err != nil {
		return err
	}
	for _, n := range undelivered {
		event := kafka.NotificationEvent{
			NotificationID: n.ID,
			Type:           string(n.Type),
			UserID:         n.UserID,
			Title:          n.Title,
			Message:        n.Message,
			RelatedID:      n.RelatedID,
			CreatedAt:      n.CreatedAt,
		}
		if err := d.producer.Publish(ctx, d.topic, n.ID, event); err != nil {
			log.Printf("notify: publish notification %s: %v", n.ID, err)
			continue
		}
		if err := d.notifications.MarkDelivered(ctx, n.ID, d.now()); err != nil {
			log.Printf("notify: mark notification %s delivered: %v", n.ID, err)
		}
	}
	return nil
}
