// Package outbox relays seat events committed to the outbox table onto the
// message broker, and projects them into the audit trail.
package outbox

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/floorplan-seating/internal/adapters/crdb"
	"github.com/robertarktes/floorplan-seating/internal/observability"
	"golang.org/x/sync/errgroup"
)

type Store interface {
	DrainOutbox(ctx context.Context, limit int, publish func(context.Context, crdb.OutboxRecord) error) (int, error)
	OldestUnpublished(ctx context.Context) (time.Duration, error)
}

type Broker interface {
	Publish(ctx context.Context, key string, msg amqp.Publishing) error
}

type Publisher struct {
	repo      Store
	rabbitPub Broker
	logger    observability.Logger
	interval  time.Duration
	batch     int
}

func NewPublisher(repo Store, rabbitPub Broker, logger observability.Logger, interval time.Duration, batch int) *Publisher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batch <= 0 {
		batch = 50
	}
	return &Publisher{repo: repo, rabbitPub: rabbitPub, logger: logger, interval: interval, batch: batch}
}

// Run drains the outbox and samples its lag on every tick until ctx ends.
func (p *Publisher) Run(ctx context.Context) error {
	p.logger.Info("Outbox publisher started")
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				_, err := p.Flush(gctx)
				return err
			})
			g.Go(func() error {
				lag, err := p.repo.OldestUnpublished(gctx)
				if err != nil {
					return err
				}
				observability.OutboxLag.Set(lag.Seconds())
				return nil
			})
			if err := g.Wait(); err != nil {
				p.logger.WithError(err).Error("outbox tick failed")
			}
		}
	}
}

// Flush publishes one batch and returns how many records went out.
func (p *Publisher) Flush(ctx context.Context) (int, error) {
	n, err := p.repo.DrainOutbox(ctx, p.batch, p.publish)
	if err != nil {
		return n, err
	}
	if n > 0 {
		p.logger.WithField("count", n).Debug("published outbox records")
	}
	return n, nil
}

func (p *Publisher) publish(ctx context.Context, rec crdb.OutboxRecord) error {
	msg := amqp.Publishing{
		MessageId:    rec.DedupeKey,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    rec.CreatedAt,
		Type:         rec.EventType,
		Body:         rec.Payload,
	}
	if err := p.rabbitPub.Publish(ctx, rec.EventType, msg); err != nil {
		p.logger.WithError(err).WithField("outbox_id", rec.ID).Warn("publish outbox record")
		return err
	}
	return nil
}
