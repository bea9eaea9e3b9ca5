package outbox

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/floorplan-seating/internal/domain"
	"github.com/robertarktes/floorplan-seating/internal/observability"
)

type Source interface {
	Consume(ctx context.Context) (<-chan amqp.Delivery, error)
}

type Auditor interface {
	LogSeatEvent(ctx context.Context, ev domain.SeatEvent) error
}

// Projector writes every seat event delivered by the broker to the audit
// trail.
type Projector struct {
	source  Source
	auditor Auditor
	logger  observability.Logger
}

func NewProjector(source Source, auditor Auditor, logger observability.Logger) *Projector {
	return &Projector{source: source, auditor: auditor, logger: logger}
}

func (p *Projector) Run(ctx context.Context) error {
	deliveries, err := p.source.Consume(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			p.handle(ctx, d)
		}
	}
}

// handle acks audited events, drops undecodable ones and requeues on
// audit store failures.
func (p *Projector) handle(ctx context.Context, d amqp.Delivery) {
	var ev domain.SeatEvent
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		p.logger.WithError(err).WithField("message_id", d.MessageId).Warn("drop undecodable seat event")
		d.Nack(false, false)
		return
	}
	if err := p.auditor.LogSeatEvent(ctx, ev); err != nil {
		p.logger.WithError(err).WithField("type", ev.Type).Error("audit seat event")
		d.Nack(false, true)
		return
	}
	d.Ack(false)
}
