package seatgen

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/floorplan-seating/internal/domain"
	"github.com/robertarktes/floorplan-seating/internal/observability"
)

// Store replaces an event's inventory and exposes its ticket pricing.
type Store interface {
	ReplaceSeats(ctx context.Context, eventID uuid.UUID, seats []domain.Seat) error
	TicketPricing(ctx context.Context, eventID uuid.UUID) (*domain.Pricing, error)
}

// CountSnapshots returns the last stored category counts for an event, or
// nil when none were stored.
type CountSnapshots interface {
	GetCounts(ctx context.Context, eventID uuid.UUID) (*domain.CategoryCounts, error)
}

type Result struct {
	SeatsGenerated bool `json:"seatsGenerated"`
	Count          int  `json:"count"`
}

type Service struct {
	store     Store
	snapshots CountSnapshots
	logger    observability.Logger
}

func NewService(store Store, snapshots CountSnapshots, logger observability.Logger) *Service {
	return &Service{store: store, snapshots: snapshots, logger: logger}
}

// Generate rebuilds the full seat inventory of an event from the layout.
// Invalid layouts, and layouts that resolve to zero seats once the stored
// count snapshot is applied, are rejected before anything is written.
func (s *Service) Generate(ctx context.Context, eventID uuid.UUID, layout domain.Layout) (Result, error) {
	layout = layout.Normalize()
	if err := layout.Validate(); err != nil {
		return Result{}, err
	}

	var snapshot *domain.CategoryCounts
	if s.snapshots != nil && layout.ExplicitCounts().Total() == 0 {
		snap, err := s.snapshots.GetCounts(ctx, eventID)
		if err != nil {
			s.logger.WithField("event_id", eventID).WithError(err).Warn("seat count snapshot unavailable, using defaults")
		} else {
			snapshot = snap
		}
	}
	counts := domain.ResolveCounts(layout, snapshot)
	if domain.DesiredTotal(layout, counts) == 0 {
		return Result{}, domain.InvalidLayout("layout yields no seats")
	}

	settings, err := s.store.TicketPricing(ctx, eventID)
	if err != nil {
		return Result{}, errors.Wrap(err, "load ticket pricing")
	}
	pricing := domain.ResolvePricing(settings, layout)

	seats := Generate(eventID, layout, counts, pricing)
	if err := s.store.ReplaceSeats(ctx, eventID, seats); err != nil {
		return Result{}, errors.Wrap(err, "replace seats")
	}

	observability.SeatsGenerated.Add(float64(len(seats)))
	s.logger.WithFields(map[string]interface{}{
		"event_id": eventID,
		"count":    len(seats),
		"vip":      counts.VIP,
		"premium":  counts.Premium,
		"general":  counts.General,
	}).Info("generated seats")

	return Result{SeatsGenerated: true, Count: len(seats)}, nil
}
