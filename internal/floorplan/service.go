// Package floorplan saves hall layouts and regenerates the event's seat
// inventory from them.
package floorplan

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/floorplan-seating/internal/domain"
	"github.com/robertarktes/floorplan-seating/internal/observability"
	"github.com/robertarktes/floorplan-seating/internal/seatgen"
)

const ReasonSchemaMissing = "schema_missing"

type PlanStore interface {
	SaveFloorPlan(ctx context.Context, plan domain.FloorPlan) error
	ListFloorPlans(ctx context.Context, eventID uuid.UUID) ([]domain.FloorPlan, error)
	LatestFloorPlan(ctx context.Context, eventID uuid.UUID) (*domain.FloorPlan, error)
}

type CountStore interface {
	GetCounts(ctx context.Context, eventID uuid.UUID) (*domain.CategoryCounts, error)
	SaveCounts(ctx context.Context, eventID uuid.UUID, counts domain.CategoryCounts) error
}

type Generator interface {
	Generate(ctx context.Context, eventID uuid.UUID, layout domain.Layout) (seatgen.Result, error)
}

// Provisioner recreates the seat tables when they are missing.
type Provisioner interface {
	EnsureSchema(ctx context.Context) error
}

// Outcome reports both steps of a save. A saved layout with failed seat
// generation is not an error.
type Outcome struct {
	ID             uuid.UUID `json:"id"`
	LayoutSaved    bool      `json:"success"`
	SeatsGenerated bool      `json:"seatsGenerated"`
	Count          int       `json:"count"`
	Reason         string    `json:"reason,omitempty"`
}

type Service struct {
	plans       PlanStore
	counts      CountStore
	generator   Generator
	provisioner Provisioner
	logger      observability.Logger
}

func NewService(plans PlanStore, counts CountStore, generator Generator, provisioner Provisioner, logger observability.Logger) *Service {
	return &Service{plans: plans, counts: counts, generator: generator, provisioner: provisioner, logger: logger}
}

func (s *Service) Save(ctx context.Context, eventID uuid.UUID, layout domain.Layout) (Outcome, error) {
	layout = layout.Normalize()
	if err := layout.Validate(); err != nil {
		return Outcome{}, err
	}
	log := s.logger.WithField("event_id", eventID)

	if layout.GuestCount == 0 && layout.ExplicitCounts().Total() == 0 && !s.hasSnapshot(ctx, eventID) {
		return Outcome{}, domain.InvalidLayout("layout yields no seats")
	}

	plan := domain.NewFloorPlan(eventID, layout)
	if err := s.plans.SaveFloorPlan(ctx, plan); err != nil {
		return Outcome{}, errors.Wrap(err, "save floor plan")
	}
	out := Outcome{ID: plan.ID, LayoutSaved: true}

	if counts := layout.ExplicitCounts(); counts.Total() > 0 && s.counts != nil {
		if err := s.counts.SaveCounts(ctx, eventID, counts); err != nil {
			log.WithError(err).Warn("store seat count snapshot")
		}
	}

	res, err := s.generator.Generate(ctx, eventID, layout)
	if err != nil {
		observability.SeatGenerationFailures.Inc()
		out.Reason = err.Error()
		if errors.Is(err, domain.ErrSchemaMissing) {
			out.Reason = ReasonSchemaMissing
			if s.provisioner != nil {
				if perr := s.provisioner.EnsureSchema(ctx); perr != nil {
					log.WithError(perr).Error("reprovision seat schema")
				} else {
					log.Warn("seat schema was missing and has been recreated; retry generation")
				}
			}
		}
		log.WithError(err).Error("seat generation failed after floor plan save")
		return out, nil
	}

	out.SeatsGenerated = res.SeatsGenerated
	out.Count = res.Count
	return out, nil
}

// hasSnapshot reports whether stored counts can stand in for a layout that
// carries neither a guest count nor explicit counts. An unreadable snapshot
// defers the decision to generation.
func (s *Service) hasSnapshot(ctx context.Context, eventID uuid.UUID) bool {
	if s.counts == nil {
		return false
	}
	snap, err := s.counts.GetCounts(ctx, eventID)
	if err != nil {
		return true
	}
	return snap != nil && snap.Total() > 0
}

func (s *Service) List(ctx context.Context, eventID uuid.UUID) ([]domain.FloorPlan, error) {
	plans, err := s.plans.ListFloorPlans(ctx, eventID)
	if err != nil {
		return nil, errors.Wrap(err, "list floor plans")
	}
	return plans, nil
}

func (s *Service) Latest(ctx context.Context, eventID uuid.UUID) (*domain.FloorPlan, error) {
	return s.plans.LatestFloorPlan(ctx, eventID)
}
