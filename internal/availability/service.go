package availability

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/floorplan-seating/internal/domain"
	"github.com/robertarktes/floorplan-seating/internal/observability"
	"golang.org/x/sync/errgroup"
)

type Store interface {
	ListSeats(ctx context.Context, eventID uuid.UUID) ([]domain.Seat, error)
}

// Reclaimer writes lapsed reservations of one event back as AVAILABLE,
// recording the expiry like any other transition.
type Reclaimer interface {
	ReclaimEvent(ctx context.Context, eventID uuid.UUID) ([]domain.Seat, error)
}

type FloorPlans interface {
	LatestFloorPlan(ctx context.Context, eventID uuid.UUID) (*domain.FloorPlan, error)
}

type Service struct {
	store     Store
	plans     FloorPlans
	reclaimer Reclaimer
	logger    observability.Logger
}

// NewService builds the read side. A nil reclaimer skips the write-back and
// relies on Build to report lapsed holds as available.
func NewService(store Store, plans FloorPlans, reclaimer Reclaimer, logger observability.Logger) *Service {
	return &Service{store: store, plans: plans, reclaimer: reclaimer, logger: logger}
}

// Get reads the current seat map of an event. Expired reservations are
// written back as AVAILABLE before the read.
func (s *Service) Get(ctx context.Context, eventID uuid.UUID, filter Filter) (View, error) {
	log := s.logger.WithField("event_id", eventID)

	if s.reclaimer != nil {
		reclaimed, err := s.reclaimer.ReclaimEvent(ctx, eventID)
		if err != nil {
			log.WithError(err).Warn("reclaim expired reservations")
		} else if len(reclaimed) > 0 {
			log.WithField("count", len(reclaimed)).Debug("reclaimed expired reservations")
		}
	}
	now := time.Now()

	var (
		seats []domain.Seat
		plan  *domain.FloorPlan
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		seats, err = s.store.ListSeats(gctx, eventID)
		return errors.Wrap(err, "list seats")
	})
	if s.plans != nil {
		g.Go(func() error {
			p, err := s.plans.LatestFloorPlan(gctx, eventID)
			if err != nil {
				log.WithError(err).Warn("load floor plan")
				return nil
			}
			plan = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return View{}, err
	}

	view := Build(seats, now, filter)
	view.FloorPlan = summarize(plan)
	return view, nil
}
