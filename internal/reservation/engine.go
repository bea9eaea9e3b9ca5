// Package reservation owns every seat status transition. Each transition is a
// single conditional update against the seat store, so two sessions racing
// for a seat cannot both win.
package reservation

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/floorplan-seating/internal/domain"
	"github.com/robertarktes/floorplan-seating/internal/observability"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Store performs the compare-and-swap transitions. Multi-seat calls are all
// or nothing.
type Store interface {
	ReserveSeats(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, sessionID string, expiresAt, now time.Time) ([]domain.Seat, error)
	ReleaseSeats(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, sessionID string) ([]uuid.UUID, error)
	ConfirmSeats(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, sessionID string, now time.Time) ([]domain.Seat, error)
	GetSeat(ctx context.Context, seatID uuid.UUID) (domain.Seat, error)
	ExpireSeat(ctx context.Context, seatID uuid.UUID, now time.Time) (bool, error)
	RevertSeat(ctx context.Context, seatID uuid.UUID) (domain.Seat, error)
	ReclaimExpired(ctx context.Context, eventID uuid.UUID, now time.Time) ([]domain.Seat, error)
}

// Auditor records seat transitions. Failures are logged, never returned.
type Auditor interface {
	LogSeatEvent(ctx context.Context, ev domain.SeatEvent) error
}

type Config struct {
	TTL      time.Duration
	MaxSeats int
}

type Engine struct {
	store   Store
	auditor Auditor
	cfg     Config
	logger  observability.Logger
	now     func() time.Time
}

func NewEngine(store Store, auditor Auditor, cfg Config, logger observability.Logger) *Engine {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.MaxSeats <= 0 {
		cfg.MaxSeats = 10
	}
	return &Engine{store: store, auditor: auditor, cfg: cfg, logger: logger, now: time.Now}
}

type Hold struct {
	Seats      []domain.Seat
	SessionID  string
	ExpiresAt  time.Time
	TotalPrice decimal.Decimal
}

// Reserve moves the seats from AVAILABLE to RESERVED for the session. A
// seat already held by the same session has its expiry extended.
func (e *Engine) Reserve(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, sessionID string) (Hold, error) {
	ctx, span := e.span(ctx, "reservation.Reserve", eventID, seatIDs)
	defer span.End()

	ids, err := e.checkRequest(seatIDs, sessionID)
	if err != nil {
		return Hold{}, err
	}

	now := e.now()
	expiresAt := now.Add(e.cfg.TTL)
	seats, err := e.store.ReserveSeats(ctx, eventID, ids, sessionID, expiresAt, now)
	if err != nil {
		err = conflictOnSerialization(err, ids)
		e.recordFailure("reserve", err)
		span.RecordError(err)
		return Hold{}, err
	}
	observability.Reservations.WithLabelValues("reserve", "ok").Inc()

	hold := Hold{Seats: seats, SessionID: sessionID, ExpiresAt: expiresAt, TotalPrice: totalPrice(seats)}
	e.audit(ctx, domain.SeatEvent{Type: domain.EventSeatsReserved, EventID: eventID, SeatIDs: ids, SessionID: sessionID, At: now})
	e.logger.WithFields(map[string]interface{}{
		"event_id":   eventID,
		"session_id": sessionID,
		"seats":      len(ids),
		"expires_at": expiresAt.Format(time.RFC3339),
	}).Info("seats reserved")
	return hold, nil
}

// Release hands seats held by the session back. Seats the session does not
// hold are left alone.
func (e *Engine) Release(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, sessionID string) ([]uuid.UUID, error) {
	ctx, span := e.span(ctx, "reservation.Release", eventID, seatIDs)
	defer span.End()

	if sessionID == "" || len(seatIDs) == 0 {
		return nil, errors.Wrap(domain.ErrInvalidInput, "sessionId and seatIds are required")
	}
	released, err := e.store.ReleaseSeats(ctx, eventID, dedupe(seatIDs), sessionID)
	if err != nil {
		e.recordFailure("release", err)
		return nil, err
	}
	observability.Reservations.WithLabelValues("release", "ok").Inc()
	if len(released) > 0 {
		e.audit(ctx, domain.SeatEvent{Type: domain.EventSeatsReleased, EventID: eventID, SeatIDs: released, SessionID: sessionID, At: e.now()})
	}
	return released, nil
}

// Confirm marks seats held by the session as SOLD.
func (e *Engine) Confirm(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, sessionID string) ([]domain.Seat, error) {
	ctx, span := e.span(ctx, "reservation.Confirm", eventID, seatIDs)
	defer span.End()

	ids, err := e.checkRequest(seatIDs, sessionID)
	if err != nil {
		return nil, err
	}
	seats, err := e.store.ConfirmSeats(ctx, eventID, ids, sessionID, e.now())
	if err != nil {
		err = conflictOnSerialization(err, ids)
		e.recordFailure("confirm", err)
		return nil, err
	}
	observability.Reservations.WithLabelValues("confirm", "ok").Inc()
	e.audit(ctx, domain.SeatEvent{Type: domain.EventSeatsSold, EventID: eventID, SeatIDs: ids, SessionID: sessionID, At: e.now()})
	return seats, nil
}

// Expire returns a seat to AVAILABLE if its reservation has lapsed. It
// reports whether anything changed.
func (e *Engine) Expire(ctx context.Context, seatID uuid.UUID) (bool, error) {
	changed, err := e.store.ExpireSeat(ctx, seatID, e.now())
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	observability.ReservationsExpired.Inc()

	seat, err := e.store.GetSeat(ctx, seatID)
	if err != nil {
		e.logger.WithError(err).WithField("seat_id", seatID).Warn("load expired seat for audit")
		return true, nil
	}
	e.audit(ctx, domain.SeatEvent{Type: domain.EventSeatsExpired, EventID: seat.EventID, SeatIDs: []uuid.UUID{seatID}, Count: 1, At: e.now()})
	return true, nil
}

// AdminRevert is the only way out of SOLD.
func (e *Engine) AdminRevert(ctx context.Context, seatID uuid.UUID) (domain.Seat, error) {
	seat, err := e.store.RevertSeat(ctx, seatID)
	if err != nil {
		return domain.Seat{}, err
	}
	observability.Reservations.WithLabelValues("revert", "ok").Inc()
	e.audit(ctx, domain.SeatEvent{Type: domain.EventSeatsReverted, EventID: seat.EventID, SeatIDs: []uuid.UUID{seatID}, At: e.now()})
	e.logger.WithField("seat_id", seatID).Warn("sold seat reverted by administrator")
	return seat, nil
}

// ReclaimExpired sweeps lapsed reservations across all events.
func (e *Engine) ReclaimExpired(ctx context.Context) ([]domain.Seat, error) {
	return e.reclaim(ctx, uuid.Nil)
}

// ReclaimEvent sweeps lapsed reservations of a single event.
func (e *Engine) ReclaimEvent(ctx context.Context, eventID uuid.UUID) ([]domain.Seat, error) {
	return e.reclaim(ctx, eventID)
}

// reclaim records one seats.expired event per affected event.
func (e *Engine) reclaim(ctx context.Context, eventID uuid.UUID) ([]domain.Seat, error) {
	now := e.now()
	seats, err := e.store.ReclaimExpired(ctx, eventID, now)
	if err != nil {
		return nil, err
	}
	if len(seats) == 0 {
		return seats, nil
	}
	observability.ReservationsExpired.Add(float64(len(seats)))

	byEvent := make(map[uuid.UUID][]uuid.UUID)
	var order []uuid.UUID
	for _, s := range seats {
		if _, ok := byEvent[s.EventID]; !ok {
			order = append(order, s.EventID)
		}
		byEvent[s.EventID] = append(byEvent[s.EventID], s.ID)
	}
	for _, id := range order {
		ids := byEvent[id]
		e.audit(ctx, domain.SeatEvent{Type: domain.EventSeatsExpired, EventID: id, SeatIDs: ids, Count: len(ids), At: now})
	}
	return seats, nil
}

func (e *Engine) checkRequest(seatIDs []uuid.UUID, sessionID string) ([]uuid.UUID, error) {
	if sessionID == "" {
		return nil, errors.Wrap(domain.ErrInvalidInput, "sessionId is required")
	}
	ids := dedupe(seatIDs)
	if len(ids) == 0 {
		return nil, errors.Wrap(domain.ErrInvalidInput, "seatIds array is required")
	}
	if len(ids) > e.cfg.MaxSeats {
		return nil, &domain.CapacityError{Max: e.cfg.MaxSeats}
	}
	return ids, nil
}

func (e *Engine) recordFailure(transition string, err error) {
	outcome := "error"
	if errors.Is(err, domain.ErrSeatUnavailable) {
		outcome = "conflict"
		observability.ReservationConflicts.Inc()
	}
	observability.Reservations.WithLabelValues(transition, outcome).Inc()
}

func (e *Engine) audit(ctx context.Context, ev domain.SeatEvent) {
	if e.auditor == nil {
		return
	}
	if err := e.auditor.LogSeatEvent(ctx, ev); err != nil {
		e.logger.WithError(err).WithField("type", ev.Type).Warn("audit seat event")
	}
}

func (e *Engine) span(ctx context.Context, name string, eventID uuid.UUID, seatIDs []uuid.UUID) (context.Context, trace.Span) {
	ctx, span := observability.Tracer().Start(ctx, name)
	span.SetAttributes(
		attribute.String("event.id", eventID.String()),
		attribute.Int("seat.count", len(seatIDs)),
	)
	return ctx, span
}

// conflictOnSerialization turns an aborted serializable transaction into the
// same conflict a lost compare-and-swap produces.
func conflictOnSerialization(err error, ids []uuid.UUID) error {
	if errors.Is(err, domain.ErrSerializationFailure) {
		return domain.Unavailable("concurrent update", ids...)
	}
	return err
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == uuid.Nil {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func totalPrice(seats []domain.Seat) decimal.Decimal {
	sum := decimal.Zero
	for _, s := range seats {
		sum = sum.Add(s.BasePrice)
	}
	return sum
}
