// Package memory is an in-process implementation of the seat, floor-plan and
// count-snapshot stores. The API falls back to it when no database is
// configured, and the service tests run against it.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/floorplan-seating/internal/domain"
)

type Store struct {
	mu         sync.Mutex
	seats      map[uuid.UUID]*domain.Seat
	byEvent    map[uuid.UUID][]uuid.UUID
	pricing    map[uuid.UUID]domain.Pricing
	counts     map[uuid.UUID]domain.CategoryCounts
	floorPlans map[uuid.UUID][]domain.FloorPlan
	events     []domain.SeatEvent
}

func NewStore() *Store {
	return &Store{
		seats:      make(map[uuid.UUID]*domain.Seat),
		byEvent:    make(map[uuid.UUID][]uuid.UUID),
		pricing:    make(map[uuid.UUID]domain.Pricing),
		counts:     make(map[uuid.UUID]domain.CategoryCounts),
		floorPlans: make(map[uuid.UUID][]domain.FloorPlan),
	}
}

func (s *Store) ReplaceSeats(ctx context.Context, eventID uuid.UUID, seats []domain.Seat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.byEvent[eventID] {
		delete(s.seats, id)
	}
	ids := make([]uuid.UUID, 0, len(seats))
	for i := range seats {
		seat := seats[i]
		s.seats[seat.ID] = &seat
		ids = append(ids, seat.ID)
	}
	s.byEvent[eventID] = ids
	s.record(domain.SeatEvent{Type: domain.EventSeatsGenerated, EventID: eventID, Count: len(seats)})
	return nil
}

func (s *Store) TicketPricing(ctx context.Context, eventID uuid.UUID) (*domain.Pricing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pricing[eventID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) UpsertTicketPricing(ctx context.Context, eventID uuid.UUID, p domain.Pricing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pricing[eventID] = p
	return nil
}

func (s *Store) ListSeats(ctx context.Context, eventID uuid.UUID) ([]domain.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Seat, 0, len(s.byEvent[eventID]))
	for _, id := range s.byEvent[eventID] {
		out = append(out, *s.seats[id])
	}
	return out, nil
}

func (s *Store) GetSeat(ctx context.Context, seatID uuid.UUID) (domain.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seat, ok := s.seats[seatID]
	if !ok {
		return domain.Seat{}, domain.ErrNotFound
	}
	return *seat, nil
}

// lookup resolves every id to a seat of the event or fails with ErrNotFound.
func (s *Store) lookup(eventID uuid.UUID, seatIDs []uuid.UUID) ([]*domain.Seat, error) {
	out := make([]*domain.Seat, 0, len(seatIDs))
	for _, id := range seatIDs {
		seat, ok := s.seats[id]
		if !ok || seat.EventID != eventID {
			return nil, errors.Wrapf(domain.ErrNotFound, "seat %s", id)
		}
		out = append(out, seat)
	}
	return out, nil
}

func (s *Store) ReserveSeats(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, sessionID string, expiresAt, now time.Time) ([]domain.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seats, err := s.lookup(eventID, seatIDs)
	if err != nil {
		return nil, err
	}
	var taken []uuid.UUID
	for _, seat := range seats {
		if !seat.Selectable(now) && !seat.HeldBy(sessionID, now) {
			taken = append(taken, seat.ID)
		}
	}
	if len(taken) > 0 {
		return nil, domain.Unavailable("reserved", taken...)
	}

	out := make([]domain.Seat, 0, len(seats))
	for _, seat := range seats {
		exp := expiresAt
		seat.Status = domain.SeatReserved
		seat.SessionID = sessionID
		seat.ReservationExpiresAt = &exp
		out = append(out, *seat)
	}
	s.record(domain.SeatEvent{Type: domain.EventSeatsReserved, EventID: eventID, SeatIDs: seatIDs, SessionID: sessionID})
	return out, nil
}

func (s *Store) ReleaseSeats(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, sessionID string) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var released []uuid.UUID
	for _, id := range seatIDs {
		seat, ok := s.seats[id]
		if !ok || seat.EventID != eventID {
			continue
		}
		if seat.Status == domain.SeatReserved && seat.SessionID == sessionID {
			clearReservation(seat)
			released = append(released, id)
		}
	}
	if len(released) > 0 {
		s.record(domain.SeatEvent{Type: domain.EventSeatsReleased, EventID: eventID, SeatIDs: released, SessionID: sessionID})
	}
	return released, nil
}

func (s *Store) ConfirmSeats(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, sessionID string, now time.Time) ([]domain.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seats, err := s.lookup(eventID, seatIDs)
	if err != nil {
		return nil, err
	}
	var lost []uuid.UUID
	for _, seat := range seats {
		if !seat.HeldBy(sessionID, now) {
			lost = append(lost, seat.ID)
		}
	}
	if len(lost) > 0 {
		return nil, domain.Unavailable("not held by session", lost...)
	}

	out := make([]domain.Seat, 0, len(seats))
	for _, seat := range seats {
		seat.Status = domain.SeatSold
		seat.ReservationExpiresAt = nil
		out = append(out, *seat)
	}
	s.record(domain.SeatEvent{Type: domain.EventSeatsSold, EventID: eventID, SeatIDs: seatIDs, SessionID: sessionID})
	return out, nil
}

func (s *Store) ExpireSeat(ctx context.Context, seatID uuid.UUID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seat, ok := s.seats[seatID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if seat.Status != domain.SeatReserved || !seat.ReservationExpired(now) {
		return false, nil
	}
	clearReservation(seat)
	s.record(domain.SeatEvent{Type: domain.EventSeatsExpired, EventID: seat.EventID, SeatIDs: []uuid.UUID{seatID}})
	return true, nil
}

func (s *Store) RevertSeat(ctx context.Context, seatID uuid.UUID) (domain.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seat, ok := s.seats[seatID]
	if !ok {
		return domain.Seat{}, domain.ErrNotFound
	}
	if seat.Status != domain.SeatSold {
		return domain.Seat{}, errors.Wrap(domain.ErrInvalidInput, "seat is not sold")
	}
	clearReservation(seat)
	s.record(domain.SeatEvent{Type: domain.EventSeatsReverted, EventID: seat.EventID, SeatIDs: []uuid.UUID{seatID}})
	return *seat, nil
}

// ReclaimExpired returns expired reservations to AVAILABLE. uuid.Nil sweeps
// every event.
func (s *Store) ReclaimExpired(ctx context.Context, eventID uuid.UUID, now time.Time) ([]domain.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reclaimed []domain.Seat
	for _, seat := range s.seats {
		if eventID != uuid.Nil && seat.EventID != eventID {
			continue
		}
		if seat.Status == domain.SeatReserved && seat.ReservationExpired(now) {
			reclaimed = append(reclaimed, *seat)
			clearReservation(seat)
		}
	}
	sort.Slice(reclaimed, func(i, j int) bool { return reclaimed[i].ID.String() < reclaimed[j].ID.String() })
	return reclaimed, nil
}

func clearReservation(seat *domain.Seat) {
	seat.Status = domain.SeatAvailable
	seat.SessionID = ""
	seat.ReservationExpiresAt = nil
}

func (s *Store) record(ev domain.SeatEvent) {
	ev.At = time.Now().UTC()
	s.events = append(s.events, ev)
}

// Events returns the seat events recorded so far.
func (s *Store) Events() []domain.SeatEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.SeatEvent(nil), s.events...)
}

func (s *Store) GetCounts(ctx context.Context, eventID uuid.UUID) (*domain.CategoryCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counts[eventID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *Store) SaveCounts(ctx context.Context, eventID uuid.UUID, counts domain.CategoryCounts) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[eventID] = counts
	return nil
}

func (s *Store) SaveFloorPlan(ctx context.Context, plan domain.FloorPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.floorPlans[plan.EventID] = append(s.floorPlans[plan.EventID], plan)
	return nil
}

// ListFloorPlans returns the event's floor plans newest first.
func (s *Store) ListFloorPlans(ctx context.Context, eventID uuid.UUID) ([]domain.FloorPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := s.floorPlans[eventID]
	plans := make([]domain.FloorPlan, 0, len(saved))
	for i := len(saved) - 1; i >= 0; i-- {
		plans = append(plans, saved[i])
	}
	sort.SliceStable(plans, func(i, j int) bool { return plans[i].CreatedAt.After(plans[j].CreatedAt) })
	return plans, nil
}

func (s *Store) LatestFloorPlan(ctx context.Context, eventID uuid.UUID) (*domain.FloorPlan, error) {
	plans, err := s.ListFloorPlans(ctx, eventID)
	if err != nil || len(plans) == 0 {
		return nil, err
	}
	return &plans[0], nil
}
