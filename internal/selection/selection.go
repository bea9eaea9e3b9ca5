// Package selection is the client side of seat picking: a bounded working
// set of seats kept in sync with the server's availability view. Nothing here
// creates server state until Client.Reserve is called.
package selection

import (
	"sync"

	"github.com/google/uuid"
	"github.com/robertarktes/floorplan-seating/internal/availability"
	"github.com/robertarktes/floorplan-seating/internal/domain"
	"github.com/shopspring/decimal"
)

const DefaultMaxSeats = 10

type Selection struct {
	mu    sync.Mutex
	max   int
	seats map[uuid.UUID]availability.SeatView
	order []uuid.UUID
	held  map[uuid.UUID]struct{}
}

func New(maxSeats int) *Selection {
	if maxSeats <= 0 {
		maxSeats = DefaultMaxSeats
	}
	return &Selection{
		max:   maxSeats,
		seats: make(map[uuid.UUID]availability.SeatView),
		held:  make(map[uuid.UUID]struct{}),
	}
}

// Toggle flips the seat in or out of the set and reports whether it is
// selected afterwards. Unavailable seats are ignored. Adding to a full set
// fails with a *domain.CapacityError and leaves the set unchanged.
func (s *Selection) Toggle(seat availability.SeatView) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seats[seat.ID]; ok {
		s.remove(seat.ID)
		return false, nil
	}
	if !seat.Available {
		return false, nil
	}
	if len(s.seats) >= s.max {
		return false, &domain.CapacityError{Max: s.max}
	}
	s.seats[seat.ID] = seat
	s.order = append(s.order, seat.ID)
	return true, nil
}

func (s *Selection) remove(id uuid.UUID) {
	delete(s.seats, id)
	delete(s.held, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Selected returns the seats in the order they were picked.
func (s *Selection) Selected() []availability.SeatView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]availability.SeatView, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.seats[id])
	}
	return out
}

func (s *Selection) IDs() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uuid.UUID(nil), s.order...)
}

func (s *Selection) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

func (s *Selection) Max() int { return s.max }

// Total sums the base prices of the selected seats.
func (s *Selection) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, seat := range s.seats {
		total = total.Add(seat.BasePrice)
	}
	return total
}

func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seats = make(map[uuid.UUID]availability.SeatView)
	s.held = make(map[uuid.UUID]struct{})
	s.order = nil
}

// MarkHeld records that this session now holds the given selected seats,
// typically the IDs returned by a successful Client.Reserve. The server
// reports them as RESERVED to everyone, so Reconcile keeps them instead of
// treating the session's own hold as a lost race.
func (s *Selection) MarkHeld(ids []uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if _, ok := s.seats[id]; ok {
			s.held[id] = struct{}{}
		}
	}
}

// Held reports whether the seat is marked as held by this session.
func (s *Selection) Held(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.held[id]
	return ok
}

// Reconcile drops every selected seat that the view no longer reports as
// available and returns the dropped seats. Seats missing from the view are
// dropped too. Seats marked held survive while the view shows them RESERVED;
// once the hold lapses back to AVAILABLE the mark is cleared. Kept seats take
// the view's copy so prices stay current.
func (s *Selection) Reconcile(view availability.View) []availability.SeatView {
	current := make(map[uuid.UUID]availability.SeatView, len(view.Seats))
	for _, sv := range view.Seats {
		current[sv.ID] = sv
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var dropped []availability.SeatView
	kept := s.order[:0]
	for _, id := range s.order {
		sv, ok := current[id]
		_, held := s.held[id]
		switch {
		case ok && sv.Available:
			delete(s.held, id)
		case ok && held && sv.Status == string(domain.SeatReserved):
			// still ours
		default:
			dropped = append(dropped, s.seats[id])
			delete(s.seats, id)
			delete(s.held, id)
			continue
		}
		s.seats[id] = sv
		kept = append(kept, id)
	}
	s.order = kept
	return dropped
}
