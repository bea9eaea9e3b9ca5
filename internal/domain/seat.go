package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatReserved  SeatStatus = "RESERVED"
	SeatSold      SeatStatus = "SOLD"
)

// Seat is one addressable unit of generated inventory.
type Seat struct {
	ID                   uuid.UUID
	EventID              uuid.UUID
	Section              string
	RowLabel             string
	SeatNumber           string
	SeatType             string
	BasePrice            decimal.Decimal
	X                    float64
	Y                    float64
	Status               SeatStatus
	SessionID            string
	ReservationExpiresAt *time.Time
}

// SeatID derives a stable id from the seat's identity so that regenerating
// an identical layout reproduces the same ids.
func SeatID(eventID uuid.UUID, section, rowLabel, seatNumber string) uuid.UUID {
	return uuid.NewSHA1(eventID, []byte(section+"/"+rowLabel+"/"+seatNumber))
}

// EffectiveStatus reports the status with expiry applied: a reservation
// whose expiry has passed reads as AVAILABLE.
func (s Seat) EffectiveStatus(now time.Time) SeatStatus {
	if s.Status == SeatReserved && s.ReservationExpired(now) {
		return SeatAvailable
	}
	return s.Status
}

func (s Seat) ReservationExpired(now time.Time) bool {
	return s.ReservationExpiresAt != nil && !now.Before(*s.ReservationExpiresAt)
}

func (s Seat) Selectable(now time.Time) bool {
	return s.EffectiveStatus(now) == SeatAvailable
}

// HeldBy reports whether the seat carries an active reservation for session.
func (s Seat) HeldBy(session string, now time.Time) bool {
	return s.EffectiveStatus(now) == SeatReserved && s.SessionID == session
}

// Reservation returns the active reservation attached to the seat, if any.
func (s Seat) Reservation(now time.Time) *Reservation {
	if s.EffectiveStatus(now) != SeatReserved || s.ReservationExpiresAt == nil {
		return nil
	}
	return &Reservation{SeatID: s.ID, SessionID: s.SessionID, ExpiresAt: *s.ReservationExpiresAt}
}

// Number returns the numeric seat number, or 0 when it is not numeric.
func (s Seat) Number() int {
	n, err := strconv.Atoi(s.SeatNumber)
	if err != nil {
		return 0
	}
	return n
}

// Reservation is a time-bounded hold on a seat by a selection session.
type Reservation struct {
	SeatID    uuid.UUID `json:"seatId"`
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SeatEvent is emitted for every inventory or status change.
type SeatEvent struct {
	Type      string      `json:"type"`
	EventID   uuid.UUID   `json:"event_id"`
	SeatIDs   []uuid.UUID `json:"seat_ids,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	Count     int         `json:"count,omitempty"`
	At        time.Time   `json:"at"`
}

const (
	EventSeatsGenerated = "seats.generated"
	EventSeatsReserved  = "seats.reserved"
	EventSeatsReleased  = "seats.released"
	EventSeatsSold      = "seats.sold"
	EventSeatsExpired   = "seats.expired"
	EventSeatsReverted  = "seats.reverted"
)
