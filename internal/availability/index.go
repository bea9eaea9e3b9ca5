// Package availability builds the grouped seat map served to selection
// clients. Views are rebuilt from storage on every request.
package availability

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/floorplan-seating/internal/domain"
	"github.com/shopspring/decimal"
)

type Filter struct {
	Section     string
	TicketClass string
}

func (f Filter) match(s domain.Seat) bool {
	if f.Section != "" && s.Section != f.Section {
		return false
	}
	if f.TicketClass != "" && s.SeatType != f.TicketClass {
		return false
	}
	return true
}

type SeatView struct {
	ID                uuid.UUID       `json:"id"`
	EventID           uuid.UUID       `json:"eventId"`
	Section           string          `json:"section"`
	RowNumber         string          `json:"rowNumber"`
	SeatNumber        string          `json:"seatNumber"`
	SeatType          string          `json:"seatType"`
	BasePrice         decimal.Decimal `json:"basePrice"`
	XCoordinate       float64         `json:"xCoordinate"`
	YCoordinate       float64         `json:"yCoordinate"`
	Available         bool            `json:"available"`
	Status            string          `json:"status"`
	ReservationStatus string          `json:"reservationStatus,omitempty"`
	ExpiresAt         *time.Time      `json:"expiresAt,omitempty"`
}

type FloorPlanSummary struct {
	ID         uuid.UUID `json:"id"`
	PlanName   string    `json:"planName"`
	TotalSeats int       `json:"totalSeats"`
	TableType  string    `json:"tableType"`
	HallLength float64   `json:"hallLength"`
	HallWidth  float64   `json:"hallWidth"`
}

// Grouped maps section -> row label -> seats ordered by seat number.
type Grouped map[string]map[string][]SeatView

type View struct {
	Seats          []SeatView        `json:"seats"`
	GroupedSeats   Grouped           `json:"groupedSeats"`
	FloorPlan      *FloorPlanSummary `json:"floorPlan"`
	TotalSeats     int               `json:"totalSeats"`
	AvailableSeats int               `json:"availableSeats"`
}

// Build derives the view from stored seats. Expiry is re-checked against now
// so a lapsed reservation reads as available even if storage still says
// RESERVED.
func Build(seats []domain.Seat, now time.Time, filter Filter) View {
	selected := make([]domain.Seat, 0, len(seats))
	for _, s := range seats {
		if filter.match(s) {
			selected = append(selected, s)
		}
	}
	sort.SliceStable(selected, func(i, j int) bool {
		a, b := selected[i], selected[j]
		if a.Section != b.Section {
			return a.Section < b.Section
		}
		if a.RowLabel != b.RowLabel {
			return domain.RowLabelLess(a.RowLabel, b.RowLabel)
		}
		return a.Number() < b.Number()
	})

	view := View{
		Seats:        make([]SeatView, 0, len(selected)),
		GroupedSeats: Grouped{},
	}
	for _, s := range selected {
		sv := ViewOf(s, now)
		view.Seats = append(view.Seats, sv)
		if sv.Available {
			view.AvailableSeats++
		}

		section := s.Section
		if section == "" {
			section = "General"
		}
		rows, ok := view.GroupedSeats[section]
		if !ok {
			rows = make(map[string][]SeatView)
			view.GroupedSeats[section] = rows
		}
		rows[s.RowLabel] = append(rows[s.RowLabel], sv)
	}
	view.TotalSeats = len(view.Seats)
	return view
}

// ViewOf renders one seat with expiry applied at now.
func ViewOf(s domain.Seat, now time.Time) SeatView {
	status := s.EffectiveStatus(now)
	sv := SeatView{
		ID:          s.ID,
		EventID:     s.EventID,
		Section:     s.Section,
		RowNumber:   s.RowLabel,
		SeatNumber:  s.SeatNumber,
		SeatType:    s.SeatType,
		BasePrice:   s.BasePrice,
		XCoordinate: s.X,
		YCoordinate: s.Y,
		Available:   status == domain.SeatAvailable,
		Status:      string(status),
	}
	if r := s.Reservation(now); r != nil {
		exp := r.ExpiresAt
		sv.ReservationStatus = string(domain.SeatReserved)
		sv.ExpiresAt = &exp
	} else if status == domain.SeatSold {
		sv.ReservationStatus = string(domain.SeatSold)
	}
	return sv
}

func summarize(plan *domain.FloorPlan) *FloorPlanSummary {
	if plan == nil {
		return nil
	}
	return &FloorPlanSummary{
		ID:         plan.ID,
		PlanName:   plan.Name,
		TotalSeats: plan.Layout.GuestCount,
		TableType:  plan.Layout.TableType,
		HallLength: plan.Layout.HallLength,
		HallWidth:  plan.Layout.HallWidth,
	}
}
