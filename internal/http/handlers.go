package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/robertarktes/floorplan-seating/internal/availability"
	"github.com/robertarktes/floorplan-seating/internal/domain"
	"github.com/robertarktes/floorplan-seating/internal/floorplan"
	"github.com/robertarktes/floorplan-seating/internal/reservation"
	"github.com/robertarktes/floorplan-seating/internal/seatgen"
)

type CountStore interface {
	SaveCounts(ctx context.Context, eventID uuid.UUID, counts domain.CategoryCounts) error
}

type PricingStore interface {
	UpsertTicketPricing(ctx context.Context, eventID uuid.UUID, p domain.Pricing) error
}

// Checker is a readiness probe for one dependency.
type Checker func(ctx context.Context) error

type Handlers struct {
	floorPlans   *floorplan.Service
	generator    *seatgen.Service
	availability *availability.Service
	engine       *reservation.Engine
	counts       CountStore
	pricing      PricingStore
	checks       map[string]Checker
}

func NewHandlers(floorPlans *floorplan.Service, generator *seatgen.Service, avail *availability.Service, engine *reservation.Engine, counts CountStore, pricing PricingStore, checks map[string]Checker) *Handlers {
	return &Handlers{
		floorPlans:   floorPlans,
		generator:    generator,
		availability: avail,
		engine:       engine,
		counts:       counts,
		pricing:      pricing,
		checks:       checks,
	}
}

type seatsRequest struct {
	SeatIDs   []uuid.UUID `json:"seatIds"`
	SessionID string      `json:"sessionId"`
}

func (h *Handlers) SaveFloorPlan(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventParam(w, r)
	if !ok {
		return
	}
	var layout domain.Layout
	if !decode(w, r, &layout) {
		return
	}

	out, err := h.floorPlans.Save(r.Context(), eventID, layout)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handlers) ListFloorPlans(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventParam(w, r)
	if !ok {
		return
	}
	plans, err := h.floorPlans.List(r.Context(), eventID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"floorPlans": plans,
		"total":      len(plans),
	})
}

func (h *Handlers) GenerateSeats(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventParam(w, r)
	if !ok {
		return
	}
	var layout domain.Layout
	if !decode(w, r, &layout) {
		return
	}
	res, err := h.generator.Generate(r.Context(), eventID, layout)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handlers) PutSeatCounts(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventParam(w, r)
	if !ok {
		return
	}
	var counts domain.CategoryCounts
	if !decode(w, r, &counts) {
		return
	}
	if counts.VIP < 0 || counts.Premium < 0 || counts.General < 0 {
		writeError(w, r, errors.Wrap(domain.ErrInvalidInput, "seat counts must not be negative"))
		return
	}
	if err := h.counts.SaveCounts(r.Context(), eventID, counts); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "counts": counts})
}

func (h *Handlers) PutTicketPricing(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventParam(w, r)
	if !ok {
		return
	}
	var p domain.Pricing
	if !decode(w, r, &p) {
		return
	}
	if p.VIP.IsNegative() || p.Premium.IsNegative() || p.General.IsNegative() {
		writeError(w, r, errors.Wrap(domain.ErrInvalidInput, "prices must not be negative"))
		return
	}
	if err := h.pricing.UpsertTicketPricing(r.Context(), eventID, p); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "pricing": p})
}

func (h *Handlers) GetAvailability(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventParam(w, r)
	if !ok {
		return
	}
	filter := availability.Filter{
		Section:     r.URL.Query().Get("section"),
		TicketClass: r.URL.Query().Get("ticketClass"),
	}
	view, err := h.availability.Get(r.Context(), eventID, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handlers) ReserveSeats(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventParam(w, r)
	if !ok {
		return
	}
	var req seatsRequest
	if !decode(w, r, &req) {
		return
	}

	hold, err := h.engine.Reserve(r.Context(), eventID, req.SeatIDs, req.SessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	reservations := make([]domain.Reservation, 0, len(hold.Seats))
	for _, s := range hold.Seats {
		reservations = append(reservations, domain.Reservation{SeatID: s.ID, SessionID: hold.SessionID, ExpiresAt: hold.ExpiresAt})
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":      true,
		"reservations": reservations,
		"expiresAt":    hold.ExpiresAt.UTC().Format(time.RFC3339),
		"totalPrice":   hold.TotalPrice,
	})
}

func (h *Handlers) ReleaseSeats(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventParam(w, r)
	if !ok {
		return
	}
	var req seatsRequest
	if !decode(w, r, &req) {
		return
	}
	released, err := h.engine.Release(r.Context(), eventID, req.SeatIDs, req.SessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if released == nil {
		released = []uuid.UUID{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "released": released})
}

func (h *Handlers) ConfirmSeats(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventParam(w, r)
	if !ok {
		return
	}
	var req seatsRequest
	if !decode(w, r, &req) {
		return
	}
	sold, err := h.engine.Confirm(r.Context(), eventID, req.SeatIDs, req.SessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	now := time.Now()
	seats := make([]availability.SeatView, 0, len(sold))
	for _, s := range sold {
		seats = append(seats, availability.ViewOf(s, now))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "seats": seats})
}

func (h *Handlers) ExpireSeat(w http.ResponseWriter, r *http.Request) {
	seatID, ok := uuidParam(w, r, "seatID")
	if !ok {
		return
	}
	changed, err := h.engine.Expire(r.Context(), seatID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"seatId": seatID, "expired": changed})
}

func (h *Handlers) RevertSeat(w http.ResponseWriter, r *http.Request) {
	seatID, ok := uuidParam(w, r, "seatID")
	if !ok {
		return
	}
	seat, err := h.engine.AdminRevert(r.Context(), seatID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, availability.ViewOf(seat, time.Now()))
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"ready": false, "failed": failed})
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}

func eventParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	return uuidParam(w, r, "eventID")
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, r, errors.Wrapf(domain.ErrInvalidInput, "invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, errors.Wrap(domain.ErrInvalidInput, "invalid request body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto status codes. Internal errors are logged
// and their detail is not returned.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		unavailable *domain.UnavailableError
		capacity    *domain.CapacityError
	)
	switch {
	case errors.As(err, &unavailable):
		ids := unavailable.SeatIDs
		if ids == nil {
			ids = []uuid.UUID{}
		}
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":            "seat no longer available, please reselect",
			"unavailableSeats": ids,
		})
	case errors.As(err, &capacity):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":    capacity.Error(),
			"maxSeats": capacity.Max,
		})
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidLayout):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": err.Error()})
	default:
		LoggerFrom(r.Context()).WithError(err).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "internal error"})
	}
}
