package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/floorplan-seating/internal/adapters/memory"
	"github.com/robertarktes/floorplan-seating/internal/availability"
	"github.com/robertarktes/floorplan-seating/internal/floorplan"
	httphandler "github.com/robertarktes/floorplan-seating/internal/http"
	"github.com/robertarktes/floorplan-seating/internal/idempotency"
	"github.com/robertarktes/floorplan-seating/internal/observability"
	"github.com/robertarktes/floorplan-seating/internal/rateLimit"
	"github.com/robertarktes/floorplan-seating/internal/reservation"
	"github.com/robertarktes/floorplan-seating/internal/seatgen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type server struct {
	t       *testing.T
	handler http.Handler
	store   *memory.Store
	eventID uuid.UUID
}

func newServer(t *testing.T, ratePerMinute int, checks map[string]httphandler.Checker) *server {
	logger := observability.NewDiscardLogger()
	store := memory.NewStore()

	generator := seatgen.NewService(store, store, logger)
	floorPlans := floorplan.NewService(store, store, generator, nil, logger)
	engine := reservation.NewEngine(store, nil, reservation.Config{TTL: 10 * time.Minute, MaxSeats: 10}, logger)
	avail := availability.NewService(store, store, engine, logger)
	idemp := idempotency.NewIdempotency(idempotency.NewMemoryStore(), time.Hour)

	h := httphandler.NewHandlers(floorPlans, generator, avail, engine, store, store, checks)
	return &server{
		t:       t,
		handler: httphandler.SetupRouter(h, logger, rateLimit.NewMemoryLimiter(), ratePerMinute, idemp),
		store:   store,
		eventID: uuid.New(),
	}
}

func (s *server) do(method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *server) events(suffix string) string {
	return "/v1/events/" + s.eventID.String() + suffix
}

func (s *server) seedSeats(guests int) []availability.SeatView {
	s.t.Helper()
	rec := s.do(http.MethodPost, s.events("/floor-plans"), map[string]interface{}{
		"hallName":      "Main Hall",
		"guestCount":    guests,
		"seatsPerTable": 1,
		"tableType":     "seats-only",
		"hallLength":    40,
		"hallWidth":     30,
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())

	var view availability.View
	rec = s.do(http.MethodGet, s.events("/seats/availability"), nil)
	require.Equal(s.t, http.StatusOK, rec.Code)
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Len(s.t, view.Seats, guests)
	return view.Seats
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func ids(seats []availability.SeatView) []uuid.UUID {
	out := make([]uuid.UUID, len(seats))
	for i, s := range seats {
		out[i] = s.ID
	}
	return out
}

func TestSaveFloorPlan_GeneratesInventory(t *testing.T) {
	s := newServer(t, 1000, nil)

	rec := s.do(http.MethodPost, s.events("/floor-plans"), map[string]interface{}{
		"hallName":   "Ballroom",
		"guestCount": 50,
		"tableType":  "seats-only",
		"hallLength": 40,
		"hallWidth":  30,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["seatsGenerated"])
	assert.EqualValues(t, 50, body["count"])

	rec = s.do(http.MethodGet, s.events("/floor-plans"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decodeBody(t, rec)["total"])
}

func TestSaveFloorPlan_RejectsInvalidLayout(t *testing.T) {
	s := newServer(t, 1000, nil)

	rec := s.do(http.MethodPost, s.events("/floor-plans"), map[string]interface{}{"guestCount": 10})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/v1/events/not-a-uuid/floor-plans", map[string]interface{}{"hallName": "x", "guestCount": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSeatCountsAndPricing(t *testing.T) {
	s := newServer(t, 1000, nil)

	rec := s.do(http.MethodPut, s.events("/seat-counts"), map[string]int{"vipSeats": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPut, s.events("/seat-counts"), map[string]int{"vipSeats": 2, "premiumSeats": 3, "generalSeats": 5})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPut, s.events("/ticket-pricing"), map[string]string{"vipPrice": "900", "premiumPrice": "400", "generalPrice": "100"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, s.events("/seats/generate"), map[string]interface{}{
		"hallName": "Annex", "guestCount": 10, "tableType": "seats-only", "hallLength": 20, "hallWidth": 10,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.EqualValues(t, 10, decodeBody(t, rec)["count"])

	rec = s.do(http.MethodGet, s.events("/seats/availability?section=VIP"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view availability.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Len(t, view.Seats, 2)
	assert.Equal(t, "900", view.Seats[0].BasePrice.String())
}

func TestReserve_ConflictAndRelease(t *testing.T) {
	s := newServer(t, 1000, nil)
	seats := s.seedSeats(20)
	pick := ids(seats[:2])

	rec := s.do(http.MethodPost, s.events("/seats/reserve"), map[string]interface{}{"seatIds": pick, "sessionId": "alice"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["reservations"], 2)
	assert.NotEmpty(t, body["expiresAt"])

	rec = s.do(http.MethodPost, s.events("/seats/reserve"), map[string]interface{}{"seatIds": pick[1:], "sessionId": "bob"})
	require.Equal(t, http.StatusConflict, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "seat no longer available, please reselect", body["error"])
	assert.Equal(t, []interface{}{pick[1].String()}, body["unavailableSeats"])

	rec = s.do(http.MethodDelete, s.events("/seats/reserve"), map[string]interface{}{"seatIds": pick, "sessionId": "bob"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody(t, rec)["released"])

	rec = s.do(http.MethodDelete, s.events("/seats/reserve"), map[string]interface{}{"seatIds": pick, "sessionId": "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["released"], 2)

	rec = s.do(http.MethodPost, s.events("/seats/reserve"), map[string]interface{}{"seatIds": pick[1:], "sessionId": "bob"})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestReserve_MaxSeats(t *testing.T) {
	s := newServer(t, 1000, nil)
	seats := s.seedSeats(11)

	rec := s.do(http.MethodPost, s.events("/seats/reserve"), map[string]interface{}{"seatIds": ids(seats), "sessionId": "alice"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "you can select maximum 10 seats", body["error"])
	assert.EqualValues(t, 10, body["maxSeats"])

	rec = s.do(http.MethodPost, s.events("/seats/reserve"), map[string]interface{}{"seatIds": ids(seats), "sessionId": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfirmAndRevert(t *testing.T) {
	s := newServer(t, 1000, nil)
	seats := s.seedSeats(5)
	pick := ids(seats[:1])

	rec := s.do(http.MethodPost, s.events("/seats/confirm"), map[string]interface{}{"seatIds": pick, "sessionId": "alice"})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, s.events("/seats/reserve"), map[string]interface{}{"seatIds": pick, "sessionId": "alice"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = s.do(http.MethodPost, s.events("/seats/confirm"), map[string]interface{}{"seatIds": pick, "sessionId": "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Len(t, body["seats"], 1)
	assert.Equal(t, "SOLD", body["seats"].([]interface{})[0].(map[string]interface{})["status"])

	rec = s.do(http.MethodPost, "/v1/seats/"+pick[0].String()+"/expire", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["expired"])

	rec = s.do(http.MethodPost, "/v1/admin/seats/"+pick[0].String()+"/revert", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "AVAILABLE", decodeBody(t, rec)["status"])

	rec = s.do(http.MethodPost, "/v1/admin/seats/"+uuid.NewString()+"/revert", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReserve_IdempotentReplay(t *testing.T) {
	s := newServer(t, 1000, nil)
	seats := s.seedSeats(3)
	key := "0123456789abcdef-replay"
	req := map[string]interface{}{"seatIds": ids(seats[:1]), "sessionId": "alice"}

	first := s.do(http.MethodPost, s.events("/seats/reserve"), req, "Idempotency-Key", key)
	require.Equal(t, http.StatusCreated, first.Code)

	second := s.do(http.MethodPost, s.events("/seats/reserve"), req, "Idempotency-Key", key)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	short := s.do(http.MethodPost, s.events("/seats/reserve"), req, "Idempotency-Key", "short")
	assert.Equal(t, http.StatusBadRequest, short.Code)
}

func TestRateLimit(t *testing.T) {
	s := newServer(t, 1, nil)

	rec := s.do(http.MethodGet, s.events("/seats/availability"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodGet, s.events("/seats/availability"), nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = s.do(http.MethodGet, "/v1/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	healthy := newServer(t, 1000, map[string]httphandler.Checker{
		"db": func(context.Context) error { return nil },
	})
	assert.Equal(t, http.StatusOK, healthy.do(http.MethodGet, "/v1/readyz", nil).Code)

	broken := newServer(t, 1000, map[string]httphandler.Checker{
		"db": func(context.Context) error { return errors.New("connection refused") },
	})
	rec := broken.do(http.MethodGet, "/v1/readyz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, map[string]interface{}{"db": "connection refused"}, decodeBody(t, rec)["failed"])
}
