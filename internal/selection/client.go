package selection

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/floorplan-seating/internal/availability"
	"github.com/robertarktes/floorplan-seating/internal/domain"
	"github.com/shopspring/decimal"
)

// Client talks to the seating API on behalf of one selection session.
type Client struct {
	// baseURL is the API root, e.g. http://localhost:8080.
	baseURL string

	// sessionID identifies the selection session on the server.
	sessionID string

	hc *http.Client
}

func NewClient(baseURL, sessionID string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		sessionID: sessionID,
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) SessionID() string { return c.sessionID }

type Reservation struct {
	SeatID    uuid.UUID `json:"seatId"`
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type ReserveResult struct {
	Success      bool            `json:"success"`
	Reservations []Reservation   `json:"reservations"`
	ExpiresAt    time.Time       `json:"expiresAt"`
	TotalPrice   decimal.Decimal `json:"totalPrice"`
}

type errorReply struct {
	Error            string      `json:"error"`
	UnavailableSeats []uuid.UUID `json:"unavailableSeats"`
	MaxSeats         int         `json:"maxSeats"`
}

// Availability fetches the current seat map for the event.
func (c *Client) Availability(ctx context.Context, eventID uuid.UUID, filter availability.Filter) (availability.View, error) {
	q := url.Values{}
	if filter.Section != "" {
		q.Set("section", filter.Section)
	}
	if filter.TicketClass != "" {
		q.Set("ticketClass", filter.TicketClass)
	}
	path := "/v1/events/" + eventID.String() + "/seats/availability"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var view availability.View
	if err := c.do(ctx, http.MethodGet, path, nil, &view); err != nil {
		return availability.View{}, errors.Wrap(err, "fetch availability")
	}
	return view, nil
}

// Reserve commits the selection. A lost race comes back as a
// *domain.UnavailableError naming the seats to drop.
func (c *Client) Reserve(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID) (ReserveResult, error) {
	body := map[string]interface{}{"seatIds": seatIDs, "sessionId": c.sessionID}
	var res ReserveResult
	if err := c.do(ctx, http.MethodPost, "/v1/events/"+eventID.String()+"/seats/reserve", body, &res); err != nil {
		return ReserveResult{}, err
	}
	return res, nil
}

func (c *Client) Release(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID) error {
	body := map[string]interface{}{"seatIds": seatIDs, "sessionId": c.sessionID}
	return c.do(ctx, http.MethodDelete, "/v1/events/"+eventID.String()+"/seats/reserve", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

// decodeError maps an API error reply back onto the domain errors.
func decodeError(resp *http.Response) error {
	var reply errorReply
	_ = json.NewDecoder(resp.Body).Decode(&reply)
	msg := reply.Error
	if msg == "" {
		msg = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusConflict:
		return domain.Unavailable(msg, reply.UnavailableSeats...)
	case http.StatusUnprocessableEntity:
		return &domain.CapacityError{Max: reply.MaxSeats}
	case http.StatusNotFound:
		return errors.Wrap(domain.ErrNotFound, msg)
	case http.StatusBadRequest:
		return errors.Wrap(domain.ErrInvalidInput, msg)
	default:
		return errors.Newf("seating api: %d %s", resp.StatusCode, msg)
	}
}
