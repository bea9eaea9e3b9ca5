package crdb

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/robertarktes/floorplan-seating/internal/domain"
	"github.com/shopspring/decimal"
)

const seatColumns = `id, event_id, section, row_label, seat_number, seat_type, base_price::text,
	x_coordinate, y_coordinate, status, COALESCE(session_id, ''), reservation_expires_at`

var copyColumns = []string{
	"id", "event_id", "section", "row_label", "seat_number", "seat_type",
	"base_price", "x_coordinate", "y_coordinate", "status",
}

func numeric(d decimal.Decimal) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	if err := n.Scan(d.String()); err != nil {
		return n, errors.Wrapf(err, "encode %s", d)
	}
	return n, nil
}

func scanSeat(row pgx.Row) (domain.Seat, error) {
	var (
		s      domain.Seat
		price  string
		status string
	)
	err := row.Scan(&s.ID, &s.EventID, &s.Section, &s.RowLabel, &s.SeatNumber, &s.SeatType, &price,
		&s.X, &s.Y, &status, &s.SessionID, &s.ReservationExpiresAt)
	if err != nil {
		return domain.Seat{}, err
	}
	s.Status = domain.SeatStatus(status)
	if s.BasePrice, err = decimal.NewFromString(price); err != nil {
		return domain.Seat{}, errors.Wrapf(err, "seat %s price", s.ID)
	}
	return s, nil
}

func collectSeats(rows pgx.Rows) ([]domain.Seat, error) {
	defer rows.Close()
	var seats []domain.Seat
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

// ReplaceSeats deletes every seat of the event and bulk-inserts the new
// inventory in one transaction.
func (r *Repository) ReplaceSeats(ctx context.Context, eventID uuid.UUID, seats []domain.Seat) error {
	rows := make([][]interface{}, 0, len(seats))
	for _, s := range seats {
		price, err := numeric(s.BasePrice)
		if err != nil {
			return err
		}
		rows = append(rows, []interface{}{
			s.ID, s.EventID, s.Section, s.RowLabel, s.SeatNumber, s.SeatType,
			price, s.X, s.Y, string(s.Status),
		})
	}

	return r.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM seats WHERE event_id = $1`, eventID); err != nil {
			return err
		}
		if len(rows) > 0 {
			n, err := tx.CopyFrom(ctx, pgx.Identifier{"seats"}, copyColumns, pgx.CopyFromRows(rows))
			if err != nil {
				return err
			}
			if int(n) != len(rows) {
				return errors.Newf("copied %d of %d seats", n, len(rows))
			}
		}
		return r.insertSeatEvent(ctx, tx, domain.SeatEvent{Type: domain.EventSeatsGenerated, EventID: eventID, Count: len(seats)})
	})
}

func (r *Repository) TicketPricing(ctx context.Context, eventID uuid.UUID) (*domain.Pricing, error) {
	var vip, premium, general string
	err := r.pool.QueryRow(ctx, `
		SELECT vip_price::text, premium_price::text, general_price::text
		FROM event_ticket_settings WHERE event_id = $1
	`, eventID).Scan(&vip, &premium, &general)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapPgErr(err)
	}
	var p domain.Pricing
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{{&p.VIP, vip}, {&p.Premium, premium}, {&p.General, general}} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return nil, errors.Wrap(err, "ticket settings price")
		}
	}
	return &p, nil
}

func (r *Repository) UpsertTicketPricing(ctx context.Context, eventID uuid.UUID, p domain.Pricing) error {
	vip, err := numeric(p.VIP)
	if err != nil {
		return err
	}
	premium, err := numeric(p.Premium)
	if err != nil {
		return err
	}
	general, err := numeric(p.General)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		UPSERT INTO event_ticket_settings (event_id, vip_price, premium_price, general_price, updated_at)
		VALUES ($1, $2, $3, $4, now())
	`, eventID, vip, premium, general)
	return mapPgErr(err)
}

func (r *Repository) ListSeats(ctx context.Context, eventID uuid.UUID) ([]domain.Seat, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+seatColumns+` FROM seats WHERE event_id = $1`, eventID)
	if err != nil {
		return nil, mapPgErr(err)
	}
	return collectSeats(rows)
}

func (r *Repository) GetSeat(ctx context.Context, seatID uuid.UUID) (domain.Seat, error) {
	s, err := scanSeat(r.pool.QueryRow(ctx, `SELECT `+seatColumns+` FROM seats WHERE id = $1`, seatID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Seat{}, domain.ErrNotFound
	}
	return s, mapPgErr(err)
}

// lockSeats row-locks the requested seats and fails with ErrNotFound if any
// of them does not belong to the event.
func lockSeats(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, seatIDs []uuid.UUID) error {
	rows, err := tx.Query(ctx, `SELECT id FROM seats WHERE event_id = $1 AND id = ANY($2) FOR UPDATE`, eventID, seatIDs)
	if err != nil {
		return err
	}
	defer rows.Close()
	found := make(map[uuid.UUID]bool, len(seatIDs))
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return err
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, id := range seatIDs {
		if !found[id] {
			return errors.Wrapf(domain.ErrNotFound, "seat %s", id)
		}
	}
	return nil
}

func missing(want []uuid.UUID, got []domain.Seat) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(got))
	for _, s := range got {
		seen[s.ID] = true
	}
	var out []uuid.UUID
	for _, id := range want {
		if !seen[id] {
			out = append(out, id)
		}
	}
	return out
}

// ReserveSeats is the compare-and-swap for AVAILABLE -> RESERVED. A seat
// qualifies when it is available, its reservation has lapsed, or the same
// session already holds it. If any seat does not qualify nothing changes.
func (r *Repository) ReserveSeats(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, sessionID string, expiresAt, now time.Time) ([]domain.Seat, error) {
	var reserved []domain.Seat
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		if err := lockSeats(ctx, tx, eventID, seatIDs); err != nil {
			return err
		}
		rows, err := tx.Query(ctx, `
			UPDATE seats
			SET status = 'RESERVED', session_id = $3, reservation_expires_at = $4, updated_at = now()
			WHERE event_id = $1 AND id = ANY($2)
			  AND (status = 'AVAILABLE'
			       OR (status = 'RESERVED' AND (reservation_expires_at <= $5 OR session_id = $3)))
			RETURNING `+seatColumns, eventID, seatIDs, sessionID, expiresAt, now)
		if err != nil {
			return err
		}
		if reserved, err = collectSeats(rows); err != nil {
			return err
		}
		if taken := missing(seatIDs, reserved); len(taken) > 0 {
			return domain.Unavailable("reserved", taken...)
		}
		return r.insertSeatEvent(ctx, tx, domain.SeatEvent{Type: domain.EventSeatsReserved, EventID: eventID, SeatIDs: seatIDs, SessionID: sessionID})
	})
	if err != nil {
		return nil, err
	}
	return reserved, nil
}

func (r *Repository) ReleaseSeats(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, sessionID string) ([]uuid.UUID, error) {
	var released []uuid.UUID
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		released = nil
		rows, err := tx.Query(ctx, `
			UPDATE seats
			SET status = 'AVAILABLE', session_id = NULL, reservation_expires_at = NULL, updated_at = now()
			WHERE event_id = $1 AND id = ANY($2) AND status = 'RESERVED' AND session_id = $3
			RETURNING id
		`, eventID, seatIDs, sessionID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				return err
			}
			released = append(released, id)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if len(released) == 0 {
			return nil
		}
		return r.insertSeatEvent(ctx, tx, domain.SeatEvent{Type: domain.EventSeatsReleased, EventID: eventID, SeatIDs: released, SessionID: sessionID})
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

func (r *Repository) ConfirmSeats(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, sessionID string, now time.Time) ([]domain.Seat, error) {
	var sold []domain.Seat
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		if err := lockSeats(ctx, tx, eventID, seatIDs); err != nil {
			return err
		}
		rows, err := tx.Query(ctx, `
			UPDATE seats
			SET status = 'SOLD', reservation_expires_at = NULL, updated_at = now()
			WHERE event_id = $1 AND id = ANY($2)
			  AND status = 'RESERVED' AND session_id = $3 AND reservation_expires_at > $4
			RETURNING `+seatColumns, eventID, seatIDs, sessionID, now)
		if err != nil {
			return err
		}
		if sold, err = collectSeats(rows); err != nil {
			return err
		}
		if lost := missing(seatIDs, sold); len(lost) > 0 {
			return domain.Unavailable("not held by session", lost...)
		}
		return r.insertSeatEvent(ctx, tx, domain.SeatEvent{Type: domain.EventSeatsSold, EventID: eventID, SeatIDs: seatIDs, SessionID: sessionID})
	})
	if err != nil {
		return nil, err
	}
	return sold, nil
}

func (r *Repository) ExpireSeat(ctx context.Context, seatID uuid.UUID, now time.Time) (bool, error) {
	changed := false
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		var eventID uuid.UUID
		err := tx.QueryRow(ctx, `
			UPDATE seats
			SET status = 'AVAILABLE', session_id = NULL, reservation_expires_at = NULL, updated_at = now()
			WHERE id = $1 AND status = 'RESERVED' AND reservation_expires_at <= $2
			RETURNING event_id
		`, seatID, now).Scan(&eventID)
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM seats WHERE id = $1)`, seatID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return domain.ErrNotFound
			}
			return nil
		}
		if err != nil {
			return err
		}
		changed = true
		return r.insertSeatEvent(ctx, tx, domain.SeatEvent{Type: domain.EventSeatsExpired, EventID: eventID, SeatIDs: []uuid.UUID{seatID}})
	})
	return changed, err
}

func (r *Repository) RevertSeat(ctx context.Context, seatID uuid.UUID) (domain.Seat, error) {
	var seat domain.Seat
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		current, err := scanSeat(tx.QueryRow(ctx, `SELECT `+seatColumns+` FROM seats WHERE id = $1 FOR UPDATE`, seatID))
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		if current.Status != domain.SeatSold {
			return errors.Wrap(domain.ErrInvalidInput, "seat is not sold")
		}
		seat, err = scanSeat(tx.QueryRow(ctx, `
			UPDATE seats
			SET status = 'AVAILABLE', session_id = NULL, reservation_expires_at = NULL, updated_at = now()
			WHERE id = $1
			RETURNING `+seatColumns, seatID))
		if err != nil {
			return err
		}
		return r.insertSeatEvent(ctx, tx, domain.SeatEvent{Type: domain.EventSeatsReverted, EventID: seat.EventID, SeatIDs: []uuid.UUID{seatID}})
	})
	if err != nil {
		return domain.Seat{}, err
	}
	return seat, nil
}

// ReclaimExpired returns lapsed reservations to AVAILABLE. uuid.Nil sweeps
// every event.
func (r *Repository) ReclaimExpired(ctx context.Context, eventID uuid.UUID, now time.Time) ([]domain.Seat, error) {
	var reclaimed []domain.Seat
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			UPDATE seats
			SET status = 'AVAILABLE', session_id = NULL, reservation_expires_at = NULL, updated_at = now()
			WHERE status = 'RESERVED' AND reservation_expires_at <= $1
			  AND ($2 = '00000000-0000-0000-0000-000000000000'::uuid OR event_id = $2)
			RETURNING `+seatColumns, now, eventID)
		if err != nil {
			return err
		}
		if reclaimed, err = collectSeats(rows); err != nil {
			return err
		}

		byEvent := make(map[uuid.UUID][]uuid.UUID)
		for _, s := range reclaimed {
			byEvent[s.EventID] = append(byEvent[s.EventID], s.ID)
		}
		for ev, ids := range byEvent {
			if err := r.insertSeatEvent(ctx, tx, domain.SeatEvent{Type: domain.EventSeatsExpired, EventID: ev, SeatIDs: ids}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reclaimed, nil
}
