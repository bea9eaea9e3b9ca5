package crdb

import (
	"context"

	"github.com/cockroachdb/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS seats (
	id UUID PRIMARY KEY,
	event_id UUID NOT NULL,
	section TEXT NOT NULL,
	row_label TEXT NOT NULL,
	seat_number TEXT NOT NULL,
	seat_type TEXT NOT NULL,
	base_price NUMERIC(12,2) NOT NULL DEFAULT 0,
	x_coordinate DOUBLE PRECISION NOT NULL DEFAULT 0,
	y_coordinate DOUBLE PRECISION NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'AVAILABLE' CHECK (status IN ('AVAILABLE', 'RESERVED', 'SOLD')),
	session_id TEXT,
	reservation_expires_at TIMESTAMPTZ,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (event_id, section, row_label, seat_number)
);
CREATE INDEX IF NOT EXISTS seats_event_status_idx ON seats (event_id, status);
CREATE TABLE IF NOT EXISTS event_ticket_settings (
	event_id UUID PRIMARY KEY,
	vip_price NUMERIC(12,2) NOT NULL DEFAULT 0,
	premium_price NUMERIC(12,2) NOT NULL DEFAULT 0,
	general_price NUMERIC(12,2) NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS outbox (
	id UUID PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id UUID NOT NULL,
	event_type TEXT NOT NULL,
	payload_json JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	published_at TIMESTAMPTZ,
	status TEXT NOT NULL DEFAULT 'NEW' CHECK (status IN ('NEW', 'PUBLISHED', 'FAILED')),
	dedupe_key TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS outbox_status_created_idx ON outbox (status, created_at);
`

// EnsureSchema creates the seat, ticket settings and outbox tables when they
// do not exist. It is safe to run repeatedly.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return errors.Wrap(err, "ensure schema")
	}
	return nil
}
