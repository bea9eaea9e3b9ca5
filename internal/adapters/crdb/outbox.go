package crdb

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/floorplan-seating/internal/domain"
)

type OutboxRecord struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Status        string // NEW, PUBLISHED, FAILED
	DedupeKey     string
}

func (r *Repository) InsertOutbox(ctx context.Context, tx pgx.Tx, record OutboxRecord) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload_json, status, dedupe_key)
		VALUES ($1, $2, $3, $4, $5, 'NEW', $6)
	`, record.ID, record.AggregateType, record.AggregateID, record.EventType, record.Payload, record.DedupeKey)
	return err
}

// insertSeatEvent queues ev for publishing in the same transaction as the
// change it describes.
func (r *Repository) insertSeatEvent(ctx context.Context, tx pgx.Tx, ev domain.SeatEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encode seat event")
	}
	id := uuid.New()
	return r.InsertOutbox(ctx, tx, OutboxRecord{
		ID:            id,
		AggregateType: "event",
		AggregateID:   ev.EventID,
		EventType:     ev.Type,
		Payload:       payload,
		DedupeKey:     id.String(),
	})
}

func (r *Repository) GetUnpublishedOutbox(ctx context.Context, tx pgx.Tx, limit int) ([]OutboxRecord, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload_json, created_at, published_at, status, dedupe_key
		FROM outbox WHERE status = 'NEW' ORDER BY created_at ASC LIMIT $1 FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []OutboxRecord
	for rows.Next() {
		var rec OutboxRecord
		err := rows.Scan(&rec.ID, &rec.AggregateType, &rec.AggregateID, &rec.EventType, &rec.Payload, &rec.CreatedAt, &rec.PublishedAt, &rec.Status, &rec.DedupeKey)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *Repository) MarkPublished(ctx context.Context, tx pgx.Tx, id uuid.UUID, publishedAt time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE outbox SET status = 'PUBLISHED', published_at = $2 WHERE id = $1
	`, id, publishedAt)
	return err
}

// DrainOutbox locks up to limit unpublished records in creation order and
// hands each to publish. The batch stops at the first publish failure so the
// remaining records keep their order for the next attempt.
func (r *Repository) DrainOutbox(ctx context.Context, limit int, publish func(context.Context, OutboxRecord) error) (int, error) {
	published := 0
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		published = 0
		records, err := r.GetUnpublishedOutbox(ctx, tx, limit)
		if err != nil {
			return err
		}
		for _, rec := range records {
			if publish(ctx, rec) != nil {
				return nil
			}
			if err := r.MarkPublished(ctx, tx, rec.ID, time.Now().UTC()); err != nil {
				return err
			}
			published++
		}
		return nil
	})
	return published, err
}

// OldestUnpublished returns the age of the oldest NEW record, or zero.
func (r *Repository) OldestUnpublished(ctx context.Context) (time.Duration, error) {
	var oldest *time.Time
	err := r.pool.QueryRow(ctx, `SELECT min(created_at) FROM outbox WHERE status = 'NEW'`).Scan(&oldest)
	if err != nil {
		return 0, mapPgErr(err)
	}
	if oldest == nil {
		return 0, nil
	}
	return time.Since(*oldest), nil
}
