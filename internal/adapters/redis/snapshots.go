package redis

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robertarktes/floorplan-seating/internal/domain"
)

// CountSnapshots keeps the last explicit per-category seat counts of each
// event so a later regeneration without counts reuses them.
type CountSnapshots struct {
	client *redis.Client
}

func NewCountSnapshots(client *redis.Client) *CountSnapshots {
	return &CountSnapshots{client: client}
}

func countsKey(eventID uuid.UUID) string {
	return "event_seat_counts:" + eventID.String()
}

func (s *CountSnapshots) GetCounts(ctx context.Context, eventID uuid.UUID) (*domain.CategoryCounts, error) {
	val, err := s.client.Get(ctx, countsKey(eventID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var counts domain.CategoryCounts
	if err := json.Unmarshal(val, &counts); err != nil {
		return nil, errors.Wrap(err, "decode seat count snapshot")
	}
	return &counts, nil
}

// SaveCounts stores the snapshot without expiry.
func (s *CountSnapshots) SaveCounts(ctx context.Context, eventID uuid.UUID, counts domain.CategoryCounts) error {
	data, err := json.Marshal(counts)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, countsKey(eventID), data, 0).Err()
}
