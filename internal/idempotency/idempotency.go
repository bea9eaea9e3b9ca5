// Package idempotency replays the stored response of a request that was
// already handled under the same Idempotency-Key.
package idempotency

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// Store persists encoded responses. Load returns nil for unknown keys.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

type Idempotency struct {
	store Store
	ttl   time.Duration
}

func NewIdempotency(store Store, ttl time.Duration) *Idempotency {
	return &Idempotency{store: store, ttl: ttl}
}

type Response struct {
	Status int    `json:"status"`
	Result []byte `json:"result"`
}

func (i *Idempotency) Get(ctx context.Context, key string) (*Response, error) {
	if key == "" {
		return nil, nil
	}
	data, err := i.store.Load(ctx, key)
	if err != nil || data == nil {
		return nil, err
	}
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errors.Wrap(err, "decode idempotent response")
	}
	return &resp, nil
}

func (i *Idempotency) Set(ctx context.Context, key string, resp Response) error {
	if key == "" {
		return nil
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return i.store.Save(ctx, key, data, i.ttl)
}

// MemoryStore keeps records in process. Used when Redis is not configured.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryRecord
}

type memoryRecord struct {
	data      []byte
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]memoryRecord)}
}

func (m *MemoryStore) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, nil
	}
	if !rec.expiresAt.IsZero() && time.Now().After(rec.expiresAt) {
		delete(m.records, key)
		return nil, nil
	}
	return rec.data, nil
}

func (m *MemoryStore) Save(_ context.Context, key string, data []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := memoryRecord{data: data}
	if ttl > 0 {
		rec.expiresAt = time.Now().Add(ttl)
	}
	m.records[key] = rec
	return nil
}
