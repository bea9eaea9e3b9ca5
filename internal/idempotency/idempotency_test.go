package idempotency_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	redisadapter "github.com/robertarktes/floorplan-seating/internal/adapters/redis"
	"github.com/robertarktes/floorplan-seating/internal/idempotency"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotency_Memory(t *testing.T) {
	ctx := context.Background()
	idemp := idempotency.NewIdempotency(idempotency.NewMemoryStore(), time.Hour)

	got, err := idemp.Get(ctx, "key-0000000000000001")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, idemp.Set(ctx, "key-0000000000000001", idempotency.Response{Status: 201, Result: []byte(`{"success":true}`)}))
	got, err = idemp.Get(ctx, "key-0000000000000001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 201, got.Status)
	assert.JSONEq(t, `{"success":true}`, string(got.Result))

	got, err = idemp.Get(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestIdempotency_Redis(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(db), time.Hour)

	resp := idempotency.Response{Status: 201, Result: []byte(`{"ok":1}`)}
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	mock.ExpectGet("idemp:abc").RedisNil()
	mock.ExpectSet("idemp:abc", data, time.Hour).SetVal("OK")
	mock.ExpectGet("idemp:abc").SetVal(string(data))

	got, err := idemp.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, idemp.Set(ctx, "abc", resp))

	got, err = idemp.Get(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, resp, *got)

	assert.NoError(t, mock.ExpectationsWereMet())
}
