package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"HOLD_TTL", "MAX_SEATS", "HTTP_ADDR", "CRDB_DSN", "RATE_LIMIT_PER_MINUTE"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 10*time.Minute, cfg.HoldTTL)
	assert.Equal(t, 10, cfg.MaxSeats)
	assert.Equal(t, 100, cfg.RateLimitPerMinute)
	assert.Empty(t, cfg.CRDBDSN)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HOLD_TTL", "90s")
	t.Setenv("MAX_SEATS", "4")
	t.Setenv("OUTBOX_BATCH_SIZE", "-3")
	t.Setenv("EXPIRY_SWEEP_INTERVAL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.HoldTTL)
	assert.Equal(t, 4, cfg.MaxSeats)
	assert.Equal(t, 50, cfg.OutboxBatchSize)
	assert.Equal(t, time.Minute, cfg.ExpirySweepInterval)
}
