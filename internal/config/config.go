package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName         string
	HTTPAddr            string
	CRDBDSN             string
	MongoURI            string
	MongoDB             string
	RedisAddr           string
	RabbitURL           string
	HoldTTL             time.Duration
	MaxSeats            int
	ExpirySweepInterval time.Duration
	OutboxPollInterval  time.Duration
	OutboxBatchSize     int
	IdempotencyTTL      time.Duration
	RateLimitPerMinute  int
	OTLPEndpoint        string
	LogLevel            string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		ServiceName:         getenv("SERVICE_NAME", "floorplan-seating"),
		HTTPAddr:            getenv("HTTP_ADDR", ":8080"),
		CRDBDSN:             os.Getenv("CRDB_DSN"),
		MongoURI:            os.Getenv("MONGO_URI"),
		MongoDB:             getenv("MONGO_DB", "seating"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RabbitURL:           os.Getenv("RABBIT_URL"),
		HoldTTL:             parseDur(os.Getenv("HOLD_TTL"), 10*time.Minute),
		MaxSeats:            atoi(os.Getenv("MAX_SEATS"), 10),
		ExpirySweepInterval: parseDur(os.Getenv("EXPIRY_SWEEP_INTERVAL"), time.Minute),
		OutboxPollInterval:  parseDur(os.Getenv("OUTBOX_POLL_INTERVAL"), 5*time.Second),
		OutboxBatchSize:     atoi(os.Getenv("OUTBOX_BATCH_SIZE"), 50),
		IdempotencyTTL:      parseDur(os.Getenv("IDEMPOTENCY_TTL"), time.Hour),
		RateLimitPerMinute:  atoi(os.Getenv("RATE_LIMIT_PER_MINUTE"), 100),
		OTLPEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		LogLevel:            getenv("LOG_LEVEL", "info"),
	}, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil || i <= 0 {
		return def
	}
	return i
}

func parseDur(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
