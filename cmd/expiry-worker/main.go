package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robertarktes/floorplan-seating/internal/adapters/crdb"
	mongoadapter "github.com/robertarktes/floorplan-seating/internal/adapters/mongo"
	"github.com/robertarktes/floorplan-seating/internal/config"
	"github.com/robertarktes/floorplan-seating/internal/domain"
	"github.com/robertarktes/floorplan-seating/internal/observability"
	"github.com/robertarktes/floorplan-seating/internal/reservation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.CRDBDSN == "" {
		log.Fatal("CRDB_DSN is required")
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLoggerWithLevel(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := crdb.Connect(ctx, cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)

	var auditor reservation.Auditor
	if cfg.MongoURI != "" && cfg.RabbitURL == "" {
		client, db, err := mongoadapter.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			log.Fatalf("failed to connect to mongo: %v", err)
		}
		defer client.Disconnect(context.Background())
		auditor = mongoadapter.NewAuditLogger(db, logger)
	}

	engine := reservation.NewEngine(repo, auditor, reservation.Config{TTL: cfg.HoldTTL, MaxSeats: cfg.MaxSeats}, logger)
	worker := NewExpiryWorker(engine, logger)

	go worker.Run(ctx, cfg.ExpirySweepInterval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown expiry worker")
}

type Sweeper interface {
	ReclaimExpired(ctx context.Context) ([]domain.Seat, error)
}

// ExpiryWorker returns lapsed reservations to AVAILABLE on a fixed interval,
// so seats free up even for events nobody is browsing.
type ExpiryWorker struct {
	sweeper Sweeper
	logger  observability.Logger
}

func NewExpiryWorker(sweeper Sweeper, logger observability.Logger) *ExpiryWorker {
	return &ExpiryWorker{sweeper: sweeper, logger: logger}
}

func (w *ExpiryWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweepWithRetry(ctx)
		}
	}
}

func (w *ExpiryWorker) sweepWithRetry(ctx context.Context) {
	const maxRetries = 3
	for i := 0; i < maxRetries; i++ {
		seats, err := w.sweeper.ReclaimExpired(ctx)
		if err == nil {
			if len(seats) > 0 {
				w.logger.WithField("count", len(seats)).Info("expired reservations reclaimed")
			}
			return
		}
		w.logger.WithError(err).WithField("attempt", i+1).Warn("reclaim expired reservations")

		backoff := time.Duration(1<<i) * time.Second
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
	w.logger.Error("reclaim expired reservations failed after retries")
}
