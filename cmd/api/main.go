package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robertarktes/floorplan-seating/internal/adapters/crdb"
	"github.com/robertarktes/floorplan-seating/internal/adapters/memory"
	mongoadapter "github.com/robertarktes/floorplan-seating/internal/adapters/mongo"
	redisadapter "github.com/robertarktes/floorplan-seating/internal/adapters/redis"
	"github.com/robertarktes/floorplan-seating/internal/availability"
	"github.com/robertarktes/floorplan-seating/internal/config"
	"github.com/robertarktes/floorplan-seating/internal/floorplan"
	httphandler "github.com/robertarktes/floorplan-seating/internal/http"
	"github.com/robertarktes/floorplan-seating/internal/idempotency"
	"github.com/robertarktes/floorplan-seating/internal/observability"
	"github.com/robertarktes/floorplan-seating/internal/rateLimit"
	"github.com/robertarktes/floorplan-seating/internal/reservation"
	"github.com/robertarktes/floorplan-seating/internal/seatgen"
)

type seatStore interface {
	seatgen.Store
	availability.Store
	reservation.Store
	httphandler.PricingStore
}

type countStore interface {
	seatgen.CountSnapshots
	floorplan.CountStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLoggerWithLevel(cfg.LogLevel)
	ctx := context.Background()
	mem := memory.NewStore()
	checks := map[string]httphandler.Checker{}

	var (
		seats       seatStore = mem
		provisioner floorplan.Provisioner
	)
	if cfg.CRDBDSN != "" {
		pool, err := crdb.Connect(ctx, cfg.CRDBDSN)
		if err != nil {
			log.Fatalf("failed to connect to crdb: %v", err)
		}
		defer pool.Close()
		repo := crdb.NewRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatalf("failed to apply schema: %v", err)
		}
		seats, provisioner = repo, repo
		checks["crdb"] = repo.Ping
	} else {
		logger.Warn("CRDB_DSN not set, seat inventory is kept in memory")
	}

	var (
		plans   floorplan.PlanStore = mem
		auditor reservation.Auditor
	)
	if cfg.MongoURI != "" {
		client, db, err := mongoadapter.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			log.Fatalf("failed to connect to mongo: %v", err)
		}
		defer client.Disconnect(context.Background())
		repo := mongoadapter.NewFloorPlanRepository(db, logger)
		if err := repo.EnsureIndexes(ctx); err != nil {
			logger.WithError(err).Warn("create floor plan indexes")
		}
		plans = repo
		// With a broker the outbox projector writes the audit trail.
		if cfg.RabbitURL == "" {
			auditor = mongoadapter.NewAuditLogger(db, logger)
		}
		checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
	}

	var (
		counts     countStore        = mem
		idempStore idempotency.Store = idempotency.NewMemoryStore()
		rl         rateLimit.Limiter = rateLimit.NewMemoryLimiter()
	)
	if cfg.RedisAddr != "" {
		client, err := redisadapter.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer client.Close()
		cache := redisadapter.NewCache(client)
		counts = redisadapter.NewCountSnapshots(client)
		idempStore = redisadapter.NewIdempotency(client)
		rl = rateLimit.NewRateLimiter(cache)
		checks["redis"] = cache.Ping
	}

	generator := seatgen.NewService(seats, counts, logger)
	floorPlans := floorplan.NewService(plans, counts, generator, provisioner, logger)
	engine := reservation.NewEngine(seats, auditor, reservation.Config{TTL: cfg.HoldTTL, MaxSeats: cfg.MaxSeats}, logger)
	avail := availability.NewService(seats, plans, engine, logger)
	idemp := idempotency.NewIdempotency(idempStore, cfg.IdempotencyTTL)

	handlers := httphandler.NewHandlers(floorPlans, generator, avail, engine, counts, seats, checks)
	r := httphandler.SetupRouter(handlers, logger, rl, cfg.RateLimitPerMinute, idemp)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
