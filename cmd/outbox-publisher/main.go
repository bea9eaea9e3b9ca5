package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/floorplan-seating/internal/adapters/crdb"
	mongoadapter "github.com/robertarktes/floorplan-seating/internal/adapters/mongo"
	"github.com/robertarktes/floorplan-seating/internal/adapters/rabbit"
	"github.com/robertarktes/floorplan-seating/internal/config"
	"github.com/robertarktes/floorplan-seating/internal/observability"
	"github.com/robertarktes/floorplan-seating/internal/outbox"
	"golang.org/x/sync/errgroup"
)

const (
	auditQueue   = "seating.audit"
	auditPattern = "seats.#"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.CRDBDSN == "" || cfg.RabbitURL == "" {
		log.Fatal("CRDB_DSN and RABBIT_URL are required")
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLoggerWithLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := crdb.Connect(ctx, cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	rabbitPub, err := rabbit.NewPublisher(conn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}
	defer rabbitPub.Close()

	g, gctx := errgroup.WithContext(ctx)

	publisher := outbox.NewPublisher(repo, rabbitPub, logger, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	g.Go(func() error { return publisher.Run(gctx) })

	if cfg.MongoURI != "" {
		client, db, err := mongoadapter.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			log.Fatalf("failed to connect to mongo: %v", err)
		}
		defer client.Disconnect(context.Background())

		consumer, err := rabbit.NewConsumer(conn, auditQueue, auditPattern)
		if err != nil {
			log.Fatalf("failed to create consumer: %v", err)
		}
		defer consumer.Close()

		projector := outbox.NewProjector(consumer, mongoadapter.NewAuditLogger(db, logger), logger)
		g.Go(func() error { return projector.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("outbox publisher stopped")
	}
	logger.Info("Shutdown outbox publisher")
}
