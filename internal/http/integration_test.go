package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/floorplan-seating/internal/adapters/crdb"
	mongoadapter "github.com/robertarktes/floorplan-seating/internal/adapters/mongo"
	redisadapter "github.com/robertarktes/floorplan-seating/internal/adapters/redis"
	"github.com/robertarktes/floorplan-seating/internal/availability"
	"github.com/robertarktes/floorplan-seating/internal/domain"
	"github.com/robertarktes/floorplan-seating/internal/floorplan"
	httphandler "github.com/robertarktes/floorplan-seating/internal/http"
	"github.com/robertarktes/floorplan-seating/internal/idempotency"
	"github.com/robertarktes/floorplan-seating/internal/observability"
	"github.com/robertarktes/floorplan-seating/internal/rateLimit"
	"github.com/robertarktes/floorplan-seating/internal/reservation"
	"github.com/robertarktes/floorplan-seating/internal/seatgen"
	"github.com/robertarktes/floorplan-seating/internal/selection"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startContainer(t *testing.T, req testcontainers.ContainerRequest, port nat.Port, scheme string) string {
	t.Helper()
	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Terminate(ctx) })

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	mapped, err := c.MappedPort(ctx, port)
	if err != nil {
		t.Fatal(err)
	}
	if scheme == "" {
		return host + ":" + mapped.Port()
	}
	return scheme + "://" + host + ":" + mapped.Port()
}

func TestIntegration_FloorPlanReserveConfirm(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container integration test in short mode")
	}
	ctx := context.Background()

	crdbAddr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "cockroachdb/cockroach:v24.1.1",
		Cmd:          []string{"start-single-node", "--insecure"},
		ExposedPorts: []string{"26257/tcp", "8080/tcp"},
		WaitingFor:   wait.ForHTTP("/health?ready=1").WithPort("8080"),
	}, "26257/tcp", "")
	mongoURI := startContainer(t, testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForExec([]string{"mongosh", "--eval", "db.runCommand('ping').ok"}),
	}, "27017/tcp", "mongodb")
	redisAddr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForExec([]string{"redis-cli", "ping"}),
	}, "6379/tcp", "")

	logger := observability.NewDiscardLogger()

	pool, err := pgxpool.New(ctx, "postgresql://root@"+crdbAddr+"/defaultdb?sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)
	repo := crdb.NewRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}

	mongoClient, db, err := mongoadapter.Connect(ctx, mongoURI, "seating_it")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { mongoClient.Disconnect(ctx) })
	plans := mongoadapter.NewFloorPlanRepository(db, logger)
	auditor := mongoadapter.NewAuditLogger(db, logger)

	redisClient, err := redisadapter.Connect(ctx, redisAddr)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { redisClient.Close() })
	counts := redisadapter.NewCountSnapshots(redisClient)
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), time.Hour)
	rl := rateLimit.NewRateLimiter(redisadapter.NewCache(redisClient))

	generator := seatgen.NewService(repo, counts, logger)
	floorPlans := floorplan.NewService(plans, counts, generator, repo, logger)
	engine := reservation.NewEngine(repo, auditor, reservation.Config{TTL: 5 * time.Minute, MaxSeats: 10}, logger)
	avail := availability.NewService(repo, plans, engine, logger)

	h := httphandler.NewHandlers(floorPlans, generator, avail, engine, counts, repo, map[string]httphandler.Checker{"crdb": repo.Ping})
	srv := httptest.NewServer(httphandler.SetupRouter(h, logger, rl, 1000, idemp))
	t.Cleanup(srv.Close)

	eventID := uuid.New()
	out, err := floorPlans.Save(ctx, eventID, domain.Layout{
		HallName:   "Grand Hall",
		GuestCount: 30,
		TableType:  domain.TableTypeSeatsOnly,
		HallLength: 40,
		HallWidth:  25,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !out.SeatsGenerated || out.Count != 30 {
		t.Fatalf("expected 30 generated seats, got %+v", out)
	}

	alice := selection.NewClient(srv.URL, "alice")
	bob := selection.NewClient(srv.URL, "bob")

	view, err := alice.Availability(ctx, eventID, availability.Filter{Section: "VIP"})
	if err != nil {
		t.Fatal(err)
	}
	if view.TotalSeats != 6 || view.FloorPlan == nil || view.FloorPlan.PlanName != "Grand Hall" {
		t.Fatalf("unexpected VIP view: total=%d plan=%+v", view.TotalSeats, view.FloorPlan)
	}

	sel := selection.New(selection.DefaultMaxSeats)
	for _, s := range view.Seats[:2] {
		if _, err := sel.Toggle(s); err != nil {
			t.Fatal(err)
		}
	}

	res, err := alice.Reserve(ctx, eventID, sel.IDs())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || len(res.Reservations) != 2 || !res.TotalPrice.Equal(sel.Total()) {
		t.Fatalf("unexpected reserve result: %+v", res)
	}

	sel.MarkHeld(sel.IDs())

	view, err = alice.Availability(ctx, eventID, availability.Filter{Section: "VIP"})
	if err != nil {
		t.Fatal(err)
	}
	if dropped := sel.Reconcile(view); len(dropped) != 0 {
		t.Fatalf("own holds dropped from the selection: %+v", dropped)
	}

	_, err = bob.Reserve(ctx, eventID, sel.IDs()[:1])
	var unavailable *domain.UnavailableError
	if !errors.As(err, &unavailable) || len(unavailable.SeatIDs) != 1 {
		t.Fatalf("expected conflict for bob, got %v", err)
	}

	resp, err := http.Get(srv.URL + "/v1/readyz")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz failed: %v", err)
	}
	resp.Body.Close()

	sold, err := engine.Confirm(ctx, eventID, sel.IDs(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(sold) != 2 || sold[0].Status != domain.SeatSold {
		t.Fatalf("expected two sold seats, got %+v", sold)
	}

	view, err = bob.Availability(ctx, eventID, availability.Filter{Section: "VIP"})
	if err != nil {
		t.Fatal(err)
	}
	if dropped := sel.Reconcile(view); len(dropped) != 2 {
		t.Fatalf("expected sold seats to drop out of the selection, got %d", len(dropped))
	}
	if view.AvailableSeats != 4 {
		t.Fatalf("expected 4 available VIP seats, got %d", view.AvailableSeats)
	}
}
