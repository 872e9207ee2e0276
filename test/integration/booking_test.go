package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/filmhaus/movie-ticket-booking/internal/adapters/crdb"
	mongoadapter "github.com/filmhaus/movie-ticket-booking/internal/adapters/mongo"
	redisadapter "github.com/filmhaus/movie-ticket-booking/internal/adapters/redis"
	"github.com/filmhaus/movie-ticket-booking/internal/booking"
	"github.com/filmhaus/movie-ticket-booking/internal/clock"
	"github.com/filmhaus/movie-ticket-booking/internal/config"
	"github.com/filmhaus/movie-ticket-booking/internal/domain"
	httphandler "github.com/filmhaus/movie-ticket-booking/internal/http"
	"github.com/filmhaus/movie-ticket-booking/internal/idempotency"
	"github.com/filmhaus/movie-ticket-booking/internal/observability"
	"github.com/filmhaus/movie-ticket-booking/internal/rateLimit"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const schema = `
	CREATE DATABASE IF NOT EXISTS mtb;
	CREATE TABLE IF NOT EXISTS mtb.seats (
		screening_id INT8,
		seat_id INT8,
		hall_number INT8,
		row_number INT8,
		seat_number INT8,
		display_name TEXT,
		PRIMARY KEY (screening_id, seat_id)
	);
	CREATE TABLE IF NOT EXISTS mtb.seat_reservations (
		screening_id INT8,
		seat_id INT8,
		state TEXT CHECK (state IN ('AVAILABLE', 'HELD', 'CONFIRMED')),
		hold_expiry TIMESTAMPTZ,
		version INT8 NOT NULL DEFAULT 0,
		PRIMARY KEY (screening_id, seat_id)
	);
	CREATE TABLE IF NOT EXISTS mtb.tickets (
		id UUID PRIMARY KEY,
		user_id UUID,
		screening_id INT8,
		seat_id INT8,
		purchase_time TIMESTAMPTZ,
		status TEXT CHECK (status IN ('ACTIVE', 'USED', 'CANCELED'))
	);
	CREATE TABLE IF NOT EXISTS mtb.outbox (
		id UUID PRIMARY KEY,
		aggregate_type TEXT,
		aggregate_id TEXT,
		event_type TEXT,
		payload_json BYTES,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		published_at TIMESTAMPTZ,
		status TEXT CHECK (status IN ('NEW', 'PUBLISHED', 'FAILED')),
		dedupe_key TEXT
	);
`

func TestIntegration_ReserveConfirmCancel(t *testing.T) {
	ctx := context.Background()

	crdbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "cockroachdb/cockroach:v24.1.1",
			Cmd:          []string{"start-single-node", "--insecure"},
			ExposedPorts: []string{"26257/tcp", "8080/tcp"},
			WaitingFor:   wait.ForHTTP("/health?ready=1").WithPort("8080"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer crdbContainer.Terminate(ctx)

	mongoContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForExec([]string{"mongo", "--eval", "db.runCommand('ping').ok"}),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer mongoContainer.Terminate(ctx)

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForExec([]string{"redis-cli", "ping"}),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer redisContainer.Terminate(ctx)

	crdbHost, err := crdbContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	crdbPort, err := crdbContainer.MappedPort(ctx, "26257")
	if err != nil {
		t.Fatal(err)
	}
	mongoHost, err := mongoContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	mongoPort, err := mongoContainer.MappedPort(ctx, "27017")
	if err != nil {
		t.Fatal(err)
	}
	redisHost, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		CRDBDSN:        "postgresql://root@" + crdbHost + ":" + crdbPort.Port() + "/mtb?sslmode=disable",
		MongoURI:       "mongodb://" + mongoHost + ":" + mongoPort.Port(),
		RedisAddr:      redisHost + ":" + redisPort.Port(),
		HoldTTL:        15 * time.Minute,
		BookingTimeout: 15 * time.Second,
		LockTimeout:    5 * time.Second,
		AdmissionLimit: 16,
		Workers:        4,
		LockPartitions: 512,
		IdempotencyTTL: time.Hour,
	}

	pool, err := pgxpool.New(ctx, cfg.CRDBDSN)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()
	if _, err := pool.Exec(ctx, schema); err != nil {
		t.Fatal(err)
	}
	repo := crdb.NewRepository(pool)
	ticketRepo := crdb.NewTicketRepository(repo)

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		t.Fatal(err)
	}
	defer mongoClient.Disconnect(ctx)
	logger := observability.NewLogger()
	mongoDB := mongoClient.Database("mtb")
	catalog := mongoadapter.NewCatalogRepository(mongoDB, logger)
	auditor := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	seatCache := redisadapter.NewCache(redisClient)
	redisIdemp := redisadapter.NewIdempotency(redisClient)
	idemp := idempotency.NewIdempotency(redisIdemp, cfg.IdempotencyTTL)
	rl := rateLimit.NewRateLimiter(seatCache)

	clk := clock.NewSystem()
	locks := booking.NewSeatLockTable(cfg.LockPartitions, cfg.LockTimeout)
	gate := booking.NewAdmissionGate(cfg.AdmissionLimit, cfg.LockTimeout)
	machine := booking.NewStateMachine(repo, clk, cfg.HoldTTL)
	events := crdb.NewOutboxEventPublisher(repo)

	orch := booking.NewOrchestrator(locks, gate, machine, repo, ticketRepo, catalog, seatCache, events, auditor, logger, clk, booking.OrchestratorConfig{
		Workers:        cfg.Workers,
		BookingTimeout: cfg.BookingTimeout,
	})
	defer orch.Close()

	handlers := httphandler.NewHandlers(cfg, orch, idemp)
	r := httphandler.SetupRouter(handlers, logger, rl, idemp)

	srv := &http.Server{Addr: ":8090", Handler: r}
	go srv.ListenAndServe()
	defer srv.Shutdown(ctx)
	time.Sleep(100 * time.Millisecond)

	const screeningID = int64(1)
	userID := uuid.New()

	screening := domain.Screening{
		ID:         screeningID,
		MovieID:    uuid.New(),
		HallNumber: 1,
		StartTime:  time.Now().Add(2 * time.Hour),
		EndTime:    time.Now().Add(4 * time.Hour),
		Price:      12.5,
		TotalSeats: 30,
	}
	if err := catalog.CreateScreening(ctx, mongoadapter.ScreeningDoc{
		ID:         screening.ID,
		MovieID:    screening.MovieID,
		MovieTitle: "Test Movie",
		HallNumber: screening.HallNumber,
		StartTime:  screening.StartTime,
		EndTime:    screening.EndTime,
		Price:      screening.Price,
		TotalSeats: screening.TotalSeats,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := booking.InitializeScreening(ctx, repo, screening); err != nil {
		t.Fatal(err)
	}

	base := "http://localhost:8090"

	post := func(path string, body interface{}) *http.Response {
		t.Helper()
		data, _ := json.Marshal(body)
		req, _ := http.NewRequest("POST", base+path, bytes.NewReader(data))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", uuid.New().String())
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		return resp
	}

	// Reserve two seats.
	resp := post("/v1/screenings/1/reservations", map[string]interface{}{
		"seat_ids": []int64{1, 2},
		"user_id":  userID.String(),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("reserve status = %d, want 201", resp.StatusCode)
	}
	resp.Body.Close()

	// A second user cannot take a held seat.
	resp = post("/v1/screenings/1/reservations", map[string]interface{}{
		"seat_ids": []int64{2, 3},
		"user_id":  uuid.New().String(),
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("overlapping reserve status = %d, want 409", resp.StatusCode)
	}
	resp.Body.Close()

	// Confirm the booking.
	resp = post("/v1/screenings/1/confirm", map[string]interface{}{
		"seat_ids": []int64{1, 2},
		"user_id":  userID.String(),
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm status = %d, want 200", resp.StatusCode)
	}
	var confirmed struct {
		Tickets []struct {
			ID     uuid.UUID `json:"id"`
			SeatID int64     `json:"seat_id"`
		} `json:"tickets"`
	}
	json.NewDecoder(resp.Body).Decode(&confirmed)
	resp.Body.Close()
	if len(confirmed.Tickets) != 2 {
		t.Fatalf("tickets = %d, want 2", len(confirmed.Tickets))
	}

	// Available seats exclude the two confirmed ones.
	seatsResp, err := http.Get(base + "/v1/screenings/1/seats")
	if err != nil {
		t.Fatal(err)
	}
	var seatsOut struct {
		Available []struct {
			SeatID int64 `json:"seat_id"`
		} `json:"available"`
	}
	json.NewDecoder(seatsResp.Body).Decode(&seatsOut)
	seatsResp.Body.Close()
	if len(seatsOut.Available) != 28 {
		t.Fatalf("available = %d, want 28", len(seatsOut.Available))
	}

	// Cancel one ticket and verify the seat frees up.
	resp = post("/v1/tickets/"+confirmed.Tickets[0].ID.String()+"/cancel", map[string]interface{}{
		"user_id": userID.String(),
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	res, err := repo.Get(ctx, screeningID, confirmed.Tickets[0].SeatID)
	if err != nil {
		t.Fatal(err)
	}
	if res.State != domain.SeatAvailable {
		t.Fatalf("canceled seat state = %s, want AVAILABLE", res.State)
	}

	// The confirm wrote an event through the outbox.
	outbox, err := repo.GetUnpublishedOutbox(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(outbox) == 0 {
		t.Fatal("expected outbox rows after confirm")
	}
}
