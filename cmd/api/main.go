package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/filmhaus/movie-ticket-booking/internal/adapters/crdb"
	mongoadapter "github.com/filmhaus/movie-ticket-booking/internal/adapters/mongo"
	"github.com/filmhaus/movie-ticket-booking/internal/adapters/rabbit"
	redisadapter "github.com/filmhaus/movie-ticket-booking/internal/adapters/redis"
	"github.com/filmhaus/movie-ticket-booking/internal/booking"
	"github.com/filmhaus/movie-ticket-booking/internal/clock"
	"github.com/filmhaus/movie-ticket-booking/internal/config"
	httphandler "github.com/filmhaus/movie-ticket-booking/internal/http"
	"github.com/filmhaus/movie-ticket-booking/internal/idempotency"
	"github.com/filmhaus/movie-ticket-booking/internal/observability"
	"github.com/filmhaus/movie-ticket-booking/internal/rateLimit"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)
	ticketRepo := crdb.NewTicketRepository(repo)

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database("mtb")
	catalog := mongoadapter.NewCatalogRepository(mongoDB, logger)
	auditor := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	seatCache := redisadapter.NewCache(redisClient)
	redisIdemp := redisadapter.NewIdempotency(redisClient)
	idemp := idempotency.NewIdempotency(redisIdemp, cfg.IdempotencyTTL)
	rl := rateLimit.NewRateLimiter(seatCache)

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()
	if _, err := rabbit.NewPublisher(rabbitConn); err != nil {
		log.Fatalf("failed to declare events exchange: %v", err)
	}

	clk := clock.NewSystem()
	locks := booking.NewSeatLockTable(cfg.LockPartitions, cfg.LockTimeout)
	gate := booking.NewAdmissionGate(cfg.AdmissionLimit, cfg.LockTimeout)
	machine := booking.NewStateMachine(repo, clk, cfg.HoldTTL)
	// Confirmed-booking events go through the outbox so they are never
	// lost between the reservation write and the broker; the
	// outbox-publisher binary relays them to RabbitMQ.
	events := crdb.NewOutboxEventPublisher(repo)

	orchestrator := booking.NewOrchestrator(locks, gate, machine, repo, ticketRepo, catalog, seatCache, events, auditor, logger, clk, booking.OrchestratorConfig{
		Workers:        cfg.Workers,
		BookingTimeout: cfg.BookingTimeout,
	})

	handlers := httphandler.NewHandlers(cfg, orchestrator, idemp)
	r := httphandler.SetupRouter(handlers, logger, rl, idemp)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	// Drain in-flight booking workflows before exiting.
	orchestrator.Close()
	logger.Info("Server exiting")
}
