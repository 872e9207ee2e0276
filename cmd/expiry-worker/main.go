package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/filmhaus/movie-ticket-booking/internal/adapters/crdb"
	"github.com/filmhaus/movie-ticket-booking/internal/adapters/rabbit"
	redisadapter "github.com/filmhaus/movie-ticket-booking/internal/adapters/redis"
	"github.com/filmhaus/movie-ticket-booking/internal/booking"
	"github.com/filmhaus/movie-ticket-booking/internal/clock"
	"github.com/filmhaus/movie-ticket-booking/internal/config"
	"github.com/filmhaus/movie-ticket-booking/internal/observability"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
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

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	seatCache := redisadapter.NewCache(redisClient)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	rabbitPub, err := rabbit.NewPublisher(conn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}

	clk := clock.NewSystem()
	// This lock table is local to the worker process; races against the
	// api's confirm path are arbitrated by the store's version predicate.
	locks := booking.NewSeatLockTable(cfg.LockPartitions, cfg.LockTimeout)
	machine := booking.NewStateMachine(repo, clk, cfg.HoldTTL)
	sweeper := booking.NewSweeper(repo, machine, locks, seatCache, rabbitPub, logger, clk)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sweeper.Run(ctx, cfg.SweepInterval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown expiry worker")
}
