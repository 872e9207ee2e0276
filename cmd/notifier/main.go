package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/filmhaus/movie-ticket-booking/internal/adapters/rabbit"
	"github.com/filmhaus/movie-ticket-booking/internal/config"
	"github.com/filmhaus/movie-ticket-booking/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumes booking lifecycle events and dispatches user notifications.
// Delivery is at-least-once: messages are acked only after handling, and
// handlers must tolerate duplicates.
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

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()

	consumer, err := rabbit.NewConsumer(conn, "notifications.q",
		"booking.confirmed", "ticket.canceled", "hold.expired")
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		log.Fatalf("failed to start consuming: %v", err)
	}

	go func() {
		for d := range deliveries {
			handle(logger, d)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown notifier")
}

func handle(logger observability.Logger, d amqp.Delivery) {
	var payload map[string]interface{}
	if err := json.Unmarshal(d.Body, &payload); err != nil {
		logger.WithError(err).WithField("routing_key", d.RoutingKey).Error("malformed event payload")
		d.Nack(false, false)
		return
	}

	// Notification transport (email, push) plugs in here; for now the
	// event is logged so operators can trace the flow end to end.
	logger.
		WithField("routing_key", d.RoutingKey).
		WithField("message_id", d.MessageId).
		WithField("payload", payload).
		Info("booking event received")

	d.Ack(false)
}
