package config

import (
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr   string
	CRDBDSN      string
	MongoURI     string
	RedisAddr    string
	RabbitURL    string
	OTLPEndpoint string

	// Booking core tuning.
	HoldTTL        time.Duration
	BookingTimeout time.Duration
	LockTimeout    time.Duration
	AdmissionLimit int
	Workers        int
	LockPartitions int
	SweepInterval  time.Duration
	IdempotencyTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		ListenAddr:     envStr("LISTEN_ADDR", ":8080"),
		CRDBDSN:        os.Getenv("CRDB_DSN"),
		MongoURI:       os.Getenv("MONGO_URI"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RabbitURL:      os.Getenv("RABBIT_URL"),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		HoldTTL:        envDuration("HOLD_TTL", 15*time.Minute),
		BookingTimeout: envDuration("BOOKING_TIMEOUT", 15*time.Second),
		LockTimeout:    envDuration("LOCK_TIMEOUT", 5*time.Second),
		AdmissionLimit: envInt("ADMISSION_LIMIT", 4*runtime.GOMAXPROCS(0)),
		Workers:        envInt("WORKERS", 2*runtime.GOMAXPROCS(0)),
		LockPartitions: envInt("LOCK_PARTITIONS", 512),
		SweepInterval:  envDuration("SWEEP_INTERVAL", time.Minute),
		IdempotencyTTL: envDuration("IDEMPOTENCY_TTL", time.Hour),
	}, nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	d, _ := time.ParseDuration(os.Getenv(key))
	if d == 0 {
		return def
	}
	return d
}

func envInt(key string, def int) int {
	n, _ := strconv.Atoi(os.Getenv(key))
	if n <= 0 {
		return def
	}
	return n
}
