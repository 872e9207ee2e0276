package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtb_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code", "method"},
	)

	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtb_bookings_total",
			Help: "Booking workflow outcomes by phase",
		},
		[]string{"phase", "outcome"},
	)

	AdmissionRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mtb_admission_rejected_total",
			Help: "Workflows rejected by the admission gate",
		},
	)

	LockTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mtb_seat_lock_timeouts_total",
			Help: "Seat lock acquisitions that timed out",
		},
	)

	SeatsReclaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mtb_expired_holds_reclaimed_total",
			Help: "Held seats reclaimed by the expiry sweeper",
		},
	)

	TicketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mtb_tickets_issued_total",
			Help: "Tickets created by confirmed bookings",
		},
	)

	TicketsCanceled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mtb_tickets_canceled_total",
			Help: "Tickets canceled by their owners",
		},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mtb_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mtb_rate_limit_exceeded_total",
			Help: "Requests dropped by the rate limiter",
		},
	)
)
