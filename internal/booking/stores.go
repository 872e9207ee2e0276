package booking

import (
	"context"
	"time"

	"github.com/filmhaus/movie-ticket-booking/internal/domain"
	"github.com/google/uuid"
)

// ReservationStore is the durable source of truth for seat reservations.
// Save is optimistic: it applies the record only when the stored version
// is exactly one behind the record's, returning domain.ErrVersionConflict
// otherwise. The booking core serializes writers through the seat lock
// table, so a conflict here indicates an uncoordinated writer.
type ReservationStore interface {
	Get(ctx context.Context, screeningID, seatID int64) (domain.SeatReservation, error)
	Save(ctx context.Context, res domain.SeatReservation) error
	ListByScreening(ctx context.Context, screeningID int64) ([]domain.SeatReservation, error)
	ListExpired(ctx context.Context, now time.Time) ([]domain.SeatReservation, error)
	DeleteAllByScreening(ctx context.Context, screeningID int64) error
	InitScreening(ctx context.Context, screeningID int64, seats []domain.Seat) error
}

type TicketStore interface {
	Save(ctx context.Context, t domain.Ticket) error
	Get(ctx context.Context, id uuid.UUID) (domain.Ticket, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TicketStatus) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Ticket, error)
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]domain.Ticket, error)
}

// Catalog is the read-only screening catalog. The booking core only ever
// validates existence and reads seat counts; it never mutates it.
type Catalog interface {
	GetScreening(ctx context.Context, id int64) (domain.Screening, error)
}

// EventPublisher emits booking lifecycle events (booking.confirmed,
// hold.expired). Implementations may publish directly or through an
// outbox; a nil publisher disables events.
type EventPublisher interface {
	PublishJSON(ctx context.Context, routingKey string, payload interface{}) error
}

// Auditor records booking lifecycle actions for offline inspection. A
// nil auditor disables auditing; failures never affect the workflow.
type Auditor interface {
	Record(ctx context.Context, action string, data map[string]interface{}) error
}

// SeatCache fronts the available-seats view. A nil cache disables caching.
type SeatCache interface {
	GetSeats(ctx context.Context, screeningID int64) ([]domain.SeatReservation, bool, error)
	SetSeats(ctx context.Context, screeningID int64, seats []domain.SeatReservation) error
	Invalidate(ctx context.Context, screeningID int64) error
}
