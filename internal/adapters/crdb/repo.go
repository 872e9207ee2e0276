package crdb

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/filmhaus/movie-ticket-booking/internal/domain"
	"github.com/filmhaus/movie-ticket-booking/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	SerializationFailureCode = "40001"
)

// Repository is the durable store for seats, seat reservations, tickets
// and the outbox. It satisfies booking.ReservationStore and is wrapped
// by TicketRepository for booking.TicketStore.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	start := time.Now()
	defer func() {
		observability.DBTxDuration.Observe(time.Since(start).Seconds())
	}()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE")
	if err != nil {
		return err
	}

	err = fn(tx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == SerializationFailureCode {
			return domain.ErrSerializationFailure
		}
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) Get(ctx context.Context, screeningID, seatID int64) (domain.SeatReservation, error) {
	var res domain.SeatReservation
	err := r.pool.QueryRow(ctx, `
		SELECT screening_id, seat_id, state, hold_expiry, version
		FROM seat_reservations WHERE screening_id = $1 AND seat_id = $2
	`, screeningID, seatID).Scan(&res.ScreeningID, &res.SeatID, &res.State, &res.HoldExpiry, &res.Version)
	if err == pgx.ErrNoRows {
		return domain.SeatReservation{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.SeatReservation{}, err
	}
	return res, nil
}

// Save applies a transitioned reservation. The version predicate is the
// optimistic check: the row must still carry the version the transition
// started from.
func (r *Repository) Save(ctx context.Context, res domain.SeatReservation) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE seat_reservations
		SET state = $3, hold_expiry = $4, version = $5
		WHERE screening_id = $1 AND seat_id = $2 AND version = $5 - 1
	`, res.ScreeningID, res.SeatID, res.State, res.HoldExpiry, res.Version)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		if _, gerr := r.Get(ctx, res.ScreeningID, res.SeatID); errors.Is(gerr, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return domain.ErrVersionConflict
	}
	return nil
}

func (r *Repository) ListByScreening(ctx context.Context, screeningID int64) ([]domain.SeatReservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT screening_id, seat_id, state, hold_expiry, version
		FROM seat_reservations WHERE screening_id = $1 ORDER BY seat_id ASC
	`, screeningID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

func (r *Repository) ListExpired(ctx context.Context, now time.Time) ([]domain.SeatReservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT screening_id, seat_id, state, hold_expiry, version
		FROM seat_reservations
		WHERE state = 'HELD' AND hold_expiry <= $1
		ORDER BY screening_id ASC, seat_id ASC
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

func (r *Repository) DeleteAllByScreening(ctx context.Context, screeningID int64) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM seat_reservations WHERE screening_id = $1`, screeningID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM seats WHERE screening_id = $1`, screeningID)
		return err
	})
}

func (r *Repository) InitScreening(ctx context.Context, screeningID int64, seats []domain.Seat) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		for _, seat := range seats {
			_, err := tx.Exec(ctx, `
				INSERT INTO seats (screening_id, seat_id, hall_number, row_number, seat_number, display_name)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, screeningID, seat.ID, seat.HallNumber, seat.Row, seat.Number, seat.DisplayName)
			if err != nil {
				return err
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO seat_reservations (screening_id, seat_id, state, hold_expiry, version)
				VALUES ($1, $2, 'AVAILABLE', NULL, 0)
			`, screeningID, seat.ID)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) ListSeats(ctx context.Context, screeningID int64) ([]domain.Seat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT seat_id, hall_number, row_number, seat_number, display_name
		FROM seats WHERE screening_id = $1 ORDER BY seat_id ASC
	`, screeningID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seats []domain.Seat
	for rows.Next() {
		var s domain.Seat
		if err := rows.Scan(&s.ID, &s.HallNumber, &s.Row, &s.Number, &s.DisplayName); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

func scanReservations(rows pgx.Rows) ([]domain.SeatReservation, error) {
	var out []domain.SeatReservation
	for rows.Next() {
		var res domain.SeatReservation
		if err := rows.Scan(&res.ScreeningID, &res.SeatID, &res.State, &res.HoldExpiry, &res.Version); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// TicketRepository exposes the tickets table as booking.TicketStore.
type TicketRepository struct {
	repo *Repository
}

func NewTicketRepository(repo *Repository) *TicketRepository {
	return &TicketRepository{repo: repo}
}

func (t *TicketRepository) Save(ctx context.Context, tk domain.Ticket) error {
	_, err := t.repo.pool.Exec(ctx, `
		INSERT INTO tickets (id, user_id, screening_id, seat_id, purchase_time, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, tk.ID, tk.UserID, tk.ScreeningID, tk.SeatID, tk.PurchaseTime, tk.Status)
	return err
}

func (t *TicketRepository) Get(ctx context.Context, id uuid.UUID) (domain.Ticket, error) {
	var tk domain.Ticket
	err := t.repo.pool.QueryRow(ctx, `
		SELECT id, user_id, screening_id, seat_id, purchase_time, status
		FROM tickets WHERE id = $1
	`, id).Scan(&tk.ID, &tk.UserID, &tk.ScreeningID, &tk.SeatID, &tk.PurchaseTime, &tk.Status)
	if err == pgx.ErrNoRows {
		return domain.Ticket{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Ticket{}, err
	}
	return tk, nil
}

func (t *TicketRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TicketStatus) error {
	result, err := t.repo.pool.Exec(ctx, `
		UPDATE tickets SET status = $2 WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *TicketRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Ticket, error) {
	return t.listTickets(ctx, `
		SELECT id, user_id, screening_id, seat_id, purchase_time, status
		FROM tickets WHERE user_id = $1 ORDER BY purchase_time DESC
	`, userID)
}

func (t *TicketRepository) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]domain.Ticket, error) {
	return t.listTickets(ctx, `
		SELECT id, user_id, screening_id, seat_id, purchase_time, status
		FROM tickets WHERE user_id = $1 AND status = 'ACTIVE' ORDER BY purchase_time DESC
	`, userID)
}

func (t *TicketRepository) listTickets(ctx context.Context, query string, userID uuid.UUID) ([]domain.Ticket, error) {
	rows, err := t.repo.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		var tk domain.Ticket
		if err := rows.Scan(&tk.ID, &tk.UserID, &tk.ScreeningID, &tk.SeatID, &tk.PurchaseTime, &tk.Status); err != nil {
			return nil, err
		}
		tickets = append(tickets, tk)
	}
	return tickets, rows.Err()
}
