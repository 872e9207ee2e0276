package booking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/filmhaus/movie-ticket-booking/internal/domain"
	"github.com/filmhaus/movie-ticket-booking/internal/observability"
	"github.com/google/uuid"
)

type resKey struct {
	screeningID int64
	seatID      int64
}

// memReservationStore is an in-memory ReservationStore with the same
// optimistic version check the SQL implementation applies.
type memReservationStore struct {
	mu   sync.Mutex
	rows map[resKey]domain.SeatReservation

	saveErr func(ctx context.Context, res domain.SeatReservation) error
}

func newMemReservationStore() *memReservationStore {
	return &memReservationStore{rows: make(map[resKey]domain.SeatReservation)}
}

func (s *memReservationStore) seed(screeningID int64, seatCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 1; i <= seatCount; i++ {
		s.rows[resKey{screeningID, int64(i)}] = domain.NewSeatReservation(screeningID, int64(i))
	}
}

func (s *memReservationStore) setSaveHook(fn func(ctx context.Context, res domain.SeatReservation) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = fn
}

func (s *memReservationStore) Get(ctx context.Context, screeningID, seatID int64) (domain.SeatReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.rows[resKey{screeningID, seatID}]
	if !ok {
		return domain.SeatReservation{}, domain.ErrNotFound
	}
	return res, nil
}

func (s *memReservationStore) Save(ctx context.Context, res domain.SeatReservation) error {
	s.mu.Lock()
	hook := s.saveErr
	s.mu.Unlock()
	if hook != nil {
		if err := hook(ctx, res); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := resKey{res.ScreeningID, res.SeatID}
	cur, ok := s.rows[key]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version != res.Version-1 {
		return domain.ErrVersionConflict
	}
	s.rows[key] = res
	return nil
}

func (s *memReservationStore) ListByScreening(ctx context.Context, screeningID int64) ([]domain.SeatReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SeatReservation
	for key, res := range s.rows {
		if key.screeningID == screeningID {
			out = append(out, res)
		}
	}
	return out, nil
}

func (s *memReservationStore) ListExpired(ctx context.Context, now time.Time) ([]domain.SeatReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SeatReservation
	for _, res := range s.rows {
		if res.State == domain.SeatHeld && res.HoldExpiry != nil && !now.Before(*res.HoldExpiry) {
			out = append(out, res)
		}
	}
	return out, nil
}

func (s *memReservationStore) DeleteAllByScreening(ctx context.Context, screeningID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.rows {
		if key.screeningID == screeningID {
			delete(s.rows, key)
		}
	}
	return nil
}

func (s *memReservationStore) InitScreening(ctx context.Context, screeningID int64, seats []domain.Seat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seat := range seats {
		s.rows[resKey{screeningID, seat.ID}] = domain.NewSeatReservation(screeningID, seat.ID)
	}
	return nil
}

func (s *memReservationStore) state(screeningID, seatID int64) domain.ReservationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[resKey{screeningID, seatID}].State
}

type memTicketStore struct {
	mu      sync.Mutex
	tickets map[uuid.UUID]domain.Ticket

	saveErr func(t domain.Ticket) error
}

func newMemTicketStore() *memTicketStore {
	return &memTicketStore{tickets: make(map[uuid.UUID]domain.Ticket)}
}

func (s *memTicketStore) Save(ctx context.Context, t domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		if err := s.saveErr(t); err != nil {
			return err
		}
	}
	s.tickets[t.ID] = t
	return nil
}

func (s *memTicketStore) Get(ctx context.Context, id uuid.UUID) (domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return domain.Ticket{}, domain.ErrNotFound
	}
	return t, nil
}

func (s *memTicketStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TicketStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Status = status
	s.tickets[id] = t
	return nil
}

func (s *memTicketStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Ticket
	for _, t := range s.tickets {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memTicketStore) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Ticket
	for _, t := range s.tickets {
		if t.UserID == userID && t.Status == domain.TicketActive {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memTicketStore) byStatus(status domain.TicketStatus) []domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Ticket
	for _, t := range s.tickets {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

type memCatalog struct {
	screenings map[int64]domain.Screening
}

func (c *memCatalog) GetScreening(ctx context.Context, id int64) (domain.Screening, error) {
	s, ok := c.screenings[id]
	if !ok {
		return domain.Screening{}, domain.ErrNotFound
	}
	return s, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) PublishJSON(ctx context.Context, routingKey string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, routingKey)
	return nil
}

func (p *recordingPublisher) count(routingKey string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e == routingKey {
			n++
		}
	}
	return n
}

type nopLogger struct{}

func (nopLogger) Info(args ...interface{})  {}
func (nopLogger) Error(args ...interface{}) {}
func (nopLogger) Debug(args ...interface{}) {}
func (nopLogger) Warn(args ...interface{})  {}

func (l nopLogger) WithField(key string, value interface{}) observability.Logger { return l }
func (l nopLogger) WithError(err error) observability.Logger                     { return l }

var errBoom = fmt.Errorf("induced failure")
