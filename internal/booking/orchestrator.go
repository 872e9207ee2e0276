package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/filmhaus/movie-ticket-booking/internal/clock"
	"github.com/filmhaus/movie-ticket-booking/internal/domain"
	"github.com/filmhaus/movie-ticket-booking/internal/observability"
	"github.com/google/uuid"
)

// Orchestrator drives the two-phase booking workflow: reserve seats into
// HELD, then confirm them into tickets after payment. Each phase is
// all-or-nothing; a failure part-way compensates every step already
// applied. Workflows run on a bounded worker pool and callers receive a
// future; an abandoned future does not cancel the running workflow, the
// expiry sweeper reclaims anything it leaves behind.
type Orchestrator struct {
	locks    *SeatLockTable
	gate     *AdmissionGate
	machine  *StateMachine
	store    ReservationStore
	tickets  TicketStore
	catalog  Catalog
	cache    SeatCache
	events   EventPublisher
	auditor  Auditor
	log      observability.Logger
	clk      clock.Clock
	deadline time.Duration

	tasks  chan task
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

type task struct {
	run    func(ctx context.Context) domain.BookingResult
	result chan domain.BookingResult
}

type OrchestratorConfig struct {
	Workers        int
	BookingTimeout time.Duration
}

func NewOrchestrator(
	locks *SeatLockTable,
	gate *AdmissionGate,
	machine *StateMachine,
	store ReservationStore,
	tickets TicketStore,
	catalog Catalog,
	cache SeatCache,
	events EventPublisher,
	auditor Auditor,
	log observability.Logger,
	clk clock.Clock,
	cfg OrchestratorConfig,
) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BookingTimeout <= 0 {
		cfg.BookingTimeout = 15 * time.Second
	}
	o := &Orchestrator{
		locks:    locks,
		gate:     gate,
		machine:  machine,
		store:    store,
		tickets:  tickets,
		catalog:  catalog,
		cache:    cache,
		events:   events,
		auditor:  auditor,
		log:      log,
		clk:      clk,
		deadline: cfg.BookingTimeout,
		tasks:    make(chan task, 4*cfg.Workers),
	}
	o.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go o.worker()
	}
	return o
}

func (o *Orchestrator) worker() {
	defer o.wg.Done()
	for t := range o.tasks {
		// Workflows run detached from the caller's context so that an
		// abandoned caller never cancels a half-applied transition
		// mid-flight, but each gets its own deadline: a hung store
		// write must release the worker, not wedge the pool.
		ctx, cancel := context.WithTimeout(context.Background(), o.deadline)
		t.result <- t.run(ctx)
		cancel()
	}
}

// Close stops intake and drains in-flight workflows.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	close(o.tasks)
	o.mu.Unlock()
	o.wg.Wait()
}

func (o *Orchestrator) submit(run func(ctx context.Context) domain.BookingResult) <-chan domain.BookingResult {
	result := make(chan domain.BookingResult, 1)
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		result <- domain.Failure("booking system is shutting down")
		return result
	}
	o.tasks <- task{run: run, result: result}
	o.mu.Unlock()
	return result
}

// await bounds the caller's wait on a workflow future. On timeout the
// workflow keeps running under the hood, including its own rollback path.
func (o *Orchestrator) await(ctx context.Context, future <-chan domain.BookingResult) domain.BookingResult {
	timer := time.NewTimer(o.deadline)
	defer timer.Stop()

	select {
	case res := <-future:
		return res
	case <-timer.C:
		return domain.Failure("booking timed out, any held seats will expire automatically")
	case <-ctx.Done():
		return domain.Failure("booking interrupted")
	}
}

// ReserveSeatsAsync submits phase A of the booking workflow and returns
// a future with its result.
func (o *Orchestrator) ReserveSeatsAsync(screeningID int64, seatIDs []int64, userID uuid.UUID) <-chan domain.BookingResult {
	return o.submit(func(ctx context.Context) domain.BookingResult {
		return o.reserveSeats(ctx, screeningID, seatIDs, userID)
	})
}

func (o *Orchestrator) ReserveSeats(ctx context.Context, screeningID int64, seatIDs []int64, userID uuid.UUID) domain.BookingResult {
	return o.await(ctx, o.ReserveSeatsAsync(screeningID, seatIDs, userID))
}

// ConfirmBookingAsync submits phase B: confirm held seats into tickets.
// Invoked after payment has succeeded externally.
func (o *Orchestrator) ConfirmBookingAsync(screeningID int64, seatIDs []int64, userID uuid.UUID) <-chan domain.BookingResult {
	return o.submit(func(ctx context.Context) domain.BookingResult {
		return o.confirmBooking(ctx, screeningID, seatIDs, userID)
	})
}

func (o *Orchestrator) ConfirmBooking(ctx context.Context, screeningID int64, seatIDs []int64, userID uuid.UUID) domain.BookingResult {
	return o.await(ctx, o.ConfirmBookingAsync(screeningID, seatIDs, userID))
}

func (o *Orchestrator) reserveSeats(ctx context.Context, screeningID int64, seatIDs []int64, userID uuid.UUID) domain.BookingResult {
	if len(seatIDs) == 0 {
		return domain.Failure("no seats requested")
	}

	if _, err := o.catalog.GetScreening(ctx, screeningID); err != nil {
		return domain.Failure("screening not found")
	}

	release, err := o.gate.Admit(ctx)
	if err != nil {
		observability.BookingsTotal.WithLabelValues("reserve", "rejected").Inc()
		return domain.Failure("system is overloaded, please try again later")
	}
	defer release()

	// Ascending seat order keeps lock acquisition deterministic across
	// workflows, so overlapping requests cannot deadlock.
	seats := sortedSeats(seatIDs)

	var held []int64
	for _, seatID := range seats {
		if err := o.withSeatLock(ctx, screeningID, seatID, func() error {
			return o.machine.Hold(ctx, screeningID, seatID)
		}); err != nil {
			o.rollbackHolds(ctx, screeningID, held)
			o.invalidate(ctx, screeningID)
			observability.BookingsTotal.WithLabelValues("reserve", "failure").Inc()
			return domain.Failure(unavailableMessage(seatID, err))
		}
		held = append(held, seatID)
	}

	o.invalidate(ctx, screeningID)
	o.audit(ctx, "seats.held", map[string]interface{}{
		"screening_id": screeningID,
		"seats":        seats,
		"user_id":      userID,
	})
	observability.BookingsTotal.WithLabelValues("reserve", "success").Inc()
	return domain.HeldSeats(seats)
}

func (o *Orchestrator) confirmBooking(ctx context.Context, screeningID int64, seatIDs []int64, userID uuid.UUID) domain.BookingResult {
	if len(seatIDs) == 0 {
		return domain.Failure("no seats requested")
	}

	seats := sortedSeats(seatIDs)

	var tickets []domain.Ticket
	for _, seatID := range seats {
		ticket := domain.NewTicket(userID, screeningID, seatID, o.clk.Now())
		err := o.withSeatLock(ctx, screeningID, seatID, func() error {
			if err := o.machine.Confirm(ctx, screeningID, seatID); err != nil {
				return err
			}
			if err := o.tickets.Save(ctx, ticket); err != nil {
				// The seat is CONFIRMED but has no ticket; pull it back
				// before reporting failure.
				if cerr := o.machine.Cancel(ctx, screeningID, seatID); cerr != nil {
					o.log.WithError(cerr).WithField("seat_id", seatID).Error("failed to revert confirm without ticket")
				}
				return err
			}
			return nil
		})
		if err != nil {
			// Seats after the failure point are deliberately left
			// untouched; phase A's holds on them expire on their own.
			o.rollbackTickets(ctx, screeningID, tickets)
			o.invalidate(ctx, screeningID)
			observability.BookingsTotal.WithLabelValues("confirm", "failure").Inc()
			return domain.Failure(unavailableMessage(seatID, err))
		}
		tickets = append(tickets, ticket)
	}

	o.invalidate(ctx, screeningID)
	o.publish(ctx, "booking.confirmed", map[string]interface{}{
		"screening_id": screeningID,
		"user_id":      userID,
		"seats":        seats,
		"tickets":      ticketIDs(tickets),
	})
	o.audit(ctx, "booking.confirmed", map[string]interface{}{
		"screening_id": screeningID,
		"seats":        seats,
		"user_id":      userID,
	})
	observability.TicketsIssued.Add(float64(len(tickets)))
	observability.BookingsTotal.WithLabelValues("confirm", "success").Inc()
	return domain.Booked(tickets)
}

// CancelTicket verifies ownership, cancels the ticket, and returns its
// seat to AVAILABLE. Single seat, single step: no rollback needed.
func (o *Orchestrator) CancelTicket(ctx context.Context, ticketID, userID uuid.UUID) error {
	ticket, err := o.tickets.Get(ctx, ticketID)
	if err != nil {
		return err
	}
	if ticket.UserID != userID {
		return domain.ErrNotFound
	}
	if ticket.Status != domain.TicketActive {
		return fmt.Errorf("ticket %s is not active: %w", ticketID, domain.ErrInvalidInput)
	}

	if err := o.tickets.UpdateStatus(ctx, ticketID, domain.TicketCanceled); err != nil {
		return err
	}

	if err := o.withSeatLock(ctx, ticket.ScreeningID, ticket.SeatID, func() error {
		return o.machine.Cancel(ctx, ticket.ScreeningID, ticket.SeatID)
	}); err != nil {
		// The ticket is canceled but the seat stayed CONFIRMED; log the
		// inconsistency for reconciliation instead of masking the cancel.
		o.log.WithError(err).
			WithField("ticket_id", ticketID).
			WithField("seat_id", ticket.SeatID).
			Error("ticket canceled but seat not released")
	}

	o.invalidate(ctx, ticket.ScreeningID)
	o.publish(ctx, "ticket.canceled", map[string]interface{}{
		"ticket_id":    ticketID,
		"screening_id": ticket.ScreeningID,
		"seat_id":      ticket.SeatID,
	})
	observability.TicketsCanceled.Inc()
	return nil
}

// ListAvailableSeats reads the available-seats view for a screening,
// lazily reclaiming any expired holds first.
func (o *Orchestrator) ListAvailableSeats(ctx context.Context, screeningID int64) ([]domain.SeatReservation, error) {
	if _, err := o.catalog.GetScreening(ctx, screeningID); err != nil {
		return nil, domain.ErrNotFound
	}

	if o.cache != nil {
		if seats, ok, err := o.cache.GetSeats(ctx, screeningID); err == nil && ok {
			return seats, nil
		}
	}

	if _, err := o.SweepScreening(ctx, screeningID); err != nil {
		return nil, err
	}

	all, err := o.store.ListByScreening(ctx, screeningID)
	if err != nil {
		return nil, err
	}
	available := make([]domain.SeatReservation, 0, len(all))
	for _, res := range all {
		if res.State == domain.SeatAvailable {
			available = append(available, res)
		}
	}

	if o.cache != nil {
		if err := o.cache.SetSeats(ctx, screeningID, available); err != nil {
			o.log.WithError(err).Warn("failed to cache available seats")
		}
	}
	return available, nil
}

// SweepScreening reclaims expired holds for one screening, each under its
// seat lock. It returns the number of seats reclaimed.
func (o *Orchestrator) SweepScreening(ctx context.Context, screeningID int64) (int, error) {
	all, err := o.store.ListByScreening(ctx, screeningID)
	if err != nil {
		return 0, err
	}
	now := o.clk.Now()
	reclaimed := 0
	for _, res := range all {
		if res.State != domain.SeatHeld || res.HoldExpiry == nil || now.Before(*res.HoldExpiry) {
			continue
		}
		seatID := res.SeatID
		err := o.withSeatLock(ctx, screeningID, seatID, func() error {
			stale, err := o.machine.ExpireIfStale(ctx, screeningID, seatID)
			if stale {
				reclaimed++
			}
			return err
		})
		if err != nil {
			o.log.WithError(err).WithField("seat_id", seatID).Warn("failed to reclaim expired hold")
		}
	}
	if reclaimed > 0 {
		observability.SeatsReclaimed.Add(float64(reclaimed))
		o.invalidate(ctx, screeningID)
	}
	return reclaimed, nil
}

func (o *Orchestrator) ListUserTickets(ctx context.Context, userID uuid.UUID) ([]domain.Ticket, error) {
	return o.tickets.ListByUser(ctx, userID)
}

func (o *Orchestrator) ListUserActiveTickets(ctx context.Context, userID uuid.UUID) ([]domain.Ticket, error) {
	return o.tickets.ListActiveByUser(ctx, userID)
}

func (o *Orchestrator) withSeatLock(ctx context.Context, screeningID, seatID int64, fn func() error) error {
	unlock, err := o.locks.Acquire(ctx, screeningID, seatID)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

// rollbackHolds is the compensation for phase A: every seat held so far
// in this workflow goes back to AVAILABLE, each under its own lock.
// Failures are logged and never mask the primary failure.
func (o *Orchestrator) rollbackHolds(ctx context.Context, screeningID int64, held []int64) {
	for _, seatID := range held {
		if err := o.withSeatLock(ctx, screeningID, seatID, func() error {
			return o.machine.Release(ctx, screeningID, seatID)
		}); err != nil {
			o.log.WithError(err).
				WithField("screening_id", screeningID).
				WithField("seat_id", seatID).
				Error("failed to roll back held seat")
		}
	}
}

// rollbackTickets is the compensation for phase B: every ticket created
// in this call is canceled and its seat returned to AVAILABLE.
func (o *Orchestrator) rollbackTickets(ctx context.Context, screeningID int64, tickets []domain.Ticket) {
	for _, ticket := range tickets {
		if err := o.tickets.UpdateStatus(ctx, ticket.ID, domain.TicketCanceled); err != nil {
			o.log.WithError(err).WithField("ticket_id", ticket.ID).Error("failed to cancel ticket during rollback")
		}
		if err := o.withSeatLock(ctx, screeningID, ticket.SeatID, func() error {
			return o.machine.Cancel(ctx, screeningID, ticket.SeatID)
		}); err != nil {
			o.log.WithError(err).WithField("seat_id", ticket.SeatID).Error("failed to release seat during rollback")
		}
	}
}

func (o *Orchestrator) invalidate(ctx context.Context, screeningID int64) {
	if o.cache == nil {
		return
	}
	if err := o.cache.Invalidate(ctx, screeningID); err != nil {
		o.log.WithError(err).Warn("failed to invalidate seat cache")
	}
}

func (o *Orchestrator) audit(ctx context.Context, action string, data map[string]interface{}) {
	if o.auditor == nil {
		return
	}
	if err := o.auditor.Record(ctx, action, data); err != nil {
		o.log.WithError(err).WithField("action", action).Warn("failed to write audit record")
	}
}

func (o *Orchestrator) publish(ctx context.Context, key string, payload map[string]interface{}) {
	if o.events == nil {
		return
	}
	if err := o.events.PublishJSON(ctx, key, payload); err != nil {
		o.log.WithError(err).WithField("event", key).Warn("failed to publish event")
	}
}

// sortedSeats normalizes a seat request: ascending order for the lock
// discipline, duplicates dropped so a repeated seat ID does not trip
// over its own hold.
func sortedSeats(seatIDs []int64) []int64 {
	seats := make([]int64, len(seatIDs))
	copy(seats, seatIDs)
	sort.Slice(seats, func(i, j int) bool { return seats[i] < seats[j] })

	uniq := seats[:0]
	for _, id := range seats {
		if len(uniq) == 0 || id != uniq[len(uniq)-1] {
			uniq = append(uniq, id)
		}
	}
	return uniq
}

func ticketIDs(tickets []domain.Ticket) []uuid.UUID {
	ids := make([]uuid.UUID, len(tickets))
	for i, t := range tickets {
		ids[i] = t.ID
	}
	return ids
}

func unavailableMessage(seatID int64, err error) string {
	switch {
	case errors.Is(err, domain.ErrAlreadyHeld), errors.Is(err, domain.ErrAlreadyConfirmed):
		return fmt.Sprintf("seat %d is no longer available", seatID)
	case errors.Is(err, domain.ErrNotHeld):
		return fmt.Sprintf("hold on seat %d expired, please reserve again", seatID)
	case errors.Is(err, domain.ErrLockTimeout):
		return "seats are contended right now, please try again"
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Sprintf("seat %d does not exist for this screening", seatID)
	default:
		return "booking failed, no seats were taken"
	}
}
