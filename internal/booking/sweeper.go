package booking

import (
	"context"
	"time"

	"github.com/filmhaus/movie-ticket-booking/internal/clock"
	"github.com/filmhaus/movie-ticket-booking/internal/domain"
	"github.com/filmhaus/movie-ticket-booking/internal/observability"
	"golang.org/x/sync/errgroup"
)

// Sweeper reclaims HELD reservations whose hold expired without being
// confirmed. It is the only mechanism that recovers seats abandoned
// mid-checkout; the orchestrator's rollback only covers failures visible
// within a single call.
type Sweeper struct {
	store   ReservationStore
	machine *StateMachine
	locks   *SeatLockTable
	cache   SeatCache
	events  EventPublisher
	log     observability.Logger
	clk     clock.Clock
}

func NewSweeper(store ReservationStore, machine *StateMachine, locks *SeatLockTable, cache SeatCache, events EventPublisher, log observability.Logger, clk clock.Clock) *Sweeper {
	return &Sweeper{store: store, machine: machine, locks: locks, cache: cache, events: events, log: log, clk: clk}
}

// Run sweeps on a fixed interval until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reclaimed, err := s.Sweep(ctx)
			if err != nil {
				s.log.WithError(err).Error("sweep failed")
				continue
			}
			if reclaimed > 0 {
				s.log.WithField("reclaimed", reclaimed).Info("reclaimed expired holds")
			}
		}
	}
}

// Sweep reclaims every expired hold across all screenings, each seat
// under its own lock. Individual failures are retried with backoff and
// do not stop the pass.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	expired, err := s.store.ListExpired(ctx, s.clk.Now())
	if err != nil {
		return 0, err
	}

	var reclaimed int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	results := make([]bool, len(expired))
	for i, res := range expired {
		i, res := i, res
		g.Go(func() error {
			ok, err := s.reclaimWithRetry(gctx, res)
			if err != nil {
				s.log.WithError(err).
					WithField("screening_id", res.ScreeningID).
					WithField("seat_id", res.SeatID).
					Error("failed to reclaim expired hold after retries")
				return nil
			}
			results[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(reclaimed), err
	}

	touched := make(map[int64]bool)
	for i, ok := range results {
		if ok {
			reclaimed++
			touched[expired[i].ScreeningID] = true
		}
	}
	for screeningID := range touched {
		if s.cache != nil {
			if err := s.cache.Invalidate(ctx, screeningID); err != nil {
				s.log.WithError(err).Warn("failed to invalidate seat cache")
			}
		}
	}
	if reclaimed > 0 {
		observability.SeatsReclaimed.Add(float64(reclaimed))
	}
	return int(reclaimed), nil
}

func (s *Sweeper) reclaimWithRetry(ctx context.Context, res domain.SeatReservation) (bool, error) {
	const maxRetries = 3
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		stale, err := s.reclaim(ctx, res)
		if err == nil {
			if stale && s.events != nil {
				payload := map[string]interface{}{
					"screening_id": res.ScreeningID,
					"seat_id":      res.SeatID,
				}
				if perr := s.events.PublishJSON(ctx, "hold.expired", payload); perr != nil {
					s.log.WithError(perr).Warn("failed to publish hold.expired")
				}
			}
			return stale, nil
		}
		lastErr = err

		backoff := time.Duration(1<<attempt) * time.Second
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return false, lastErr
}

func (s *Sweeper) reclaim(ctx context.Context, res domain.SeatReservation) (bool, error) {
	unlock, err := s.locks.Acquire(ctx, res.ScreeningID, res.SeatID)
	if err != nil {
		return false, err
	}
	defer unlock()
	return s.machine.ExpireIfStale(ctx, res.ScreeningID, res.SeatID)
}
