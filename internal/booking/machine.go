package booking

import (
	"context"
	"time"

	"github.com/filmhaus/movie-ticket-booking/internal/clock"
)

// StateMachine applies seat reservation transitions against the durable
// store. Every method assumes the caller holds the seat's lock; the
// store's optimistic version check is the arbiter of last resort if that
// discipline is ever violated.
type StateMachine struct {
	store ReservationStore
	clk   clock.Clock
	ttl   time.Duration
}

func NewStateMachine(store ReservationStore, clk clock.Clock, holdTTL time.Duration) *StateMachine {
	return &StateMachine{store: store, clk: clk, ttl: holdTTL}
}

func (m *StateMachine) Hold(ctx context.Context, screeningID, seatID int64) error {
	res, err := m.store.Get(ctx, screeningID, seatID)
	if err != nil {
		return err
	}
	if err := res.Hold(m.clk.Now(), m.ttl); err != nil {
		return err
	}
	return m.store.Save(ctx, res)
}

func (m *StateMachine) Confirm(ctx context.Context, screeningID, seatID int64) error {
	res, err := m.store.Get(ctx, screeningID, seatID)
	if err != nil {
		return err
	}
	if err := res.Confirm(); err != nil {
		return err
	}
	return m.store.Save(ctx, res)
}

func (m *StateMachine) Release(ctx context.Context, screeningID, seatID int64) error {
	res, err := m.store.Get(ctx, screeningID, seatID)
	if err != nil {
		return err
	}
	if err := res.Release(); err != nil {
		return err
	}
	return m.store.Save(ctx, res)
}

// ExpireIfStale reports whether the seat was reclaimed.
func (m *StateMachine) ExpireIfStale(ctx context.Context, screeningID, seatID int64) (bool, error) {
	res, err := m.store.Get(ctx, screeningID, seatID)
	if err != nil {
		return false, err
	}
	if !res.ExpireIfStale(m.clk.Now()) {
		return false, nil
	}
	if err := m.store.Save(ctx, res); err != nil {
		return false, err
	}
	return true, nil
}

func (m *StateMachine) Cancel(ctx context.Context, screeningID, seatID int64) error {
	res, err := m.store.Get(ctx, screeningID, seatID)
	if err != nil {
		return err
	}
	if err := res.Cancel(); err != nil {
		return err
	}
	return m.store.Save(ctx, res)
}
