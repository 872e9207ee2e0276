package domain

import "time"

type ReservationState string

const (
	SeatAvailable ReservationState = "AVAILABLE"
	SeatHeld      ReservationState = "HELD"
	SeatConfirmed ReservationState = "CONFIRMED"
)

// SeatReservation is the per-(screening, seat) lifecycle record. Version
// increments on every transition and backs the store's optimistic
// concurrency check; callers must additionally serialize transitions
// through the seat lock table.
type SeatReservation struct {
	ScreeningID int64
	SeatID      int64
	State       ReservationState
	HoldExpiry  *time.Time
	Version     int64
}

func NewSeatReservation(screeningID, seatID int64) SeatReservation {
	return SeatReservation{ScreeningID: screeningID, SeatID: seatID, State: SeatAvailable}
}

// Hold transitions AVAILABLE (or HELD past expiry) to HELD with a fresh
// expiry of now+ttl.
func (r *SeatReservation) Hold(now time.Time, ttl time.Duration) error {
	switch r.State {
	case SeatConfirmed:
		return ErrAlreadyConfirmed
	case SeatHeld:
		if r.HoldExpiry == nil || now.Before(*r.HoldExpiry) {
			return ErrAlreadyHeld
		}
	}
	expiry := now.Add(ttl)
	r.State = SeatHeld
	r.HoldExpiry = &expiry
	r.Version++
	return nil
}

// Confirm transitions HELD to CONFIRMED. Expiry is deliberately not
// re-checked here: confirm and expiry run under the same seat lock, so
// whichever acquires it first wins.
func (r *SeatReservation) Confirm() error {
	switch r.State {
	case SeatAvailable:
		return ErrNotHeld
	case SeatConfirmed:
		return ErrAlreadyConfirmed
	}
	r.State = SeatConfirmed
	r.HoldExpiry = nil
	r.Version++
	return nil
}

// Release returns a HELD seat to AVAILABLE. Confirmed seats are released
// only through Cancel.
func (r *SeatReservation) Release() error {
	switch r.State {
	case SeatAvailable:
		return ErrNotHeld
	case SeatConfirmed:
		return ErrImmutable
	}
	r.State = SeatAvailable
	r.HoldExpiry = nil
	r.Version++
	return nil
}

// ExpireIfStale reclaims a HELD seat whose expiry has passed. It reports
// whether the seat was reclaimed and is a no-op in every other state.
func (r *SeatReservation) ExpireIfStale(now time.Time) bool {
	if r.State != SeatHeld || r.HoldExpiry == nil || now.Before(*r.HoldExpiry) {
		return false
	}
	r.State = SeatAvailable
	r.HoldExpiry = nil
	r.Version++
	return true
}

// Cancel returns a CONFIRMED seat to AVAILABLE when its ticket is canceled.
func (r *SeatReservation) Cancel() error {
	if r.State != SeatConfirmed {
		return ErrNotHeld
	}
	r.State = SeatAvailable
	r.HoldExpiry = nil
	r.Version++
	return nil
}
