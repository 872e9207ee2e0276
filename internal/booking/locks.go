package booking

import (
	"context"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/filmhaus/movie-ticket-booking/internal/domain"
	"github.com/filmhaus/movie-ticket-booking/internal/observability"
)

// SeatLockTable serializes all state transitions on a (screening, seat)
// key. It uses a fixed number of partitions keyed by a hash of the pair,
// trading a small amount of false contention for bounded memory instead
// of a per-key map that grows without limit.
type SeatLockTable struct {
	parts   []chan struct{}
	timeout time.Duration
}

func NewSeatLockTable(partitions int, timeout time.Duration) *SeatLockTable {
	if partitions <= 0 {
		partitions = 512
	}
	parts := make([]chan struct{}, partitions)
	for i := range parts {
		parts[i] = make(chan struct{}, 1)
	}
	return &SeatLockTable{parts: parts, timeout: timeout}
}

// Acquire blocks the calling goroutine until the key's partition lock is
// obtained, the per-acquisition timeout elapses (domain.ErrLockTimeout),
// or ctx is canceled (domain.ErrInterrupted). The returned func releases
// the lock and must be called exactly once.
func (t *SeatLockTable) Acquire(ctx context.Context, screeningID, seatID int64) (func(), error) {
	p := t.parts[t.partition(screeningID, seatID)]

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	select {
	case p <- struct{}{}:
		return func() { <-p }, nil
	case <-timer.C:
		observability.LockTimeouts.Inc()
		return nil, domain.ErrLockTimeout
	case <-ctx.Done():
		return nil, domain.ErrInterrupted
	}
}

func (t *SeatLockTable) partition(screeningID, seatID int64) int {
	h := fnv.New64a()
	h.Write([]byte(strconv.FormatInt(screeningID, 10)))
	h.Write([]byte{'-'})
	h.Write([]byte(strconv.FormatInt(seatID, 10)))
	return int(h.Sum64() % uint64(len(t.parts)))
}
