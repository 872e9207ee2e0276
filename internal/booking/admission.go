package booking

import (
	"context"
	"time"

	"github.com/filmhaus/movie-ticket-booking/internal/domain"
	"github.com/filmhaus/movie-ticket-booking/internal/observability"
	"golang.org/x/sync/semaphore"
)

// AdmissionGate bounds the number of booking workflows in flight so a
// burst of requests cannot overwhelm the reservation store or the worker
// pool. Workflows that cannot obtain a slot within the timeout fail fast
// instead of queuing unboundedly.
type AdmissionGate struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

func NewAdmissionGate(capacity int, timeout time.Duration) *AdmissionGate {
	if capacity <= 0 {
		capacity = 1
	}
	return &AdmissionGate{sem: semaphore.NewWeighted(int64(capacity)), timeout: timeout}
}

// Admit returns a release func that must be called exactly once on every
// exit path of the workflow. On timeout it returns
// domain.ErrAdmissionRejected.
func (g *AdmissionGate) Admit(ctx context.Context) (func(), error) {
	admitCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.sem.Acquire(admitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, domain.ErrInterrupted
		}
		observability.AdmissionRejected.Inc()
		return nil, domain.ErrAdmissionRejected
	}
	return func() { g.sem.Release(1) }, nil
}
