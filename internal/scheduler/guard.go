package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrBusy is returned when a report run is already in progress.
var ErrBusy = errors.New("report run already in progress")

// DistributedLock extends the guard across processes. TryLock reports
// acquired=false without error when another holder owns the lock.
type DistributedLock interface {
	TryLock(ctx context.Context) (release func(context.Context) error, acquired bool, err error)
}

// Guard admits at most one report run at a time.
type Guard struct {
	running atomic.Bool
	lock    DistributedLock
	onError func(error)
}

// NewGuard builds a guard. lock may be nil for single-instance deployments.
func NewGuard(lock DistributedLock) *Guard {
	return &Guard{lock: lock}
}

// TryAcquire claims the guard or returns ErrBusy. The returned release func
// must be called exactly once.
func (g *Guard) TryAcquire(ctx context.Context) (func(), error) {
	if !g.running.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	if g.lock == nil {
		return func() { g.running.Store(false) }, nil
	}

	unlock, acquired, err := g.lock.TryLock(ctx)
	if err != nil {
		g.running.Store(false)
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !acquired {
		g.running.Store(false)
		return nil, ErrBusy
	}

	return func() {
		// The local flag is cleared even when the remote unlock fails; the
		// lease TTL reclaims the remote side.
		if err := unlock(context.WithoutCancel(ctx)); err != nil && g.onError != nil {
			g.onError(err)
		}
		g.running.Store(false)
	}, nil
}

// Running reports whether a run currently holds the guard.
func (g *Guard) Running() bool {
	return g.running.Load()
}
