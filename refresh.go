package goSala

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

type refreshState uint8

const (
	refreshIdle refreshState = iota
	refreshRunning
)

// Coordinator states as reported by Client.RefreshState.
const (
	RefreshStateIdle       = "IDLE"
	RefreshStateRefreshing = "REFRESHING"
)

func (s refreshState) String() string {
	if s == refreshRunning {
		return RefreshStateRefreshing
	}
	return RefreshStateIdle
}

// refreshCoordinator makes sure concurrent 401s produce a single refresh
// call. Callers queue in arrival order; the queue is drained exactly once
// per cycle and every waiter receives the same outcome.
type refreshCoordinator struct {
	timeout time.Duration
	run     func(ctx context.Context) error
	// settle runs after the outcome is known and before any waiter is
	// released, so side effects such as the logout broadcast are visible to
	// every caller that observes the error.
	settle func(err error, queued int)

	mu     sync.Mutex
	state  refreshState
	queue  []chan error
	cycles uint64
}

func newRefreshCoordinator(timeout time.Duration, run func(context.Context) error, settle func(error, int)) *refreshCoordinator {
	return &refreshCoordinator{
		timeout: timeout,
		run:     run,
		settle:  settle,
	}
}

// await joins the current cycle, starting one when idle, and blocks until
// the cycle settles or ctx ends. Leaving early does not cancel the cycle.
func (r *refreshCoordinator) await(ctx context.Context) error {
	done := make(chan error, 1)

	r.mu.Lock()
	r.queue = append(r.queue, done)
	start := r.state == refreshIdle
	if start {
		r.state = refreshRunning
		r.cycles++
	}
	r.mu.Unlock()

	if start {
		go r.cycle(context.WithoutCancel(ctx))
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *refreshCoordinator) cycle(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, r.timeout)
	err := r.run(ctx)
	timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded)
	cancel()

	switch {
	case err == nil:
	case timedOut:
		err = fmt.Errorf("%w: %w", ErrRefreshFailed, ErrRefreshTimeout)
	case !errors.Is(err, ErrRefreshFailed):
		err = fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	r.mu.Lock()
	queue := r.queue
	r.queue = nil
	r.state = refreshIdle
	r.mu.Unlock()

	if r.settle != nil {
		r.settle(err, len(queue))
	}
	for _, ch := range queue {
		ch <- err
	}
}

func (r *refreshCoordinator) snapshot() (refreshState, int, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, len(r.queue), r.cycles
}
