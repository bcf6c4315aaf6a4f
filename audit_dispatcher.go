package goSala

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// auditDispatcher moves audit events off the calling goroutine. Events raised
// by a caller (Login, Logout, a rejected replay) go through Emit and follow
// DropIfFull. Events raised inside a refresh cycle go through Offer, which
// never waits longer than DetachedWait: the cycle releases its waiters only
// after settling, so the sink must not be able to hold them.
type auditDispatcher struct {
	sink         AuditSink
	dropIfFull   bool
	detachedWait time.Duration

	queue   chan AuditEvent
	quit    chan struct{}
	drained chan struct{}
	closing atomic.Bool
	once    sync.Once

	dropped atomic.Uint64
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		sink:         sink,
		dropIfFull:   cfg.DropIfFull,
		detachedWait: max(cfg.DetachedWait, 0),
		queue:        make(chan AuditEvent, max(cfg.BufferSize, 1)),
		quit:         make(chan struct{}),
		drained:      make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *auditDispatcher) loop() {
	defer close(d.drained)
	for {
		select {
		case ev := <-d.queue:
			d.sink.Emit(context.Background(), ev)
		case <-d.quit:
			// Flush what was queued before Close.
			for {
				select {
				case ev := <-d.queue:
					d.sink.Emit(context.Background(), ev)
				default:
					return
				}
			}
		}
	}
}

// Emit queues ev for the sink. With DropIfFull a full buffer drops the event;
// otherwise Emit waits for room until ctx ends, which also counts as a drop.
func (d *auditDispatcher) Emit(ctx context.Context, ev AuditEvent) {
	if d == nil || d.closing.Load() {
		return
	}
	ev = stampAudit(ev)
	if d.dropIfFull {
		d.enqueue(ev, 0)
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case d.queue <- ev:
	case <-d.quit:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

// Offer queues ev without blocking the caller for more than DetachedWait.
// It reports whether the event was queued.
func (d *auditDispatcher) Offer(ev AuditEvent) bool {
	if d == nil || d.closing.Load() {
		return false
	}
	return d.enqueue(stampAudit(ev), d.detachedWait)
}

func (d *auditDispatcher) enqueue(ev AuditEvent, wait time.Duration) bool {
	select {
	case d.queue <- ev:
		return true
	case <-d.quit:
		return false
	default:
	}

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case d.queue <- ev:
			return true
		case <-d.quit:
			return false
		case <-timer.C:
		}
	}
	d.dropped.Add(1)
	return false
}

// Close stops accepting events, flushes the buffer into the sink and waits
// for the worker. It is safe to call more than once.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.closing.Store(true)
		close(d.quit)
		<-d.drained
	})
}

// Dropped counts events lost to a full buffer or an expired wait.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func stampAudit(ev AuditEvent) AuditEvent {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return ev
}
