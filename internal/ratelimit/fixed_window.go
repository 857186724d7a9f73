package ratelimit

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/atmet-ai/foundry-facade/internal/observability"
	"github.com/atmet-ai/foundry-facade/internal/ratelimit/store"
)

// minDrainDelay bounds how soon the queue drain timer may fire again.
const minDrainDelay = time.Millisecond

// FixedWindowLimiter implements a fixed window limit for one policy.
//
// Without a store the counter lives in process and is guarded by a mutex,
// so the increment and the comparison against the limit are a single
// step. Requests that find the window exhausted wait in a bounded FIFO
// queue and are admitted, oldest first, when the next window opens.
//
// With a store the counter is shared: the store increments first and the
// post-increment value is compared, so concurrent instances never admit
// past the limit. Queued requests retry when their window ends.
type FixedWindowLimiter struct {
	policy  Policy
	store   store.Store
	logger  observability.Logger
	metrics *Metrics
	now     func() time.Time

	mu          sync.Mutex
	windowStart time.Time
	count       int
	queue       list.List
	timer       *time.Timer
	waiting     int
	closed      bool
}

// waiter is a request parked in the local queue.
type waiter struct {
	ready     chan struct{}
	admitted  bool
	remaining int
}

// FixedWindowOption is a functional option for the limiter.
type FixedWindowOption func(*FixedWindowLimiter)

// WithStore shares window counters through s.
func WithStore(s store.Store) FixedWindowOption {
	return func(l *FixedWindowLimiter) {
		l.store = s
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) FixedWindowOption {
	return func(l *FixedWindowLimiter) {
		l.logger = logger
	}
}

// WithMetrics sets the metrics.
func WithMetrics(metrics *Metrics) FixedWindowOption {
	return func(l *FixedWindowLimiter) {
		l.metrics = metrics
	}
}

// WithClock sets the clock used to place requests in windows.
func WithClock(now func() time.Time) FixedWindowOption {
	return func(l *FixedWindowLimiter) {
		l.now = now
	}
}

// NewFixedWindowLimiter creates a limiter for policy.
func NewFixedWindowLimiter(policy Policy, opts ...FixedWindowOption) (*FixedWindowLimiter, error) {
	if policy.PermitLimit <= 0 {
		return nil, fmt.Errorf("rate limit policy %q: permit limit must be positive", policy.Name)
	}
	if policy.Window <= 0 {
		return nil, fmt.Errorf("rate limit policy %q: window must be positive", policy.Name)
	}
	if policy.QueueLimit < 0 {
		return nil, fmt.Errorf("rate limit policy %q: queue limit must not be negative", policy.Name)
	}

	l := &FixedWindowLimiter{
		policy: policy,
		logger: observability.NopLogger(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.metrics == nil {
		l.metrics = NewMetrics(observability.DefaultNamespace)
	}

	return l, nil
}

// Policy implements Limiter.
func (l *FixedWindowLimiter) Policy() Policy {
	return l.policy
}

// Acquire implements Limiter.
func (l *FixedWindowLimiter) Acquire(ctx context.Context) (*Result, error) {
	if l.store != nil {
		return l.acquireDistributed(ctx)
	}
	return l.acquireLocal(ctx)
}

func (l *FixedWindowLimiter) acquireLocal(ctx context.Context) (*Result, error) {
	l.mu.Lock()
	now := l.now()
	l.advanceLocked(now)
	resetAfter := l.windowStart.Add(l.policy.Window).Sub(now)

	if l.closed {
		l.mu.Unlock()
		l.metrics.RecordDecision(l.policy.Name, OutcomeRejected)
		return l.rejected(resetAfter), nil
	}

	// advanceLocked drains the queue first, so a free permit means nobody is waiting.
	if l.count < l.policy.PermitLimit {
		l.count++
		remaining := l.policy.PermitLimit - l.count
		l.mu.Unlock()

		l.metrics.RecordDecision(l.policy.Name, OutcomeAllowed)
		return &Result{
			Allowed:    true,
			Limit:      l.policy.PermitLimit,
			Remaining:  remaining,
			ResetAfter: resetAfter,
		}, nil
	}

	if l.queue.Len() >= l.policy.QueueLimit {
		l.mu.Unlock()
		l.metrics.RecordDecision(l.policy.Name, OutcomeRejected)
		return l.rejected(resetAfter), nil
	}

	w := &waiter{ready: make(chan struct{})}
	elem := l.queue.PushBack(w)
	depth := l.queue.Len()
	l.armLocked(resetAfter)
	l.mu.Unlock()

	l.metrics.SetQueueDepth(l.policy.Name, depth)
	queuedAt := time.Now()

	select {
	case <-w.ready:
	case <-ctx.Done():
		l.mu.Lock()
		if !w.admitted {
			l.queue.Remove(elem)
			depth = l.queue.Len()
			l.mu.Unlock()

			l.metrics.SetQueueDepth(l.policy.Name, depth)
			l.metrics.RecordDecision(l.policy.Name, OutcomeCancelled)
			return nil, ctx.Err()
		}
		l.mu.Unlock()
	}

	l.metrics.ObserveQueueWait(l.policy.Name, time.Since(queuedAt))

	if !w.admitted {
		// Released by Close.
		l.metrics.RecordDecision(l.policy.Name, OutcomeRejected)
		return l.rejected(l.policy.Window), nil
	}

	l.metrics.RecordDecision(l.policy.Name, OutcomeQueued)
	return &Result{
		Allowed:   true,
		Queued:    true,
		Limit:     l.policy.PermitLimit,
		Remaining: w.remaining,
	}, nil
}

// advanceLocked moves to the window containing now and admits queued
// requests into it in arrival order. l.mu must be held.
func (l *FixedWindowLimiter) advanceLocked(now time.Time) {
	start := windowStart(now, l.policy.Window)
	if start.After(l.windowStart) {
		l.windowStart = start
		l.count = 0
	}

	for l.count < l.policy.PermitLimit && l.queue.Len() > 0 {
		w := l.queue.Remove(l.queue.Front()).(*waiter)
		l.count++
		w.admitted = true
		w.remaining = l.policy.PermitLimit - l.count
		close(w.ready)
	}
}

// armLocked schedules a queue drain after d unless one is pending.
// l.mu must be held.
func (l *FixedWindowLimiter) armLocked(d time.Duration) {
	if l.timer != nil {
		return
	}
	if d < minDrainDelay {
		d = minDrainDelay
	}
	l.timer = time.AfterFunc(d, l.drain)
}

// drain runs when a window ends and admits queued requests.
func (l *FixedWindowLimiter) drain() {
	l.mu.Lock()
	l.timer = nil
	if l.closed {
		l.mu.Unlock()
		return
	}

	now := l.now()
	l.advanceLocked(now)
	if l.queue.Len() > 0 {
		l.armLocked(l.windowStart.Add(l.policy.Window).Sub(now))
	}
	depth := l.queue.Len()
	l.mu.Unlock()

	l.metrics.SetQueueDepth(l.policy.Name, depth)
}

func (l *FixedWindowLimiter) acquireDistributed(ctx context.Context) (*Result, error) {
	queued := false
	var queuedAt time.Time

	defer func() {
		if queued {
			l.mu.Lock()
			l.waiting--
			depth := l.waiting
			l.mu.Unlock()
			l.metrics.SetQueueDepth(l.policy.Name, depth)
		}
	}()

	for {
		now := l.now()
		start := windowStart(now, l.policy.Window)
		resetAfter := start.Add(l.policy.Window).Sub(now)
		key := fmt.Sprintf("%s:%d", l.policy.Name, start.UnixMilli())

		count, err := l.store.IncrementWithExpiry(ctx, key, 1, l.policy.Window+time.Second)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				l.metrics.RecordDecision(l.policy.Name, OutcomeCancelled)
				return nil, ctxErr
			}
			l.metrics.RecordDecision(l.policy.Name, OutcomeError)
			return nil, fmt.Errorf("rate limit policy %s: %w", l.policy.Name, err)
		}

		if count <= int64(l.policy.PermitLimit) {
			outcome := OutcomeAllowed
			if queued {
				outcome = OutcomeQueued
				l.metrics.ObserveQueueWait(l.policy.Name, time.Since(queuedAt))
			}
			l.metrics.RecordDecision(l.policy.Name, outcome)
			return &Result{
				Allowed:    true,
				Queued:     queued,
				Limit:      l.policy.PermitLimit,
				Remaining:  l.policy.PermitLimit - int(count),
				ResetAfter: resetAfter,
			}, nil
		}

		if !queued {
			l.mu.Lock()
			if l.closed || l.waiting >= l.policy.QueueLimit {
				l.mu.Unlock()
				l.metrics.RecordDecision(l.policy.Name, OutcomeRejected)
				return l.rejected(resetAfter), nil
			}
			l.waiting++
			depth := l.waiting
			l.mu.Unlock()

			queued = true
			queuedAt = time.Now()
			l.metrics.SetQueueDepth(l.policy.Name, depth)
		}

		timer := time.NewTimer(max(resetAfter, minDrainDelay))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			l.metrics.RecordDecision(l.policy.Name, OutcomeCancelled)
			return nil, ctx.Err()
		}
	}
}

func (l *FixedWindowLimiter) rejected(retryAfter time.Duration) *Result {
	return &Result{
		Allowed:    false,
		Limit:      l.policy.PermitLimit,
		Remaining:  0,
		ResetAfter: retryAfter,
		RetryAfter: retryAfter,
	}
}

// QueueLen returns the number of requests waiting in the local queue.
func (l *FixedWindowLimiter) QueueLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store != nil {
		return l.waiting
	}
	return l.queue.Len()
}

// Close stops the drain timer and rejects every queued request.
func (l *FixedWindowLimiter) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}

	for l.queue.Len() > 0 {
		w := l.queue.Remove(l.queue.Front()).(*waiter)
		close(w.ready)
	}

	return nil
}
