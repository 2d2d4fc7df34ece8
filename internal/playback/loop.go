package playback

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var errLoopRunning = errors.New("loop already running")

// Task is a scheduled callback that can be cancelled.
type Task interface {
	// Cancel prevents the callback from running if it has not started.
	Cancel()
}

// Scheduler runs callbacks on the controller's goroutine.
type Scheduler interface {
	// Post queues fn to run on the loop.
	Post(fn func())
	// Schedule runs fn on the loop after d.
	Schedule(d time.Duration, fn func()) Task
}

// Loop is a single-goroutine event loop. Callbacks posted from any goroutine
// run one at a time, in order, on the goroutine executing Run.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	running atomic.Bool
}

// NewLoop returns an idle loop; call Run to start it.
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post queues fn. It is safe to call from any goroutine, including from a
// callback running on the loop.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Schedule posts fn onto the loop once d has elapsed. Cancellation is checked
// on the loop, so a Cancel issued from a loop callback always wins.
func (l *Loop) Schedule(d time.Duration, fn func()) Task {
	t := &loopTask{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.cancelled.Load() {
				return
			}
			fn()
		})
	})
	return t
}

// Call runs fn on the loop and waits for it to finish or for ctx to end.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes callbacks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return errLoopRunning
	}
	defer l.running.Store(false)
	for {
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			fn()
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

type loopTask struct {
	timer     *time.Timer
	cancelled atomic.Bool
}

func (t *loopTask) Cancel() {
	t.cancelled.Store(true)
	t.timer.Stop()
}
