// Package schedule runs work on a fixed cadence behind an explicit
// start/stop handle.
package schedule

import (
	"context"
	"sync"
	"time"
)

// Task invokes a function every interval on a single goroutine. Invocations
// never overlap: a tick that arrives while fn is still running is dropped.
type Task struct {
	interval time.Duration
	fn       func(context.Context)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTask creates a stopped task.
func NewTask(interval time.Duration, fn func(context.Context)) *Task {
	if interval <= 0 {
		interval = time.Second
	}
	return &Task{interval: interval, fn: fn}
}

// Interval converts a rate in Hz into a tick interval.
func Interval(hz float64) time.Duration {
	if hz <= 0 {
		return time.Second
	}
	return time.Duration(float64(time.Second) / hz)
}

// Start begins ticking until ctx is done or Stop is called. Starting a
// running task is a no-op and returns false.
func (t *Task) Start(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		select {
		case <-t.done:
			// Parent context ended; the old loop is gone.
			t.cancel()
		default:
			return false
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done

	go t.run(ctx, done)
	return true
}

func (t *Task) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.fn(ctx)
		}
	}
}

// Stop cancels the task and waits for an in-progress tick to return.
// It reports whether the task was running.
func (t *Task) Stop() bool {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

// Running reports whether the task is scheduled.
func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done == nil {
		return false
	}
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}
