package syncx

import "sync/atomic"

// Flight admits at most one holder at a time. Attempts made while it is held
// fail immediately instead of waiting.
type Flight struct {
	held atomic.Bool
}

// TryAcquire takes the flight if it is free and reports whether it did.
func (f *Flight) TryAcquire() bool {
	return f.held.CompareAndSwap(false, true)
}

// Release frees the flight. Releasing a free flight is a no-op.
func (f *Flight) Release() {
	f.held.Store(false)
}

// Held reports whether the flight is currently taken.
func (f *Flight) Held() bool {
	return f.held.Load()
}
