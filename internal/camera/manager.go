package camera

import (
	"context"
	"image"
	"log/slog"
	"sync"
)

// Manager exclusively owns at most one camera stream. Switching facing
// releases the current stream before acquiring the next one.
type Manager struct {
	source Source

	switchMu sync.Mutex // serializes Open, SwitchFacing and Close

	mu     sync.RWMutex
	stream Stream
	facing Facing
}

// NewManager creates a manager with no stream acquired yet.
func NewManager(source Source, initial Facing) *Manager {
	if initial == "" {
		initial = Environment
	}
	return &Manager{source: source, facing: initial}
}

// Open acquires a stream for the current facing mode, replacing any
// existing one.
func (m *Manager) Open(ctx context.Context) error {
	return m.SwitchFacing(ctx, m.Facing())
}

// SwitchFacing releases the current stream, then acquires one for f. If
// acquisition fails the manager holds no stream and the error is returned;
// the requested facing is kept so a later Open retries it.
func (m *Manager) SwitchFacing(ctx context.Context, f Facing) error {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	m.mu.Lock()
	old := m.stream
	m.stream = nil
	m.facing = f
	m.mu.Unlock()

	release(old)

	stream, err := m.source.Acquire(ctx, f)
	if err != nil {
		slog.Warn("camera acquire failed", "facing", f, "error", err)
		return err
	}

	m.mu.Lock()
	m.stream = stream
	m.mu.Unlock()

	slog.Info("camera acquired", "facing", f)
	return nil
}

// Toggle switches to the opposite facing mode and returns it.
func (m *Manager) Toggle(ctx context.Context) (Facing, error) {
	next := m.Facing().Toggle()
	return next, m.SwitchFacing(ctx, next)
}

// Frame returns the latest frame, or nil when no stream is held or the
// stream has not produced a frame yet.
func (m *Manager) Frame() image.Image {
	m.mu.RLock()
	s := m.stream
	m.mu.RUnlock()
	if s == nil {
		return nil
	}
	return s.Frame()
}

// Facing returns the selected facing mode.
func (m *Manager) Facing() Facing {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.facing
}

// liveness is implemented by streams that can die on their own, such as a
// device that stops delivering frames.
type liveness interface {
	Alive() bool
}

// Active reports whether a live stream is held.
func (m *Manager) Active() bool {
	m.mu.RLock()
	s := m.stream
	m.mu.RUnlock()
	if s == nil {
		return false
	}
	if l, ok := s.(liveness); ok {
		return l.Alive()
	}
	return true
}

// Close releases the stream.
func (m *Manager) Close() error {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	m.mu.Lock()
	s := m.stream
	m.stream = nil
	m.mu.Unlock()

	if s == nil {
		return nil
	}
	return s.Close()
}

func release(s Stream) {
	if s == nil {
		return
	}
	if err := s.Close(); err != nil {
		slog.Warn("camera release failed", "error", err)
	}
}
