// Package engine owns the process-wide recognition engine: a single backend
// initialized once, queried for readiness, and torn down on shutdown.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	apperrors "github.com/GriffinCanCode/textcam/internal/errors"
	"github.com/GriffinCanCode/textcam/internal/still"
	"github.com/GriffinCanCode/textcam/internal/trace"
)

// Recognition is the text found in a still and the engine's confidence in
// it, normalized to [0, 1].
type Recognition struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Backend is an OCR implementation.
type Backend interface {
	Name() string
	Init(ctx context.Context, languages []string) error
	Recognize(ctx context.Context, img still.Image) (Recognition, error)
	Close() error
}

// State is the engine lifecycle state.
type State int

const (
	Uninitialized State = iota
	Initializing
	Ready
	Failed
	Closed
)

func (s State) String() string {
	return [...]string{"uninitialized", "initializing", "ready", "failed", "closed"}[s]
}

// Engine wraps a Backend with an explicit init/ready/teardown lifecycle.
type Engine struct {
	backend   Backend
	languages []string

	once       sync.Once
	mu         sync.RWMutex
	state      State
	err        error
	cancelInit context.CancelFunc
}

// New creates an uninitialized engine.
func New(b Backend, languages []string) *Engine {
	return &Engine{backend: b, languages: languages}
}

// Initialize loads the backend. Only the first call does work; concurrent
// and later calls wait for it and return its outcome. On failure the engine
// stays non-ready for the life of the process. Close during Initialize
// cancels it and wins: the engine ends Closed and the backend is released.
func (e *Engine) Initialize(ctx context.Context) error {
	e.once.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		e.mu.Lock()
		if e.state == Closed {
			e.mu.Unlock()
			return
		}
		e.state, e.cancelInit = Initializing, cancel
		e.mu.Unlock()
		start := time.Now()

		initErr := e.backend.Init(ctx, e.languages)

		e.mu.Lock()
		e.cancelInit = nil
		if e.state != Initializing {
			e.mu.Unlock()
			if initErr == nil {
				_ = e.backend.Close()
			}
			slog.Info("recognition engine closed during initialization", "engine", e.backend.Name())
			return
		}
		if initErr != nil {
			e.state = Failed
			e.err = apperrors.Wrapf(initErr, apperrors.EngineInitFailed, "initialize %s engine", e.backend.Name())
			e.mu.Unlock()
			slog.Error("recognition engine failed to initialize", "engine", e.backend.Name(), "error", initErr)
			return
		}
		e.state = Ready
		e.mu.Unlock()
		slog.Info("recognition engine ready",
			"engine", e.backend.Name(),
			"languages", strings.Join(e.languages, "+"),
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
	})
	if e.State() == Closed {
		return apperrors.New(apperrors.EngineNotReady, "recognition engine is closed")
	}
	return e.Err()
}

// Ready reports whether Recognize may be called.
func (e *Engine) Ready() bool {
	return e.State() == Ready
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Err returns the initialization failure, if any.
func (e *Engine) Err() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.err
}

// Name returns the backend name.
func (e *Engine) Name() string { return e.backend.Name() }

// Recognize runs OCR on img. It fails with EngineNotReady before a
// successful Initialize and with RecognitionFailed (or Timeout) when the
// backend fails.
func (e *Engine) Recognize(ctx context.Context, img still.Image) (Recognition, error) {
	if !e.Ready() {
		return Recognition{}, apperrors.New(apperrors.EngineNotReady, "recognition engine is not ready").
			WithMetadata("state", e.State().String())
	}

	ctx, span := trace.StartSpan(ctx, "engine.recognize")
	defer span.End()
	span.SetAttr("engine", e.backend.Name())
	span.SetAttr("bytes", len(img.Data))

	rec, err := e.backend.Recognize(ctx, img)
	if err != nil {
		span.SetAttr("error", err.Error())
		return Recognition{}, classify(err)
	}

	rec = normalize(rec)
	span.SetAttr("chars", len(rec.Text))
	span.SetAttr("confidence", rec.Confidence)
	return rec, nil
}

// Close tears the backend down. The engine is not ready afterwards. An
// in-progress Initialize is cancelled and releases the backend itself.
func (e *Engine) Close() error {
	e.mu.Lock()
	prev, cancel := e.state, e.cancelInit
	e.state = Closed
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if prev != Ready {
		return nil
	}
	return e.backend.Close()
}

func classify(err error) error {
	if app, ok := apperrors.As(err); ok && app.Code != apperrors.Unknown {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(err, apperrors.Timeout, "recognition timed out")
	}
	return apperrors.Wrap(err, apperrors.RecognitionFailed, "recognition failed")
}

func normalize(r Recognition) Recognition {
	r.Text = strings.TrimSpace(r.Text)
	switch {
	case r.Confidence < 0:
		r.Confidence = 0
	case r.Confidence > 1:
		r.Confidence = 1
	}
	return r
}
