// Package capture serializes "snapshot a frame and recognize it". At most one
// cycle runs at a time, whether triggered manually or by the sampler.
package capture

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GriffinCanCode/textcam/internal/engine"
	apperrors "github.com/GriffinCanCode/textcam/internal/errors"
	"github.com/GriffinCanCode/textcam/internal/orchestrator/events"
	"github.com/GriffinCanCode/textcam/internal/still"
	"github.com/GriffinCanCode/textcam/internal/syncx"
	"github.com/GriffinCanCode/textcam/internal/trace"
)

// Trigger identifies what requested a capture.
type Trigger string

const (
	Manual Trigger = "manual"
	Auto   Trigger = "auto"
)

// State is the coordinator's processing state.
type State string

const (
	Idle        State = "idle"
	Capturing   State = "capturing"
	Recognizing State = "recognizing"
)

// DefaultTimeout bounds a single recognition call.
const DefaultTimeout = 30 * time.Second

// Recognizer is the recognition engine as seen by the coordinator.
type Recognizer interface {
	Ready() bool
	Recognize(ctx context.Context, img still.Image) (engine.Recognition, error)
}

// FrameSource returns the current camera frame, or nil when none is
// available.
type FrameSource interface {
	Frame() image.Image
}

// Result is the current capture: the still plus what was recognized in it.
// A stored Result is never mutated; updates replace it.
type Result struct {
	ID           string      `json:"id"`
	Trigger      Trigger     `json:"trigger"`
	State        State       `json:"state"`
	Text         string      `json:"text"`
	Confidence   float64     `json:"confidence"`
	Width        int         `json:"width"`
	Height       int         `json:"height"`
	CapturedAt   time.Time   `json:"captured_at"`
	RecognizedAt time.Time   `json:"recognized_at,omitzero"`
	Error        string      `json:"error,omitempty"`
	Image        still.Image `json:"-"`
	Err          error       `json:"-"`
}

// Options tune the coordinator.
type Options struct {
	Quality int           // JPEG quality of the still
	Timeout time.Duration // per recognition call
}

type snapshot struct {
	state  State
	result *Result
}

// Coordinator owns the single-flight capture/recognize cycle and the
// current result.
type Coordinator struct {
	frames FrameSource
	engine Recognizer
	events events.Emitter
	opts   Options

	flight syncx.Flight
	snap   *syncx.RWGuard[snapshot]
	wg     sync.WaitGroup
}

// New creates an idle coordinator.
func New(frames FrameSource, rec Recognizer, emitter events.Emitter, opts Options) *Coordinator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Coordinator{
		frames: frames,
		engine: rec,
		events: emitter,
		opts:   opts,
		snap:   syncx.NewGuard(snapshot{state: Idle}),
	}
}

// RequestCapture runs a full cycle and returns the final result. A
// recognition failure is returned both as the error and in Result.Err.
// If ctx ends first the cycle still completes in the background.
func (c *Coordinator) RequestCapture(ctx context.Context, trigger Trigger) (Result, error) {
	done, err := c.Dispatch(ctx, trigger)
	if err != nil {
		return Result{}, err
	}
	select {
	case r := <-done:
		return r, r.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Dispatch captures a still synchronously and recognizes it in the
// background. On return the coordinator is recognizing; the channel yields
// the final result once and is then closed.
//
// Dispatch fails with EngineNotReady when the engine cannot be used,
// CaptureInProgress while another cycle runs (the request is dropped), and
// DeviceUnavailable when no frame can be captured.
func (c *Coordinator) Dispatch(ctx context.Context, trigger Trigger) (<-chan Result, error) {
	ctx, span := trace.StartSpan(ctx, "capture.dispatch")
	defer span.End()
	span.SetAttr("trigger", string(trigger))
	log := trace.Logger(ctx)

	if !c.engine.Ready() {
		return nil, c.fail(apperrors.New(apperrors.EngineNotReady, "recognition engine is not ready"))
	}
	if !c.flight.TryAcquire() {
		return nil, c.fail(apperrors.New(apperrors.CaptureInProgress, "a capture is already in progress"))
	}

	c.setState(Capturing)
	img, err := c.snapshot()
	if err != nil {
		c.setState(Idle)
		c.flight.Release()
		span.SetAttr("error", err.Error())
		return nil, c.fail(err)
	}

	r := &Result{
		ID:         uuid.NewString(),
		Trigger:    trigger,
		State:      Recognizing,
		Width:      img.Width,
		Height:     img.Height,
		CapturedAt: img.CapturedAt,
		Image:      img,
	}
	c.snap.Set(snapshot{state: Recognizing, result: r})
	c.emit(events.TypeState, Recognizing)
	span.SetAttr("capture_id", r.ID)
	log.Info("captured still", "id", r.ID, "trigger", trigger, "bytes", len(img.Data))

	done := make(chan Result, 1)
	c.wg.Add(1)
	go c.recognize(trace.Detach(ctx), *r, done)
	return done, nil
}

func (c *Coordinator) snapshot() (still.Image, error) {
	frame := c.frames.Frame()
	if frame == nil || frame.Bounds().Empty() {
		return still.Image{}, apperrors.New(apperrors.DeviceUnavailable, "no camera frame available")
	}
	img, err := still.Encode(frame, c.opts.Quality)
	if err != nil {
		return still.Image{}, apperrors.Wrap(err, apperrors.DeviceUnavailable, "could not capture still")
	}
	return img, nil
}

func (c *Coordinator) recognize(ctx context.Context, r Result, done chan<- Result) {
	defer c.wg.Done()
	defer close(done)

	ctx, span := trace.StartSpan(ctx, "capture.recognize")
	defer span.End()
	span.SetAttr("capture_id", r.ID)
	log := trace.Logger(ctx)

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	rec, err := c.engine.Recognize(ctx, r.Image)
	cancel()

	r.State = Idle
	r.RecognizedAt = time.Now()
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.Unknown {
			err = apperrors.Wrap(err, apperrors.RecognitionFailed, "recognition failed")
		}
		r.Err = err
		r.Error = err.Error()
		span.SetAttr("error", r.Error)
		log.Warn("recognition failed", "id", r.ID, "error", err)
	} else {
		r.Text, r.Confidence = rec.Text, rec.Confidence
		span.SetAttr("chars", len(rec.Text))
		log.Info("recognized text", "id", r.ID, "chars", len(rec.Text), "confidence", rec.Confidence)
	}

	stored := r
	c.snap.Set(snapshot{state: Idle, result: &stored})
	c.flight.Release()

	c.emit(events.TypeState, Idle)
	c.emit(events.TypeResult, r)
	if r.Err != nil {
		c.notify(events.NoticeFromError(r.Err))
	}
	done <- r
}

// Wait blocks until background recognition has finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// State returns the processing state.
func (c *Coordinator) State() State {
	return syncx.View(c.snap, func(s snapshot) State { return s.state })
}

// Recognizing reports whether a cycle is in flight. The sampler must not
// trigger while it is true.
func (c *Coordinator) Recognizing() bool {
	return c.flight.Held()
}

// Result returns a copy of the current result.
func (c *Coordinator) Result() (Result, bool) {
	s := c.snap.Get()
	if s.result == nil {
		return Result{}, false
	}
	return *s.result, true
}

// Text returns the recognized text of the current result.
func (c *Coordinator) Text() string {
	r, _ := c.Result()
	return r.Text
}

// Image returns the still of the current result.
func (c *Coordinator) Image() (still.Image, bool) {
	r, ok := c.Result()
	if !ok || r.Image.Empty() {
		return still.Image{}, false
	}
	return r.Image, true
}

// ClearText drops the recognized text but keeps the still. It reports
// whether there was a result to clear.
func (c *Coordinator) ClearText() bool {
	var cleared Result
	ok := c.snap.CompareAndWrite(
		func(s snapshot) bool { return s.result != nil },
		func(s *snapshot) {
			cleared = *s.result
			cleared.Text, cleared.Confidence = "", 0
			s.result = &cleared
		},
	)
	if !ok {
		return false
	}
	c.emit(events.TypeResult, cleared)
	return true
}

func (c *Coordinator) setState(st State) {
	c.snap.Write(func(s *snapshot) { s.state = st })
	c.emit(events.TypeState, st)
}

func (c *Coordinator) fail(err error) error {
	c.notify(events.NoticeFromError(err))
	return err
}

func (c *Coordinator) emit(t events.Type, data any) {
	if c.events != nil {
		c.events.Emit(events.Event{Type: t, Data: data})
	}
}

func (c *Coordinator) notify(n events.Notice) {
	c.emit(events.TypeNotice, n)
}
