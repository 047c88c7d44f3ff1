// Package sampler watches the live frame and triggers an automatic capture
// when the center of the frame shows enough contrast to likely hold text.
package sampler

import (
	"context"
	"image"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/corona10/goimagehash"

	"github.com/GriffinCanCode/textcam/internal/contrast"
	"github.com/GriffinCanCode/textcam/internal/orchestrator/capture"
	"github.com/GriffinCanCode/textcam/internal/schedule"
)

// Defaults
const (
	DefaultRate      = 30.0
	DefaultCooldown  = 1500 * time.Millisecond
	DefaultThreshold = 1000.0
)

// Trigger is the capture coordinator as seen by the sampler.
type Trigger interface {
	Recognizing() bool
	Dispatch(ctx context.Context, t capture.Trigger) (<-chan capture.Result, error)
}

// Readiness reports whether the recognition engine can take work.
type Readiness interface {
	Ready() bool
}

// FrameSource returns the live frame, or nil while the feed is not ready.
type FrameSource interface {
	Frame() image.Image
}

// Options tune the sampler.
type Options struct {
	Fraction       contrast.Fraction
	SampleWidth    int     // ROI is downsampled to at most this width; 0 disables
	Rate           float64 // ticks per second
	Threshold      float64 // luma variance cutoff
	Cooldown       time.Duration
	DedupeDistance int // pHash distance at or below which a scene counts as already captured; <0 disables
}

// Sampler evaluates the contrast heuristic on a fixed cadence while
// auto-capture is enabled.
type Sampler struct {
	frames  FrameSource
	trigger Trigger
	engine  Readiness
	opts    Options
	task    *schedule.Task
	now     func() time.Time

	mu            sync.Mutex
	threshold     float64
	cooldownUntil time.Time
	pending       <-chan capture.Result
	lastHash      *goimagehash.ImageHash
	candidate     *goimagehash.ImageHash
	last          contrast.Stats
}

// New creates a disabled sampler.
func New(frames FrameSource, trigger Trigger, engine Readiness, opts Options) *Sampler {
	if !(opts.Fraction.W > 0) || !(opts.Fraction.H > 0) {
		opts.Fraction = contrast.DefaultFraction
	}
	if opts.Rate <= 0 {
		opts.Rate = DefaultRate
	}
	if opts.Cooldown < 0 {
		opts.Cooldown = DefaultCooldown
	}
	s := &Sampler{
		frames:    frames,
		trigger:   trigger,
		engine:    engine,
		opts:      opts,
		now:       time.Now,
		threshold: initialThreshold(opts.Threshold),
	}
	s.task = schedule.NewTask(schedule.Interval(opts.Rate), func(ctx context.Context) { s.Tick(ctx) })
	return s
}

// Enable starts sampling. It reports false if already enabled.
func (s *Sampler) Enable(ctx context.Context) bool {
	started := s.task.Start(ctx)
	if started {
		slog.Info("auto-capture enabled", "rate", s.opts.Rate, "threshold", s.Threshold())
	}
	return started
}

// Disable stops scheduling ticks. A recognition already dispatched keeps
// running. It reports false if already disabled.
func (s *Sampler) Disable() bool {
	stopped := s.task.Stop()
	if stopped {
		slog.Info("auto-capture disabled")
	}
	return stopped
}

// Enabled reports whether ticks are scheduled.
func (s *Sampler) Enabled() bool {
	return s.task.Running()
}

// SetThreshold updates the variance cutoff, clamped to [0, MaxThreshold],
// and returns the value applied.
func (s *Sampler) SetThreshold(v float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if math.IsNaN(v) {
		return s.threshold
	}
	s.threshold = contrast.ClampThreshold(v)
	return s.threshold
}

func initialThreshold(v float64) float64 {
	if math.IsNaN(v) {
		return DefaultThreshold
	}
	return contrast.ClampThreshold(v)
}

// Threshold returns the variance cutoff.
func (s *Sampler) Threshold() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threshold
}

// LastStats returns the statistics of the most recent sampled region.
func (s *Sampler) LastStats() contrast.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Tick evaluates one frame and dispatches an auto capture when it should.
// It never fails: a feed that is not ready simply skips the tick.
func (s *Sampler) Tick(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !s.settle(now) {
		return false
	}
	if now.Before(s.cooldownUntil) {
		return false
	}
	if s.trigger.Recognizing() || !s.engine.Ready() {
		return false
	}

	stats, crop, ok := contrast.Sample(s.frames.Frame(), s.opts.Fraction, s.opts.SampleWidth)
	if !ok {
		return false
	}
	s.last = stats
	if !stats.Exceeds(s.threshold) {
		return false
	}
	if s.duplicate(crop) {
		return false
	}

	done, err := s.trigger.Dispatch(ctx, capture.Auto)
	if err != nil {
		// Failures were already surfaced as notices; back off instead of
		// retrying at frame rate.
		slog.Debug("auto capture not dispatched", "error", err)
		s.cooldownUntil = now.Add(s.opts.Cooldown)
		s.candidate = nil
		return false
	}
	slog.Debug("auto capture triggered", "variance", stats.Variance, "threshold", s.threshold)
	s.pending = done
	return true
}

// settle checks on the last auto capture. The cooldown starts when its
// recognition has completed. It reports whether the sampler is free to
// trigger.
func (s *Sampler) settle(now time.Time) bool {
	if s.pending == nil {
		return true
	}
	select {
	case r, ok := <-s.pending:
		if ok && r.Err == nil && s.candidate != nil {
			s.lastHash = s.candidate
		}
		s.candidate = nil
		s.pending = nil
		s.cooldownUntil = now.Add(s.opts.Cooldown)
		// The cooldown has just started.
		return false
	default:
		return false
	}
}

// duplicate reports whether crop shows the scene of the last successful
// auto capture. The hash of crop is kept as the candidate for the next one.
func (s *Sampler) duplicate(crop image.Image) bool {
	if s.opts.DedupeDistance < 0 {
		return false
	}
	hash, err := goimagehash.PerceptionHash(crop)
	if err != nil {
		return false
	}
	s.candidate = hash
	if s.lastHash == nil {
		return false
	}
	dist, err := s.lastHash.Distance(hash)
	if err != nil || dist > s.opts.DedupeDistance {
		return false
	}
	slog.Debug("skipping auto capture of an unchanged scene", "distance", dist)
	return true
}
