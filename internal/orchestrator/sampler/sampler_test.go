package sampler

import (
	"context"
	"image"
	"image/color"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/textcam/internal/contrast"
	apperrors "github.com/GriffinCanCode/textcam/internal/errors"
	"github.com/GriffinCanCode/textcam/internal/orchestrator/capture"
)

type fakeFrames struct {
	mu  sync.Mutex
	img image.Image
}

func (f *fakeFrames) Frame() image.Image {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.img
}

func (f *fakeFrames) set(img image.Image) {
	f.mu.Lock()
	f.img = img
	f.mu.Unlock()
}

type readiness struct{ ready atomic.Bool }

func (r *readiness) Ready() bool { return r.ready.Load() }

func ready() *readiness {
	r := &readiness{}
	r.ready.Store(true)
	return r
}

// fakeTrigger hands out result channels the test completes by hand.
type fakeTrigger struct {
	mu          sync.Mutex
	dispatched  int
	recognizing bool
	err         error
	inflight    chan capture.Result
}

func (f *fakeTrigger) Recognizing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recognizing
}

func (f *fakeTrigger) Dispatch(_ context.Context, t capture.Trigger) (<-chan capture.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t != capture.Auto {
		panic("sampler dispatched a non-auto capture")
	}
	if f.err != nil {
		return nil, f.err
	}
	f.dispatched++
	f.recognizing = true
	f.inflight = make(chan capture.Result, 1)
	return f.inflight, nil
}

// complete finishes the in-flight recognition.
func (f *fakeTrigger) complete(r capture.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recognizing = false
	f.inflight <- r
	close(f.inflight)
}

func (f *fakeTrigger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dispatched
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func solid(w, h int, v uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, 255
	}
	return img
}

func checkerboard(w, h, cell int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(0)
			if (x/cell+y/cell)%2 == 0 {
				v = 255
			}
			img.Set(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func stripes(w, h int, lo, hi uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := lo
			if x%2 == 0 {
				v = hi
			}
			img.Set(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// halves is black on the left and white on the right.
func halves(w, h int) *image.NRGBA {
	img := solid(w, h, 0)
	for y := 0; y < h; y++ {
		for x := w / 2; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

func newTestSampler(img image.Image, opts Options) (*Sampler, *fakeFrames, *fakeTrigger, *clock) {
	frames := &fakeFrames{img: img}
	trig := &fakeTrigger{}
	clk := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := New(frames, trig, ready(), opts)
	s.now = clk.now
	return s, frames, trig, clk
}

var defaults = Options{Threshold: DefaultThreshold, Cooldown: DefaultCooldown, DedupeDistance: -1}

func TestTickTriggersAboveThreshold(t *testing.T) {
	s, _, trig, _ := newTestSampler(checkerboard(100, 100, 1), defaults)

	assert.True(t, s.Tick(context.Background()))
	assert.Equal(t, 1, trig.count())
	assert.Greater(t, s.LastStats().Variance, DefaultThreshold)
}

func TestTickIgnoresBlankScene(t *testing.T) {
	s, _, trig, _ := newTestSampler(solid(100, 100, 250), defaults)

	for i := 0; i < 10; i++ {
		assert.False(t, s.Tick(context.Background()))
	}
	assert.Zero(t, trig.count())
	assert.Equal(t, 0.0, s.LastStats().Variance)
}

func TestTickSkipsWhenFeedNotReady(t *testing.T) {
	s, frames, trig, _ := newTestSampler(nil, defaults)
	assert.False(t, s.Tick(context.Background()))

	frames.set(image.NewNRGBA(image.Rectangle{}))
	assert.False(t, s.Tick(context.Background()))

	frames.set(solid(1, 1, 0))
	assert.False(t, s.Tick(context.Background()))

	assert.Zero(t, trig.count())

	frames.set(checkerboard(100, 100, 1))
	assert.True(t, s.Tick(context.Background()), "sampling resumes once the feed is ready")
}

func TestTickSkipsWhenEngineNotReady(t *testing.T) {
	frames := &fakeFrames{img: checkerboard(100, 100, 1)}
	trig := &fakeTrigger{}
	eng := &readiness{}
	s := New(frames, trig, eng, defaults)

	assert.False(t, s.Tick(context.Background()))
	assert.Zero(t, trig.count())

	eng.ready.Store(true)
	assert.True(t, s.Tick(context.Background()))
}

func TestNoTriggerWhileRecognizing(t *testing.T) {
	s, _, trig, clk := newTestSampler(checkerboard(100, 100, 1), defaults)
	require.True(t, s.Tick(context.Background()))

	for i := 0; i < 100; i++ {
		clk.advance(10 * time.Second)
		assert.False(t, s.Tick(context.Background()))
	}
	assert.Equal(t, 1, trig.count())
}

func TestNoTriggerWhileManualCaptureRuns(t *testing.T) {
	s, _, trig, _ := newTestSampler(checkerboard(100, 100, 1), defaults)
	trig.recognizing = true

	assert.False(t, s.Tick(context.Background()))
	assert.Zero(t, trig.count())
}

func TestCooldownAfterCompletion(t *testing.T) {
	s, _, trig, clk := newTestSampler(checkerboard(100, 100, 1), defaults)
	require.True(t, s.Tick(context.Background()))

	// Recognition takes a while; the cooldown has not started yet.
	clk.advance(5 * time.Second)
	trig.complete(capture.Result{Text: "HELLO"})

	assert.False(t, s.Tick(context.Background()), "completion starts the cooldown")
	clk.advance(DefaultCooldown - time.Millisecond)
	assert.False(t, s.Tick(context.Background()))
	assert.Equal(t, 1, trig.count())

	clk.advance(time.Millisecond)
	assert.True(t, s.Tick(context.Background()))
	assert.Equal(t, 2, trig.count())
}

func TestDispatchFailureBacksOff(t *testing.T) {
	s, _, trig, clk := newTestSampler(checkerboard(100, 100, 1), defaults)
	trig.err = apperrors.New(apperrors.DeviceUnavailable, "no frame")

	assert.False(t, s.Tick(context.Background()))
	trig.err = nil

	clk.advance(DefaultCooldown / 2)
	assert.False(t, s.Tick(context.Background()))
	clk.advance(DefaultCooldown)
	assert.True(t, s.Tick(context.Background()))
}

func TestThresholdMonotonicity(t *testing.T) {
	frames := []image.Image{
		solid(80, 80, 30),
		stripes(80, 80, 100, 140),
		stripes(80, 80, 60, 180),
		checkerboard(80, 80, 2),
		checkerboard(80, 80, 1),
	}

	prev := len(frames) + 1
	for threshold := 0.0; threshold <= contrast.MaxThreshold; threshold += 100 {
		triggered := 0
		for _, f := range frames {
			opts := defaults
			opts.Threshold = threshold
			s, _, _, _ := newTestSampler(f, opts)
			if s.Tick(context.Background()) {
				triggered++
			}
		}
		assert.LessOrEqual(t, triggered, prev, "threshold %v", threshold)
		prev = triggered
	}
}

func TestSetThresholdClamps(t *testing.T) {
	s, _, trig, _ := newTestSampler(checkerboard(100, 100, 1), defaults)

	assert.Equal(t, contrast.MaxThreshold, s.SetThreshold(1e9))
	assert.Equal(t, 0.0, s.SetThreshold(-3))
	assert.Equal(t, 750.0, s.SetThreshold(750))
	assert.Equal(t, 750.0, s.Threshold())
	assert.Equal(t, 750.0, s.SetThreshold(math.NaN()))
	assert.Equal(t, 750.0, s.Threshold())

	s.SetThreshold(contrast.MaxThreshold)
	// A full-swing checkerboard has variance 16256, above any threshold.
	assert.True(t, s.Tick(context.Background()))
	assert.Equal(t, 1, trig.count())
}

func TestDedupeSkipsUnchangedScene(t *testing.T) {
	opts := defaults
	opts.DedupeDistance = 0
	s, frames, trig, clk := newTestSampler(checkerboard(200, 200, 4), opts)

	require.True(t, s.Tick(context.Background()))
	trig.complete(capture.Result{Text: "HELLO"})
	s.Tick(context.Background())
	clk.advance(time.Hour)

	assert.False(t, s.Tick(context.Background()), "same scene is not captured twice")

	frames.set(halves(200, 200))
	assert.True(t, s.Tick(context.Background()))
	assert.Equal(t, 2, trig.count())
}

func TestDedupeIgnoresFailedCapture(t *testing.T) {
	opts := defaults
	opts.DedupeDistance = 0
	s, _, trig, clk := newTestSampler(checkerboard(200, 200, 4), opts)

	require.True(t, s.Tick(context.Background()))
	trig.complete(capture.Result{Err: apperrors.New(apperrors.RecognitionFailed, "x")})
	s.Tick(context.Background())
	clk.advance(time.Hour)

	assert.True(t, s.Tick(context.Background()), "a failed scene may be captured again")
}

func TestEnableDisable(t *testing.T) {
	frames := &fakeFrames{img: checkerboard(100, 100, 1)}
	trig := &fakeTrigger{}
	s := New(frames, trig, ready(), Options{Rate: 200, Threshold: 500, DedupeDistance: -1})

	assert.False(t, s.Enabled())
	require.True(t, s.Enable(context.Background()))
	assert.False(t, s.Enable(context.Background()))
	assert.True(t, s.Enabled())

	require.Eventually(t, func() bool { return trig.count() == 1 }, time.Second, 5*time.Millisecond)

	require.True(t, s.Disable())
	assert.False(t, s.Disable())
	assert.False(t, s.Enabled())

	// The in-flight recognition is not cancelled by disabling.
	trig.complete(capture.Result{Text: "HELLO"})
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, trig.count())
}

func TestNewRejectsNaNThreshold(t *testing.T) {
	opts := defaults
	opts.Threshold = math.NaN()
	s, _, _, _ := newTestSampler(checkerboard(100, 100, 1), opts)
	assert.Equal(t, DefaultThreshold, s.Threshold())
}
