// Package orchestrator wires the camera, the recognition engine, the frame
// sampler and the capture coordinator into one service.
package orchestrator

import (
	"context"
	"image"
	"sync"

	"github.com/GriffinCanCode/textcam/internal/camera"
	"github.com/GriffinCanCode/textcam/internal/config"
	"github.com/GriffinCanCode/textcam/internal/contrast"
	"github.com/GriffinCanCode/textcam/internal/engine"
	"github.com/GriffinCanCode/textcam/internal/orchestrator/capture"
	"github.com/GriffinCanCode/textcam/internal/orchestrator/events"
	"github.com/GriffinCanCode/textcam/internal/orchestrator/sampler"
	"github.com/GriffinCanCode/textcam/internal/still"
	"github.com/GriffinCanCode/textcam/internal/trace"
)

// Camera is the exclusively owned camera stream.
type Camera interface {
	Frame() image.Image
	Open(ctx context.Context) error
	SwitchFacing(ctx context.Context, f camera.Facing) error
	Toggle(ctx context.Context) (camera.Facing, error)
	Facing() camera.Facing
	Active() bool
	Close() error
}

// Engine is the shared recognition engine.
type Engine interface {
	capture.Recognizer
	Name() string
	State() engine.State
}

// Status is a snapshot of everything the control surface shows.
type Status struct {
	State        capture.State `json:"state"`
	AutoCapture  bool          `json:"auto_capture"`
	Threshold    float64       `json:"threshold"`
	Variance     float64       `json:"variance"`
	Facing       camera.Facing `json:"facing"`
	CameraActive bool          `json:"camera_active"`
	Engine       string        `json:"engine"`
	EngineState  string        `json:"engine_state"`
	EngineReady  bool          `json:"engine_ready"`
	HasResult    bool          `json:"has_result"`
	Clients      int           `json:"clients"`
}

// Manager coordinates all services
type Manager struct {
	camera  Camera
	engine  Engine
	hub     *events.Hub
	capture *capture.Coordinator
	sampler *sampler.Sampler
	auto    bool

	mu      sync.Mutex
	baseCtx context.Context
}

// New creates a manager. Nothing runs until Start.
func New(cfg *config.Config, cam Camera, eng Engine) *Manager {
	hub := events.NewHub(EventBuffer, MaxNotices)
	coord := capture.New(cam, eng, hub, capture.Options{
		Quality: cfg.StillQuality,
		Timeout: cfg.RecognizeTimeout,
	})
	smp := sampler.New(cam, coord, eng, sampler.Options{
		Fraction:       contrast.Fraction{W: cfg.ROIWidth, H: cfg.ROIHeight},
		SampleWidth:    cfg.SampleWidth,
		Rate:           cfg.SampleRate,
		Threshold:      cfg.Threshold,
		Cooldown:       cfg.Cooldown,
		DedupeDistance: cfg.DedupeDistance,
	})

	return &Manager{
		camera:  cam,
		engine:  eng,
		hub:     hub,
		capture: coord,
		sampler: smp,
		auto:    cfg.AutoCapture,
		baseCtx: context.Background(),
	}
}

// Start opens the camera and, if configured, enables auto-capture. A camera
// that cannot be opened is reported as a notice; the user retries by
// switching facing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	m.baseCtx = ctx
	m.mu.Unlock()

	log := trace.Logger(ctx)
	if err := m.camera.Open(ctx); err != nil {
		log.Warn("camera unavailable at startup", "error", err)
		m.hub.Notify(events.NoticeFromError(err))
	}
	if m.auto {
		m.sampler.Enable(ctx)
	}
	m.emitSettings()
	return nil
}

// Stop disables sampling, waits for an in-flight recognition and releases
// the camera.
func (m *Manager) Stop() {
	m.sampler.Disable()
	m.capture.Wait()
	if err := m.camera.Close(); err != nil {
		trace.Logger(context.Background()).Warn("camera close failed", "error", err)
	}
}

// Capture runs a manual capture and waits for its recognition.
func (m *Manager) Capture(ctx context.Context) (capture.Result, error) {
	ctx, span := trace.StartSpan(ctx, "manual_capture")
	defer span.End()
	return m.capture.RequestCapture(ctx, capture.Manual)
}

// SetAutoCapture toggles the sampler. Sampling outlives the caller's
// request, so it runs on the context given to Start.
func (m *Manager) SetAutoCapture(enabled bool) {
	m.mu.Lock()
	ctx := m.baseCtx
	m.mu.Unlock()

	if enabled {
		m.sampler.Enable(ctx)
	} else {
		m.sampler.Disable()
	}
	m.emitSettings()
}

// SetThreshold updates the contrast threshold and returns the applied value.
func (m *Manager) SetThreshold(v float64) float64 {
	applied := m.sampler.SetThreshold(v)
	trace.Logger(context.Background()).Info("capture threshold changed", "threshold", applied)
	m.emitSettings()
	return applied
}

// SwitchFacing selects a camera. Failure leaves no camera open and is
// reported as a notice.
func (m *Manager) SwitchFacing(ctx context.Context, f camera.Facing) error {
	err := m.camera.SwitchFacing(ctx, f)
	m.afterSwitch(err)
	return err
}

// ToggleFacing switches to the other camera.
func (m *Manager) ToggleFacing(ctx context.Context) (camera.Facing, error) {
	f, err := m.camera.Toggle(ctx)
	m.afterSwitch(err)
	return f, err
}

func (m *Manager) afterSwitch(err error) {
	if err != nil {
		m.hub.Notify(events.NoticeFromError(err))
	}
	m.emitSettings()
}

// Result returns the current capture result.
func (m *Manager) Result() (capture.Result, bool) {
	return m.capture.Result()
}

// Text returns the recognized text for copying.
func (m *Manager) Text() string {
	return m.capture.Text()
}

// Image returns the current still for download.
func (m *Manager) Image() (still.Image, bool) {
	return m.capture.Image()
}

// ClearText drops the recognized text.
func (m *Manager) ClearText() bool {
	return m.capture.ClearText()
}

// Subscribe returns a channel of events and its cancel function.
func (m *Manager) Subscribe() (<-chan events.Event, func()) {
	return m.hub.Subscribe()
}

// Notices returns recent user-visible notices.
func (m *Manager) Notices() []events.Notice {
	return m.hub.Notices()
}

// Status returns a snapshot of the service state.
func (m *Manager) Status() Status {
	_, hasResult := m.capture.Result()
	return Status{
		State:        m.capture.State(),
		AutoCapture:  m.sampler.Enabled(),
		Threshold:    m.sampler.Threshold(),
		Variance:     m.sampler.LastStats().Variance,
		Facing:       m.camera.Facing(),
		CameraActive: m.camera.Active(),
		Engine:       m.engine.Name(),
		EngineState:  m.engine.State().String(),
		EngineReady:  m.engine.Ready(),
		HasResult:    hasResult,
		Clients:      m.hub.Subscribers(),
	}
}

func (m *Manager) emitSettings() {
	m.hub.Emit(events.Event{Type: events.TypeSettings, Data: m.Status()})
}
