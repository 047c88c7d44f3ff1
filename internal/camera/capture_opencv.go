//go:build opencv

package camera

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	apperrors "github.com/GriffinCanCode/textcam/internal/errors"
)

const (
	// maxReadMisses ends the reader after this many consecutive empty reads.
	maxReadMisses = 100

	// staleFrameAge hides a frame the device has not refreshed in this long.
	staleFrameAge = 2 * time.Second
)

type opencvSource struct{ settings Settings }

// NewOpenCV returns a Source backed by OpenCV VideoCapture devices.
func NewOpenCV(s Settings) Source {
	return &opencvSource{settings: s}
}

func (o *opencvSource) Acquire(ctx context.Context, facing Facing) (Stream, error) {
	dev := o.settings.Device(facing)
	if err := checkDevice(dev); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.DeviceUnavailable, "camera acquire cancelled")
	}

	vc, err := gocv.OpenVideoCapture(dev)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.DeviceUnavailable, "open camera %d", dev)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, apperrors.Newf(apperrors.DeviceUnavailable, "camera %d did not open", dev)
	}
	if o.settings.Width > 0 && o.settings.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(o.settings.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(o.settings.Height))
	}

	s := &opencvStream{
		vc:     vc,
		device: dev,
		buf:    NewFrameBuffer(),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

type opencvStream struct {
	vc     *gocv.VideoCapture
	device int
	buf    *FrameBuffer

	dead      atomic.Bool
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func (s *opencvStream) readLoop() {
	defer close(s.done)
	mat := gocv.NewMat()
	defer mat.Close()

	misses := 0
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		if !s.vc.Read(&mat) || mat.Empty() {
			misses++
			if misses >= maxReadMisses {
				slog.Error("camera stopped producing frames",
					"device", s.device,
					"frames", s.buf.FrameCount(),
					"last_frame", s.buf.LastFrameTime(),
				)
				s.dead.Store(true)
				s.buf.Reset()
				return
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}
		misses = 0

		img, err := mat.ToImage()
		if err != nil {
			slog.Debug("frame conversion failed", "device", s.device, "error", err)
			continue
		}
		s.buf.Write(img)
	}
}

// Frame returns the latest frame, or nil once the device has stopped
// delivering.
func (s *opencvStream) Frame() image.Image {
	if s.dead.Load() {
		return nil
	}
	return s.buf.Fresh(staleFrameAge)
}

// Alive reports whether the reader is still receiving frames.
func (s *opencvStream) Alive() bool { return !s.dead.Load() }

func (s *opencvStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
		s.buf.Reset()
		s.closeErr = s.vc.Close()
	})
	return s.closeErr
}
