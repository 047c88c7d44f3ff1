package camera

import (
	"context"
	"errors"
	"image"
	"io/fs"

	"github.com/disintegration/imaging"

	apperrors "github.com/GriffinCanCode/textcam/internal/errors"
)

// FileSource serves a still image as a camera, for headless runs and demos.
// Both facing modes show the same image.
type FileSource struct {
	Path string
}

func (f *FileSource) Acquire(ctx context.Context, facing Facing) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.DeviceUnavailable, "camera acquire cancelled")
	}
	img, err := imaging.Open(f.Path, imaging.AutoOrientation(true))
	if err != nil {
		code := apperrors.DeviceUnavailable
		if errors.Is(err, fs.ErrPermission) {
			code = apperrors.PermissionDenied
		}
		return nil, apperrors.Wrapf(err, code, "open camera file %s", f.Path).
			WithMetadata("facing", string(facing))
	}
	return NewStaticStream(img), nil
}

// StaticStream always returns the same frame.
type StaticStream struct {
	buf *FrameBuffer
}

// NewStaticStream wraps a fixed frame as a stream.
func NewStaticStream(img image.Image) *StaticStream {
	buf := NewFrameBuffer()
	buf.Write(img)
	return &StaticStream{buf: buf}
}

func (s *StaticStream) Frame() image.Image { return s.buf.Read() }

func (s *StaticStream) Close() error {
	s.buf.Reset()
	return nil
}
