// Package camera owns the camera stream: device acquisition per facing mode,
// scoped release on switch, and access to the latest frame.
package camera

import (
	"context"
	"fmt"
	"image"

	apperrors "github.com/GriffinCanCode/textcam/internal/errors"
)

// Facing selects which camera to use.
type Facing string

const (
	Environment Facing = "environment" // rear camera, pointed at the document
	User        Facing = "user"        // front camera
)

// ParseFacing validates a facing mode name.
func ParseFacing(s string) (Facing, error) {
	switch f := Facing(s); f {
	case Environment, User:
		return f, nil
	default:
		return "", apperrors.Newf(apperrors.InvalidArgument, "unknown facing mode %q", s)
	}
}

// Toggle returns the opposite facing mode.
func (f Facing) Toggle() Facing {
	if f == User {
		return Environment
	}
	return User
}

// Stream is an acquired camera. Frame returns nil until the first frame has
// arrived. Close releases the device.
type Stream interface {
	Frame() image.Image
	Close() error
}

// Source acquires camera streams. Acquire fails with PermissionDenied or
// DeviceUnavailable.
type Source interface {
	Acquire(ctx context.Context, facing Facing) (Stream, error)
}

// Settings configures device selection and capture size.
type Settings struct {
	EnvironmentDevice int
	UserDevice        int
	Width             int
	Height            int
	File              string // still image for the file backend
}

// Device maps a facing mode to a device index.
func (s Settings) Device(f Facing) int {
	if f == User {
		return s.UserDevice
	}
	return s.EnvironmentDevice
}

// NewSource builds the named backend: "opencv" or "file".
func NewSource(backend string, s Settings) (Source, error) {
	switch backend {
	case "opencv", "":
		return NewOpenCV(s), nil
	case "file":
		if s.File == "" {
			return nil, fmt.Errorf("file camera backend requires CAMERA_FILE")
		}
		return &FileSource{Path: s.File}, nil
	default:
		return nil, fmt.Errorf("unknown camera backend %q", backend)
	}
}
