//go:build linux

package camera

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	apperrors "github.com/GriffinCanCode/textcam/internal/errors"
)

// devicePath is a variable so tests can point it at a temp dir.
var devicePath = func(index int) string {
	return fmt.Sprintf("/dev/video%d", index)
}

// checkDevice distinguishes a missing device from one the process may not
// open, which OpenCV reports identically.
func checkDevice(index int) error {
	path := devicePath(index)
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	switch {
	case err == nil:
		return f.Close()
	case errors.Is(err, fs.ErrPermission):
		return apperrors.Wrapf(err, apperrors.PermissionDenied, "camera %s", path)
	default:
		return apperrors.Wrapf(err, apperrors.DeviceUnavailable, "camera %s", path)
	}
}
