//go:build !opencv

package camera

import (
	"context"

	apperrors "github.com/GriffinCanCode/textcam/internal/errors"
)

type unsupportedSource struct{}

// NewOpenCV returns a Source that always fails: this binary was built
// without the opencv tag.
func NewOpenCV(Settings) Source {
	return unsupportedSource{}
}

func (unsupportedSource) Acquire(context.Context, Facing) (Stream, error) {
	return nil, apperrors.New(apperrors.DeviceUnavailable, "camera support not built in (rebuild with -tags opencv)")
}
