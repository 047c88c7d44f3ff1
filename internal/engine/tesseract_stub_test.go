//go:build !tesseract

package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/GriffinCanCode/textcam/internal/errors"
)

func TestTesseractStubFailsInitialize(t *testing.T) {
	e := New(NewTesseract(), []string{"eng"})

	err := e.Initialize(context.Background())
	assert.True(t, apperrors.IsCode(err, apperrors.EngineInitFailed))
	assert.False(t, e.Ready())
}
