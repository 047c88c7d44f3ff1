//go:build !tesseract

package engine

import (
	"context"
	"errors"

	"github.com/GriffinCanCode/textcam/internal/still"
)

var errNoTesseract = errors.New("tesseract support not built in (rebuild with -tags tesseract)")

type tesseractStub struct{}

// NewTesseract returns a backend that fails to initialize: this binary was
// built without the tesseract tag.
func NewTesseract() Backend { return tesseractStub{} }

func (tesseractStub) Name() string { return BackendTesseract }

func (tesseractStub) Init(context.Context, []string) error { return errNoTesseract }

func (tesseractStub) Recognize(context.Context, still.Image) (Recognition, error) {
	return Recognition{}, errNoTesseract
}

func (tesseractStub) Close() error { return nil }
