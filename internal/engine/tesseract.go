//go:build tesseract

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/GriffinCanCode/textcam/internal/still"
)

// Tesseract runs OCR in-process through libtesseract. A client is not safe
// for concurrent use, so calls are serialized.
type Tesseract struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewTesseract creates a tesseract backend.
func NewTesseract() Backend {
	return &Tesseract{}
}

func (t *Tesseract) Name() string { return BackendTesseract }

func (t *Tesseract) Init(ctx context.Context, languages []string) error {
	client := gosseract.NewClient()
	if err := client.SetLanguage(languages...); err != nil {
		_ = client.Close()
		return fmt.Errorf("set tesseract languages: %w", err)
	}

	t.mu.Lock()
	t.client = client
	t.mu.Unlock()

	slog.Debug("tesseract loaded", "version", gosseract.Version(), "languages", languages)
	return nil
}

func (t *Tesseract) Recognize(ctx context.Context, img still.Image) (Recognition, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil {
		return Recognition{}, fmt.Errorf("tesseract client closed")
	}
	if err := t.client.SetImageFromBytes(img.Data); err != nil {
		return Recognition{}, fmt.Errorf("load image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Recognition{}, err
	}

	text, err := t.client.Text()
	if err != nil {
		return Recognition{}, fmt.Errorf("tesseract: %w", err)
	}

	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return Recognition{}, fmt.Errorf("tesseract word boxes: %w", err)
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
	}
	conf := 0.0
	if len(boxes) > 0 {
		conf = sum / float64(len(boxes)) / 100
	}

	return Recognition{Text: text, Confidence: conf}, nil
}

func (t *Tesseract) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}
