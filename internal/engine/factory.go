package engine

import (
	"fmt"

	"github.com/GriffinCanCode/textcam/internal/config"
)

// Backend names accepted by OCR_ENGINE.
const (
	BackendTesseract = "tesseract"
	BackendVision    = "vision"
	BackendGemini    = "gemini"
	BackendRemote    = "remote"
)

// NewFromConfig builds an uninitialized engine for cfg.Engine.
func NewFromConfig(cfg *config.Config) (*Engine, error) {
	b, err := NewBackend(cfg)
	if err != nil {
		return nil, err
	}
	return New(b, cfg.Languages), nil
}

// NewBackend selects the backend named by cfg.Engine.
func NewBackend(cfg *config.Config) (Backend, error) {
	switch cfg.Engine {
	case BackendTesseract:
		return NewTesseract(), nil
	case BackendVision:
		return NewVision(cfg.VisionCredsFile), nil
	case BackendGemini:
		return NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel), nil
	case BackendRemote:
		return NewRemote(cfg.InferenceAddr), nil
	default:
		return nil, fmt.Errorf("unknown OCR engine %q", cfg.Engine)
	}
}
