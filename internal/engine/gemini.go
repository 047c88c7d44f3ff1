package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/GriffinCanCode/textcam/internal/still"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

const geminiPrompt = `Transcribe all text visible in this photo exactly as written, preserving line breaks.
Do not describe the image. If there is no legible text, return an empty string.
Report your confidence in the transcription as a number between 0 and 1.`

// Gemini transcribes stills with a multimodal Gemini model. With no API key
// the client is configured from the environment (GOOGLE_GENAI_USE_VERTEXAI,
// GOOGLE_CLOUD_PROJECT, GOOGLE_CLOUD_LOCATION).
type Gemini struct {
	apiKey string
	model  string
	langs  []string
	client *genai.Client
}

// NewGemini creates a Gemini backend.
func NewGemini(apiKey, model string) *Gemini {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{apiKey: apiKey, model: model}
}

func (g *Gemini) Name() string { return BackendGemini }

func (g *Gemini) Init(ctx context.Context, languages []string) error {
	var cfg *genai.ClientConfig
	if g.apiKey != "" {
		cfg = &genai.ClientConfig{APIKey: g.apiKey, Backend: genai.BackendGeminiAPI}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create gemini client: %w", err)
	}
	g.client = client
	g.langs = LanguageHints(languages)
	return nil
}

func (g *Gemini) Recognize(ctx context.Context, img still.Image) (Recognition, error) {
	prompt := geminiPrompt
	if len(g.langs) > 0 {
		prompt += "\nExpected languages: " + strings.Join(g.langs, ", ") + "."
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(img.Data, img.MIMEType),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, geminiConfig())
	if err != nil {
		return Recognition{}, fmt.Errorf("gemini API request failed: %w", err)
	}
	return parseGeminiJSON(resp.Text())
}

func (g *Gemini) Close() error {
	g.client = nil
	return nil
}

func geminiConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"text":       {Type: genai.TypeString},
				"confidence": {Type: genai.TypeNumber},
			},
			Required: []string{"text", "confidence"},
		},
	}
}

func parseGeminiJSON(raw string) (Recognition, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Recognition{}, fmt.Errorf("gemini returned an empty response")
	}
	var rec Recognition
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Recognition{}, fmt.Errorf("decode gemini response: %w", err)
	}
	return rec, nil
}
