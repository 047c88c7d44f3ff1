package engine

import (
	"testing"

	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
	statuspb "google.golang.org/genproto/googleapis/rpc/status"
)

func TestParseVisionResponse(t *testing.T) {
	resp := &visionpb.AnnotateImageResponse{
		FullTextAnnotation: &visionpb.TextAnnotation{
			Text: "HELLO\nWORLD\n",
			Pages: []*visionpb.Page{
				{Confidence: 0.8},
				{Confidence: 1.0},
			},
		},
	}

	rec, err := parseVisionResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "HELLO\nWORLD\n", rec.Text)
	assert.InDelta(t, 0.9, rec.Confidence, 1e-6)
}

func TestParseVisionResponseEmpty(t *testing.T) {
	rec, err := parseVisionResponse(&visionpb.AnnotateImageResponse{})
	require.NoError(t, err)
	assert.Equal(t, Recognition{}, rec)
}

func TestParseVisionResponseError(t *testing.T) {
	_, err := parseVisionResponse(&visionpb.AnnotateImageResponse{
		Error: &statuspb.Status{Code: 3, Message: "bad image"},
	})
	assert.ErrorContains(t, err, "bad image")
}

func TestParseGeminiJSON(t *testing.T) {
	rec, err := parseGeminiJSON(` {"text": "HELLO", "confidence": 0.9} `)
	require.NoError(t, err)
	assert.Equal(t, Recognition{Text: "HELLO", Confidence: 0.9}, rec)

	_, err = parseGeminiJSON("")
	assert.Error(t, err)

	_, err = parseGeminiJSON("HELLO")
	assert.Error(t, err)
}

func TestGeminiConfigRequestsJSON(t *testing.T) {
	cfg := geminiConfig()

	assert.Equal(t, "application/json", cfg.ResponseMIMEType)
	require.NotNil(t, cfg.ResponseSchema)
	assert.Equal(t, genai.TypeObject, cfg.ResponseSchema.Type)
	assert.ElementsMatch(t, []string{"text", "confidence"}, cfg.ResponseSchema.Required)
	assert.Equal(t, float32(0), *cfg.Temperature)
}

func TestNewGeminiDefaultModel(t *testing.T) {
	assert.Equal(t, DefaultGeminiModel, NewGemini("", "").model)
	assert.Equal(t, "gemini-x", NewGemini("", "gemini-x").model)
}
