package engine

import (
	"context"
	"image/color"
	"os"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/textcam/internal/still"
)

// TestRemoteIntegration talks to a real recognizer. Run with
// INTEGRATION_TEST=1 and INFERENCE_ADDR pointing at cmd/recognizer.
func TestRemoteIntegration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "1" {
		t.Skip("set INTEGRATION_TEST=1 to run")
	}
	addr := os.Getenv("INFERENCE_ADDR")
	if addr == "" {
		addr = "localhost:50051"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	e := New(NewRemote(addr), []string{"eng"})
	require.NoError(t, e.Initialize(ctx))
	defer e.Close()

	img, err := still.Encode(imaging.New(200, 80, color.White), still.DefaultQuality)
	require.NoError(t, err)

	_, err = e.Recognize(ctx, img)
	require.NoError(t, err)
}
