package still

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 80, A: 255})
		}
	}
	return img
}

func TestEncodeProducesJPEG(t *testing.T) {
	img, err := Encode(gradient(64, 32), 90)
	require.NoError(t, err)

	assert.Equal(t, MIMEType, img.MIMEType)
	assert.Equal(t, 64, img.Width)
	assert.Equal(t, 32, img.Height)
	require.Greater(t, len(img.Data), 2)
	assert.Equal(t, []byte{0xFF, 0xD8}, img.Data[:2], "JPEG SOI marker")
	assert.False(t, img.CapturedAt.IsZero())
}

func TestEncodeRoundTripDimensions(t *testing.T) {
	img, err := Encode(gradient(40, 30), 0)
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Width)
	assert.Equal(t, 30, cfg.Height)
}

func TestEncodeQualityAffectsSize(t *testing.T) {
	src := gradient(128, 128)

	low, err := Encode(src, 10)
	require.NoError(t, err)
	high, err := Encode(src, 100)
	require.NoError(t, err)

	assert.Less(t, len(low.Data), len(high.Data))
}

func TestEncodeEmptyFrame(t *testing.T) {
	_, err := Encode(nil, 90)
	assert.Error(t, err)

	_, err = Encode(image.NewNRGBA(image.Rectangle{}), 90)
	assert.Error(t, err)
}

func TestFilename(t *testing.T) {
	img := Image{CapturedAt: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)}

	name := img.Filename()
	assert.Equal(t, "capture-20260304-050607.jpg", name)
	assert.True(t, strings.HasSuffix(name, ".jpg"))
}
