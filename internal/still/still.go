// Package still encodes camera frames into self-contained still images that
// are both submitted for recognition and offered for download.
package still

import (
	"bytes"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
)

const (
	// DefaultQuality is the JPEG quality used when none is configured.
	DefaultQuality = 92

	// MIMEType of every encoded still.
	MIMEType = "image/jpeg"

	// Format is the short format name passed to recognition backends.
	Format = "jpeg"
)

// Image is an encoded still with the dimensions of the source frame.
type Image struct {
	Data       []byte
	MIMEType   string
	Width      int
	Height     int
	CapturedAt time.Time
}

// Empty reports whether the still carries no data.
func (i Image) Empty() bool { return len(i.Data) == 0 }

// Filename suggests a download name derived from the capture time.
func (i Image) Filename() string {
	return "capture-" + i.CapturedAt.UTC().Format("20060102-150405") + ".jpg"
}

// Encode snapshots frame into a JPEG still at the given quality (1..100).
// Out-of-range qualities fall back to DefaultQuality.
func Encode(frame image.Image, quality int) (Image, error) {
	if frame == nil || frame.Bounds().Empty() {
		return Image{}, fmt.Errorf("encode still: empty frame")
	}
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, frame, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return Image{}, fmt.Errorf("encode still: %w", err)
	}

	b := frame.Bounds()
	return Image{
		Data:       buf.Bytes(),
		MIMEType:   MIMEType,
		Width:      b.Dx(),
		Height:     b.Dy(),
		CapturedAt: time.Now(),
	}, nil
}
