package camera

import (
	"image"
	"sync/atomic"
	"time"
)

type bufferedFrame struct {
	img image.Image
	at  time.Time
}

// FrameBuffer holds the most recent frame from a reader goroutine. Writers
// never block; readers always see a complete frame.
type FrameBuffer struct {
	latest atomic.Pointer[bufferedFrame]
	count  atomic.Uint64
}

// NewFrameBuffer creates an empty buffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{}
}

// Write replaces the latest frame. Nil frames are ignored.
func (b *FrameBuffer) Write(img image.Image) {
	if img == nil {
		return
	}
	b.latest.Store(&bufferedFrame{img: img, at: time.Now()})
	b.count.Add(1)
}

// Read returns the latest frame, or nil before the first Write.
func (b *FrameBuffer) Read() image.Image {
	if f := b.latest.Load(); f != nil {
		return f.img
	}
	return nil
}

// Fresh returns the latest frame only if it was written within maxAge.
// A maxAge of zero or less disables the check.
func (b *FrameBuffer) Fresh(maxAge time.Duration) image.Image {
	f := b.latest.Load()
	if f == nil {
		return nil
	}
	if maxAge > 0 && time.Since(f.at) > maxAge {
		return nil
	}
	return f.img
}

// FrameCount returns the number of frames written.
func (b *FrameBuffer) FrameCount() uint64 {
	return b.count.Load()
}

// LastFrameTime returns when the latest frame was written.
func (b *FrameBuffer) LastFrameTime() time.Time {
	if f := b.latest.Load(); f != nil {
		return f.at
	}
	return time.Time{}
}

// Reset drops the buffered frame.
func (b *FrameBuffer) Reset() {
	b.latest.Store(nil)
}
