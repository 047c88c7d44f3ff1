// Package contrast measures luma contrast inside a centered region of a frame.
// The variance of luma is used as a cheap proxy for "this region holds text".
package contrast

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Luma weights (ITU-R BT.601).
const (
	WeightR = 0.299
	WeightG = 0.587
	WeightB = 0.114
)

// MaxThreshold is the upper end of the meaningful variance threshold domain.
const MaxThreshold = 2000.0

// Fraction sizes a region of interest relative to the frame.
type Fraction struct {
	W float64
	H float64
}

// DefaultFraction is a 60% by 20% band across the middle of the frame.
var DefaultFraction = Fraction{W: 0.6, H: 0.2}

// Stats holds the luma statistics of a region.
type Stats struct {
	Mean     float64
	Variance float64
	Pixels   int
}

// Region returns the centered rectangle covering f of bounds.
// It returns an empty rectangle when bounds or f are degenerate.
func Region(bounds image.Rectangle, f Fraction) image.Rectangle {
	if bounds.Empty() || !(f.W > 0) || !(f.H > 0) {
		return image.Rectangle{}
	}
	w, h := bounds.Dx(), bounds.Dy()
	rw := int(float64(w) * min(f.W, 1))
	rh := int(float64(h) * min(f.H, 1))
	if rw <= 0 || rh <= 0 {
		return image.Rectangle{}
	}
	x := bounds.Min.X + (w-rw)/2
	y := bounds.Min.Y + (h-rh)/2
	return image.Rect(x, y, x+rw, y+rh)
}

// Luma converts an 8-bit RGB triple to luma.
func Luma(r, g, b uint8) float64 {
	return WeightR*float64(r) + WeightG*float64(g) + WeightB*float64(b)
}

// Measure computes mean and population variance of luma over r in a single
// pass. ok is false when r does not overlap img.
func Measure(img image.Image, r image.Rectangle) (Stats, bool) {
	if img == nil {
		return Stats{}, false
	}
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return Stats{}, false
	}

	var sum, sumSq float64
	add := func(y float64) {
		sum += y
		sumSq += y * y
	}

	switch src := img.(type) {
	case *image.NRGBA:
		for y := r.Min.Y; y < r.Max.Y; y++ {
			i := src.PixOffset(r.Min.X, y)
			for x := r.Min.X; x < r.Max.X; x++ {
				add(Luma(src.Pix[i], src.Pix[i+1], src.Pix[i+2]))
				i += 4
			}
		}
	case *image.RGBA:
		for y := r.Min.Y; y < r.Max.Y; y++ {
			i := src.PixOffset(r.Min.X, y)
			for x := r.Min.X; x < r.Max.X; x++ {
				add(Luma(src.Pix[i], src.Pix[i+1], src.Pix[i+2]))
				i += 4
			}
		}
	case *image.Gray:
		for y := r.Min.Y; y < r.Max.Y; y++ {
			i := src.PixOffset(r.Min.X, y)
			for x := r.Min.X; x < r.Max.X; x++ {
				v := src.Pix[i]
				add(Luma(v, v, v))
				i++
			}
		}
	default:
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
				add(Luma(c.R, c.G, c.B))
			}
		}
	}

	n := float64(r.Dx() * r.Dy())
	mean := sum / n
	variance := sumSq/n - mean*mean
	// Rounding can push a flat region slightly below zero.
	if variance < 0 {
		variance = 0
	}
	return Stats{Mean: mean, Variance: variance, Pixels: r.Dx() * r.Dy()}, true
}

// Sample crops frame to its region of interest, downsamples the crop to at
// most maxWidth pixels wide (0 disables), and measures it. The returned image
// is the sampled crop.
func Sample(frame image.Image, f Fraction, maxWidth int) (Stats, image.Image, bool) {
	if frame == nil {
		return Stats{}, nil, false
	}
	roi := Region(frame.Bounds(), f)
	if roi.Empty() {
		return Stats{}, nil, false
	}

	var crop image.Image = imaging.Crop(frame, roi)
	if maxWidth > 0 && roi.Dx() > maxWidth {
		crop = imaging.Resize(crop, maxWidth, 0, imaging.NearestNeighbor)
	}

	stats, ok := Measure(crop, crop.Bounds())
	return stats, crop, ok
}

// ClampThreshold limits t to [0, MaxThreshold]. NaN maps to MaxThreshold.
func ClampThreshold(t float64) float64 {
	switch {
	case math.IsNaN(t):
		return MaxThreshold
	case t < 0:
		return 0
	case t > MaxThreshold:
		return MaxThreshold
	default:
		return t
	}
}

// Exceeds reports whether the region's variance is strictly above threshold.
func (s Stats) Exceeds(threshold float64) bool {
	return s.Variance > threshold
}
