package dataset

import (
	"math"
	"math/rand"

	"github.com/agrishield/agrishield-ai/tensor"
)

// Augmenter applies training-time image augmentation: horizontal flip,
// rotation up to 10% of a full turn, zoom up to 15%, contrast jitter up to
// 20% and brightness jitter up to 20%, each sampled independently per image.
// Validation data never goes through an Augmenter.
type Augmenter struct {
	MaxRotation   float64 // fraction of a full turn
	MaxZoom       float64
	MaxContrast   float64
	MaxBrightness float64

	rng *rand.Rand
}

// NewAugmenter creates an augmenter with the default jitter ranges and a
// seeded source so batch content stays reproducible.
func NewAugmenter(seed int64) *Augmenter {
	return &Augmenter{
		MaxRotation:   0.1,
		MaxZoom:       0.15,
		MaxContrast:   0.2,
		MaxBrightness: 0.2,
		rng:           rand.New(rand.NewSource(seed)),
	}
}

func clampPixel(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// Apply returns an augmented copy of a [H, W, C] image with [0,255] pixels.
func (a *Augmenter) Apply(img *tensor.Tensor) *tensor.Tensor {
	flip := a.rng.Float64() < 0.5
	angle := (a.rng.Float64()*2 - 1) * a.MaxRotation * 2 * math.Pi
	zoom := 1 + (a.rng.Float64()*2-1)*a.MaxZoom
	contrast := 1 + (a.rng.Float64()*2-1)*a.MaxContrast
	brightness := (a.rng.Float64()*2 - 1) * a.MaxBrightness * 255

	out := a.warp(img, flip, angle, zoom)

	h, w, c := out.Shape[0], out.Shape[1], out.Shape[2]
	for ch := 0; ch < c; ch++ {
		mean := 0.0
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				mean += out.Data[(y*w+x)*c+ch]
			}
		}
		mean /= float64(h * w)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := (y*w+x)*c + ch
				v := (out.Data[i]-mean)*contrast + mean + brightness
				out.Data[i] = clampPixel(v)
			}
		}
	}
	return out
}

// warp applies flip, rotation and zoom as a single inverse-mapped affine
// transform about the image center with bilinear sampling, clamping source
// coordinates at the edges.
func (a *Augmenter) warp(img *tensor.Tensor, flip bool, angle, zoom float64) *tensor.Tensor {
	h, w, c := img.Shape[0], img.Shape[1], img.Shape[2]
	out := tensor.New(h, w, c)

	cy := float64(h-1) / 2
	cx := float64(w-1) / 2
	sin, cos := math.Sincos(-angle) // inverse rotation
	inv := 1 / zoom

	for y := 0; y < h; y++ {
		dy := (float64(y) - cy) * inv
		for x := 0; x < w; x++ {
			dx := (float64(x) - cx) * inv
			if flip {
				dx = -dx
			}
			sx := cx + dx*cos - dy*sin
			sy := cy + dx*sin + dy*cos
			a.sampleBilinear(img, out, x, y, sx, sy)
		}
	}
	return out
}

func (a *Augmenter) sampleBilinear(img, out *tensor.Tensor, x, y int, sx, sy float64) {
	h, w, c := img.Shape[0], img.Shape[1], img.Shape[2]
	if sx < 0 {
		sx = 0
	}
	if sx > float64(w-1) {
		sx = float64(w - 1)
	}
	if sy < 0 {
		sy = 0
	}
	if sy > float64(h-1) {
		sy = float64(h - 1)
	}

	x0, y0 := int(sx), int(sy)
	x1, y1 := x0+1, y0+1
	if x1 > w-1 {
		x1 = w - 1
	}
	if y1 > h-1 {
		y1 = h - 1
	}
	fx, fy := sx-float64(x0), sy-float64(y0)

	for ch := 0; ch < c; ch++ {
		v00 := img.Data[(y0*w+x0)*c+ch]
		v01 := img.Data[(y0*w+x1)*c+ch]
		v10 := img.Data[(y1*w+x0)*c+ch]
		v11 := img.Data[(y1*w+x1)*c+ch]
		top := v00 + (v01-v00)*fx
		bot := v10 + (v11-v10)*fx
		out.Data[(y*w+x)*c+ch] = top + (bot-top)*fy
	}
}
