package layers

import (
	"fmt"

	"github.com/agrishield/agrishield-ai/tensor"
)

// AvgPool2D averages non-overlapping Size×Size windows of [H, W, C] input.
type AvgPool2D struct {
	Size int

	lastShape []int
}

// NewAvgPool2D creates an average-pooling layer.
func NewAvgPool2D(size int) *AvgPool2D { return &AvgPool2D{Size: size} }

// Forward implements nn.Module.
func (p *AvgPool2D) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if len(x.Shape) != 3 {
		return nil, fmt.Errorf("avgpool: want [H W C] input, got %v", x.Shape)
	}
	h, w, ch := x.Shape[0], x.Shape[1], x.Shape[2]
	if h%p.Size != 0 || w%p.Size != 0 {
		return nil, fmt.Errorf("avgpool: input %dx%d not divisible by window %d", h, w, p.Size)
	}
	p.lastShape = x.Shape

	oh, ow := h/p.Size, w/p.Size
	out := tensor.New(oh, ow, ch)
	norm := float64(p.Size * p.Size)
	for oy := 0; oy < oh; oy++ {
		for ox := 0; ox < ow; ox++ {
			for c := 0; c < ch; c++ {
				sum := 0.0
				for ky := 0; ky < p.Size; ky++ {
					for kx := 0; kx < p.Size; kx++ {
						sum += x.Data[((oy*p.Size+ky)*w+ox*p.Size+kx)*ch+c]
					}
				}
				out.Data[(oy*ow+ox)*ch+c] = sum / norm
			}
		}
	}
	return out, nil
}

// Backward implements nn.Module.
func (p *AvgPool2D) Backward(gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	if p.lastShape == nil {
		return nil, fmt.Errorf("avgpool: Backward before Forward")
	}
	h, w, ch := p.lastShape[0], p.lastShape[1], p.lastShape[2]
	oh, ow := h/p.Size, w/p.Size
	norm := float64(p.Size * p.Size)

	gradIn := tensor.New(h, w, ch)
	for oy := 0; oy < oh; oy++ {
		for ox := 0; ox < ow; ox++ {
			for c := 0; c < ch; c++ {
				g := gradOut.Data[(oy*ow+ox)*ch+c] / norm
				for ky := 0; ky < p.Size; ky++ {
					for kx := 0; kx < p.Size; kx++ {
						gradIn.Data[((oy*p.Size+ky)*w+ox*p.Size+kx)*ch+c] = g
					}
				}
			}
		}
	}
	return gradIn, nil
}

// GlobalAvgPool2D collapses [H, W, C] input to a [C] feature vector.
type GlobalAvgPool2D struct {
	lastShape []int
}

// NewGlobalAvgPool2D creates a global average-pooling layer.
func NewGlobalAvgPool2D() *GlobalAvgPool2D { return &GlobalAvgPool2D{} }

// Forward implements nn.Module.
func (p *GlobalAvgPool2D) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if len(x.Shape) != 3 {
		return nil, fmt.Errorf("globalavgpool: want [H W C] input, got %v", x.Shape)
	}
	h, w, ch := x.Shape[0], x.Shape[1], x.Shape[2]
	p.lastShape = x.Shape

	out := tensor.New(ch)
	for i, v := range x.Data {
		out.Data[i%ch] += v
	}
	norm := float64(h * w)
	for c := range out.Data {
		out.Data[c] /= norm
	}
	return out, nil
}

// Backward implements nn.Module.
func (p *GlobalAvgPool2D) Backward(gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	if p.lastShape == nil {
		return nil, fmt.Errorf("globalavgpool: Backward before Forward")
	}
	h, w, ch := p.lastShape[0], p.lastShape[1], p.lastShape[2]
	norm := float64(h * w)

	gradIn := tensor.New(h, w, ch)
	for i := range gradIn.Data {
		gradIn.Data[i] = gradOut.Data[i%ch] / norm
	}
	return gradIn, nil
}
