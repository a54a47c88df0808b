// Package layers implements the individual network layers used by the
// backbone and the classification head.
package layers

import (
	"fmt"

	"github.com/agrishield/agrishield-ai/nn"
	"github.com/agrishield/agrishield-ai/tensor"
)

// Conv2D is a 2-D convolution over channels-last [H, W, C] input.
// The weight tensor is laid out [OutChannels, InChannels, Kernel, Kernel].
type Conv2D struct {
	InChannels  int
	OutChannels int
	Kernel      int
	Stride      int
	Pad         int

	weight *nn.Param
	bias   *nn.Param

	trainable bool
	lastInput *tensor.Tensor
}

// NewConv2D creates a convolution layer with zeroed weights. The name
// prefixes the parameter names in weight snapshots.
func NewConv2D(name string, inChannels, outChannels, kernel, stride, pad int) *Conv2D {
	return &Conv2D{
		InChannels:  inChannels,
		OutChannels: outChannels,
		Kernel:      kernel,
		Stride:      stride,
		Pad:         pad,
		weight: &nn.Param{
			Name:  name + ".weight",
			Value: tensor.New(outChannels, inChannels, kernel, kernel),
			Grad:  tensor.New(outChannels, inChannels, kernel, kernel),
		},
		bias: &nn.Param{
			Name:  name + ".bias",
			Value: tensor.New(outChannels),
			Grad:  tensor.New(outChannels),
		},
		trainable: true,
	}
}

// Params implements nn.ParamModule.
func (c *Conv2D) Params() []*nn.Param { return []*nn.Param{c.weight, c.bias} }

// SetTrainable implements nn.ParamModule.
func (c *Conv2D) SetTrainable(trainable bool) { c.trainable = trainable }

// Trainable implements nn.ParamModule.
func (c *Conv2D) Trainable() bool { return c.trainable }

func (c *Conv2D) outDim(in int) int {
	return (in+2*c.Pad-c.Kernel)/c.Stride + 1
}

// Forward implements nn.Module.
func (c *Conv2D) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if len(x.Shape) != 3 || x.Shape[2] != c.InChannels {
		return nil, fmt.Errorf("conv: want [H W %d] input, got %v", c.InChannels, x.Shape)
	}
	c.lastInput = x

	h, w := x.Shape[0], x.Shape[1]
	oh, ow := c.outDim(h), c.outDim(w)
	out := tensor.New(oh, ow, c.OutChannels)

	for oy := 0; oy < oh; oy++ {
		for ox := 0; ox < ow; ox++ {
			for oc := 0; oc < c.OutChannels; oc++ {
				sum := c.bias.Value.Data[oc]
				for ky := 0; ky < c.Kernel; ky++ {
					iy := oy*c.Stride + ky - c.Pad
					if iy < 0 || iy >= h {
						continue
					}
					for kx := 0; kx < c.Kernel; kx++ {
						ix := ox*c.Stride + kx - c.Pad
						if ix < 0 || ix >= w {
							continue
						}
						for ic := 0; ic < c.InChannels; ic++ {
							sum += x.Data[(iy*w+ix)*c.InChannels+ic] *
								c.weight.Value.At(oc, ic, ky, kx)
						}
					}
				}
				out.Data[(oy*ow+ox)*c.OutChannels+oc] = sum
			}
		}
	}
	return out, nil
}

// Backward implements nn.Module. Parameter gradients are accumulated only
// while the layer is trainable; the input gradient is always produced so
// that frozen backbone layers still pass gradients through.
func (c *Conv2D) Backward(gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	if c.lastInput == nil {
		return nil, fmt.Errorf("conv: Backward before Forward")
	}
	x := c.lastInput
	h, w := x.Shape[0], x.Shape[1]
	oh, ow := c.outDim(h), c.outDim(w)
	if len(gradOut.Shape) != 3 || gradOut.Shape[0] != oh || gradOut.Shape[1] != ow || gradOut.Shape[2] != c.OutChannels {
		return nil, fmt.Errorf("conv: want [%d %d %d] gradient, got %v", oh, ow, c.OutChannels, gradOut.Shape)
	}

	gradIn := tensor.New(h, w, c.InChannels)
	for oy := 0; oy < oh; oy++ {
		for ox := 0; ox < ow; ox++ {
			for oc := 0; oc < c.OutChannels; oc++ {
				g := gradOut.Data[(oy*ow+ox)*c.OutChannels+oc]
				if g == 0 {
					continue
				}
				if c.trainable {
					c.bias.Grad.Data[oc] += g
				}
				for ky := 0; ky < c.Kernel; ky++ {
					iy := oy*c.Stride + ky - c.Pad
					if iy < 0 || iy >= h {
						continue
					}
					for kx := 0; kx < c.Kernel; kx++ {
						ix := ox*c.Stride + kx - c.Pad
						if ix < 0 || ix >= w {
							continue
						}
						for ic := 0; ic < c.InChannels; ic++ {
							in := x.Data[(iy*w+ix)*c.InChannels+ic]
							wv := c.weight.Value.At(oc, ic, ky, kx)
							if c.trainable {
								idx := ((oc*c.InChannels+ic)*c.Kernel+ky)*c.Kernel + kx
								c.weight.Grad.Data[idx] += g * in
							}
							gradIn.Data[(iy*w+ix)*c.InChannels+ic] += g * wv
						}
					}
				}
			}
		}
	}
	return gradIn, nil
}
