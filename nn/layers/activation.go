package layers

import (
	"fmt"

	"github.com/agrishield/agrishield-ai/tensor"
)

// ReLU is the rectified linear activation.
type ReLU struct {
	lastInput *tensor.Tensor
}

// NewReLU creates a ReLU activation layer.
func NewReLU() *ReLU { return &ReLU{} }

// Forward implements nn.Module.
func (r *ReLU) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	r.lastInput = x
	out := tensor.New(x.Shape...)
	for i, v := range x.Data {
		if v > 0 {
			out.Data[i] = v
		}
	}
	return out, nil
}

// Backward implements nn.Module.
func (r *ReLU) Backward(gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	if r.lastInput == nil {
		return nil, fmt.Errorf("relu: Backward before Forward")
	}
	gradIn := tensor.New(r.lastInput.Shape...)
	for i, v := range r.lastInput.Data {
		if v > 0 {
			gradIn.Data[i] = gradOut.Data[i]
		}
	}
	return gradIn, nil
}
