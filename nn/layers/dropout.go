package layers

import (
	"fmt"
	"math/rand"

	"github.com/agrishield/agrishield-ai/tensor"
)

// Dropout zeroes a random fraction of its input during training, scaling
// the survivors by 1/(1-rate). In evaluation mode it is the identity.
type Dropout struct {
	Rate float64

	rng      *rand.Rand
	training bool
	mask     []float64
}

// NewDropout creates a dropout layer with its own seeded source so runs
// stay reproducible.
func NewDropout(rate float64, seed int64) *Dropout {
	return &Dropout{
		Rate: rate,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// SetTraining implements nn.ModeModule.
func (d *Dropout) SetTraining(training bool) { d.training = training }

// Forward implements nn.Module.
func (d *Dropout) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if !d.training || d.Rate <= 0 {
		d.mask = nil
		return x, nil
	}

	keep := 1 - d.Rate
	scale := 1 / keep
	d.mask = make([]float64, x.Size())
	out := tensor.New(x.Shape...)
	for i, v := range x.Data {
		if d.rng.Float64() < keep {
			d.mask[i] = scale
			out.Data[i] = v * scale
		}
	}
	return out, nil
}

// Backward implements nn.Module.
func (d *Dropout) Backward(gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	if d.mask == nil {
		return gradOut, nil
	}
	if len(d.mask) != gradOut.Size() {
		return nil, fmt.Errorf("dropout: gradient shape %v does not match mask", gradOut.Shape)
	}
	gradIn := tensor.New(gradOut.Shape...)
	for i, g := range gradOut.Data {
		gradIn.Data[i] = g * d.mask[i]
	}
	return gradIn, nil
}
