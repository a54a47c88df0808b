package layers

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/agrishield/agrishield-ai/nn"
	"github.com/agrishield/agrishield-ai/tensor"
)

// Dense is a fully connected layer over 1-D input, y = W*x + b.
// The weight tensor is laid out [Out, In], row-major, so it can back a
// gonum matrix without copying.
type Dense struct {
	In  int
	Out int

	weight *nn.Param
	bias   *nn.Param

	trainable bool
	lastInput *tensor.Tensor
}

// NewDense creates a dense layer with zeroed weights.
func NewDense(name string, in, out int) *Dense {
	return &Dense{
		In:  in,
		Out: out,
		weight: &nn.Param{
			Name:  name + ".weight",
			Value: tensor.New(out, in),
			Grad:  tensor.New(out, in),
		},
		bias: &nn.Param{
			Name:  name + ".bias",
			Value: tensor.New(out),
			Grad:  tensor.New(out),
		},
		trainable: true,
	}
}

// Params implements nn.ParamModule.
func (d *Dense) Params() []*nn.Param { return []*nn.Param{d.weight, d.bias} }

// SetTrainable implements nn.ParamModule.
func (d *Dense) SetTrainable(trainable bool) { d.trainable = trainable }

// Trainable implements nn.ParamModule.
func (d *Dense) Trainable() bool { return d.trainable }

// Forward implements nn.Module.
func (d *Dense) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if x.Size() != d.In {
		return nil, fmt.Errorf("dense: want %d inputs, got shape %v", d.In, x.Shape)
	}
	d.lastInput = x

	w := mat.NewDense(d.Out, d.In, d.weight.Value.Data)
	in := mat.NewVecDense(d.In, x.Data)

	out := tensor.New(d.Out)
	y := mat.NewVecDense(d.Out, out.Data)
	y.MulVec(w, in)
	y.AddVec(y, mat.NewVecDense(d.Out, d.bias.Value.Data))
	return out, nil
}

// Backward implements nn.Module.
func (d *Dense) Backward(gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	if d.lastInput == nil {
		return nil, fmt.Errorf("dense: Backward before Forward")
	}
	if gradOut.Size() != d.Out {
		return nil, fmt.Errorf("dense: want %d output gradients, got shape %v", d.Out, gradOut.Shape)
	}

	if d.trainable {
		for o := 0; o < d.Out; o++ {
			g := gradOut.Data[o]
			d.bias.Grad.Data[o] += g
			row := d.weight.Grad.Data[o*d.In : (o+1)*d.In]
			for i, in := range d.lastInput.Data {
				row[i] += g * in
			}
		}
	}

	w := mat.NewDense(d.Out, d.In, d.weight.Value.Data)
	gradIn := tensor.New(d.In)
	gi := mat.NewVecDense(d.In, gradIn.Data)
	gi.MulVec(w.T(), mat.NewVecDense(d.Out, gradOut.Data))
	gradIn.Shape = append([]int(nil), d.lastInput.Shape...)
	return gradIn, nil
}
