// Package nn holds the network building blocks: the Module interface,
// Sequential containers, the loss and the optimizer.
package nn

import (
	"github.com/agrishield/agrishield-ai/tensor"
)

// Param is one learnable tensor together with its accumulated gradient.
// Gradients are summed across a batch and averaged by the caller before an
// optimizer step.
type Param struct {
	Name  string
	Value *tensor.Tensor
	Grad  *tensor.Tensor
}

// ZeroGrad clears the accumulated gradient.
func (p *Param) ZeroGrad() {
	p.Grad.Zero()
}

// Module defines a single layer in the network.
type Module interface {
	Forward(x *tensor.Tensor) (*tensor.Tensor, error)
	// Backward takes the gradient of the loss with respect to the module's
	// output and returns the gradient with respect to its input. Modules
	// with parameters accumulate parameter gradients as a side effect.
	Backward(gradOut *tensor.Tensor) (*tensor.Tensor, error)
}

// ParamModule is implemented by modules carrying learnable parameters.
// Frozen modules report Trainable()==false; they still propagate input
// gradients but must not accumulate parameter gradients.
type ParamModule interface {
	Module
	Params() []*Param
	SetTrainable(trainable bool)
	Trainable() bool
}

// ModeModule is implemented by modules that behave differently during
// training and evaluation (dropout, augmentation).
type ModeModule interface {
	SetTraining(training bool)
}

// Sequential chains Modules in order.
type Sequential struct {
	Layers []Module
}

// Forward applies each layer in sequence.
func (s *Sequential) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	var err error
	out := x
	for _, layer := range s.Layers {
		if out, err = layer.Forward(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Backward applies Backward in reverse order.
func (s *Sequential) Backward(grad *tensor.Tensor) (*tensor.Tensor, error) {
	var err error
	out := grad
	for i := len(s.Layers) - 1; i >= 0; i-- {
		if out, err = s.Layers[i].Backward(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Params collects the parameters of every ParamModule in order.
func (s *Sequential) Params() []*Param {
	var params []*Param
	for _, layer := range s.Layers {
		if pm, ok := layer.(ParamModule); ok {
			params = append(params, pm.Params()...)
		}
	}
	return params
}

// TrainableParams collects only the parameters of unfrozen modules.
func (s *Sequential) TrainableParams() []*Param {
	var params []*Param
	for _, layer := range s.Layers {
		if pm, ok := layer.(ParamModule); ok && pm.Trainable() {
			params = append(params, pm.Params()...)
		}
	}
	return params
}

// SetTraining switches every mode-aware layer between train and eval.
func (s *Sequential) SetTraining(training bool) {
	for _, layer := range s.Layers {
		if mm, ok := layer.(ModeModule); ok {
			mm.SetTraining(training)
		}
	}
}

// ZeroGrads clears the gradients of every parameter.
func (s *Sequential) ZeroGrads() {
	for _, p := range s.Params() {
		p.ZeroGrad()
	}
}
