// Package model assembles the classifier network: a compact convolutional
// backbone pretrained on a general image corpus, topped by global average
// pooling, dropout and a softmax-normalized dense head.
package model

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/agrishield/agrishield-ai/artifact"
	"github.com/agrishield/agrishield-ai/nn"
	"github.com/agrishield/agrishield-ai/nn/layers"
	"github.com/agrishield/agrishield-ai/tensor"
)

const (
	// InputSize is the expected height and width of input images.
	InputSize = 224

	// FeatureChannels is the width of the backbone's output feature map.
	FeatureChannels = 128

	// DropoutRate regularizes the classification head.
	DropoutRate = 0.2
)

// Preprocess maps [0,255] pixels to the [-1,1] range the backbone was
// pretrained with. Feeding unscaled pixels degrades accuracy silently, so
// every consumer must go through here.
func Preprocess(img *tensor.Tensor) *tensor.Tensor {
	out := tensor.New(img.Shape...)
	for i, v := range img.Data {
		out.Data[i] = v/127.5 - 1
	}
	return out
}

// Classifier is the full network. The backbone layers can be frozen and
// unfrozen independently of the head.
type Classifier struct {
	NumClasses int

	backbone []nn.Module
	head     []nn.Module
	net      *nn.Sequential
}

// New builds a classifier with numClasses output units. Weights start
// zeroed; call LoadBackboneWeights or RandomInit before training. The seed
// fixes the dropout stream.
func New(numClasses int, seed int64) (*Classifier, error) {
	if numClasses < 2 {
		return nil, fmt.Errorf("model: need at least 2 classes, got %d", numClasses)
	}

	backbone := []nn.Module{
		layers.NewConv2D("conv1", 3, 16, 3, 2, 1),
		layers.NewReLU(),
		layers.NewConv2D("conv2", 16, 32, 3, 2, 1),
		layers.NewReLU(),
		layers.NewAvgPool2D(2),
		layers.NewConv2D("conv3", 32, 64, 3, 2, 1),
		layers.NewReLU(),
		layers.NewConv2D("conv4", 64, FeatureChannels, 3, 2, 1),
		layers.NewReLU(),
	}
	head := []nn.Module{
		layers.NewGlobalAvgPool2D(),
		layers.NewDropout(DropoutRate, seed),
		layers.NewDense("dense", FeatureChannels, numClasses),
	}

	c := &Classifier{
		NumClasses: numClasses,
		backbone:   backbone,
		head:       head,
		net:        &nn.Sequential{Layers: append(append([]nn.Module{}, backbone...), head...)},
	}
	return c, nil
}

// Forward runs an image through the network and returns logits.
func (c *Classifier) Forward(img *tensor.Tensor) (*tensor.Tensor, error) {
	return c.net.Forward(img)
}

// Backward propagates the loss gradient, accumulating parameter gradients
// on every trainable layer.
func (c *Classifier) Backward(grad *tensor.Tensor) error {
	_, err := c.net.Backward(grad)
	return err
}

// SetTraining toggles train/eval behavior (dropout).
func (c *Classifier) SetTraining(training bool) {
	c.net.SetTraining(training)
}

// SetBackboneTrainable freezes or unfreezes the convolutional backbone.
// The head stays trainable in both phases.
func (c *Classifier) SetBackboneTrainable(trainable bool) {
	for _, layer := range c.backbone {
		if pm, ok := layer.(nn.ParamModule); ok {
			pm.SetTrainable(trainable)
		}
	}
}

// Params returns every parameter, frozen or not.
func (c *Classifier) Params() []*nn.Param {
	return c.net.Params()
}

// TrainableParams returns the parameters the optimizer may update.
func (c *Classifier) TrainableParams() []*nn.Param {
	return c.net.TrainableParams()
}

// ZeroGrads clears all accumulated gradients.
func (c *Classifier) ZeroGrads() {
	c.net.ZeroGrads()
}

// Snapshot captures a copy of every weight in the network.
func (c *Classifier) Snapshot() *artifact.ModelWeights {
	return artifact.Snapshot(c.Params())
}

// Restore overwrites the network weights from a snapshot.
func (c *Classifier) Restore(mw *artifact.ModelWeights) error {
	return artifact.Apply(mw, c.Params())
}

func backboneParams(modules []nn.Module) []*nn.Param {
	var params []*nn.Param
	for _, layer := range modules {
		if pm, ok := layer.(nn.ParamModule); ok {
			params = append(params, pm.Params()...)
		}
	}
	return params
}

// LoadBackboneWeights initializes the convolutional stack from a pretrained
// weights file. The head keeps its current initialization.
func (c *Classifier) LoadBackboneWeights(path string) error {
	mw, err := artifact.LoadWeights(path)
	if err != nil {
		return err
	}
	return artifact.Apply(mw, backboneParams(c.backbone))
}

// RandomInit fills every weight with scaled Gaussian noise. Biases stay
// zero. Used when no pretrained backbone file is configured, and for the
// head in all cases.
func (c *Classifier) RandomInit(seed int64) {
	rng := rand.New(rand.NewSource(seed))
	for _, layer := range c.net.Layers {
		pm, ok := layer.(nn.ParamModule)
		if !ok {
			continue
		}
		for _, p := range pm.Params() {
			if len(p.Value.Shape) < 2 {
				continue // bias
			}
			fanIn := 1
			for _, d := range p.Value.Shape[1:] {
				fanIn *= d
			}
			scale := math.Sqrt(2 / float64(fanIn))
			for i := range p.Value.Data {
				p.Value.Data[i] = rng.NormFloat64() * scale
			}
		}
	}
}

// InitHead randomizes only the dense head, preserving backbone weights.
func (c *Classifier) InitHead(seed int64) {
	rng := rand.New(rand.NewSource(seed))
	for _, layer := range c.head {
		pm, ok := layer.(nn.ParamModule)
		if !ok {
			continue
		}
		for _, p := range pm.Params() {
			if len(p.Value.Shape) < 2 {
				continue
			}
			fanIn := p.Value.Shape[1]
			scale := math.Sqrt(2 / float64(fanIn))
			for i := range p.Value.Data {
				p.Value.Data[i] = rng.NormFloat64() * scale
			}
		}
	}
}
