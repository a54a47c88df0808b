package nn

import (
	"math"

	"github.com/agrishield/agrishield-ai/tensor"
)

// Softmax applies the softmax function to a 1-D tensor of logits.
func Softmax(logits *tensor.Tensor) *tensor.Tensor {
	maxLogit := logits.Data[0]
	for _, v := range logits.Data {
		if v > maxLogit {
			maxLogit = v
		}
	}
	expSum := 0.0
	exps := make([]float64, len(logits.Data))
	for i, v := range logits.Data {
		e := math.Exp(v - maxLogit)
		exps[i] = e
		expSum += e
	}
	out := tensor.New(len(logits.Data))
	for i, e := range exps {
		out.Data[i] = e / expSum
	}
	return out
}

// CrossEntropyLoss is categorical cross-entropy over softmax outputs with
// label smoothing and optional per-class example weighting.
type CrossEntropyLoss struct {
	// Smoothing softens the one-hot target: smoothing/K mass on every
	// class, the rest on the true label.
	Smoothing float64

	// ClassWeights scales the loss (and gradient) of every example by the
	// weight of its true class. Missing entries count as 1.
	ClassWeights map[int]float64
}

func (l *CrossEntropyLoss) weight(label int) float64 {
	if l.ClassWeights == nil {
		return 1
	}
	if w, ok := l.ClassWeights[label]; ok {
		return w
	}
	return 1
}

func (l *CrossEntropyLoss) target(i, label, classes int) float64 {
	t := l.Smoothing / float64(classes)
	if i == label {
		t += 1 - l.Smoothing
	}
	return t
}

// Forward returns the weighted smoothed cross-entropy of the softmax
// probabilities against the integer label.
func (l *CrossEntropyLoss) Forward(probs *tensor.Tensor, label int) float64 {
	classes := len(probs.Data)
	loss := 0.0
	for i, p := range probs.Data {
		if p < 1e-10 {
			p = 1e-10
		}
		loss -= l.target(i, label, classes) * math.Log(p)
	}
	return l.weight(label) * loss
}

// Backward returns the gradient of the loss with respect to the logits,
// grad = w * (softmax - smoothedTarget).
func (l *CrossEntropyLoss) Backward(probs *tensor.Tensor, label int) *tensor.Tensor {
	classes := len(probs.Data)
	w := l.weight(label)
	grad := tensor.New(classes)
	for i, p := range probs.Data {
		grad.Data[i] = w * (p - l.target(i, label, classes))
	}
	return grad
}
