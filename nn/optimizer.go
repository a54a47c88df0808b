package nn

import "math"

// Schedule yields the learning rate for a given global step.
type Schedule interface {
	LearningRate(step int) float64
}

// Constant is a fixed learning rate.
type Constant float64

// LearningRate implements Schedule.
func (c Constant) LearningRate(int) float64 { return float64(c) }

// CosineDecay decays the learning rate from Initial to Initial*Alpha along
// half a cosine wave over DecaySteps steps, then stays there.
type CosineDecay struct {
	Initial    float64
	DecaySteps int
	Alpha      float64
}

// LearningRate implements Schedule.
func (c CosineDecay) LearningRate(step int) float64 {
	if step > c.DecaySteps {
		step = c.DecaySteps
	}
	frac := float64(step) / float64(c.DecaySteps)
	decayed := 0.5 * (1 + math.Cos(math.Pi*frac))
	return c.Initial * ((1-c.Alpha)*decayed + c.Alpha)
}

// Adam is the Adam optimizer with a pluggable learning-rate schedule.
// Moment estimates are kept per parameter across Step calls; a fresh Adam is
// built for every training phase.
type Adam struct {
	Schedule Schedule
	Beta1    float64
	Beta2    float64
	Epsilon  float64

	step int
	m    map[*Param][]float64
	v    map[*Param][]float64
}

// NewAdam returns an Adam optimizer with the usual defaults.
func NewAdam(s Schedule) *Adam {
	return &Adam{
		Schedule: s,
		Beta1:    0.9,
		Beta2:    0.999,
		Epsilon:  1e-7,
		m:        make(map[*Param][]float64),
		v:        make(map[*Param][]float64),
	}
}

// Step applies one update to every parameter from its accumulated gradient.
// Gradients are not cleared; callers zero them per batch.
func (a *Adam) Step(params []*Param) {
	a.step++
	lr := a.Schedule.LearningRate(a.step)
	bc1 := 1 - math.Pow(a.Beta1, float64(a.step))
	bc2 := 1 - math.Pow(a.Beta2, float64(a.step))

	for _, p := range params {
		m, ok := a.m[p]
		if !ok {
			m = make([]float64, p.Value.Size())
			a.m[p] = m
		}
		v, ok := a.v[p]
		if !ok {
			v = make([]float64, p.Value.Size())
			a.v[p] = v
		}

		for i, g := range p.Grad.Data {
			m[i] = a.Beta1*m[i] + (1-a.Beta1)*g
			v[i] = a.Beta2*v[i] + (1-a.Beta2)*g*g
			mHat := m[i] / bc1
			vHat := v[i] / bc2
			p.Value.Data[i] -= lr * mHat / (math.Sqrt(vHat) + a.Epsilon)
		}
	}
}
