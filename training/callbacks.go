package training

import (
	"log"

	"github.com/agrishield/agrishield-ai/artifact"
)

// earlyStopping halts a phase once validation accuracy has not improved for
// patience epochs, remembering the best weights seen so they can be
// restored on stop.
type earlyStopping struct {
	patience int

	wait        int
	best        float64
	bestWeights *artifact.ModelWeights
}

func newEarlyStopping(patience int) *earlyStopping {
	return &earlyStopping{patience: patience, best: -1}
}

// reset starts a fresh watch at the beginning of a phase.
func (es *earlyStopping) reset() {
	es.wait = 0
	es.best = -1
	es.bestWeights = nil
}

// observe records one epoch's validation accuracy and reports whether the
// phase should stop. snapshot is only invoked on improvement.
func (es *earlyStopping) observe(valAccuracy float64, snapshot func() *artifact.ModelWeights) bool {
	if valAccuracy > es.best {
		es.best = valAccuracy
		es.bestWeights = snapshot()
		es.wait = 0
		return false
	}
	es.wait++
	return es.wait >= es.patience
}

// checkpoint persists the best-validation-accuracy weights after every
// epoch. Unlike earlyStopping it tracks the best across both phases.
type checkpoint struct {
	path string
	best float64
}

func newCheckpoint(path string) *checkpoint {
	return &checkpoint{path: path, best: -1}
}

func (cp *checkpoint) observe(valAccuracy float64, snapshot func() *artifact.ModelWeights) error {
	if valAccuracy <= cp.best {
		return nil
	}
	cp.best = valAccuracy
	if err := artifact.SaveWeights(cp.path, snapshot()); err != nil {
		return err
	}
	log.Printf("checkpoint: saved best model (val_accuracy=%.4f) to %s", valAccuracy, cp.path)
	return nil
}
