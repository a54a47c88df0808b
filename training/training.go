// Package training runs the two-phase transfer-learning pipeline: head-only
// training over a frozen backbone, then full fine-tuning at a low learning
// rate, followed by artifact export.
package training

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/agrishield/agrishield-ai/artifact"
	"github.com/agrishield/agrishield-ai/dataset"
	"github.com/agrishield/agrishield-ai/model"
	"github.com/agrishield/agrishield-ai/nn"
	"github.com/agrishield/agrishield-ai/runlog"
)

// Environment contract of the trainer.
const (
	EnvDataDir         = "PLANTVILLAGE_DIR"
	EnvEpochs          = "EPOCHS"
	EnvFineTuneEpochs  = "EPOCHS_FINE"
	EnvOutputPath      = "OUTPUT_PATH"
	EnvBackboneWeights = "BACKBONE_WEIGHTS"
	EnvRunLogDSN       = "TRAINLOG_DSN"

	DefaultDataDir        = "data/plantvillage"
	DefaultEpochs         = 10
	DefaultFineTuneEpochs = 5
	DefaultOutputPath     = "model.h5"

	// DefaultCheckpointPath is where the best per-epoch model lands.
	DefaultCheckpointPath = "best_model.h5"

	// ClassNamesFile is written next to the output path, one class per
	// line in dense-layer order.
	ClassNamesFile = "class_names.txt"
)

const (
	headLearningRate     = 1e-3
	fineTuneLearningRate = 1e-5
	decayStepsPerEpoch   = 1000
	labelSmoothing       = 0.1
	stopPatience         = 3
)

// Phase is one state of the two-state training machine.
type Phase int

// The machine always runs HeadOnly to completion and then FineTune; there
// is no conditional skip.
const (
	PhaseHeadOnly Phase = iota
	PhaseFineTune
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case PhaseHeadOnly:
		return "head-only"
	case PhaseFineTune:
		return "fine-tune"
	default:
		return "unknown"
	}
}

// Config holds every input of a training run.
type Config struct {
	DataDir         string
	Epochs          int
	FineTuneEpochs  int
	OutputPath      string
	CheckpointPath  string
	BackboneWeights string
	RunLogDSN       string
	Seed            int64
}

func atoiEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func strEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// FromEnv assembles a Config from the environment, applying defaults.
func FromEnv() Config {
	return Config{
		DataDir:         strEnv(EnvDataDir, DefaultDataDir),
		Epochs:          atoiEnv(EnvEpochs, DefaultEpochs),
		FineTuneEpochs:  atoiEnv(EnvFineTuneEpochs, DefaultFineTuneEpochs),
		OutputPath:      strEnv(EnvOutputPath, DefaultOutputPath),
		CheckpointPath:  DefaultCheckpointPath,
		BackboneWeights: os.Getenv(EnvBackboneWeights),
		RunLogDSN:       os.Getenv(EnvRunLogDSN),
		Seed:            dataset.DefaultSeed,
	}
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.Epochs == 0 {
		c.Epochs = DefaultEpochs
	}
	if c.FineTuneEpochs == 0 {
		c.FineTuneEpochs = DefaultFineTuneEpochs
	}
	if c.OutputPath == "" {
		c.OutputPath = DefaultOutputPath
	}
	if c.CheckpointPath == "" {
		c.CheckpointPath = DefaultCheckpointPath
	}
	if c.Seed == 0 {
		c.Seed = dataset.DefaultSeed
	}
}

// ConfigError is the one recognized fatal configuration failure: a missing
// or unreadable dataset directory. It is diagnosed before any artifact is
// written.
type ConfigError struct {
	Dir    string
	EnvVar string
}

// Error implements error.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("missing dataset directory: %s (set %s to the root containing class subfolders)", e.Dir, e.EnvVar)
}

// AsConfigError unwraps err into a *ConfigError if it is one.
func AsConfigError(err error) (*ConfigError, bool) {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// EpochMetrics is the ephemeral per-epoch record; it lives only in the
// returned Result and is never persisted.
type EpochMetrics struct {
	Phase       Phase
	Epoch       int
	Loss        float64
	Accuracy    float64
	ValLoss     float64
	ValAccuracy float64
}

// Result reports the durable outputs of a completed run.
type Result struct {
	ModelPath       string
	CheckpointPath  string
	ClassNamesPath  string
	ConfigPath      string
	ClassNames      []string
	History         []EpochMetrics
	BestValAccuracy float64
}

// Run executes the full pipeline for the given configuration.
func Run(cfg Config) (*Result, error) {
	cfg.applyDefaults()

	info, err := os.Stat(cfg.DataDir)
	if err != nil || !info.IsDir() {
		return nil, &ConfigError{Dir: cfg.DataDir, EnvVar: EnvDataDir}
	}

	ds, err := dataset.Load(cfg.DataDir, cfg.Seed)
	if err != nil {
		return nil, err
	}
	log.Printf("dataset: %d classes, %d training / %d validation images",
		ds.NumClasses(), ds.TrainSize(), ds.ValSize())

	clf, err := model.New(ds.NumClasses(), cfg.Seed)
	if err != nil {
		return nil, err
	}
	if cfg.BackboneWeights != "" {
		if err := clf.LoadBackboneWeights(cfg.BackboneWeights); err != nil {
			return nil, err
		}
		clf.InitHead(cfg.Seed)
		log.Printf("model: backbone initialized from %s", cfg.BackboneWeights)
	} else {
		clf.RandomInit(cfg.Seed)
		log.Printf("model: no %s configured, backbone randomly initialized", EnvBackboneWeights)
	}

	r := &runner{
		cfg: cfg,
		ds:  ds,
		clf: clf,
		trainLoss: &nn.CrossEntropyLoss{
			Smoothing:    labelSmoothing,
			ClassWeights: ds.ClassWeights(),
		},
		valLoss:    &nn.CrossEntropyLoss{Smoothing: labelSmoothing},
		stopper:    newEarlyStopping(stopPatience),
		checkpoint: newCheckpoint(cfg.CheckpointPath),
	}

	if err := r.runPhase(PhaseHeadOnly, cfg.Epochs,
		nn.NewAdam(nn.CosineDecay{Initial: headLearningRate, DecaySteps: cfg.Epochs * decayStepsPerEpoch})); err != nil {
		return nil, err
	}
	if err := r.runPhase(PhaseFineTune, cfg.FineTuneEpochs,
		nn.NewAdam(nn.Constant(fineTuneLearningRate))); err != nil {
		return nil, err
	}

	res, err := r.export()
	if err != nil {
		return nil, err
	}

	if cfg.RunLogDSN != "" {
		r.record(res)
	}
	return res, nil
}

type runner struct {
	cfg Config
	ds  *dataset.Dataset
	clf *model.Classifier

	trainLoss *nn.CrossEntropyLoss
	valLoss   *nn.CrossEntropyLoss

	stopper    *earlyStopping
	checkpoint *checkpoint

	history     []EpochMetrics
	globalEpoch int
}

func argmax(data []float64) int {
	best := 0
	for i, v := range data {
		if v > data[best] {
			best = i
		}
	}
	return best
}

func (r *runner) runPhase(phase Phase, epochs int, opt *nn.Adam) error {
	r.clf.SetBackboneTrainable(phase == PhaseFineTune)
	r.stopper.reset()
	log.Printf("phase %s: %d epochs", phase, epochs)

	for epoch := 0; epoch < epochs; epoch++ {
		loss, acc, err := r.trainEpoch(opt)
		if err != nil {
			return err
		}
		valLoss, valAcc, err := r.evaluate()
		if err != nil {
			return err
		}
		r.globalEpoch++

		r.history = append(r.history, EpochMetrics{
			Phase:       phase,
			Epoch:       epoch + 1,
			Loss:        loss,
			Accuracy:    acc,
			ValLoss:     valLoss,
			ValAccuracy: valAcc,
		})
		log.Printf("phase %s epoch %d/%d: loss=%.4f accuracy=%.4f val_loss=%.4f val_accuracy=%.4f",
			phase, epoch+1, epochs, loss, acc, valLoss, valAcc)

		if err := r.checkpoint.observe(valAcc, r.clf.Snapshot); err != nil {
			return err
		}
		if r.stopper.observe(valAcc, r.clf.Snapshot) {
			log.Printf("phase %s: early stop after epoch %d, restoring best weights (val_accuracy=%.4f)",
				phase, epoch+1, r.stopper.best)
			if err := r.clf.Restore(r.stopper.bestWeights); err != nil {
				return err
			}
			break
		}
	}
	return nil
}

func (r *runner) trainEpoch(opt *nn.Adam) (loss, accuracy float64, err error) {
	r.clf.SetTraining(true)
	aug := dataset.NewAugmenter(r.cfg.Seed + int64(r.globalEpoch))

	var lossSum float64
	var correct, seen int
	for batch := range r.ds.TrainBatches(r.globalEpoch, aug) {
		if batch.Err != nil {
			return 0, 0, batch.Err
		}
		r.clf.ZeroGrads()
		for _, ex := range batch.Examples {
			logits, err := r.clf.Forward(ex.Image)
			if err != nil {
				return 0, 0, err
			}
			probs := nn.Softmax(logits)
			lossSum += r.trainLoss.Forward(probs, ex.Label)
			if err := r.clf.Backward(r.trainLoss.Backward(probs, ex.Label)); err != nil {
				return 0, 0, err
			}
			if argmax(probs.Data) == ex.Label {
				correct++
			}
			seen++
		}

		params := r.clf.TrainableParams()
		scale := 1 / float64(len(batch.Examples))
		for _, p := range params {
			for i := range p.Grad.Data {
				p.Grad.Data[i] *= scale
			}
		}
		opt.Step(params)
	}
	if seen == 0 {
		return 0, 0, fmt.Errorf("training: empty training subset")
	}
	return lossSum / float64(seen), float64(correct) / float64(seen), nil
}

func (r *runner) evaluate() (loss, accuracy float64, err error) {
	r.clf.SetTraining(false)

	var lossSum float64
	var correct, seen int
	for batch := range r.ds.ValBatches() {
		if batch.Err != nil {
			return 0, 0, batch.Err
		}
		for _, ex := range batch.Examples {
			logits, err := r.clf.Forward(ex.Image)
			if err != nil {
				return 0, 0, err
			}
			probs := nn.Softmax(logits)
			lossSum += r.valLoss.Forward(probs, ex.Label)
			if argmax(probs.Data) == ex.Label {
				correct++
			}
			seen++
		}
	}
	if seen == 0 {
		return 0, 0, nil
	}
	return lossSum / float64(seen), float64(correct) / float64(seen), nil
}

// export writes the weights file, the ordered class-name list and the model
// metadata. Class-name order must match the dense layer's output order.
func (r *runner) export() (*Result, error) {
	outDir := filepath.Dir(r.cfg.OutputPath)
	classNamesPath := filepath.Join(outDir, ClassNamesFile)
	configPath := filepath.Join(outDir, "config.yaml")

	if err := artifact.SaveWeights(r.cfg.OutputPath, r.clf.Snapshot()); err != nil {
		return nil, err
	}
	if err := artifact.WriteClassNames(classNamesPath, r.ds.ClassNames()); err != nil {
		return nil, err
	}
	cfg := artifact.Config{
		Name:        "plant-disease",
		InputShape:  []int{model.InputSize, model.InputSize, 3},
		Classes:     r.ds.NumClasses(),
		WeightsFile: filepath.Base(r.cfg.OutputPath),
		LabelsFile:  ClassNamesFile,
		Description: "PlantVillage transfer-learning classifier",
	}
	if err := artifact.SaveConfig(configPath, cfg); err != nil {
		return nil, err
	}

	best := r.checkpoint.best
	if best < 0 {
		best = 0
	}
	return &Result{
		ModelPath:       r.cfg.OutputPath,
		CheckpointPath:  r.cfg.CheckpointPath,
		ClassNamesPath:  classNamesPath,
		ConfigPath:      configPath,
		ClassNames:      r.ds.ClassNames(),
		History:         r.history,
		BestValAccuracy: best,
	}, nil
}

// record stores the run in the optional MySQL run history. Failures are
// logged, never fatal; the artifact contract does not depend on the DB.
func (r *runner) record(res *Result) {
	rec, err := runlog.New(r.cfg.RunLogDSN)
	if err != nil {
		log.Printf("runlog: %v", err)
		return
	}
	defer rec.Close()

	if err := rec.Record(runlog.Entry{
		DataDir:         r.cfg.DataDir,
		Classes:         len(res.ClassNames),
		Epochs:          r.cfg.Epochs,
		FineTuneEpochs:  r.cfg.FineTuneEpochs,
		BestValAccuracy: res.BestValAccuracy,
		ModelPath:       res.ModelPath,
	}); err != nil {
		log.Printf("runlog: %v", err)
	}
}
