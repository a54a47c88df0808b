// Package dataset loads a directory-per-class image tree, deterministically
// splits it into training and validation subsets, and streams shuffled,
// prefetched batches of decoded images.
package dataset

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/agrishield/agrishield-ai/model"
	"github.com/agrishield/agrishield-ai/tensor"
)

const (
	// BatchSize is the fixed number of examples per batch.
	BatchSize = 32

	// ShuffleBuffer is the size of the training shuffle window.
	ShuffleBuffer = 1000

	// ValidationSplit is the fraction of each class held out for
	// validation.
	ValidationSplit = 0.2

	// DefaultSeed reproduces the canonical split.
	DefaultSeed = 123

	// prefetchDepth is how many batches may sit decoded ahead of the
	// consumer. Parallelism affects timing only, never batch content.
	prefetchDepth = 2
)

// Example is one decoded, preprocessed image with its integer class label.
type Example struct {
	Image *tensor.Tensor
	Label int
}

// Batch carries up to BatchSize examples. A non-nil Err terminates the
// stream; decode failures abort the run rather than being skipped.
type Batch struct {
	Examples []Example
	Err      error
}

type sample struct {
	path  string
	label int

	// raw caches the decoded [0,255] image across epochs.
	raw *tensor.Tensor
}

func (s *sample) image() (*tensor.Tensor, error) {
	if s.raw == nil {
		img, err := decodeImageFile(s.path)
		if err != nil {
			return nil, fmt.Errorf("dataset: %s: %w", s.path, err)
		}
		s.raw = img
	}
	return s.raw, nil
}

// Dataset is an immutable train/validation split over a class-directory
// tree. Class index i corresponds to ClassNames()[i] and to output unit i
// of any model trained on it.
type Dataset struct {
	root       string
	seed       int64
	classNames []string
	counts     []int
	train      []*sample
	val        []*sample
}

// Load enumerates the class subdirectories of root in sorted order and
// splits each class 80/20 under the given seed. The same root and seed
// always produce the identical split. Every class must contain at least one
// file.
func Load(root string, seed int64) (*Dataset, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("dataset: read %s: %w", root, err)
	}

	d := &Dataset{root: root, seed: seed}
	rng := rand.New(rand.NewSource(seed))

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		class := entry.Name()
		label := len(d.classNames)

		files, err := os.ReadDir(filepath.Join(root, class))
		if err != nil {
			return nil, fmt.Errorf("dataset: read class %s: %w", class, err)
		}
		var paths []string
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			paths = append(paths, filepath.Join(root, class, f.Name()))
		}
		if len(paths) == 0 {
			return nil, fmt.Errorf("dataset: class %s has no image files", class)
		}

		d.classNames = append(d.classNames, class)
		d.counts = append(d.counts, len(paths))

		rng.Shuffle(len(paths), func(i, j int) {
			paths[i], paths[j] = paths[j], paths[i]
		})
		nVal := int(float64(len(paths)) * ValidationSplit)
		for i, p := range paths {
			s := &sample{path: p, label: label}
			if i < nVal {
				d.val = append(d.val, s)
			} else {
				d.train = append(d.train, s)
			}
		}
	}

	if len(d.classNames) == 0 {
		return nil, fmt.Errorf("dataset: no class subdirectories in %s", root)
	}
	return d, nil
}

// ClassNames returns the class labels in discovery (sorted) order.
func (d *Dataset) ClassNames() []string {
	return append([]string(nil), d.classNames...)
}

// NumClasses returns the number of classes.
func (d *Dataset) NumClasses() int { return len(d.classNames) }

// Counts returns the per-class file counts.
func (d *Dataset) Counts() []int {
	return append([]int(nil), d.counts...)
}

// TrainSize and ValSize report split sizes.
func (d *Dataset) TrainSize() int { return len(d.train) }

// ValSize reports the validation subset size.
func (d *Dataset) ValSize() int { return len(d.val) }

// ClassWeights maps every class index to total/(numClasses*max(count,1)),
// upweighting rare classes against imbalance.
func (d *Dataset) ClassWeights() map[int]float64 {
	total := 0
	for _, c := range d.counts {
		total += c
	}
	weights := make(map[int]float64, len(d.counts))
	for i, c := range d.counts {
		if c < 1 {
			c = 1
		}
		weights[i] = float64(total) / (float64(len(d.counts)) * float64(c))
	}
	return weights
}

// TrainBatches streams one epoch of shuffled training batches. Shuffling
// pulls samples through a ShuffleBuffer-sized window reseeded per epoch, so
// batch content is a pure function of (seed, epoch). If aug is non-nil each
// image is augmented before preprocessing. Decoding runs in a background
// goroutine, prefetchDepth batches ahead.
func (d *Dataset) TrainBatches(epoch int, aug *Augmenter) <-chan Batch {
	rng := rand.New(rand.NewSource(d.seed + int64(epoch) + 1))

	out := make(chan Batch, prefetchDepth)
	go func() {
		defer close(out)

		var pending []Example
		emit := func(s *sample) bool {
			raw, err := s.image()
			if err != nil {
				out <- Batch{Err: err}
				return false
			}
			if aug != nil {
				raw = aug.Apply(raw)
			}
			pending = append(pending, Example{Image: model.Preprocess(raw), Label: s.label})
			if len(pending) == BatchSize {
				out <- Batch{Examples: pending}
				pending = nil
			}
			return true
		}

		buf := make([]*sample, 0, ShuffleBuffer)
		for _, s := range d.train {
			if len(buf) < ShuffleBuffer {
				buf = append(buf, s)
				continue
			}
			j := rng.Intn(len(buf))
			next := buf[j]
			buf[j] = s
			if !emit(next) {
				return
			}
		}
		for len(buf) > 0 {
			j := rng.Intn(len(buf))
			next := buf[j]
			buf[j] = buf[len(buf)-1]
			buf = buf[:len(buf)-1]
			if !emit(next) {
				return
			}
		}
		if len(pending) > 0 {
			out <- Batch{Examples: pending}
		}
	}()
	return out
}

// ValBatches streams the validation subset in stable order, unshuffled and
// unaugmented.
func (d *Dataset) ValBatches() <-chan Batch {
	out := make(chan Batch, prefetchDepth)
	go func() {
		defer close(out)

		var pending []Example
		for _, s := range d.val {
			raw, err := s.image()
			if err != nil {
				out <- Batch{Err: err}
				return
			}
			pending = append(pending, Example{Image: model.Preprocess(raw), Label: s.label})
			if len(pending) == BatchSize {
				out <- Batch{Examples: pending}
				pending = nil
			}
		}
		if len(pending) > 0 {
			out <- Batch{Examples: pending}
		}
	}()
	return out
}

// SplitPaths exposes the file assignment of both subsets for reproducibility
// checks.
func (d *Dataset) SplitPaths() (train, val []string) {
	for _, s := range d.train {
		train = append(train, s.path)
	}
	for _, s := range d.val {
		val = append(val, s.path)
	}
	return train, val
}
