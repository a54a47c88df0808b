// Package artifact reads and writes the durable outputs of a training run:
// the weights file, the class-name list and the model metadata.
package artifact

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/agrishield/agrishield-ai/nn"
	"github.com/agrishield/agrishield-ai/tensor"
)

// WeightData is one serialized parameter tensor.
type WeightData struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// ModelWeights holds every parameter of a model keyed by parameter name.
type ModelWeights struct {
	Version string                 `json:"version"`
	Params  map[string]*WeightData `json:"params"`
}

// Snapshot copies the given parameters into a serializable ModelWeights.
func Snapshot(params []*nn.Param) *ModelWeights {
	mw := &ModelWeights{
		Version: "1.0",
		Params:  make(map[string]*WeightData, len(params)),
	}
	for _, p := range params {
		mw.Params[p.Name] = &WeightData{
			Name:  p.Name,
			Shape: append([]int(nil), p.Value.Shape...),
			Data:  append([]float64(nil), p.Value.Data...),
		}
	}
	return mw
}

// Apply restores every parameter from the snapshot. Each parameter must be
// present with a matching shape.
func Apply(mw *ModelWeights, params []*nn.Param) error {
	for _, p := range params {
		wd, ok := mw.Params[p.Name]
		if !ok {
			return fmt.Errorf("weights: missing parameter %q", p.Name)
		}
		if !tensor.SameShape(p.Value, &tensor.Tensor{Data: wd.Data, Shape: wd.Shape}) {
			return fmt.Errorf("weights: parameter %q has shape %v, model needs %v", p.Name, wd.Shape, p.Value.Shape)
		}
		copy(p.Value.Data, wd.Data)
	}
	return nil
}

// SaveWeights writes model weights as JSON.
func SaveWeights(path string, mw *ModelWeights) error {
	data, err := json.Marshal(mw)
	if err != nil {
		return fmt.Errorf("weights: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// LoadWeights reads model weights from a JSON file.
func LoadWeights(path string) (*ModelWeights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("weights: read %s: %w", path, err)
	}
	mw := &ModelWeights{}
	if err := json.Unmarshal(data, mw); err != nil {
		return nil, fmt.Errorf("weights: unmarshal %s: %w", path, err)
	}
	return mw, nil
}

// Config is the model metadata written next to the weights file.
type Config struct {
	Name        string `yaml:"name"`
	InputShape  []int  `yaml:"inputShape"`
	Classes     int    `yaml:"classes"`
	WeightsFile string `yaml:"weightsFile"`
	LabelsFile  string `yaml:"labelsFile"`
	Description string `yaml:"description"`
}

// SaveConfig writes the metadata as YAML.
func SaveConfig(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// LoadConfig reads YAML metadata.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	return cfg, nil
}

// WriteClassNames writes one class name per line. Line order must match the
// output ordering of the final dense layer; inference relies on it.
func WriteClassNames(path string, names []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, name := range names {
		if _, err := fmt.Fprintln(w, name); err != nil {
			return err
		}
	}
	return w.Flush()
}

// ReadClassNames reads a class-name file back, preserving line order.
func ReadClassNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		names = append(names, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return names, nil
}
