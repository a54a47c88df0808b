package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrishield/agrishield-ai/nn"
	"github.com/agrishield/agrishield-ai/tensor"
)

func newParam(name string, shape ...int) *nn.Param {
	return &nn.Param{
		Name:  name,
		Value: tensor.New(shape...),
		Grad:  tensor.New(shape...),
	}
}

func TestWeightsRoundTrip(t *testing.T) {
	p := newParam("dense.weight", 2, 3)
	for i := range p.Value.Data {
		p.Value.Data[i] = float64(i) * 1.5
	}

	path := filepath.Join(t.TempDir(), "model.h5")
	require.NoError(t, SaveWeights(path, Snapshot([]*nn.Param{p})))

	loaded, err := LoadWeights(path)
	require.NoError(t, err)

	restored := newParam("dense.weight", 2, 3)
	require.NoError(t, Apply(loaded, []*nn.Param{restored}))
	assert.Equal(t, p.Value.Data, restored.Value.Data)
}

func TestSnapshotIsACopy(t *testing.T) {
	p := newParam("w", 2)
	p.Value.Data[0] = 1
	mw := Snapshot([]*nn.Param{p})
	p.Value.Data[0] = 9
	assert.Equal(t, 1.0, mw.Params["w"].Data[0])
}

func TestApplyMissingParam(t *testing.T) {
	mw := Snapshot(nil)
	err := Apply(mw, []*nn.Param{newParam("w", 2)})
	assert.ErrorContains(t, err, `"w"`)
}

func TestApplyShapeMismatch(t *testing.T) {
	mw := Snapshot([]*nn.Param{newParam("w", 2, 3)})
	err := Apply(mw, []*nn.Param{newParam("w", 3, 2)})
	assert.Error(t, err)
}

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Config{
		Name:        "plant-disease",
		InputShape:  []int{224, 224, 3},
		Classes:     4,
		WeightsFile: "model.h5",
		LabelsFile:  "class_names.txt",
	}
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestClassNamesPreserveOrder(t *testing.T) {
	names := []string{"scab", "blight", "healthy"}
	path := filepath.Join(t.TempDir(), "class_names.txt")
	require.NoError(t, WriteClassNames(path, names))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "scab\nblight\nhealthy\n", string(data))

	loaded, err := ReadClassNames(path)
	require.NoError(t, err)
	assert.Equal(t, names, loaded)
}
