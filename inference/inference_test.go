package inference

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrishield/agrishield-ai/artifact"
	"github.com/agrishield/agrishield-ai/model"
)

func writeArtifact(t *testing.T, labels []string) string {
	t.Helper()
	dir := t.TempDir()

	clf, err := model.New(len(labels), 1)
	require.NoError(t, err)
	clf.RandomInit(1)

	require.NoError(t, artifact.SaveWeights(filepath.Join(dir, "model.h5"), clf.Snapshot()))
	require.NoError(t, artifact.WriteClassNames(filepath.Join(dir, "class_names.txt"), labels))
	require.NoError(t, artifact.SaveConfig(filepath.Join(dir, "config.yaml"), artifact.Config{
		Name:        "test",
		InputShape:  []int{model.InputSize, model.InputSize, 3},
		Classes:     len(labels),
		WeightsFile: "model.h5",
		LabelsFile:  "class_names.txt",
	}))
	return dir
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNewMissingArtifact(t *testing.T) {
	_, err := New(Config{ModelDir: t.TempDir()})
	assert.Error(t, err)
}

func TestInferReturnsRankedLabels(t *testing.T) {
	labels := []string{"blight", "healthy", "rust"}
	i, err := New(Config{ModelDir: writeArtifact(t, labels)})
	require.NoError(t, err)
	assert.Equal(t, labels, i.Labels())

	infers, err := i.Infer(pngBytes(t), 3)
	require.NoError(t, err)
	require.Len(t, infers, 3)

	sum := 0.0
	for idx, inf := range infers {
		assert.Contains(t, labels, inf.Label)
		sum += inf.Prob
		if idx > 0 {
			assert.GreaterOrEqual(t, infers[idx-1].Prob, inf.Prob)
		}
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestInferTopKBounds(t *testing.T) {
	i, err := New(Config{ModelDir: writeArtifact(t, []string{"a", "b"})})
	require.NoError(t, err)

	one, err := i.Infer(pngBytes(t), 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)

	// k beyond the class count clamps; k<=0 uses the default cap.
	many, err := i.Infer(pngBytes(t), 10)
	require.NoError(t, err)
	assert.Len(t, many, 2)

	def, err := i.Infer(pngBytes(t), 0)
	require.NoError(t, err)
	assert.Len(t, def, 2)
}

func TestInferRejectsGarbage(t *testing.T) {
	i, err := New(Config{ModelDir: writeArtifact(t, []string{"a", "b"})})
	require.NoError(t, err)
	_, err = i.Infer([]byte("not an image"), 1)
	assert.Error(t, err)
}

func TestInferDeterministic(t *testing.T) {
	i, err := New(Config{ModelDir: writeArtifact(t, []string{"a", "b"})})
	require.NoError(t, err)

	img := pngBytes(t)
	first, err := i.Infer(img, 2)
	require.NoError(t, err)
	second, err := i.Infer(img, 2)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
