package training

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrishield/agrishield-ai/artifact"
	"github.com/agrishield/agrishield-ai/dataset"
	"github.com/agrishield/agrishield-ai/model"
)

func writePNG(t *testing.T, path string, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func makeDataset(t *testing.T, classes map[string]int) string {
	t.Helper()
	root := t.TempDir()
	for class, n := range classes {
		dir := filepath.Join(root, class)
		require.NoError(t, os.MkdirAll(dir, 0755))
		for i := 0; i < n; i++ {
			name := filepath.Join(dir, "img_"+string(rune('a'+i))+".png")
			writePNG(t, name, color.RGBA{R: uint8(40 * i), G: uint8(255 - 20*i), B: 90, A: 255})
		}
	}
	return root
}

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{EnvDataDir, EnvEpochs, EnvFineTuneEpochs, EnvOutputPath, EnvBackboneWeights, EnvRunLogDSN} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	cfg := FromEnv()
	assert.Equal(t, DefaultDataDir, cfg.DataDir)
	assert.Equal(t, DefaultEpochs, cfg.Epochs)
	assert.Equal(t, DefaultFineTuneEpochs, cfg.FineTuneEpochs)
	assert.Equal(t, DefaultOutputPath, cfg.OutputPath)
	assert.Equal(t, DefaultCheckpointPath, cfg.CheckpointPath)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv(EnvDataDir, "/data/pv")
	t.Setenv(EnvEpochs, "3")
	t.Setenv(EnvFineTuneEpochs, "2")
	t.Setenv(EnvOutputPath, "/tmp/out.h5")

	cfg := FromEnv()
	assert.Equal(t, "/data/pv", cfg.DataDir)
	assert.Equal(t, 3, cfg.Epochs)
	assert.Equal(t, 2, cfg.FineTuneEpochs)
	assert.Equal(t, "/tmp/out.h5", cfg.OutputPath)
}

func TestFromEnvBadIntFallsBack(t *testing.T) {
	t.Setenv(EnvEpochs, "lots")
	assert.Equal(t, DefaultEpochs, FromEnv().Epochs)
}

func TestRunMissingDataDir(t *testing.T) {
	out := t.TempDir()
	cfg := Config{
		DataDir:        filepath.Join(out, "no-such-dir"),
		Epochs:         1,
		FineTuneEpochs: 1,
		OutputPath:     filepath.Join(out, "model.h5"),
		CheckpointPath: filepath.Join(out, "best_model.h5"),
	}

	_, err := Run(cfg)
	require.Error(t, err)

	ce, ok := AsConfigError(err)
	require.True(t, ok, "want ConfigError, got %T", err)
	assert.Contains(t, ce.Error(), EnvDataDir)

	// No artifacts on configuration failure.
	for _, p := range []string{cfg.OutputPath, cfg.CheckpointPath, filepath.Join(out, ClassNamesFile)} {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err), "unexpected artifact %s", p)
	}
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "head-only", PhaseHeadOnly.String())
	assert.Equal(t, "fine-tune", PhaseFineTune.String())
}

func TestExportClassNameOrderMatchesHead(t *testing.T) {
	// Class names must be written in the exact order the dense layer was
	// sized from, whatever the class set looks like.
	for _, classes := range []map[string]int{
		{"healthy": 2, "rust": 2},
		{"zeta": 2, "alpha": 2, "mid": 2},
		{"b": 2, "a": 2, "d": 2, "c": 2},
	} {
		root := makeDataset(t, classes)
		ds, err := dataset.Load(root, dataset.DefaultSeed)
		require.NoError(t, err)

		clf, err := model.New(ds.NumClasses(), 1)
		require.NoError(t, err)
		clf.RandomInit(1)

		out := t.TempDir()
		r := &runner{
			cfg: Config{
				OutputPath:     filepath.Join(out, "model.h5"),
				CheckpointPath: filepath.Join(out, "best_model.h5"),
			},
			ds:  ds,
			clf: clf,
		}
		r.checkpoint = newCheckpoint(r.cfg.CheckpointPath)

		res, err := r.export()
		require.NoError(t, err)

		names, err := artifact.ReadClassNames(res.ClassNamesPath)
		require.NoError(t, err)
		assert.Equal(t, ds.ClassNames(), names)

		mw, err := artifact.LoadWeights(res.ModelPath)
		require.NoError(t, err)
		assert.Equal(t, []int{len(names)}, mw.Params["dense.bias"].Shape,
			"dense layer width must equal the class-name count")
	}
}

func TestRunTinyDataset(t *testing.T) {
	root := makeDataset(t, map[string]int{"blight": 5, "healthy": 5})
	out := t.TempDir()
	cfg := Config{
		DataDir:        root,
		Epochs:         1,
		FineTuneEpochs: 1,
		OutputPath:     filepath.Join(out, "model.h5"),
		CheckpointPath: filepath.Join(out, "best_model.h5"),
		Seed:           dataset.DefaultSeed,
	}

	res, err := Run(cfg)
	require.NoError(t, err)

	assert.FileExists(t, res.ModelPath)
	assert.FileExists(t, res.CheckpointPath)
	assert.FileExists(t, res.ConfigPath)
	assert.Equal(t, []string{"blight", "healthy"}, res.ClassNames)

	require.Len(t, res.History, 2)
	assert.Equal(t, PhaseHeadOnly, res.History[0].Phase)
	assert.Equal(t, PhaseFineTune, res.History[1].Phase)
}

func TestRunEndToEndScenario(t *testing.T) {
	if testing.Short() {
		t.Skip("full synthetic run")
	}

	root := makeDataset(t, map[string]int{"blight": 20, "healthy": 20})
	out := t.TempDir()
	cfg := Config{
		DataDir:        root,
		Epochs:         1,
		FineTuneEpochs: 1,
		OutputPath:     filepath.Join(out, "model.h5"),
		CheckpointPath: filepath.Join(out, "best_model.h5"),
		Seed:           dataset.DefaultSeed,
	}

	res, err := Run(cfg)
	require.NoError(t, err)

	assert.FileExists(t, res.ModelPath)

	names, err := artifact.ReadClassNames(res.ClassNamesPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"blight", "healthy"}, names)

	// The exported model must load back with matching shapes.
	clf, err := model.New(len(names), 0)
	require.NoError(t, err)
	mw, err := artifact.LoadWeights(res.ModelPath)
	require.NoError(t, err)
	require.NoError(t, clf.Restore(mw))
}
