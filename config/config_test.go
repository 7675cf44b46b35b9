package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/taxifare/boosting"
	"github.com/YuminosukeSato/taxifare/pkg/errors"
	"github.com/YuminosukeSato/taxifare/taxifare"
)

func TestDefaults(t *testing.T) {
	s := Defaults()
	assert.Equal(t, taxifare.DefaultTrainDataPath, s.Paths.TrainData)
	assert.Equal(t, taxifare.DefaultTestDataPath, s.Paths.TestData)
	assert.Equal(t, taxifare.DefaultModelPath, s.Paths.Model)
	assert.Equal(t, boosting.DefaultParams(), s.Trainer)
	assert.NoError(t, s.Validate())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxifare.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
paths:
  model: out/model.bin
trainer:
  num_trees: 50
  learning_rate: 0.1
log:
  level: debug
`), 0o600))

	s := Defaults()
	require.NoError(t, s.LoadFile(path))
	assert.Equal(t, "out/model.bin", s.Paths.Model)
	assert.Equal(t, 50, s.Trainer.NumTrees)
	assert.Equal(t, 0.1, s.Trainer.LearningRate)
	assert.Equal(t, "debug", s.Log.Level)
	// untouched keys keep their defaults
	assert.Equal(t, taxifare.DefaultTrainDataPath, s.Paths.TrainData)
	assert.Equal(t, boosting.DefaultParams().NumLeaves, s.Trainer.NumLeaves)
}

func TestLoadFileErrors(t *testing.T) {
	s := Defaults()
	err := s.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.IsIOError(err))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("trainer: [1, 2"), 0o600))
	assert.Error(t, s.LoadFile(bad))
}

func TestLoadEnv(t *testing.T) {
	vars := map[string]string{
		"TAXIFARE_TRAIN_DATA":    "a.csv",
		"TAXIFARE_SEED":          "7",
		"TAXIFARE_NUM_TREES":     "12",
		"TAXIFARE_LEARNING_RATE": "0.05",
		"TAXIFARE_NO_WAIT":       "true",
	}
	lookup := func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}

	s := Defaults()
	require.NoError(t, s.LoadEnv(lookup))
	assert.Equal(t, "a.csv", s.Paths.TrainData)
	assert.Equal(t, uint64(7), s.Trainer.Seed)
	assert.Equal(t, 12, s.Trainer.NumTrees)
	assert.Equal(t, 0.05, s.Trainer.LearningRate)
	assert.True(t, s.NoWait)

	vars["TAXIFARE_NUM_TREES"] = "many"
	s = Defaults()
	err := s.LoadEnv(lookup)
	var verr *errors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "TAXIFARE_NUM_TREES", verr.ParamName)
}

func TestParseArgs(t *testing.T) {
	s := Defaults()
	s.Paths.TrainData = "from-file.csv"

	args, err := ParseArgs(&s, []string{"--trees", "30", "--no-wait", "--list-runs", "5"})
	require.NoError(t, err)
	assert.Equal(t, 30, s.Trainer.NumTrees)
	assert.True(t, s.NoWait)
	assert.Equal(t, 5, args.ListRuns)
	// flags that were not given keep the lower layer
	assert.Equal(t, "from-file.csv", s.Paths.TrainData)

	_, err = ParseArgs(&s, []string{"--help"})
	assert.ErrorIs(t, err, ErrHelp)

	_, err = ParseArgs(&s, []string{"--trees", "x"})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"empty model path", func(s *Settings) { s.Paths.Model = " " }},
		{"bad trainer", func(s *Settings) { s.Trainer.NumLeaves = 1 }},
		{"negative early stopping", func(s *Settings) { s.EarlyStoppingRounds = -1 }},
		{"unknown level", func(s *Settings) { s.Log.Level = "loud" }},
		{"unknown format", func(s *Settings) { s.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Defaults()
			tt.mutate(&s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestLoadLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trainer:\n  num_trees: 40\n  seed: 3\n"), 0o600))

	t.Setenv("TAXIFARE_SEED", "9")

	s, _, err := Load([]string{"--config", path, "--learning-rate", "0.3"})
	require.NoError(t, err)
	assert.Equal(t, 40, s.Trainer.NumTrees)    // file
	assert.Equal(t, uint64(9), s.Trainer.Seed) // env over file
	assert.Equal(t, 0.3, s.Trainer.LearningRate)
}

func TestConfigPath(t *testing.T) {
	assert.Equal(t, "a.yaml", configPath([]string{"--config", "a.yaml"}))
	assert.Equal(t, "b.yaml", configPath([]string{"--trees", "3", "--config=b.yaml"}))
	assert.Equal(t, "", configPath([]string{"--config"}))
}
