// Package config loads run settings.
//
// Settings are layered, later layers overriding earlier ones:
//
//  1. built-in defaults (the fixed Data/ paths, FastTree hyperparameters)
//  2. a YAML file named by --config or TAXIFARE_CONFIG
//  3. a .env file in the working directory, then TAXIFARE_* environment variables
//  4. command-line flags
//
// With no file, variables or flags the result is exactly the defaults.
package config

import (
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/taxifare/boosting"
	"github.com/YuminosukeSato/taxifare/pkg/errors"
	"github.com/YuminosukeSato/taxifare/pkg/log"
	"github.com/YuminosukeSato/taxifare/taxifare"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "TAXIFARE_"

// Settings is the merged configuration of a run.
type Settings struct {
	Paths struct {
		TrainData   string `yaml:"train_data"`
		TestData    string `yaml:"test_data"`
		Model       string `yaml:"model"`
		Plot        string `yaml:"plot"`         // optional scatter plot
		History     string `yaml:"history"`      // optional run history database
		MetricsFile string `yaml:"metrics_file"` // optional Prometheus textfile
	} `yaml:"paths"`

	Trainer             boosting.Params `yaml:"trainer"`
	EarlyStoppingRounds int             `yaml:"early_stopping_rounds"`
	PredictionCacheSize int             `yaml:"prediction_cache_size"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // console or json
	} `yaml:"log"`

	Progress bool `yaml:"progress"`
	NoWait   bool `yaml:"no_wait"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	var s Settings
	s.Paths.TrainData = taxifare.DefaultTrainDataPath
	s.Paths.TestData = taxifare.DefaultTestDataPath
	s.Paths.Model = taxifare.DefaultModelPath
	s.Trainer = boosting.DefaultParams()
	s.PredictionCacheSize = 128
	s.Log.Level = "info"
	s.Log.Format = "console"
	return s
}

// LoadFile overlays the YAML file at path onto s. Keys missing from the file
// keep their current values.
func (s *Settings) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.NewIOError("read", path, err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return errors.Wrapf(err, "parse config file %s", path)
	}
	return nil
}

// LoadEnv overlays TAXIFARE_* variables from lookup onto s.
func (s *Settings) LoadEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	var firstErr error
	parse := func(key string, set func(string) error) {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" || firstErr != nil {
			return
		}
		if err := set(v); err != nil {
			firstErr = errors.NewValidationError(EnvPrefix+key, err.Error(), v)
		}
	}
	intVar := func(dst *int) func(string) error {
		return func(v string) (err error) {
			*dst, err = strconv.Atoi(v)
			return
		}
	}
	floatVar := func(dst *float64) func(string) error {
		return func(v string) (err error) {
			*dst, err = strconv.ParseFloat(v, 64)
			return
		}
	}
	boolVar := func(dst *bool) func(string) error {
		return func(v string) (err error) {
			*dst, err = strconv.ParseBool(v)
			return
		}
	}

	str("TRAIN_DATA", &s.Paths.TrainData)
	str("TEST_DATA", &s.Paths.TestData)
	str("MODEL", &s.Paths.Model)
	str("PLOT", &s.Paths.Plot)
	str("HISTORY", &s.Paths.History)
	str("METRICS_FILE", &s.Paths.MetricsFile)
	str("LOG_LEVEL", &s.Log.Level)
	str("LOG_FORMAT", &s.Log.Format)
	str("OBJECTIVE", &s.Trainer.Objective)

	parse("SEED", func(v string) (err error) {
		s.Trainer.Seed, err = strconv.ParseUint(v, 10, 64)
		return
	})
	parse("NUM_TREES", intVar(&s.Trainer.NumTrees))
	parse("NUM_LEAVES", intVar(&s.Trainer.NumLeaves))
	parse("MIN_DATA_IN_LEAF", intVar(&s.Trainer.MinDataInLeaf))
	parse("LEARNING_RATE", floatVar(&s.Trainer.LearningRate))
	parse("EARLY_STOPPING_ROUNDS", intVar(&s.EarlyStoppingRounds))
	parse("PREDICTION_CACHE_SIZE", intVar(&s.PredictionCacheSize))
	parse("PROGRESS", boolVar(&s.Progress))
	parse("NO_WAIT", boolVar(&s.NoWait))
	return firstErr
}

// Validate checks the merged settings.
func (s *Settings) Validate() error {
	for name, v := range map[string]string{
		"paths.train_data": s.Paths.TrainData,
		"paths.test_data":  s.Paths.TestData,
		"paths.model":      s.Paths.Model,
	} {
		if strings.TrimSpace(v) == "" {
			return errors.NewValidationError(name, "must not be empty", v)
		}
	}
	if err := s.Trainer.Validate(); err != nil {
		return err
	}
	if s.EarlyStoppingRounds < 0 {
		return errors.NewValidationError("early_stopping_rounds", "must be non-negative", s.EarlyStoppingRounds)
	}
	if s.PredictionCacheSize < 0 {
		return errors.NewValidationError("prediction_cache_size", "must be non-negative", s.PredictionCacheSize)
	}
	if _, err := log.ParseLevel(s.Log.Level); err != nil {
		return err
	}
	switch s.Log.Format {
	case "console", "json":
	default:
		return errors.NewValidationError("log.format", "must be console or json", s.Log.Format)
	}
	return nil
}

// Load merges every layer for argv (without the program name). The returned
// Args reports flags that only make sense on the command line.
func Load(argv []string) (Settings, Args, error) {
	s := Defaults()

	path := configPath(argv)
	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := s.LoadFile(path); err != nil {
			return Settings{}, Args{}, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, Args{}, errors.Wrap(err, "load .env")
	}
	if err := s.LoadEnv(os.LookupEnv); err != nil {
		return Settings{}, Args{}, err
	}

	args, err := ParseArgs(&s, argv)
	if err != nil {
		return Settings{}, Args{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, Args{}, err
	}
	return s, args, nil
}

// configPath finds --config in argv before the full flag parse, because the
// file has to be applied underneath the flags.
func configPath(argv []string) string {
	for i, a := range argv {
		if a == "--config" && i+1 < len(argv) {
			return argv[i+1]
		}
		if v, ok := strings.CutPrefix(a, "--config="); ok {
			return v
		}
	}
	return ""
}
