// Package taxifare trains, evaluates and serves the taxi fare regression
// model.
//
// A run has four steps in a fixed order:
//
//	env, _ := taxifare.NewEnv(0)
//	m, _ := taxifare.Train(env, env.TrainDataPath)     // fit and save
//	_, _ = taxifare.Evaluate(env, m)                    // R² and RMS on the test file
//	_, _ = taxifare.TestSinglePrediction(env)           // reload and predict one trip
package taxifare

import (
	"io"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/taxifare/boosting"
	"github.com/YuminosukeSato/taxifare/dataset"
	"github.com/YuminosukeSato/taxifare/pkg/log"
	"github.com/YuminosukeSato/taxifare/telemetry"
)

// Default file locations, relative to the working directory.
var (
	DefaultTrainDataPath = filepath.Join("Data", "taxi-fare-train.csv")
	DefaultTestDataPath  = filepath.Join("Data", "taxi-fare-test.csv")
	DefaultModelPath     = filepath.Join("Data", "Model.bin")
)

// Env carries everything a run needs. It replaces process-wide state: build
// one per run with NewEnv, adjust its fields, then pass it to each step.
type Env struct {
	TrainDataPath string
	TestDataPath  string
	ModelPath     string
	PlotPath      string // optional predicted-vs-actual scatter plot

	Params              boosting.Params
	EarlyStoppingRounds int // 0 disables early stopping
	PredictionCacheSize int // 0 disables the single-row prediction cache

	Out       io.Writer // console report; defaults to stdout
	Progress  io.Writer // training progress bar; nil disables it
	Logger    log.Logger
	Telemetry *telemetry.Recorder // optional

	Loader *dataset.Loader

	// EvalHistory is reset by Train and holds every per-iteration
	// evaluation result of the last fit, keyed by metric name.
	EvalHistory map[string][]float64
}

// NewEnv returns an environment with the default paths and trainer
// parameters, seeded with seed.
func NewEnv(seed uint64) (*Env, error) {
	logger := log.GetLoggerWithName("taxifare")
	loader, err := dataset.NewLoader(dataset.TaxiTripSchema(), dataset.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	params := boosting.DefaultParams()
	params.Seed = seed
	return &Env{
		TrainDataPath: DefaultTrainDataPath,
		TestDataPath:  DefaultTestDataPath,
		ModelPath:     DefaultModelPath,
		Params:        params,
		Out:           os.Stdout,
		Logger:        logger,
		Loader:        loader,
	}, nil
}

func (e *Env) logger() log.Logger {
	if e.Logger == nil {
		return log.GetLoggerWithName("taxifare")
	}
	return e.Logger
}
