// Command taxifare trains the taxi fare regression model on Data/, reports
// its quality on the test file and predicts the fare of one sample trip.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/YuminosukeSato/taxifare/config"
	"github.com/YuminosukeSato/taxifare/pkg/errors"
	"github.com/YuminosukeSato/taxifare/pkg/log"
	"github.com/YuminosukeSato/taxifare/registry"
	"github.com/YuminosukeSato/taxifare/taxifare"
	"github.com/YuminosukeSato/taxifare/telemetry"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, config.ErrHelp) {
			config.WriteHelp(os.Stdout)
			return
		}
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}

func run(argv []string, in io.Reader, out io.Writer) error {
	settings, args, err := config.Load(argv)
	if err != nil {
		return err
	}
	if err := log.SetupLogger(settings.Log.Level, settings.Log.Format, os.Stderr); err != nil {
		return err
	}
	logger := log.GetLoggerWithName("main")

	if args.ListRuns > 0 {
		return listRuns(settings.Paths.History, args.ListRuns, out)
	}

	env, err := newEnv(settings, out)
	if err != nil {
		return err
	}

	started := time.Now()
	result, err := taxifare.Run(env)
	if err != nil {
		return err
	}

	if settings.Paths.History != "" {
		if err := recordRun(settings, result, started); err != nil {
			return err
		}
	}
	if settings.Paths.MetricsFile != "" {
		if err := env.Telemetry.WriteTextfile(settings.Paths.MetricsFile); err != nil {
			return err
		}
		logger.Debug("Metrics written", log.PathKey, settings.Paths.MetricsFile)
	}

	if !settings.NoWait {
		fmt.Fprintln(out, "Press any key to exit..")
		_, _ = bufio.NewReader(in).ReadString('\n')
	}
	return nil
}

func newEnv(s config.Settings, out io.Writer) (*taxifare.Env, error) {
	env, err := taxifare.NewEnv(s.Trainer.Seed)
	if err != nil {
		return nil, err
	}
	env.TrainDataPath = s.Paths.TrainData
	env.TestDataPath = s.Paths.TestData
	env.ModelPath = s.Paths.Model
	env.PlotPath = s.Paths.Plot
	env.Params = s.Trainer
	env.EarlyStoppingRounds = s.EarlyStoppingRounds
	env.PredictionCacheSize = s.PredictionCacheSize
	env.Out = out
	env.Telemetry = telemetry.New()
	if s.Progress {
		env.Progress = os.Stderr
	}
	return env, nil
}

func recordRun(s config.Settings, result taxifare.Result, started time.Time) error {
	store, err := registry.Open(s.Paths.History)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.Record(registry.Run{
		StartedAt:     started,
		Duration:      time.Since(started).Seconds(),
		TrainDataPath: s.Paths.TrainData,
		TestDataPath:  s.Paths.TestData,
		ModelPath:     s.Paths.Model,
		Seed:          s.Trainer.Seed,
		NumTrees:      result.Trees,
		NumLeaves:     s.Trainer.NumLeaves,
		LearningRate:  s.Trainer.LearningRate,
		RSquared:      result.Metrics.RSquared,
		RMS:           result.Metrics.RMS,
		Prediction:    result.Prediction.FareAmount,
	})
}

func listRuns(path string, limit int, out io.Writer) error {
	if path == "" {
		return errors.NewValidationError("history-db", "required with --list-runs", path)
	}
	store, err := registry.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(limit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Fprintf(out, "%s  seed=%d trees=%d lr=%g  R2=%.2f RMS=%.2f  predicted=%.4f\n",
			r.StartedAt.Format(time.RFC3339), r.Seed, r.NumTrees, r.LearningRate,
			r.RSquared, r.RMS, r.Prediction)
	}
	return nil
}
