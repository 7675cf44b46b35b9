package config

import (
	"io"

	arg "github.com/alexflint/go-arg"

	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

// Args are the command-line flags. Fields left at their zero value after
// parsing keep whatever the lower layers set, so ParseArgs pre-fills them.
type Args struct {
	Config       string  `arg:"--config" help:"YAML settings file"`
	Train        string  `arg:"--train" help:"training CSV"`
	Test         string  `arg:"--test" help:"evaluation CSV"`
	Model        string  `arg:"--model" help:"model container path"`
	Plot         string  `arg:"--plot" help:"write an actual/predicted scatter plot (PNG or SVG)"`
	History      string  `arg:"--history-db" help:"bbolt database that records every run"`
	MetricsFile  string  `arg:"--metrics-file" help:"write Prometheus metrics in textfile format"`
	Seed         uint64  `arg:"--seed" help:"training seed"`
	Trees        int     `arg:"--trees" help:"number of trees"`
	Leaves       int     `arg:"--leaves" help:"maximum leaves per tree"`
	LearningRate float64 `arg:"--learning-rate" help:"shrinkage rate"`
	EarlyStop    int     `arg:"--early-stopping" help:"stop after this many rounds without improvement (0 disables)"`
	LogLevel     string  `arg:"--log-level" help:"debug, info, warn or error"`
	LogFormat    string  `arg:"--log-format" help:"console or json"`
	Progress     bool    `arg:"--progress" help:"show a training progress bar"`
	NoWait       bool    `arg:"--no-wait" help:"exit without waiting for Enter"`
	ListRuns     int     `arg:"--list-runs" help:"print the last N recorded runs and exit"`
}

// ErrHelp is returned by ParseArgs when -h or --help was given.
var ErrHelp = arg.ErrHelp

func newArgs(s *Settings) Args {
	return Args{
		Train:        s.Paths.TrainData,
		Test:         s.Paths.TestData,
		Model:        s.Paths.Model,
		Plot:         s.Paths.Plot,
		History:      s.Paths.History,
		MetricsFile:  s.Paths.MetricsFile,
		Seed:         s.Trainer.Seed,
		Trees:        s.Trainer.NumTrees,
		Leaves:       s.Trainer.NumLeaves,
		LearningRate: s.Trainer.LearningRate,
		EarlyStop:    s.EarlyStoppingRounds,
		LogLevel:     s.Log.Level,
		LogFormat:    s.Log.Format,
		Progress:     s.Progress,
		NoWait:       s.NoWait,
	}
}

func (a *Args) apply(s *Settings) {
	s.Paths.TrainData = a.Train
	s.Paths.TestData = a.Test
	s.Paths.Model = a.Model
	s.Paths.Plot = a.Plot
	s.Paths.History = a.History
	s.Paths.MetricsFile = a.MetricsFile
	s.Trainer.Seed = a.Seed
	s.Trainer.NumTrees = a.Trees
	s.Trainer.NumLeaves = a.Leaves
	s.Trainer.LearningRate = a.LearningRate
	s.EarlyStoppingRounds = a.EarlyStop
	s.Log.Level = a.LogLevel
	s.Log.Format = a.LogFormat
	s.Progress = a.Progress
	s.NoWait = a.NoWait
}

func newParser(args *Args) (*arg.Parser, error) {
	p, err := arg.NewParser(arg.Config{Program: "taxifare"}, args)
	if err != nil {
		return nil, errors.Wrap(err, "build flag parser")
	}
	return p, nil
}

// ParseArgs parses argv over s and writes the flag values back into s.
func ParseArgs(s *Settings, argv []string) (Args, error) {
	args := newArgs(s)
	p, err := newParser(&args)
	if err != nil {
		return Args{}, err
	}
	if err := p.Parse(argv); err != nil {
		if errors.Is(err, arg.ErrHelp) {
			return Args{}, ErrHelp
		}
		return Args{}, errors.NewValidationError("flags", err.Error(), argv)
	}
	args.apply(s)
	return args, nil
}

// WriteHelp writes flag usage to w.
func WriteHelp(w io.Writer) {
	var args Args
	if p, err := newParser(&args); err == nil {
		p.WriteHelp(w)
	}
}
