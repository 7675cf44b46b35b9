package boosting

import (
	"io"
	"math"
	"time"

	"github.com/cheggaaa/pb/v3"

	"github.com/YuminosukeSato/taxifare/pkg/log"
)

// TrainingLossMetric is the evaluation key reported after every iteration.
const TrainingLossMetric = "training_loss"

// CallbackEnv contains the environment for callbacks.
type CallbackEnv struct {
	Iteration    int
	NumTrees     int
	BeginTime    time.Time
	EvalResults  map[string]float64
	StopTraining bool

	// Final is set on the single call made after training ends, however it
	// ended. EvalResults is empty on that call.
	Final bool
}

// Callback is called after every boosting iteration and once more when
// training ends. Setting env.StopTraining ends training after the current
// tree.
type Callback func(env *CallbackEnv) error

// CallbackList manages multiple callbacks.
type CallbackList struct {
	callbacks []Callback
	env       *CallbackEnv
}

// NewCallbackList creates a new callback list.
func NewCallbackList(callbacks ...Callback) *CallbackList {
	return &CallbackList{
		callbacks: callbacks,
		env: &CallbackEnv{
			BeginTime:   time.Now(),
			EvalResults: make(map[string]float64),
		},
	}
}

// AfterIteration calls every callback in order.
func (cl *CallbackList) AfterIteration(iteration, numTrees int, results map[string]float64) error {
	cl.env.Iteration = iteration
	cl.env.NumTrees = numTrees
	cl.env.EvalResults = results
	for _, cb := range cl.callbacks {
		if err := cb(cl.env); err != nil {
			return err
		}
	}
	return nil
}

// Finish makes the final call to every callback. It is safe to call more
// than once; only the first call reaches the callbacks. Errors are ignored
// because there is no iteration left to abort.
func (cl *CallbackList) Finish(numTrees int) {
	if cl.env.Final {
		return
	}
	cl.env.Final = true
	cl.env.NumTrees = numTrees
	cl.env.EvalResults = map[string]float64{}
	for _, cb := range cl.callbacks {
		_ = cb(cl.env)
	}
}

// ShouldStop reports whether a callback asked to stop.
func (cl *CallbackList) ShouldStop() bool {
	return cl.env.StopTraining
}

// ProgressBar draws a progress bar of total iterations on w. The bar is
// finished on the final callback, so it stops redrawing even when training
// ends before total.
func ProgressBar(total int, w io.Writer) Callback {
	bar := pb.New(total)
	bar.SetWriter(w)
	started := false
	return func(env *CallbackEnv) error {
		if env.Final {
			if started {
				bar.Finish()
				started = false
			}
			return nil
		}
		if !started {
			bar.Start()
			started = true
		}
		bar.Increment()
		return nil
	}
}

// LogEvaluation logs the evaluation results every period iterations.
func LogEvaluation(logger log.Logger, period int) Callback {
	if period <= 0 {
		period = 1
	}
	return func(env *CallbackEnv) error {
		if !env.Final && env.Iteration%period == 0 {
			logger.Debug("Training progress",
				log.IterationKey, env.Iteration,
				log.LossKey, env.EvalResults[TrainingLossMetric],
			)
		}
		return nil
	}
}

// RecordEvaluation appends every evaluation result to history.
func RecordEvaluation(history map[string][]float64) Callback {
	return func(env *CallbackEnv) error {
		for name, value := range env.EvalResults {
			history[name] = append(history[name], value)
		}
		return nil
	}
}

// EarlyStopping stops training once metric has not improved by more than
// minDelta for rounds consecutive iterations.
func EarlyStopping(rounds int, metric string, minDelta float64, logger log.Logger) Callback {
	best := math.Inf(1)
	bestIteration := 0
	noImprove := 0

	return func(env *CallbackEnv) error {
		value, ok := env.EvalResults[metric]
		if !ok || rounds <= 0 {
			return nil
		}
		if value < best-minDelta {
			best = value
			bestIteration = env.Iteration
			noImprove = 0
			return nil
		}
		noImprove++
		if noImprove >= rounds {
			if logger != nil {
				logger.Info("Early stopping",
					log.IterationKey, env.Iteration,
					"best_iteration", bestIteration,
					log.LossKey, best,
				)
			}
			env.StopTraining = true
		}
		return nil
	}
}
