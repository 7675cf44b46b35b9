package taxifare

import (
	"github.com/YuminosukeSato/taxifare/boosting"
	"github.com/YuminosukeSato/taxifare/dataset"
	"github.com/YuminosukeSato/taxifare/metrics"
	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

// Result summarises a full run.
type Result struct {
	Trees      int
	Metrics    metrics.RegressionMetrics
	Prediction dataset.FarePrediction

	// LossHistory is the training loss after each tree.
	LossHistory []float64
}

// Run executes train, evaluate and single prediction in order and stops at
// the first error.
func Run(env *Env) (Result, error) {
	m, err := Train(env, env.TrainDataPath)
	if err != nil {
		return Result{}, errors.Wrap(err, "train")
	}
	evaluation, err := Evaluate(env, m)
	if err != nil {
		return Result{}, errors.Wrap(err, "evaluate")
	}
	prediction, err := TestSinglePrediction(env)
	if err != nil {
		return Result{}, errors.Wrap(err, "single prediction")
	}

	result := Result{
		Metrics:     evaluation,
		Prediction:  prediction,
		LossHistory: env.EvalHistory[boosting.TrainingLossMetric],
	}
	if ens := Ensemble(m); ens != nil {
		result.Trees = len(ens.Trees)
	}
	return result, nil
}
