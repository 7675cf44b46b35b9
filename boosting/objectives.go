package boosting

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

// Objective names accepted by NewObjective.
const (
	ObjectiveL2    = "regression"
	ObjectiveL1    = "regression_l1"
	ObjectiveHuber = "huber"
)

// Objective defines the loss being minimised.
type Objective interface {
	// Gradient of the loss with respect to the prediction.
	Gradient(prediction, target float64) float64

	// Hessian of the loss with respect to the prediction.
	Hessian(prediction, target float64) float64

	// Loss for a single sample.
	Loss(prediction, target float64) float64

	// InitScore is the constant prediction the ensemble starts from.
	InitScore(targets []float64) float64

	Name() string
}

// NewObjective returns the objective registered under name. An empty name
// selects L2.
func NewObjective(name string, huberDelta float64) (Objective, error) {
	switch name {
	case "", ObjectiveL2, "l2", "mse":
		return L2Objective{}, nil
	case ObjectiveL1, "l1", "mae":
		return L1Objective{}, nil
	case ObjectiveHuber:
		if huberDelta <= 0 {
			return nil, errors.NewValidationError("huber_delta", "must be positive", huberDelta)
		}
		return HuberObjective{Delta: huberDelta}, nil
	}
	return nil, errors.NewValidationError("objective", "unknown objective", name)
}

// L2Objective implements squared error.
type L2Objective struct{}

func (L2Objective) Gradient(prediction, target float64) float64 { return prediction - target }

func (L2Objective) Hessian(_, _ float64) float64 { return 1.0 }

func (L2Objective) Loss(prediction, target float64) float64 {
	diff := prediction - target
	return 0.5 * diff * diff
}

func (L2Objective) InitScore(targets []float64) float64 { return mean(targets) }

func (L2Objective) Name() string { return ObjectiveL2 }

// L1Objective implements absolute error. The hessian is fixed at 1 so leaf
// values stay bounded.
type L1Objective struct{}

func (L1Objective) Gradient(prediction, target float64) float64 {
	diff := prediction - target
	switch {
	case diff > 0:
		return 1.0
	case diff < 0:
		return -1.0
	}
	return 0.0
}

func (L1Objective) Hessian(_, _ float64) float64 { return 1.0 }

func (L1Objective) Loss(prediction, target float64) float64 { return math.Abs(prediction - target) }

// InitScore returns the median of the targets.
func (L1Objective) InitScore(targets []float64) float64 {
	if len(targets) == 0 {
		return 0.0
	}
	sorted := append([]float64(nil), targets...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func (L1Objective) Name() string { return ObjectiveL1 }

// HuberObjective is quadratic within Delta of the target and linear outside.
type HuberObjective struct {
	Delta float64
}

func (o HuberObjective) Gradient(prediction, target float64) float64 {
	diff := prediction - target
	if math.Abs(diff) <= o.Delta {
		return diff
	}
	if diff > 0 {
		return o.Delta
	}
	return -o.Delta
}

// Hessian is 1 in both regions so leaf values stay bounded when most rows
// fall in the linear region.
func (o HuberObjective) Hessian(_, _ float64) float64 { return 1.0 }

func (o HuberObjective) Loss(prediction, target float64) float64 {
	absDiff := math.Abs(prediction - target)
	if absDiff <= o.Delta {
		return 0.5 * absDiff * absDiff
	}
	return o.Delta * (absDiff - 0.5*o.Delta)
}

func (o HuberObjective) InitScore(targets []float64) float64 { return mean(targets) }

func (o HuberObjective) Name() string { return ObjectiveHuber }

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	return stat.Mean(values, nil)
}
