package boosting

import (
	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

// Params contains the training hyperparameters.
type Params struct {
	// Basic parameters
	NumTrees      int     `yaml:"num_trees"`
	NumLeaves     int     `yaml:"num_leaves"`
	MaxDepth      int     `yaml:"max_depth"` // 0 = unlimited
	MinDataInLeaf int     `yaml:"min_data_in_leaf"`
	LearningRate  float64 `yaml:"learning_rate"`

	// Regularization
	Lambda         float64 `yaml:"lambda_l2"`
	MinGainToSplit float64 `yaml:"min_gain_to_split"`
	MinSumHessian  float64 `yaml:"min_sum_hessian_in_leaf"`

	// Sampling
	BaggingFraction float64 `yaml:"bagging_fraction"`
	BaggingFreq     int     `yaml:"bagging_freq"`
	FeatureFraction float64 `yaml:"feature_fraction"`

	// Histogram
	MaxBin int `yaml:"max_bin"`

	// Objective
	Objective  string  `yaml:"objective"` // "regression" (L2), "regression_l1", "huber"
	HuberDelta float64 `yaml:"huber_delta"`

	// Other
	Seed       uint64 `yaml:"seed"`
	NumThreads int    `yaml:"num_threads"` // 0 = runtime.NumCPU()
}

// DefaultParams returns the FastTree-style defaults: 100 trees of at most 20
// leaves, at least 10 rows per leaf, learning rate 0.2.
func DefaultParams() Params {
	return Params{
		NumTrees:        100,
		NumLeaves:       20,
		MinDataInLeaf:   10,
		LearningRate:    0.2,
		MinSumHessian:   1e-3,
		BaggingFraction: 1.0,
		FeatureFraction: 1.0,
		MaxBin:          255,
		Objective:       ObjectiveL2,
		HuberDelta:      1.0,
	}
}

// Validate checks every parameter range.
func (p Params) Validate() error {
	switch {
	case p.NumTrees < 1:
		return errors.NewValidationError("num_trees", "must be at least 1", p.NumTrees)
	case p.NumLeaves < 2:
		return errors.NewValidationError("num_leaves", "must be at least 2", p.NumLeaves)
	case p.MaxDepth < 0:
		return errors.NewValidationError("max_depth", "must be non-negative", p.MaxDepth)
	case p.MinDataInLeaf < 1:
		return errors.NewValidationError("min_data_in_leaf", "must be at least 1", p.MinDataInLeaf)
	case !(p.LearningRate > 0 && p.LearningRate <= 1):
		return errors.NewValidationError("learning_rate", "must be in (0, 1]", p.LearningRate)
	case p.Lambda < 0:
		return errors.NewValidationError("lambda_l2", "must be non-negative", p.Lambda)
	case p.MinGainToSplit < 0:
		return errors.NewValidationError("min_gain_to_split", "must be non-negative", p.MinGainToSplit)
	case p.MinSumHessian < 0:
		return errors.NewValidationError("min_sum_hessian_in_leaf", "must be non-negative", p.MinSumHessian)
	case !(p.BaggingFraction > 0 && p.BaggingFraction <= 1):
		return errors.NewValidationError("bagging_fraction", "must be in (0, 1]", p.BaggingFraction)
	case p.BaggingFreq < 0:
		return errors.NewValidationError("bagging_freq", "must be non-negative", p.BaggingFreq)
	case !(p.FeatureFraction > 0 && p.FeatureFraction <= 1):
		return errors.NewValidationError("feature_fraction", "must be in (0, 1]", p.FeatureFraction)
	case p.MaxBin < 2 || p.MaxBin > 255:
		return errors.NewValidationError("max_bin", "must be in [2, 255]", p.MaxBin)
	case p.NumThreads < 0:
		return errors.NewValidationError("num_threads", "must be non-negative", p.NumThreads)
	}
	if _, err := NewObjective(p.Objective, p.HuberDelta); err != nil {
		return err
	}
	return nil
}
