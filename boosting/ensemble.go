package boosting

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxifare/core/parallel"
	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

// parallelRowThreshold is the row count from which PredictDense spreads rows
// over workers.
const parallelRowThreshold = 1024

// Ensemble is a fitted boosted model: a constant start score plus the sum of
// its trees' shrunk outputs.
type Ensemble struct {
	InitScore   float64
	Trees       []Tree
	NumFeatures int
	Objective   string

	// Gain and split count accumulated per feature during training.
	ImportanceGain  []float64
	ImportanceSplit []int
}

// Predict returns the prediction for one feature vector. Trees are summed in
// order so the result is reproducible bit for bit.
func (e *Ensemble) Predict(features []float64) float64 {
	score := e.InitScore
	for i := range e.Trees {
		score += e.Trees[i].Predict(features)
	}
	return score
}

// PredictDense predicts every row of X. Each row is summed in tree order,
// so the output does not depend on how rows are split over workers.
func (e *Ensemble) PredictDense(X *mat.Dense) ([]float64, error) {
	rows, cols := X.Dims()
	if cols != e.NumFeatures {
		return nil, errors.NewDimensionError("Ensemble.PredictDense", e.NumFeatures, cols, 1)
	}
	if rows < parallelRowThreshold {
		out := make([]float64, rows)
		for i := 0; i < rows; i++ {
			out[i] = e.Predict(X.RawRowView(i))
		}
		return out, nil
	}
	return parallel.Map(rows, 0, func(i int) float64 {
		return e.Predict(X.RawRowView(i))
	}), nil
}

// FeatureImportance pairs a feature index with its importance.
type FeatureImportance struct {
	Feature int
	Gain    float64
	Splits  int
}

// TopFeatures returns up to k features ordered by descending gain. Ties are
// broken by the lower feature index.
func (e *Ensemble) TopFeatures(k int) []FeatureImportance {
	all := make([]FeatureImportance, 0, len(e.ImportanceGain))
	for j, g := range e.ImportanceGain {
		fi := FeatureImportance{Feature: j, Gain: g}
		if j < len(e.ImportanceSplit) {
			fi.Splits = e.ImportanceSplit[j]
		}
		all = append(all, fi)
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].Gain > all[b].Gain })
	if k >= 0 && k < len(all) {
		all = all[:k]
	}
	return all
}
