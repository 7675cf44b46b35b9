package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxifare/core/frame"
	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

func TestMSE(t *testing.T) {
	tests := []struct {
		name  string
		yTrue []float64
		yPred []float64
		want  float64
	}{
		{"perfect prediction", []float64{1, 2, 3, 4, 5}, []float64{1, 2, 3, 4, 5}, 0},
		{"simple case", []float64{1, 2, 3, 4}, []float64{1.5, 2.5, 2.5, 3.5}, 0.25},
		{"larger errors", []float64{10, 20, 30}, []float64{12, 18, 33}, 17.0 / 3.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MSE(mat.NewVecDense(len(tt.yTrue), tt.yTrue), mat.NewVecDense(len(tt.yPred), tt.yPred))
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-10)
		})
	}

	_, err := MSE(mat.NewVecDense(2, []float64{1, 2}), mat.NewVecDense(3, []float64{1, 2, 3}))
	assert.Error(t, err)
}

func TestMAEAndRMSE(t *testing.T) {
	yTrue := mat.NewVecDense(4, []float64{3, -0.5, 2, 7})
	yPred := mat.NewVecDense(4, []float64{2.5, 0, 2, 8})

	mae, err := MAE(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, mae, 1e-10)

	rmse, err := RMSE(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(0.375), rmse, 1e-10)
}

func TestR2Score(t *testing.T) {
	yTrue := mat.NewVecDense(4, []float64{3, -0.5, 2, 7})
	yPred := mat.NewVecDense(4, []float64{2.5, 0, 2, 8})
	r2, err := R2Score(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.9486081370449679, r2, 1e-10)

	mean := mat.NewVecDense(4, []float64{2.875, 2.875, 2.875, 2.875})
	r2, err = R2Score(yTrue, mean)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, r2, 1e-10)
}

func TestR2ScoreConstantTarget(t *testing.T) {
	var warned []error
	errors.SetWarningHandler(func(w error) { warned = append(warned, w) })
	errors.SetZerologWarnFunc(nil)
	defer errors.SetWarningHandler(func(error) {})

	same := mat.NewVecDense(3, []float64{15.5, 15.5, 15.5})
	r2, err := R2Score(same, same)
	require.NoError(t, err)
	assert.Equal(t, 1.0, r2)
	assert.Empty(t, warned)

	r2, err = R2Score(same, mat.NewVecDense(3, []float64{15, 16, 15.5}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, r2)
	assert.Len(t, warned, 1)
}

func TestEvaluatePerfectAgreement(t *testing.T) {
	fares := []float64{7.5, 15.5, 22, 9.25, 48}
	f, err := frame.New(
		frame.ScalarColumn("Label", fares),
		frame.ScalarColumn("Score", fares),
	)
	require.NoError(t, err)

	m, err := Evaluate(f, "Label", "Score")
	require.NoError(t, err)
	assert.Equal(t, 1.0, m.RSquared)
	assert.Equal(t, 0.0, m.RMS)
	assert.Equal(t, 0.0, m.MAE)
	assert.Equal(t, 5, m.Count)
}

func TestEvaluateSlices(t *testing.T) {
	m, err := EvaluateSlices([]float64{1, 2, 3, 4}, []float64{1.5, 2.5, 2.5, 3.5})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, m.RMS, 1e-12)
	assert.InDelta(t, 0.25, m.MSE, 1e-12)
	assert.InDelta(t, 0.8, m.RSquared, 1e-12)

	_, err = EvaluateSlices(nil, nil)
	assert.Error(t, err)
	_, err = EvaluateSlices([]float64{1}, []float64{1, 2})
	assert.Error(t, err)
}

func TestEvaluateMissingColumn(t *testing.T) {
	f, err := frame.New(frame.ScalarColumn("Label", []float64{1}))
	require.NoError(t, err)
	_, err = Evaluate(f, "Label", "Score")
	assert.Error(t, err)
}
