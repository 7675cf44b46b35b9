package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/taxifare/metrics"
)

func TestPrintMetricsRoundsToTwoDecimals(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintMetrics(&buf, metrics.RegressionMetrics{RSquared: 0.91876, RMS: 2.4449}))

	out := buf.String()
	assert.Contains(t, out, "Model quality metrics evaluation")
	assert.Contains(t, out, "RSquared Score:      0.92\n")
	assert.Contains(t, out, "Root Mean Squared Error:      2.44\n")
}

func TestPrintPrediction(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintPrediction(&buf, 15.23456, 15.5))
	assert.Contains(t, buf.String(), "Predicted fare: 15.2346, actual fare: 15.5\n")
}

func TestWriteScatter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fares.png")
	require.NoError(t, WriteScatter(path, "Fare prediction", []float64{5, 10, 20}, []float64{6, 9.5, 21}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	assert.Error(t, WriteScatter(path, "x", nil, nil))
	assert.Error(t, WriteScatter(path, "x", []float64{1}, []float64{1, 2}))
}
