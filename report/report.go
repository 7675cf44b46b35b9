// Package report formats run results for the console and as plots.
package report

import (
	"fmt"
	"io"
	"math"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/taxifare/metrics"
	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

const border = "*************************************************"

// PrintMetrics writes the evaluation block. R² and RMS are rounded to two
// decimal places.
func PrintMetrics(w io.Writer, m metrics.RegressionMetrics) error {
	var b strings.Builder
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, border)
	fmt.Fprintln(&b, "*       Model quality metrics evaluation")
	fmt.Fprintln(&b, "*------------------------------------------------")
	fmt.Fprintf(&b, "*       RSquared Score:      %.2f\n", m.RSquared)
	fmt.Fprintf(&b, "*       Root Mean Squared Error:      %.2f\n", m.RMS)
	fmt.Fprintln(&b, border)
	_, err := io.WriteString(w, b.String())
	return errors.WithStack(err)
}

// PrintPrediction writes the single-prediction line: the predicted fare with
// four decimals next to the reference fare.
func PrintPrediction(w io.Writer, predicted float32, reference float64) error {
	_, err := fmt.Fprintf(w, "**********************************************************************\n"+
		"Predicted fare: %.4f, actual fare: %v\n"+
		"**********************************************************************\n",
		predicted, reference)
	return errors.WithStack(err)
}

// WriteScatter saves a predicted-vs-actual scatter plot with the y = x
// reference line. The image format follows the file extension (.png, .svg,
// .pdf).
func WriteScatter(path, title string, actual, predicted []float64) error {
	if len(actual) == 0 {
		return errors.NewValueError("report.WriteScatter", "no points to plot")
	}
	if len(actual) != len(predicted) {
		return errors.NewDimensionError("report.WriteScatter", len(actual), len(predicted), 0)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Actual fare"
	p.Y.Label.Text = "Predicted fare"

	pts := make(plotter.XYs, len(actual))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range actual {
		pts[i].X = actual[i]
		pts[i].Y = predicted[i]
		lo = math.Min(lo, math.Min(actual[i], predicted[i]))
		hi = math.Max(hi, math.Max(actual[i], predicted[i]))
	}

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.Wrap(err, "build scatter")
	}
	scatter.GlyphStyle.Radius = vg.Points(1.5)

	diagonal, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return errors.Wrap(err, "build reference line")
	}
	diagonal.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}

	p.Add(plotter.NewGrid(), scatter, diagonal)
	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.NewIOError("write", path, err)
	}
	return nil
}
