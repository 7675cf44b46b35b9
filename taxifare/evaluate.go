package taxifare

import (
	"time"

	"github.com/YuminosukeSato/taxifare/core/frame"
	"github.com/YuminosukeSato/taxifare/metrics"
	"github.com/YuminosukeSato/taxifare/pipeline"
	"github.com/YuminosukeSato/taxifare/pkg/log"
	"github.com/YuminosukeSato/taxifare/report"
)

// Evaluate scores env.TestDataPath with m and prints R² and RMS. When
// env.PlotPath is set it also writes a predicted-vs-actual scatter plot.
func Evaluate(env *Env, m *pipeline.Model) (metrics.RegressionMetrics, error) {
	start := time.Now()
	defer env.Telemetry.ObserveStage("evaluate", start)

	result, err := evaluate(env, m)
	if err != nil {
		env.Telemetry.RecordError("evaluate")
		return metrics.RegressionMetrics{}, err
	}
	env.Telemetry.RecordEvaluation(result)
	env.logger().Info("Model evaluated",
		log.OperationKey, log.OperationEvaluate,
		log.PathKey, env.TestDataPath,
		log.SamplesKey, result.Count,
		log.R2ScoreKey, result.RSquared,
		log.RMSKey, result.RMS,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return result, nil
}

func evaluate(env *Env, m *pipeline.Model) (metrics.RegressionMetrics, error) {
	data, err := env.Loader.Load(env.TestDataPath)
	if err != nil {
		return metrics.RegressionMetrics{}, err
	}
	scored, err := m.Transform(data)
	if err != nil {
		return metrics.RegressionMetrics{}, err
	}
	result, err := metrics.Evaluate(scored, LabelColumn, ScoreColumn)
	if err != nil {
		return metrics.RegressionMetrics{}, err
	}
	if err := report.PrintMetrics(env.Out, result); err != nil {
		return metrics.RegressionMetrics{}, err
	}

	if env.PlotPath != "" {
		label, err := scored.ColumnOf(LabelColumn, frame.Scalar)
		if err != nil {
			return metrics.RegressionMetrics{}, err
		}
		score, err := scored.ColumnOf(ScoreColumn, frame.Scalar)
		if err != nil {
			return metrics.RegressionMetrics{}, err
		}
		if err := report.WriteScatter(env.PlotPath, "Taxi fare: predicted vs actual", label.Scalars(), score.Scalars()); err != nil {
			return metrics.RegressionMetrics{}, err
		}
		env.logger().Info("Scatter plot written", log.PathKey, env.PlotPath)
	}
	return result, nil
}
