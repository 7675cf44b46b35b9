// Package telemetry records Prometheus metrics for a training and evaluation
// run. The run is a batch job, so metrics are exported by writing a
// node-exporter textfile rather than by serving an endpoint.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/YuminosukeSato/taxifare/metrics"
	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

// Recorder holds every metric of a run on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	StageDuration  *prometheus.HistogramVec // run stage durations (load, train, evaluate, predict)
	TrainingRows   prometheus.Gauge         // rows used to fit the model
	EvaluationRows prometheus.Gauge         // rows used to evaluate the model
	Trees          prometheus.Gauge         // trees in the fitted ensemble
	RSquared       prometheus.Gauge         // R² on the test set
	RMS            prometheus.Gauge         // RMS error on the test set
	Predictions    prometheus.Counter       // single-row predictions served
	CacheHits      prometheus.Counter       // single-row predictions answered from the cache
	Errors         *prometheus.CounterVec   // failures by stage
}

// New creates a recorder with a fresh registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates a recorder registering on reg (useful for testing).
func NewWithRegistry(reg *prometheus.Registry) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taxifare_stage_duration_seconds",
			Help:    "Duration of each run stage in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
		TrainingRows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "taxifare_training_rows",
			Help: "Number of rows the model was fitted on",
		}),
		EvaluationRows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "taxifare_evaluation_rows",
			Help: "Number of rows the model was evaluated on",
		}),
		Trees: factory.NewGauge(prometheus.GaugeOpts{
			Name: "taxifare_model_trees",
			Help: "Number of trees in the fitted ensemble",
		}),
		RSquared: factory.NewGauge(prometheus.GaugeOpts{
			Name: "taxifare_evaluation_r_squared",
			Help: "Coefficient of determination on the test set",
		}),
		RMS: factory.NewGauge(prometheus.GaugeOpts{
			Name: "taxifare_evaluation_rms",
			Help: "Root mean squared error on the test set",
		}),
		Predictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "taxifare_predictions_total",
			Help: "Total number of single-row predictions",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "taxifare_prediction_cache_hits_total",
			Help: "Single-row predictions answered from the cache",
		}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taxifare_errors_total",
			Help: "Total number of failed run stages",
		}, []string{"stage"}),
	}
}

// Registry returns the registry the metrics live on.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// ObserveStage records how long stage took since start. It is meant to be
// deferred:
//
//	defer rec.ObserveStage("train", time.Now())
func (r *Recorder) ObserveStage(stage string, start time.Time) {
	if r == nil {
		return
	}
	r.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// RecordEvaluation stores the evaluation metrics.
func (r *Recorder) RecordEvaluation(m metrics.RegressionMetrics) {
	if r == nil {
		return
	}
	r.RSquared.Set(m.RSquared)
	r.RMS.Set(m.RMS)
	r.EvaluationRows.Set(float64(m.Count))
}

// RecordTraining stores the size of the fitted model and its training set.
func (r *Recorder) RecordTraining(rows, trees int) {
	if r == nil {
		return
	}
	r.TrainingRows.Set(float64(rows))
	r.Trees.Set(float64(trees))
}

// RecordPrediction counts one single-row prediction.
func (r *Recorder) RecordPrediction(cacheHit bool) {
	if r == nil {
		return
	}
	r.Predictions.Inc()
	if cacheHit {
		r.CacheHits.Inc()
	}
}

// RecordError counts a failed stage.
func (r *Recorder) RecordError(stage string) {
	if r == nil {
		return
	}
	r.Errors.WithLabelValues(stage).Inc()
}

// WriteTextfile writes every metric in the Prometheus text format to path,
// replacing the file atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errors.NewIOError("write", path, err)
	}
	return nil
}
