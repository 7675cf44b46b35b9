package taxifare

import (
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/YuminosukeSato/taxifare/core/frame"
	"github.com/YuminosukeSato/taxifare/dataset"
	"github.com/YuminosukeSato/taxifare/pipeline"
	"github.com/YuminosukeSato/taxifare/pkg/errors"
	"github.com/YuminosukeSato/taxifare/pkg/log"
	"github.com/YuminosukeSato/taxifare/report"
	"github.com/YuminosukeSato/taxifare/telemetry"
)

// FarePredictor predicts the fare of single trips with a fitted model. It is
// safe for concurrent use.
type FarePredictor struct {
	model     *pipeline.Model
	schema    dataset.Schema
	cache     *lru.Cache // nil when caching is disabled
	telemetry *telemetry.Recorder
}

// NewFarePredictor wraps m. A positive cacheSize keeps that many recent
// predictions keyed by the input record.
func NewFarePredictor(m *pipeline.Model, cacheSize int) (*FarePredictor, error) {
	p := &FarePredictor{model: m, schema: dataset.TaxiTripSchema()}
	if cacheSize > 0 {
		cache, err := lru.New(cacheSize)
		if err != nil {
			return nil, errors.Wrap(err, "create prediction cache")
		}
		p.cache = cache
	}
	return p, nil
}

// WithTelemetry counts predictions and cache hits on rec.
func (p *FarePredictor) WithTelemetry(rec *telemetry.Recorder) *FarePredictor {
	p.telemetry = rec
	return p
}

// Predict returns the predicted fare for rec. rec.FareAmount is ignored by
// the model and may be zero.
func (p *FarePredictor) Predict(rec dataset.TripRecord) (dataset.FarePrediction, error) {
	if p.cache != nil {
		if v, ok := p.cache.Get(rec); ok {
			p.telemetry.RecordPrediction(true)
			return v.(dataset.FarePrediction), nil
		}
	}
	out, err := p.PredictBatch([]dataset.TripRecord{rec})
	if err != nil {
		return dataset.FarePrediction{}, err
	}
	if p.cache != nil {
		p.cache.Add(rec, out[0])
	}
	p.telemetry.RecordPrediction(false)
	return out[0], nil
}

// PredictBatch predicts every record in one pass through the model. It does
// not use the cache.
func (p *FarePredictor) PredictBatch(records []dataset.TripRecord) ([]dataset.FarePrediction, error) {
	if len(records) == 0 {
		return nil, nil
	}
	f, err := dataset.ToFrame(p.schema, records)
	if err != nil {
		return nil, err
	}
	scored, err := p.model.Transform(f)
	if err != nil {
		return nil, err
	}
	score, err := scored.ColumnOf(ScoreColumn, frame.Scalar)
	if err != nil {
		return nil, err
	}
	out := make([]dataset.FarePrediction, len(records))
	for i, v := range score.Scalars() {
		out[i] = dataset.FarePrediction{FareAmount: float32(v)}
	}
	return out, nil
}

// TestSinglePrediction reloads the model from env.ModelPath, predicts the
// canonical sample trip and prints the prediction next to the reference
// fare.
func TestSinglePrediction(env *Env) (dataset.FarePrediction, error) {
	start := time.Now()
	defer env.Telemetry.ObserveStage("predict", start)

	prediction, err := testSinglePrediction(env)
	if err != nil {
		env.Telemetry.RecordError("predict")
		return dataset.FarePrediction{}, err
	}
	env.logger().Info("Single prediction",
		log.OperationKey, log.OperationPredict,
		log.PhaseKey, log.PhaseInference,
		"predicted_fare", prediction.FareAmount,
		"reference_fare", dataset.ReferenceFare,
	)
	return prediction, nil
}

func testSinglePrediction(env *Env) (dataset.FarePrediction, error) {
	m, err := pipeline.Load(env.ModelPath, StageRegistry())
	if err != nil {
		return dataset.FarePrediction{}, err
	}
	predictor, err := NewFarePredictor(m, env.PredictionCacheSize)
	if err != nil {
		return dataset.FarePrediction{}, err
	}
	predictor.WithTelemetry(env.Telemetry)

	prediction, err := predictor.Predict(dataset.CanonicalSample())
	if err != nil {
		return dataset.FarePrediction{}, err
	}
	if err := report.PrintPrediction(env.Out, prediction.FareAmount, dataset.ReferenceFare); err != nil {
		return dataset.FarePrediction{}, err
	}
	return prediction, nil
}
