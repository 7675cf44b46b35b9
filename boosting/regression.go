package boosting

import (
	"github.com/YuminosukeSato/taxifare/core/frame"
	"github.com/YuminosukeSato/taxifare/core/model"
	"github.com/YuminosukeSato/taxifare/pkg/errors"
	"github.com/YuminosukeSato/taxifare/pkg/log"
)

// RegressionPredictorKind is the stage kind written into model files.
const RegressionPredictorKind = "boosting.RegressionPredictor"

// Default column names.
const (
	DefaultLabelColumn   = "Label"
	DefaultFeatureColumn = "Features"
	DefaultScoreColumn   = "Score"
)

// RegressionTrainer is the pipeline estimator wrapping Trainer. It reads a
// scalar label column and a vector feature column.
type RegressionTrainer struct {
	LabelColumn   string
	FeatureColumn string
	ScoreColumn   string
	Params        Params
	Callbacks     []Callback
	Logger        log.Logger
}

// NewRegressionTrainer creates a trainer estimator with the default column
// names.
func NewRegressionTrainer(params Params, callbacks ...Callback) *RegressionTrainer {
	return &RegressionTrainer{
		LabelColumn:   DefaultLabelColumn,
		FeatureColumn: DefaultFeatureColumn,
		ScoreColumn:   DefaultScoreColumn,
		Params:        params,
		Callbacks:     callbacks,
	}
}

// Fit trains an ensemble and returns it as a RegressionPredictor stage.
func (r *RegressionTrainer) Fit(f *frame.Frame) (_ model.Stage, err error) {
	defer errors.Recover(&err, "RegressionTrainer.Fit")

	label, err := f.ColumnOf(r.LabelColumn, frame.Scalar)
	if err != nil {
		return nil, err
	}
	features, err := f.ColumnOf(r.FeatureColumn, frame.Vector)
	if err != nil {
		return nil, err
	}
	if f.Rows() == 0 {
		return nil, errors.NewModelError("RegressionTrainer.Fit", "empty training frame", errors.ErrEmptyData)
	}

	trainer := NewTrainer(r.Params).WithCallbacks(r.Callbacks...)
	if r.Logger != nil {
		trainer.WithLogger(r.Logger)
	}
	ens, err := trainer.Fit(features.Vectors(), label.Scalars())
	if err != nil {
		return nil, err
	}
	return NewRegressionPredictor(r.FeatureColumn, r.ScoreColumn, ens), nil
}

// RegressionPredictor is the fitted stage: it adds a scalar score column
// computed from the feature vector column.
type RegressionPredictor struct {
	FeatureColumn string
	ScoreColumn   string
	Ensemble      *Ensemble
}

// NewRegressionPredictor wraps a fitted ensemble as a stage.
func NewRegressionPredictor(featureColumn, scoreColumn string, ens *Ensemble) *RegressionPredictor {
	return &RegressionPredictor{FeatureColumn: featureColumn, ScoreColumn: scoreColumn, Ensemble: ens}
}

// Transform adds the score column.
func (p *RegressionPredictor) Transform(f *frame.Frame) (*frame.Frame, error) {
	if p.Ensemble == nil {
		return nil, errors.NewNotFittedError("RegressionPredictor", "Transform")
	}
	features, err := f.ColumnOf(p.FeatureColumn, frame.Vector)
	if err != nil {
		return nil, err
	}
	var scores []float64
	if f.Rows() > 0 {
		scores, err = p.Ensemble.PredictDense(features.Vectors())
		if err != nil {
			return nil, err
		}
	}
	return f.With(frame.ScalarColumn(p.ScoreColumn, scores))
}

// Kind implements model.Stage.
func (p *RegressionPredictor) Kind() string { return RegressionPredictorKind }

type predictorState RegressionPredictor

// MarshalBinary implements encoding.BinaryMarshaler.
func (p *RegressionPredictor) MarshalBinary() ([]byte, error) {
	return model.GobMarshal((*predictorState)(p))
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (p *RegressionPredictor) UnmarshalBinary(data []byte) error {
	if err := model.GobUnmarshal(data, (*predictorState)(p)); err != nil {
		return err
	}
	if p.Ensemble == nil || p.Ensemble.NumFeatures <= 0 {
		return errors.NewValueError("RegressionPredictor.UnmarshalBinary", "missing ensemble")
	}
	for i := range p.Ensemble.Trees {
		if err := validateTree(&p.Ensemble.Trees[i], p.Ensemble.NumFeatures); err != nil {
			return errors.Wrapf(err, "tree %d", i)
		}
	}
	return nil
}

// validateTree rejects trees whose node references could loop or index out of
// range when predicting.
func validateTree(t *Tree, numFeatures int) error {
	n := len(t.Nodes)
	if n == 0 {
		return errors.New("empty tree")
	}
	for id := range t.Nodes {
		node := &t.Nodes[id]
		if node.IsLeaf() {
			continue
		}
		if node.LeftChild <= id || node.LeftChild >= n || node.RightChild <= id || node.RightChild >= n {
			return errors.Newf("node %d has invalid children", id)
		}
		if node.SplitFeature < 0 || node.SplitFeature >= numFeatures {
			return errors.Newf("node %d splits on feature %d of %d", id, node.SplitFeature, numFeatures)
		}
	}
	return nil
}

// Register adds the boosting stage kinds to reg.
func Register(reg *model.Registry) error {
	return reg.Register(RegressionPredictorKind, func() model.DecodableStage { return &RegressionPredictor{} })
}
