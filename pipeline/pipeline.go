// Package pipeline chains estimators into a fitted, persistable Model.
package pipeline

import (
	"fmt"
	"time"

	"github.com/YuminosukeSato/taxifare/core/frame"
	"github.com/YuminosukeSato/taxifare/core/model"
	"github.com/YuminosukeSato/taxifare/pkg/errors"
	"github.com/YuminosukeSato/taxifare/pkg/log"
)

// Pipeline is an ordered list of estimators. Fit folds over the list: each
// estimator is fitted on the output of the stages before it.
type Pipeline struct {
	estimators []model.Estimator
	logger     log.Logger
}

// New creates a pipeline from estimators in order.
//
//	p := pipeline.New(
//	    preprocessing.NewColumnCopier("Label", "FareAmount"),
//	    preprocessing.NewOneHotEncoder("VendorIdEncoded", "VendorId"),
//	    ...
//	)
//	fitted, err := p.Fit(trainData)
func New(estimators ...model.Estimator) *Pipeline {
	return &Pipeline{
		estimators: estimators,
		logger:     log.GetLoggerWithName("pipeline"),
	}
}

// Append returns a new pipeline with est added at the end.
func (p *Pipeline) Append(est model.Estimator) *Pipeline {
	next := make([]model.Estimator, len(p.estimators), len(p.estimators)+1)
	copy(next, p.estimators)
	return &Pipeline{estimators: append(next, est), logger: p.logger}
}

// Len returns the number of estimators.
func (p *Pipeline) Len() int { return len(p.estimators) }

// Fit fits every estimator in order and returns the fitted model. The last
// stage's output is not computed. A panicking estimator fails the fit with a
// *errors.PanicError instead of crashing the caller.
func (p *Pipeline) Fit(f *frame.Frame) (*Model, error) {
	if len(p.estimators) == 0 {
		return nil, errors.NewValidationError("pipeline", "no estimators", 0)
	}
	stages := make([]model.Stage, 0, len(p.estimators))
	current := f
	for i, est := range p.estimators {
		start := time.Now()
		var stage model.Stage
		err := errors.SafeExecute(fmt.Sprintf("pipeline stage %d", i), func() (err error) {
			stage, err = est.Fit(current)
			return err
		})
		if err != nil {
			return nil, errors.Wrapf(err, "fit stage %d (%T)", i, est)
		}
		p.logger.Debug("Stage fitted",
			log.StageKey, fmt.Sprintf("%d:%s", i, stage.Kind()),
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
		stages = append(stages, stage)
		if i == len(p.estimators)-1 {
			break
		}
		current, err = stage.Transform(current)
		if err != nil {
			return nil, errors.Wrapf(err, "transform stage %d (%s)", i, stage.Kind())
		}
	}
	return NewModel(stages...), nil
}

// Model is an ordered list of fitted stages.
type Model struct {
	stages []model.Stage
}

// NewModel wraps fitted stages.
func NewModel(stages ...model.Stage) *Model {
	return &Model{stages: append([]model.Stage(nil), stages...)}
}

// Stages returns a copy of the stage list.
func (m *Model) Stages() []model.Stage {
	return append([]model.Stage(nil), m.stages...)
}

// Transform applies every stage in order.
func (m *Model) Transform(f *frame.Frame) (*frame.Frame, error) {
	current := f
	for i, stage := range m.stages {
		var err error
		current, err = stage.Transform(current)
		if err != nil {
			return nil, errors.Wrapf(err, "transform stage %d (%s)", i, stage.Kind())
		}
	}
	return current, nil
}

// Save writes the model to path, replacing any existing file.
func (m *Model) Save(path string) error {
	if err := model.Save(path, m.stages); err != nil {
		return err
	}
	log.GetLoggerWithName("pipeline").Info("Model saved",
		log.OperationKey, log.OperationSave,
		log.PathKey, path,
		log.FormatVersionKey, model.FormatVersion,
	)
	return nil
}

// Load reads a model written by Save. registry must know every stage kind in
// the file.
func Load(path string, registry *model.Registry) (*Model, error) {
	stages, err := model.Load(path, registry)
	if err != nil {
		return nil, err
	}
	log.GetLoggerWithName("pipeline").Debug("Model loaded",
		log.OperationKey, log.OperationLoad,
		log.PathKey, path,
		"stages", len(stages),
	)
	return NewModel(stages...), nil
}
