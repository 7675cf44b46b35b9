// Package model defines the fit/transform contracts shared by every pipeline
// stage and the container format used to persist fitted stages.
package model

import (
	"encoding"
	"fmt"

	"github.com/YuminosukeSato/taxifare/core/frame"
	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

// Estimator learns a Stage from a frame. Estimators hold configuration only;
// everything learned lives in the returned Stage.
type Estimator interface {
	Fit(f *frame.Frame) (Stage, error)
}

// Transformer maps a frame to a new frame without modifying its input.
type Transformer interface {
	Transform(f *frame.Frame) (*frame.Frame, error)
}

// Stage is a fitted, immutable transformer that can be written into a model
// container. Kind names the concrete type inside the container and must be
// stable across releases.
type Stage interface {
	Transformer
	Kind() string
	encoding.BinaryMarshaler
}

// DecodableStage is a Stage that can restore itself from its own payload.
type DecodableStage interface {
	Stage
	encoding.BinaryUnmarshaler
}

// Registry maps stage kinds to constructors of empty stages. A registry is
// built explicitly by whoever loads a model, so the set of loadable stage
// types is visible at the call site.
type Registry struct {
	factories map[string]func() DecodableStage
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]func() DecodableStage)}
}

// Register adds a stage kind. Registering the same kind twice is an error.
func (r *Registry) Register(kind string, factory func() DecodableStage) error {
	if kind == "" {
		return errors.NewValidationError("kind", "must not be empty", kind)
	}
	if _, exists := r.factories[kind]; exists {
		return errors.NewValueError("Registry.Register", fmt.Sprintf("stage kind %q already registered", kind))
	}
	r.factories[kind] = factory
	return nil
}

// Kinds returns the number of registered kinds.
func (r *Registry) Kinds() int {
	return len(r.factories)
}

func (r *Registry) decode(kind string, payload []byte) (Stage, error) {
	factory, ok := r.factories[kind]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnknownStage, "%q", kind)
	}
	stage := factory()
	if err := stage.UnmarshalBinary(payload); err != nil {
		return nil, err
	}
	if stage.Kind() != kind {
		return nil, errors.Newf("factory for %q produced stage of kind %q", kind, stage.Kind())
	}
	return stage, nil
}
