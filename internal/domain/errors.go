package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrValidation       = errors.New("validation error")
	ErrInsufficientData = errors.New("insufficient data")
	ErrConfiguration    = errors.New("configuration error")
	ErrOptimization     = errors.New("optimization error")
	ErrTimeout          = errors.New("timeout")
)

// Stage names the pipeline step an error originated from
type Stage string

const (
	StageValidation    Stage = "validation"
	StageAdmission     Stage = "admission"
	StageData          Stage = "data"
	StageEstimation    Stage = "estimation"
	StageAdjustment    Stage = "adjustment"
	StageFactorization Stage = "factorization"
	StageSimulation    Stage = "simulation"
	StageRisk          Stage = "risk"
	StageOptimization  Stage = "optimization"
)

// Error is a classified engine failure
type Error struct {
	Kind  error
	Stage Stage
	Msg   string
	Err   error
}

// NewError builds a classified error. cause may be nil.
func NewError(kind error, stage Stage, msg string, cause error) *Error {
	return &Error{Kind: kind, Stage: stage, Msg: msg, Err: cause}
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %s: %s", e.Stage, e.Kind, e.Msg)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// WithStage returns a copy of e attributed to stage, keeping the original
// stage when one is already set.
func (e *Error) WithStage(stage Stage) *Error {
	cp := *e
	if cp.Stage == "" {
		cp.Stage = stage
	}
	return &cp
}

// StageOf returns the stage of the first classified error in err's chain.
func StageOf(err error) Stage {
	var de *Error
	if errors.As(err, &de) {
		return de.Stage
	}
	return ""
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) error {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return nil
}

// Validation is shorthand for a validation-stage ErrValidation.
func Validation(format string, args ...interface{}) *Error {
	return NewError(ErrValidation, StageValidation, fmt.Sprintf(format, args...), nil)
}

// InsufficientData is shorthand for ErrInsufficientData at stage.
func InsufficientData(stage Stage, format string, args ...interface{}) *Error {
	return NewError(ErrInsufficientData, stage, fmt.Sprintf(format, args...), nil)
}

// Configuration is shorthand for ErrConfiguration at stage.
func Configuration(stage Stage, format string, args ...interface{}) *Error {
	return NewError(ErrConfiguration, stage, fmt.Sprintf(format, args...), nil)
}

// Optimization is shorthand for an optimization-stage ErrOptimization.
func Optimization(format string, args ...interface{}) *Error {
	return NewError(ErrOptimization, StageOptimization, fmt.Sprintf(format, args...), nil)
}

// Staged attributes an unstaged classified error to stage. Other errors pass through.
func Staged(err error, stage Stage) error {
	var de *Error
	if err != nil && errors.As(err, &de) && de.Stage == "" {
		return de.WithStage(stage)
	}
	return err
}
