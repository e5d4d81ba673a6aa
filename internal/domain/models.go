// Package domain provides the core vocabulary shared by the stress-testing packages.
package domain

import "fmt"

// Method selects the path generator for a run
type Method string

const (
	// MethodMonteCarlo draws correlated geometric Brownian motion paths
	MethodMonteCarlo Method = "monte_carlo"
	// MethodHistorical resamples blocks of joint historical returns
	MethodHistorical Method = "historical"
)

// ParseMethod normalises a user supplied method name.
// The empty string selects Monte Carlo.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "", "monte_carlo", "montecarlo", "gbm":
		return MethodMonteCarlo, nil
	case "historical", "bootstrap":
		return MethodHistorical, nil
	default:
		return "", NewError(ErrValidation, StageValidation, fmt.Sprintf("unknown simulation method %q", s), nil)
	}
}

// RunState is the lifecycle state of a simulation run
type RunState string

const (
	RunCreated    RunState = "CREATED"
	RunValidating RunState = "VALIDATING"
	RunRunning    RunState = "RUNNING"
	RunCompleted  RunState = "COMPLETED"
	RunFailed     RunState = "FAILED"
)

// Terminal reports whether no further transition is allowed.
func (s RunState) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

// CanTransition reports whether moving from s to next is a legal lifecycle step.
func (s RunState) CanTransition(next RunState) bool {
	switch s {
	case RunCreated:
		return next == RunValidating || next == RunFailed
	case RunValidating:
		return next == RunRunning || next == RunFailed
	case RunRunning:
		return next == RunCompleted || next == RunFailed
	default:
		return false
	}
}

// DefaultConfidenceLevels are reported when a request names none.
var DefaultConfidenceLevels = []float64{0.90, 0.95, 0.99}
