// Package events provides event management functionality.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	SimulationCompleted   EventType = "SIMULATION_COMPLETED"
	SimulationFailed      EventType = "SIMULATION_FAILED"
	OptimizationCompleted EventType = "OPTIMIZATION_COMPLETED"
	SweepCompleted        EventType = "SWEEP_COMPLETED"
	ErrorOccurred         EventType = "ERROR_OCCURRED"
)

// AllTypes lists every event type the engine emits
func AllTypes() []EventType {
	return []EventType{SimulationCompleted, SimulationFailed, OptimizationCompleted, SweepCompleted, ErrorOccurred}
}

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type" msgpack:"type"`
	Timestamp time.Time              `json:"timestamp" msgpack:"timestamp"`
	Data      map[string]interface{} `json:"data" msgpack:"data"`
	Module    string                 `json:"module" msgpack:"module"`
}
