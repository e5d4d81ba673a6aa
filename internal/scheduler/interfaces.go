package scheduler

import (
	"context"

	"github.com/aristath/stresslab/internal/events"
	"github.com/aristath/stresslab/internal/modules/engine"
)

// SimulationRunner runs one stress test
type SimulationRunner interface {
	Run(ctx context.Context, req engine.Request) (*engine.Result, error)
}

// EventManagerInterface defines the contract for event emission
type EventManagerInterface interface {
	EmitTyped(module string, data events.EventData)
}
