// Package di provides dependency injection wiring and initialization.
package di

import (
	"os"

	"github.com/aristath/stresslab/internal/database"
	"github.com/aristath/stresslab/internal/events"
	"github.com/aristath/stresslab/internal/metrics"
	"github.com/aristath/stresslab/internal/modules/engine"
	"github.com/aristath/stresslab/internal/modules/history"
)

// Container holds all dependencies for the application. It is created by
// Wire() and handed to the server and the scheduler.
type Container struct {
	// Databases
	HistoryDB *database.DB

	// Data access
	HistoryStore history.Store

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager
	EventSink    *events.MsgpackSink
	sinkFile     *os.File

	// Observability
	Metrics *metrics.Metrics

	// Services
	Engine *engine.Engine
}

// Close releases everything the container opened
func (c *Container) Close() error {
	var firstErr error
	if c.EventSink != nil {
		c.EventSink.Detach()
	}
	if c.sinkFile != nil {
		if err := c.sinkFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.HistoryDB != nil {
		if err := c.HistoryDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
