package di

import (
	"fmt"
	"os"

	"github.com/aristath/stresslab/internal/config"
	"github.com/aristath/stresslab/internal/events"
	"github.com/aristath/stresslab/internal/metrics"
	"github.com/aristath/stresslab/internal/modules/engine"
	"github.com/aristath/stresslab/internal/modules/history"
	"github.com/rs/zerolog"
)

// InitializeServices builds the event plumbing, metrics and the engine
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.EventBus = events.NewBus()
	container.EventManager = events.NewManager(container.EventBus, log)

	if cfg.EventsSinkPath != "" {
		f, err := os.OpenFile(cfg.EventsSinkPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open events sink: %w", err)
		}
		container.sinkFile = f
		container.EventSink = events.NewMsgpackSink(f, log)
		container.EventSink.Attach(container.EventBus, events.AllTypes()...)
		log.Info().Str("path", cfg.EventsSinkPath).Msg("Event sink attached")
	}

	container.Metrics = metrics.New()
	container.HistoryStore = history.NewSQLiteStore(container.HistoryDB, log)

	opts := engine.OptionsFromConfig(cfg.Engine)
	container.Engine = engine.New(container.HistoryStore, opts, container.EventManager, container.Metrics, log)

	log.Info().
		Int("max_concurrent_runs", cfg.Engine.MaxConcurrentRuns).
		Int("workers", cfg.Engine.Workers).
		Dur("run_timeout", cfg.Engine.RunTimeout).
		Msg("Engine initialized")

	return nil
}
