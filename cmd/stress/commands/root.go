// Package commands implements the stress CLI, which runs the engine directly
// against a history database and prints JSON results.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/stresslab/internal/database"
	"github.com/aristath/stresslab/internal/domain"
	"github.com/aristath/stresslab/internal/modules/engine"
	"github.com/aristath/stresslab/internal/modules/history"
	"github.com/aristath/stresslab/pkg/logger"
)

// globalOptions are the persistent flags shared by every command
type globalOptions struct {
	dbPath   string
	logLevel string
	workers  int
	timeout  time.Duration
	pretty   bool
}

// NewRootCmd builds the command tree. Each call returns independent state.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "stress",
		Short: "Portfolio stress testing from the command line",
		Long: `Runs Monte Carlo and historical bootstrap stress tests against a
history database of daily closes and prints the results as JSON.

Examples:
  stress run --tickers SPY,TLT --start 2020-01-01 --end 2024-01-01
  stress run --tickers SPY,TLT --scenario financial-crisis-2008 --method historical
  stress compare --tickers SPY,QQQ,TLT --shock SPY=-0.3:2
  stress optimize --tickers SPY,QQQ,TLT,GLD --risk-free 0.03
  stress scenarios list`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&opts.dbPath, "db", envOr("HISTORY_DB_PATH", "./data/history.db"), "history database path")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "log level (debug|info|warn|error)")
	root.PersistentFlags().IntVar(&opts.workers, "workers", 0, "simulation workers (0 = one)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "per-run timeout (0 = engine default)")
	root.PersistentFlags().BoolVar(&opts.pretty, "pretty", true, "indent JSON output")

	root.AddCommand(
		newRunCmd(opts),
		newCompareCmd(opts),
		newOptimizeCmd(opts),
		newScenariosCmd(opts),
	)

	return root
}

// Execute runs the CLI with os.Args. Interrupts cancel the running simulation.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// ExitCode maps an error to a process exit status by its kind.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, domain.ErrValidation):
		return 2
	case errors.Is(err, domain.ErrInsufficientData):
		return 3
	case errors.Is(err, domain.ErrTimeout):
		return 4
	default:
		return 1
	}
}

// openEngine opens the history database and builds an engine over it.
func (o *globalOptions) openEngine(stderr io.Writer) (*engine.Engine, func(), error) {
	log := logger.New(logger.Config{
		Level:  o.logLevel,
		Pretty: true,
		Output: stderr,
	})

	db, err := database.New(database.Config{
		Path:    o.dbPath,
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to migrate history database: %w", err)
	}

	opts := engine.DefaultOptions()
	if o.workers > 0 {
		opts.Workers = o.workers
	}
	if o.timeout > 0 {
		opts.DefaultTimeout = o.timeout
	}

	eng := engine.New(history.NewSQLiteStore(db, log), opts, nil, nil, log)
	return eng, func() { db.Close() }, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
