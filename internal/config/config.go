// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/aristath/stresslab/internal/utils"
)

// Config holds application configuration
type Config struct {
	DataDir       string // Base directory for databases and event sinks (always absolute)
	HistoryDBPath string
	LogLevel      string
	LogPretty     bool
	Port          int
	DevMode       bool

	Engine EngineConfig
	Sweep  SweepConfig

	EventsSinkPath string // msgpack event frames are appended here when set
}

// EngineConfig bounds and tunes simulation runs
type EngineConfig struct {
	MaxConcurrentRuns      int
	Workers                int
	MaxSimulations         int
	MaxDays                int
	MaxAssets              int
	RunTimeout             time.Duration
	BootstrapBlockLength   int
	PSDRepairMaxIterations int
	CholeskyMaxRetries     int
	OptimizerMaxIterations int
	OptimizerTolerance     float64
}

// SweepConfig configures the scheduled predefined-scenario sweep
type SweepConfig struct {
	Schedule     string // cron expression with seconds; empty disables the sweep
	Tickers      []string
	LookbackDays int
	Simulations  int
}

// Enabled reports whether the sweep should be registered.
func (s SweepConfig) Enabled() bool {
	return s.Schedule != "" && len(s.Tickers) > 0
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("STRESS_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cpus := logicalCPUs()

	cfg := &Config{
		DataDir:        absDataDir,
		HistoryDBPath:  getEnv("HISTORY_DB_PATH", filepath.Join(absDataDir, "history.db")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogPretty:      getEnvAsBool("LOG_PRETTY", true),
		Port:           getEnvAsInt("STRESS_PORT", 8090),
		DevMode:        getEnvAsBool("DEV_MODE", false),
		EventsSinkPath: getEnv("EVENTS_SINK_PATH", ""),
		Engine: EngineConfig{
			MaxConcurrentRuns:      getEnvAsInt("MAX_CONCURRENT_RUNS", cpus),
			Workers:                getEnvAsInt("SIMULATION_WORKERS", cpus),
			MaxSimulations:         getEnvAsInt("MAX_SIMULATIONS", 100000),
			MaxDays:                getEnvAsInt("MAX_DAYS", 2520),
			MaxAssets:              getEnvAsInt("MAX_ASSETS", 100),
			RunTimeout:             getEnvAsDuration("RUN_TIMEOUT", 60*time.Second),
			BootstrapBlockLength:   getEnvAsInt("BOOTSTRAP_BLOCK_LENGTH", 5),
			PSDRepairMaxIterations: getEnvAsInt("PSD_REPAIR_MAX_ITERATIONS", 100),
			CholeskyMaxRetries:     getEnvAsInt("CHOLESKY_MAX_RETRIES", 12),
			OptimizerMaxIterations: getEnvAsInt("OPTIMIZER_MAX_ITERATIONS", 20000),
			OptimizerTolerance:     getEnvAsFloat("OPTIMIZER_TOLERANCE", 1e-10),
		},
		Sweep: SweepConfig{
			Schedule:     getEnv("SWEEP_SCHEDULE", ""),
			Tickers:      getEnvAsList("SWEEP_TICKERS"),
			LookbackDays: getEnvAsInt("SWEEP_LOOKBACK_DAYS", 756),
			Simulations:  getEnvAsInt("SWEEP_SIMULATIONS", 5000),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}

	e := c.Engine
	if e.MaxConcurrentRuns < 1 {
		return fmt.Errorf("MAX_CONCURRENT_RUNS must be at least 1, got %d", e.MaxConcurrentRuns)
	}
	if e.Workers < 1 {
		return fmt.Errorf("SIMULATION_WORKERS must be at least 1, got %d", e.Workers)
	}
	if e.MaxSimulations < 1 || e.MaxDays < 1 || e.MaxAssets < 1 {
		return fmt.Errorf("simulation ceilings must be positive")
	}
	if e.RunTimeout <= 0 {
		return fmt.Errorf("RUN_TIMEOUT must be positive")
	}
	if e.BootstrapBlockLength < 1 {
		return fmt.Errorf("BOOTSTRAP_BLOCK_LENGTH must be at least 1, got %d", e.BootstrapBlockLength)
	}
	if e.PSDRepairMaxIterations < 1 || e.CholeskyMaxRetries < 0 || e.OptimizerMaxIterations < 1 {
		return fmt.Errorf("numerical iteration budgets must be positive")
	}
	if e.OptimizerTolerance <= 0 {
		return fmt.Errorf("OPTIMIZER_TOLERANCE must be positive")
	}

	if c.Sweep.Schedule != "" && c.Sweep.LookbackDays < 2 {
		return fmt.Errorf("SWEEP_LOOKBACK_DAYS must be at least 2")
	}

	return nil
}

// logicalCPUs sizes worker pools from the host, falling back to one.
func logicalCPUs() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList reads a comma separated ticker list
func getEnvAsList(key string) []string {
	return utils.ParseTickers(os.Getenv(key))
}
