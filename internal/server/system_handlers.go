package server

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/stresslab/internal/apiutil"
	"github.com/aristath/stresslab/internal/di"
	"github.com/aristath/stresslab/internal/scheduler"
)

// SystemStatusResponse is returned by GET /api/system/status
type SystemStatusResponse struct {
	UptimeSeconds     float64         `json:"uptime_seconds"`
	Goroutines        int             `json:"goroutines"`
	CPUPercent        float64         `json:"cpu_percent"`
	MemoryPercent     float64         `json:"memory_percent"`
	HistoryDB         DatabaseInfo    `json:"history_db"`
	Engine            EngineLimits    `json:"engine"`
	ScheduledJobs     int             `json:"scheduled_jobs"`
	LastSweepOutcomes []SweepOutcomes `json:"last_sweep,omitempty"`
}

// DatabaseInfo describes the history database file
type DatabaseInfo struct {
	Path   string  `json:"path"`
	SizeMB float64 `json:"size_mb"`
}

// EngineLimits echoes the effective admission and size limits
type EngineLimits struct {
	MaxConcurrentRuns int    `json:"max_concurrent_runs"`
	Workers           int    `json:"workers"`
	MaxSimulations    int    `json:"max_simulations"`
	MaxDays           int    `json:"max_days"`
	MaxAssets         int    `json:"max_assets"`
	RunTimeout        string `json:"run_timeout"`
}

// SweepOutcomes is the trimmed view of one sweep scenario
type SweepOutcomes struct {
	Scenario string  `json:"scenario"`
	VaR95    float64 `json:"var_95,omitempty"`
	CVaR95   float64 `json:"cvar_95,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// SystemHandlers serves operational endpoints
type SystemHandlers struct {
	container *di.Container
	jobs      *di.JobInstances
	started   time.Time
	log       zerolog.Logger
}

// NewSystemHandlers creates system handlers; jobs may be nil
func NewSystemHandlers(container *di.Container, jobs *di.JobInstances, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		container: container,
		jobs:      jobs,
		started:   time.Now(),
		log:       log.With().Str("handler", "system").Logger(),
	}
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()
	opts := h.container.Engine.Options()

	resp := SystemStatusResponse{
		UptimeSeconds: time.Since(h.started).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		HistoryDB:     DatabaseInfo{Path: h.container.HistoryDB.Path()},
		Engine: EngineLimits{
			MaxConcurrentRuns: opts.MaxConcurrentRuns,
			Workers:           opts.Workers,
			MaxSimulations:    opts.MaxSimulations,
			MaxDays:           opts.MaxDays,
			MaxAssets:         opts.MaxAssets,
			RunTimeout:        opts.DefaultTimeout.String(),
		},
	}
	if info, err := os.Stat(h.container.HistoryDB.Path()); err == nil {
		resp.HistoryDB.SizeMB = float64(info.Size()) / 1024 / 1024
	}

	if h.jobs != nil {
		resp.ScheduledJobs = h.jobs.Scheduler.Entries()
		if h.jobs.Sweep != nil {
			for _, o := range h.jobs.Sweep.Outcomes() {
				out := SweepOutcomes{Scenario: o.Scenario, VaR95: o.VaR95, CVaR95: o.CVaR95}
				if o.Err != nil {
					out.Error = o.Err.Error()
				}
				resp.LastSweepOutcomes = append(resp.LastSweepOutcomes, out)
			}
		}
	}

	apiutil.WriteJSON(w, h.log, http.StatusOK, resp)
}

// HandleTriggerJob handles POST /api/system/jobs/{name}. The job runs in
// the background; the response only acknowledges the trigger.
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	job := h.lookupJob(name)
	if job == nil {
		h.log.Debug().Str("job", name).Msg("Job not registered")
		http.Error(w, "job not registered: "+name, http.StatusNotFound)
		return
	}

	go func() {
		if err := h.jobs.Scheduler.RunNow(job); err != nil {
			h.log.Error().Err(err).Str("job", name).Msg("Triggered job failed")
		}
	}()

	apiutil.WriteJSON(w, h.log, http.StatusAccepted, map[string]string{
		"status": "triggered",
		"job":    name,
	})
}

func (h *SystemHandlers) lookupJob(name string) scheduler.Job {
	if h.jobs == nil {
		return nil
	}
	if h.jobs.HistoryCheck != nil && h.jobs.HistoryCheck.Name() == name {
		return h.jobs.HistoryCheck
	}
	if h.jobs.Sweep != nil && h.jobs.Sweep.Name() == name {
		return h.jobs.Sweep
	}
	return nil
}

// getSystemStats samples CPU over a short window and reads memory usage
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(cpuPercent) == 0 {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuPercent[0], 0
	}

	return cpuPercent[0], memStat.UsedPercent
}
