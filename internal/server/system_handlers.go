package server

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/aristath/finfolio/internal/database"
	"github.com/aristath/finfolio/internal/httpapi"
	"github.com/aristath/finfolio/internal/reliability"
	"github.com/aristath/finfolio/internal/scheduler"
)

// BudgetReporter exposes the advisory upstream request budget
type BudgetReporter interface {
	GetRemainingRequests() int
	DailyLimit() int
}

// JobRunner lists and triggers scheduled jobs
type JobRunner interface {
	Status() []scheduler.JobStatus
	RunByName(name string) error
}

// BackupLister lists uploaded snapshot backups
type BackupLister interface {
	ListBackups(ctx context.Context) ([]reliability.BackupInfo, error)
}

// SystemDeps are the components reported on by the system endpoints.
// Backups may be nil.
type SystemDeps struct {
	DataDir   string
	Databases []*database.DB
	Budget    BudgetReporter
	Jobs      JobRunner
	Quotes    interface{ Len() int }
	Views     interface{ ViewCount() int }
	Backups   BackupLister
}

// SystemHandlers handles system monitoring and operations endpoints
type SystemHandlers struct {
	deps        SystemDeps
	startupTime time.Time
	log         zerolog.Logger
}

// NewSystemHandlers creates system handlers
func NewSystemHandlers(deps SystemDeps, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		deps:        deps,
		startupTime: time.Now(),
		log:         log.With().Str("handler", "system").Logger(),
	}
}

// RegisterRoutes registers system routes
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/system", func(r chi.Router) {
		r.Get("/status", h.HandleStatus)
		r.Get("/jobs", h.HandleListJobs)
		r.Post("/jobs/{name}/run", h.HandleRunJob)
		r.Get("/backups", h.HandleListBackups)
	})
}

// HostStats describes the machine and this process
type HostStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskFreeBytes uint64  `json:"disk_free_bytes"`
	DiskPercent   float64 `json:"disk_percent"`
	ProcessRSS    uint64  `json:"process_rss_bytes"`
}

// BudgetStatus is the upstream daily request budget
type BudgetStatus struct {
	Remaining int `json:"remaining"`
	Limit     int `json:"limit"`
}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	Status        string                     `json:"status"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	GoVersion     string                     `json:"go_version"`
	Goroutines    int                        `json:"goroutines"`
	Host          HostStats                  `json:"host"`
	Budget        *BudgetStatus              `json:"upstream_budget,omitempty"`
	CachedQuotes  int                        `json:"cached_quotes"`
	LiveViews     int                        `json:"live_views"`
	Databases     map[string]*database.Stats `json:"databases"`
	Jobs          []scheduler.JobStatus      `json:"jobs"`
}

// HandleStatus handles GET /api/system/status
func (h *SystemHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := SystemStatusResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(h.startupTime).Seconds()),
		GoVersion:     runtime.Version(),
		Goroutines:    runtime.NumGoroutine(),
		Host:          h.hostStats(),
		Databases:     make(map[string]*database.Stats),
	}

	if h.deps.Budget != nil {
		resp.Budget = &BudgetStatus{
			Remaining: h.deps.Budget.GetRemainingRequests(),
			Limit:     h.deps.Budget.DailyLimit(),
		}
	}
	if h.deps.Quotes != nil {
		resp.CachedQuotes = h.deps.Quotes.Len()
	}
	if h.deps.Views != nil {
		resp.LiveViews = h.deps.Views.ViewCount()
	}
	if h.deps.Jobs != nil {
		resp.Jobs = h.deps.Jobs.Status()
	}

	for _, db := range h.deps.Databases {
		stats, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
			resp.Status = "degraded"
			continue
		}
		resp.Databases[db.Name()] = stats
	}

	httpapi.WriteJSON(w, h.log, http.StatusOK, resp)
}

// hostStats collects best-effort host metrics. Failures are logged and leave zero values.
func (h *SystemHandlers) hostStats() HostStats {
	var stats HostStats

	// Sampled over 100ms to keep the endpoint responsive
	if pct, err := cpu.Percent(100*time.Millisecond, false); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else if len(pct) > 0 {
		stats.CPUPercent = pct[0]
	}

	if vm, err := mem.VirtualMemory(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
	} else {
		stats.MemoryPercent = vm.UsedPercent
	}

	if h.deps.DataDir != "" {
		if usage, err := disk.Usage(h.deps.DataDir); err != nil {
			h.log.Warn().Err(err).Str("path", h.deps.DataDir).Msg("Failed to get disk usage")
		} else {
			stats.DiskFreeBytes = usage.Free
			stats.DiskPercent = usage.UsedPercent
		}
	}

	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if info, err := p.MemoryInfo(); err == nil {
			stats.ProcessRSS = info.RSS
		}
	}

	return stats
}

// HandleListJobs handles GET /api/system/jobs
func (h *SystemHandlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	if h.deps.Jobs == nil {
		httpapi.WriteError(w, h.log, http.StatusServiceUnavailable, "unavailable", "scheduler not running")
		return
	}
	jobs := h.deps.Jobs.Status()
	httpapi.WriteJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// HandleRunJob handles POST /api/system/jobs/{name}/run. The job runs synchronously.
func (h *SystemHandlers) HandleRunJob(w http.ResponseWriter, r *http.Request) {
	if h.deps.Jobs == nil {
		httpapi.WriteError(w, h.log, http.StatusServiceUnavailable, "unavailable", "scheduler not running")
		return
	}

	name := chi.URLParam(r, "name")
	start := time.Now()
	if err := h.deps.Jobs.RunByName(name); err != nil {
		httpapi.WriteDomainError(w, h.log, err)
		return
	}

	h.log.Info().Str("job", name).Msg("Job triggered manually")
	httpapi.WriteJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"job":         name,
		"status":      "completed",
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// HandleListBackups handles GET /api/system/backups
func (h *SystemHandlers) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	if h.deps.Backups == nil {
		httpapi.WriteError(w, h.log, http.StatusNotFound, "not_found", "backups are not configured")
		return
	}

	backups, err := h.deps.Backups.ListBackups(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list backups")
		httpapi.WriteError(w, h.log, http.StatusBadGateway, "backup_store_error", "failed to list backups")
		return
	}

	httpapi.WriteJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"backups": backups,
		"count":   len(backups),
	})
}
