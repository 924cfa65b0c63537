package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/alphapulse/internal/database"
	"github.com/aristath/alphapulse/internal/scheduler"
)

// JobScheduler is the part of the scheduler exposed over HTTP.
type JobScheduler interface {
	Status() []scheduler.JobStatus
	RunByName(name string) error
}

// SystemHandlers serves process, database and job status.
type SystemHandlers struct {
	databases map[string]*database.DB
	jobs      JobScheduler
	startedAt time.Time
	cpuUsage  func() (float64, error)
	memUsage  func() (*mem.VirtualMemoryStat, error)
	log       zerolog.Logger
}

// NewSystemHandlers creates system handlers. jobs may be nil.
func NewSystemHandlers(databases map[string]*database.DB, jobs JobScheduler, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		databases: databases,
		jobs:      jobs,
		startedAt: time.Now(),
		cpuUsage:  cpuPercent,
		memUsage:  mem.VirtualMemory,
		log:       log.With().Str("handler", "system").Logger(),
	}
}

// cpuPercent samples over 100ms so the status call stays fast.
func cpuPercent() (float64, error) {
	values, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, nil
	}
	return values[0], nil
}

// SystemStatusResponse is the body of GET /api/system/status.
type SystemStatusResponse struct {
	Status        string    `json:"status"` // "healthy" or "degraded"
	UptimeSeconds int64     `json:"uptime_seconds"`
	Goroutines    int       `json:"goroutines"`
	NumCPU        int       `json:"num_cpu"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	MemoryFreeMB  float64   `json:"memory_available_mb"`
	Databases     []DBInfo  `json:"databases"`
	Jobs          []JobInfo `json:"jobs"`
	CheckedAt     string    `json:"checked_at"`
}

// DBInfo represents information about a single database
type DBInfo struct {
	Name      string  `json:"name"`
	Path      string  `json:"path"`
	SizeMB    float64 `json:"size_mb"`
	WALSizeMB float64 `json:"wal_size_mb"`
	Healthy   bool    `json:"healthy"`
	Error     string  `json:"error,omitempty"`
}

// JobInfo represents information about a single job
type JobInfo struct {
	Name      string `json:"name"`
	Schedule  string `json:"schedule"`
	LastRun   string `json:"last_run,omitempty"`
	NextRun   string `json:"next_run,omitempty"`
	LastError string `json:"last_error,omitempty"`
	Status    string `json:"status"` // "running", "idle", "failed"
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		Databases:     h.databaseInfo(r.Context()),
		Jobs:          h.jobInfo(),
		CheckedAt:     time.Now().UTC().Format(time.RFC3339),
	}

	if pct, err := h.cpuUsage(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else {
		response.CPUPercent = pct
	}

	if vm, err := h.memUsage(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
	} else {
		response.MemoryPercent = vm.UsedPercent
		response.MemoryFreeMB = float64(vm.Available) / 1024 / 1024
	}

	for _, db := range response.Databases {
		if !db.Healthy {
			response.Status = "degraded"
		}
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleJobsStatus handles GET /api/system/jobs
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobInfo()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_jobs": len(jobs),
		"jobs":       jobs,
	})
}

// HandleTriggerJob handles POST /api/system/jobs/{name}/run
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if h.jobs == nil {
		http.Error(w, "Scheduler not available", http.StatusServiceUnavailable)
		return
	}

	h.log.Info().Str("job", name).Msg("Manual job run triggered")
	if err := h.jobs.RunByName(name); err != nil {
		if errors.Is(err, scheduler.ErrUnknownJob) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "error", "message": err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": name + " completed"})
}

func (h *SystemHandlers) databaseInfo(ctx context.Context) []DBInfo {
	names := make([]string, 0, len(h.databases))
	for name := range h.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	infos := make([]DBInfo, 0, len(names))
	for _, name := range names {
		db := h.databases[name]
		info := DBInfo{Name: name, Path: db.Path(), Healthy: true}

		if err := db.QuickCheck(ctx); err != nil {
			info.Healthy = false
			info.Error = err.Error()
		}
		if stats, err := db.GetStats(); err == nil {
			info.SizeMB = float64(stats.SizeBytes) / 1024 / 1024
			info.WALSizeMB = float64(stats.WALSizeBytes) / 1024 / 1024
		} else if info.Error == "" {
			info.Error = err.Error()
		}
		infos = append(infos, info)
	}
	return infos
}

func (h *SystemHandlers) jobInfo() []JobInfo {
	if h.jobs == nil {
		return []JobInfo{}
	}

	statuses := h.jobs.Status()
	jobs := make([]JobInfo, 0, len(statuses))
	for _, st := range statuses {
		info := JobInfo{
			Name:      st.Name,
			Schedule:  st.Schedule,
			LastError: st.LastError,
			Status:    "idle",
		}
		if !st.LastRun.IsZero() {
			info.LastRun = st.LastRun.UTC().Format(time.RFC3339)
		}
		if !st.NextRun.IsZero() {
			info.NextRun = st.NextRun.UTC().Format(time.RFC3339)
		}
		switch {
		case st.Running:
			info.Status = "running"
		case st.LastError != "":
			info.Status = "failed"
		}
		jobs = append(jobs, info)
	}
	return jobs
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
