package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/database"
)

// SystemHandlers handles system monitoring endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	db          *database.DB
	startupTime time.Time
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(db *database.DB, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		db:          db,
		startupTime: time.Now(),
	}
}

// SystemInfoResponse represents process and host statistics
type SystemInfoResponse struct {
	Service       string        `json:"service"`
	GoVersion     string        `json:"go_version"`
	NumCPU        int           `json:"num_cpu"`
	Goroutines    int           `json:"goroutines"`
	CPUPercent    float64       `json:"cpu_percent"`
	MemPercent    float64       `json:"mem_percent"`
	MemUsedMB     float64       `json:"mem_used_mb"`
	MemTotalMB    float64       `json:"mem_total_mb"`
	UptimeSeconds float64       `json:"uptime_seconds"`
	Database      *DatabaseInfo `json:"database,omitempty"`
	LastChecked   string        `json:"last_checked"`
}

// DatabaseInfo represents storage statistics for the engine database
type DatabaseInfo struct {
	SizeMB        float64 `json:"size_mb"`
	WALSizeMB     float64 `json:"wal_size_mb"`
	PageCount     int64   `json:"page_count"`
	PageSize      int64   `json:"page_size"`
	FreelistPages int64   `json:"freelist_pages"`
}

// HandleSystemInfo returns process, host and database statistics
// GET /api/system/info
func (h *SystemHandlers) HandleSystemInfo(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memStat := h.getSystemStats()

	response := SystemInfoResponse{
		Service:       "portfolio-engine",
		GoVersion:     runtime.Version(),
		NumCPU:        runtime.NumCPU(),
		Goroutines:    runtime.NumGoroutine(),
		CPUPercent:    cpuPercent,
		UptimeSeconds: time.Since(h.startupTime).Seconds(),
		LastChecked:   time.Now().Format(time.RFC3339),
	}

	if memStat != nil {
		response.MemPercent = memStat.UsedPercent
		response.MemUsedMB = float64(memStat.Used) / 1024 / 1024
		response.MemTotalMB = float64(memStat.Total) / 1024 / 1024
	}

	if h.db != nil {
		stats, err := h.db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to get database stats")
		} else {
			response.Database = &DatabaseInfo{
				SizeMB:        float64(stats.SizeBytes) / 1024 / 1024,
				WALSizeMB:     float64(stats.WALSizeBytes) / 1024 / 1024,
				PageCount:     stats.PageCount,
				PageSize:      stats.PageSize,
				FreelistPages: stats.FreelistCount,
			}
		}
	}

	h.writeJSON(w, response)
}

// getSystemStats samples CPU and RAM usage
// Uses a short interval (100ms) so the endpoint responds quickly
func (h *SystemHandlers) getSystemStats() (float64, *mem.VirtualMemoryStat) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuAvg, nil
	}

	return cpuAvg, memStat
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
