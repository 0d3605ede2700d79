package server

import (
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// handleSystemHealth handles GET /api/system/health. Database checks run
// real integrity queries; resource stats are best effort.
func (s *Server) handleSystemHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	databases := map[string]string{}
	healthy := true
	check := func(name string, err error) {
		if err != nil {
			databases[name] = err.Error()
			healthy = false
		} else {
			databases[name] = "ok"
		}
	}
	check("portfolio", s.portfolioDB.HealthCheck(ctx))
	check("ledger", s.ledgerDB.HealthCheck(ctx))

	cpuPercent := 0.0
	if samples, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(samples) > 0 {
		cpuPercent = samples[0]
	} else if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	}

	memPercent := 0.0
	if memStat, err := mem.VirtualMemory(); err == nil {
		memPercent = memStat.UsedPercent
	} else {
		s.log.Warn().Err(err).Msg("Failed to get memory statistics")
	}

	diskPercent := 0.0
	if diskStat, err := disk.Usage(s.cfg.DataDir); err == nil {
		diskPercent = diskStat.UsedPercent
	} else {
		s.log.Warn().Err(err).Msg("Failed to get disk statistics")
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	s.writeJSON(w, httpStatus, map[string]interface{}{
		"status":    status,
		"databases": databases,
		"resources": map[string]float64{
			"cpu_percent":  cpuPercent,
			"mem_percent":  memPercent,
			"disk_percent": diskPercent,
		},
	})
}

// handleListBackups handles GET /api/system/backups
func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	if s.backups == nil {
		s.writeError(w, http.StatusNotFound, "backups are not enabled")
		return
	}

	backups, err := s.backups.ListBackups(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"backups": backups})
}
