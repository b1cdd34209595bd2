package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	log "github.com/sirupsen/logrus"

	"github.com/r0gig0r/double-take/internal/util/timezone"
)

// SystemStats holds runtime and host statistics for the admin view.
type SystemStats struct {
	NumCPU      int       `json:"num_cpu"`
	GoRoutines  int       `json:"go_routines"`
	CPUUsage    float64   `json:"cpu_usage"`
	MemoryAlloc uint64    `json:"memory_alloc"`
	MemorySys   uint64    `json:"memory_sys"`
	Timestamp   time.Time `json:"timestamp"`
}

// SystemHandler serves process and host statistics.
type SystemHandler struct{}

// NewSystemHandler creates a new system handler.
func NewSystemHandler() *SystemHandler {
	return &SystemHandler{}
}

// RegisterRoutes registers the system routes.
func (h *SystemHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/system/stats", h.GetSystemStats)
}

// GetSystemStats reports current runtime and CPU statistics.
func (h *SystemHandler) GetSystemStats(c *gin.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	var cpuUsage float64
	percentages, err := cpu.Percent(0, false)
	if err != nil {
		log.WithError(err).Debug("Failed to read CPU usage")
	} else if len(percentages) > 0 {
		cpuUsage = percentages[0]
	}

	c.JSON(http.StatusOK, SystemStats{
		NumCPU:      runtime.NumCPU(),
		GoRoutines:  runtime.NumGoroutine(),
		CPUUsage:    cpuUsage,
		MemoryAlloc: memStats.Alloc,
		MemorySys:   memStats.Sys,
		Timestamp:   timezone.Now(),
	})
}
