package httpapi

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/R3E-Network/demo_gateway/internal/httputil"
)

// =============================================================================
// Standard Response Types
// =============================================================================

// HealthResponse is the standard response for /health endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// InfoResponse is the standard response for /info endpoint.
type InfoResponse struct {
	Status     string         `json:"status"`
	Service    string         `json:"service"`
	Version    string         `json:"version"`
	Timestamp  string         `json:"timestamp"`
	Statistics map[string]any `json:"statistics,omitempty"`
}

const statsTimeout = 2 * time.Second

type infoProvider struct {
	service string
	version string
	started time.Time
}

func newInfoProvider(service, version string) *infoProvider {
	if version == "" {
		version = "dev"
	}
	return &infoProvider{service: service, version: version, started: time.Now()}
}

func (p *infoProvider) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Service:   p.service,
		Version:   p.version,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (p *infoProvider) infoHandler(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, InfoResponse{
		Status:     "active",
		Service:    p.service,
		Version:    p.version,
		Timestamp:  time.Now().Format(time.RFC3339),
		Statistics: p.statistics(r.Context()),
	})
}

// statistics reports process and host figures. Host lookups that fail are omitted.
func (p *infoProvider) statistics(ctx context.Context) map[string]any {
	ctx, cancel := context.WithTimeout(ctx, statsTimeout)
	defer cancel()

	stats := map[string]any{
		"uptime_seconds": int64(time.Since(p.started).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
		"go_version":     runtime.Version(),
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats["host_memory_total_bytes"] = vm.Total
		stats["host_memory_used_percent"] = vm.UsedPercent
	}
	if uptime, err := host.UptimeWithContext(ctx); err == nil {
		stats["host_uptime_seconds"] = uptime
	}
	return stats
}
