package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Davincible/ai-gateway-go/internal/credential"
	"github.com/Davincible/ai-gateway-go/internal/telemetry"
)

type HealthHandler struct {
	logger *slog.Logger
	stats  *telemetry.Stats
	pools  *credential.Registry
}

func NewHealthHandler(logger *slog.Logger, stats *telemetry.Stats, pools *credential.Registry) *HealthHandler {
	return &HealthHandler{
		logger: logger,
		stats:  stats,
		pools:  pools,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}

	if h.stats != nil {
		body["uptime"] = h.stats.Uptime().Round(time.Second).String()
		body["providers"] = h.stats.Snapshot()
	}

	if h.pools != nil {
		pools := make(map[string]credential.PoolStatus)
		for _, pool := range h.pools.Pools() {
			pools[pool.Provider()] = pool.Status()
		}
		body["credential_pools"] = pools
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to write health check response", "error", err)
	}
}
