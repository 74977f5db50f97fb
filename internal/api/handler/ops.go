// Package handler provides HTTP handlers for the delivery quote API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/cuogn/logistics-front-sub000/internal/api/models"
	"github.com/cuogn/logistics-front-sub000/internal/api/response"
	"github.com/cuogn/logistics-front-sub000/internal/provider/resilience"
)

const readyTimeout = 3 * time.Second

// Subsystem reports the state of one internal component on /v1/ops/status.
type Subsystem struct {
	Name  string
	Stats func() any
}

// OpsConfig configures the OpsHandler.
type OpsConfig struct {
	Version   string
	BuildTime string

	// Ready checks external dependencies; nil means always ready.
	Ready func(ctx context.Context) error

	Registry   *resilience.Registry
	Subsystems []Subsystem
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}
	if h.cfg.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := h.cfg.Ready(ctx); err != nil {
			health.Status = models.HealthStatusFail
			health.Details = map[string]interface{}{"error": err.Error()}
			response.JSON(w, r, http.StatusServiceUnavailable, health)
			return
		}
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
// Provider trouble only degrades the service because every route has a
// great-circle fallback.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: make([]models.SubsystemStatus, 0, len(h.cfg.Subsystems)),
		Providers:  []models.ProviderStatus{},
	}

	for _, s := range h.cfg.Subsystems {
		sub := models.SubsystemStatus{Name: s.Name, Status: models.HealthStatusOK}
		if s.Stats != nil {
			sub.Metrics = s.Stats()
		}
		status.Subsystems = append(status.Subsystems, sub)
	}

	if h.cfg.Registry == nil || h.cfg.Registry.ProviderCount() == 0 {
		status.ActiveDegradationFlags = append(status.ActiveDegradationFlags, "providers_disabled")
	} else {
		for _, ph := range h.cfg.Registry.GetAllHealth() {
			ps := toProviderStatus(ph)
			if ps.Status != models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
				status.ActiveDegradationFlags = append(status.ActiveDegradationFlags, ph.Name+"_"+ph.Status())
			}
			status.Providers = append(status.Providers, ps)
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func toProviderStatus(ph *resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:     ph.Name,
		Status:       models.HealthStatusOK,
		CircuitState: ph.CircuitState.String(),
	}
	switch {
	case ph.IsUnhealthy():
		ps.Status = models.HealthStatusFail
	case ph.IsDegraded():
		ps.Status = models.HealthStatusDegraded
	}
	if ph.LastSuccessAt != nil {
		ts := models.Timestamp(*ph.LastSuccessAt)
		ps.LastSuccessAt = &ts
	}
	if ph.LastFailureAt != nil {
		ts := models.Timestamp(*ph.LastFailureAt)
		ps.LastFailureAt = &ts
	}
	if ph.LastError != "" {
		msg := ph.LastError
		ps.Message = &msg
	}
	return ps
}
