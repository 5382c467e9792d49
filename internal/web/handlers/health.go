package handlers

import (
	"net/http"
	"os"
	"time"

	"github.com/upashthiti/upashthiti/internal/ledger"
	"github.com/upashthiti/upashthiti/internal/recognizer"
	"github.com/upashthiti/upashthiti/internal/registry"
)

// HealthHandler reports service readiness.
type HealthHandler struct {
	service  *recognizer.Service
	registry *registry.Registry
	ledger   *ledger.Ledger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(svc *recognizer.Service, reg *registry.Registry, led *ledger.Ledger) *HealthHandler {
	return &HealthHandler{service: svc, registry: reg, ledger: led}
}

// Get handles the health check endpoint. The service is reported healthy
// even when the detector is down; recognition availability is a separate
// field so dashboards can distinguish the two.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	detectorReady := h.service.Ready(r.Context()) == nil

	respondJSON(w, http.StatusOK, map[string]any{
		"status":              "healthy",
		"timestamp":           time.Now().Format(time.RFC3339),
		"detector_ready":      detectorReady,
		"registered_students": h.registry.Count(),
		"registry_file":       fileExists(h.registry.Path()),
		"attendance_file":     fileExists(h.ledger.Path()),
	})
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
