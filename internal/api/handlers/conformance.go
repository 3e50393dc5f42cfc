// Package handlers provides HTTP handlers for API endpoints.
package handlers

import (
	"net/http"

	"github.com/asgard/atc/internal/atc/world"
)

// ConformanceHandler serves conformance and DAA advisory views maintained
// by the conformance loop.
type ConformanceHandler struct {
	store *world.Store
}

// NewConformanceHandler creates a new conformance handler.
func NewConformanceHandler(store *world.Store) *ConformanceHandler {
	return &ConformanceHandler{store: store}
}

// ListConformance handles GET /v1/conformance?owner_id=…
func (h *ConformanceHandler) ListConformance(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	advisories := h.store.ListAdvisories(false)

	if ownerID == "" {
		jsonResponse(w, http.StatusOK, map[string]interface{}{"advisories": advisories})
		return
	}

	owned := make(map[string]bool)
	for _, d := range h.store.ListDrones(ownerID, droneTimeoutSecs) {
		owned[d.DroneID] = true
	}
	filtered := advisories[:0]
	for _, a := range advisories {
		if owned[a.DroneID] {
			filtered = append(filtered, a)
		}
	}
	jsonResponse(w, http.StatusOK, map[string]interface{}{"advisories": filtered})
}

// ListDAA handles GET /v1/daa?active_only=…
func (h *ConformanceHandler) ListDAA(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active_only") != "false"
	jsonResponse(w, http.StatusOK, map[string]interface{}{"advisories": h.store.ListAdvisories(activeOnly)})
}
