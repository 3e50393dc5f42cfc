// Package handlers provides HTTP handlers for API endpoints.
package handlers

import (
	"net/http"

	"github.com/asgard/atc/internal/atc/world"
)

// ConflictHandler serves the live conflict set maintained by the conflict
// detection loop.
type ConflictHandler struct {
	store *world.Store
}

// NewConflictHandler creates a new conflict handler.
func NewConflictHandler(store *world.Store) *ConflictHandler {
	return &ConflictHandler{store: store}
}

// List handles GET /v1/conflicts?owner_id=…
func (h *ConflictHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	conflicts := h.store.ListConflicts()

	if ownerID == "" {
		jsonResponse(w, http.StatusOK, map[string]interface{}{"conflicts": conflicts})
		return
	}

	owned := make(map[string]bool)
	for _, d := range h.store.ListDrones(ownerID, droneTimeoutSecs) {
		owned[d.DroneID] = true
	}

	filtered := conflicts[:0]
	for _, c := range conflicts {
		if owned[c.Drone1ID] || owned[c.Drone2ID] {
			filtered = append(filtered, c)
		}
	}
	jsonResponse(w, http.StatusOK, map[string]interface{}{"conflicts": filtered})
}
