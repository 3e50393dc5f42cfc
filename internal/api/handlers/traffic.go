// Package handlers provides HTTP handlers for API endpoints.
package handlers

import (
	"net/http"

	"github.com/asgard/atc/internal/atc/world"
)

// TrafficHandler serves read-only views over live drone and external
// traffic state.
type TrafficHandler struct {
	store *world.Store
}

// NewTrafficHandler creates a new traffic handler.
func NewTrafficHandler(store *world.Store) *TrafficHandler {
	return &TrafficHandler{store: store}
}

const droneTimeoutSecs = 30

// Get handles GET /v1/traffic?include_external=…&owner_id=…
func (h *TrafficHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	includeExternal := r.URL.Query().Get("include_external") == "true"

	resp := map[string]interface{}{
		"drones": h.store.ListDrones(ownerID, droneTimeoutSecs),
	}

	if includeExternal {
		tracks := h.store.ListExternalTraffic()
		type externalEntry struct {
			world.ExternalTrack
			TrafficSource string `json:"traffic_source"`
		}
		entries := make([]externalEntry, len(tracks))
		for i, t := range tracks {
			entries[i] = externalEntry{ExternalTrack: t, TrafficSource: t.Source}
		}
		resp["externalTracks"] = entries
	}

	jsonResponse(w, http.StatusOK, resp)
}
