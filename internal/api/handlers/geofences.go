// Package handlers provides HTTP handlers for API endpoints.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/asgard/atc/internal/atc/world"
	"github.com/asgard/atc/internal/services"
	"github.com/asgard/atc/internal/utils"
	"github.com/go-chi/chi/v5"
)

// GeofenceHandler handles geofence CRUD and containment checks.
type GeofenceHandler struct {
	geofenceService *services.GeofenceService
}

// NewGeofenceHandler creates a new geofence handler.
func NewGeofenceHandler(geofenceService *services.GeofenceService) *GeofenceHandler {
	return &GeofenceHandler{geofenceService: geofenceService}
}

// Create handles POST /v1/geofences
func (h *GeofenceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name           string             `json:"name"`
		Type           world.GeofenceType `json:"type"`
		Vertices       []world.LatLon     `json:"vertices"`
		LowerAltitudeM float64            `json:"lowerAltitudeM"`
		UpperAltitudeM float64            `json:"upperAltitudeM"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(w, utils.ErrBadRequest)
		return
	}

	fence, err := h.geofenceService.Create(services.CreateRequest{
		Name:           req.Name,
		Type:           req.Type,
		Vertices:       req.Vertices,
		LowerAltitudeM: req.LowerAltitudeM,
		UpperAltitudeM: req.UpperAltitudeM,
	})
	if err != nil {
		handleError(w, utils.WrapAPIError(err, "INVALID_GEOFENCE", err.Error(), http.StatusBadRequest))
		return
	}

	jsonResponse(w, http.StatusCreated, fence)
}

// List handles GET /v1/geofences
func (h *GeofenceHandler) List(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{"geofences": h.geofenceService.List()})
}

// Get handles GET /v1/geofences/{id}
func (h *GeofenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	fence, ok := h.geofenceService.Get(chi.URLParam(r, "id"))
	if !ok {
		handleError(w, utils.ErrNotFound)
		return
	}
	jsonResponse(w, http.StatusOK, fence)
}

// Update handles PUT /v1/geofences/{id}
func (h *GeofenceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.geofenceService.Get(id); !ok {
		handleError(w, utils.ErrNotFound)
		return
	}

	var req struct {
		Name           string             `json:"name"`
		Type           world.GeofenceType `json:"type"`
		Vertices       []world.LatLon     `json:"vertices"`
		LowerAltitudeM float64            `json:"lowerAltitudeM"`
		UpperAltitudeM float64            `json:"upperAltitudeM"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(w, utils.ErrBadRequest)
		return
	}

	// Replacing a geofence is a remove-then-recreate under the same semantics
	// the sync loop uses for upstream updates; the ID is reissued by Create,
	// so the caller's prior ID is retired.
	_ = h.geofenceService.Remove(id)
	fence, err := h.geofenceService.Create(services.CreateRequest{
		Name:           req.Name,
		Type:           req.Type,
		Vertices:       req.Vertices,
		LowerAltitudeM: req.LowerAltitudeM,
		UpperAltitudeM: req.UpperAltitudeM,
	})
	if err != nil {
		handleError(w, utils.WrapAPIError(err, "INVALID_GEOFENCE", err.Error(), http.StatusBadRequest))
		return
	}
	jsonResponse(w, http.StatusOK, fence)
}

// Delete handles DELETE /v1/geofences/{id}
func (h *GeofenceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.geofenceService.Remove(chi.URLParam(r, "id")); err != nil {
		handleError(w, utils.WrapAPIError(err, "DELETE_FAILED", err.Error(), http.StatusInternalServerError))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Check handles GET /v1/geofences/check?lat=…&lon=…&alt=…
func (h *GeofenceHandler) Check(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	alt, errAlt := strconv.ParseFloat(r.URL.Query().Get("alt"), 64)
	if errLat != nil || errLon != nil || errAlt != nil {
		handleError(w, utils.ErrBadRequest)
		return
	}

	var breaches []world.Geofence
	for _, fence := range h.geofenceService.List() {
		if pointInFence(fence, lat, lon, alt) {
			breaches = append(breaches, fence)
		}
	}
	jsonResponse(w, http.StatusOK, map[string]interface{}{"breaches": breaches})
}

// CheckRoute handles POST /v1/geofences/check-route, reporting every
// geofence any leg of the proposed route passes through.
func (h *GeofenceHandler) CheckRoute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Waypoints []world.Waypoint `json:"waypoints"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(w, utils.ErrBadRequest)
		return
	}

	fences := h.geofenceService.List()
	seen := make(map[string]bool)
	var breaches []world.Geofence
	for i, wp := range req.Waypoints {
		for _, fence := range fences {
			if seen[fence.ID] {
				continue
			}
			if pointInFence(fence, wp.Lat, wp.Lon, wp.AltitudeM) {
				seen[fence.ID] = true
				breaches = append(breaches, fence)
				continue
			}
			if i+1 < len(req.Waypoints) {
				next := req.Waypoints[i+1]
				if segmentInFence(fence, wp.Lat, wp.Lon, wp.AltitudeM, next.Lat, next.Lon, next.AltitudeM) {
					seen[fence.ID] = true
					breaches = append(breaches, fence)
				}
			}
		}
	}
	jsonResponse(w, http.StatusOK, map[string]interface{}{"breaches": breaches})
}

// routeSampleSpacingM is the segment-sampling resolution for geofence
// intersection checks, matching admission.DefaultConfig's default.
const routeSampleSpacingM = 25.0

func pointInFence(fence world.Geofence, lat, lon, alt float64) bool {
	if !fence.Active {
		return false
	}
	return fence.ContainsPoint(lat, lon, alt)
}

func segmentInFence(fence world.Geofence, lat1, lon1, alt1, lat2, lon2, alt2 float64) bool {
	if !fence.Active {
		return false
	}
	return fence.IntersectsSegment(lat1, lon1, alt1, lat2, lon2, alt2, routeSampleSpacingM)
}
