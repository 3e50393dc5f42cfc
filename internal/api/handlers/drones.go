// Package handlers provides HTTP handlers for API endpoints.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/asgard/atc/internal/platform/observability"
	"github.com/asgard/atc/internal/services"
	"github.com/asgard/atc/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// DroneHandler handles drone registration, telemetry, and fleet listing.
type DroneHandler struct {
	droneService      *services.DroneService
	registrationToken string
}

// NewDroneHandler creates a new drone handler. registrationToken, when
// non-empty, gates Register behind a matching X-Registration-Token header.
func NewDroneHandler(droneService *services.DroneService, registrationToken string) *DroneHandler {
	return &DroneHandler{droneService: droneService, registrationToken: registrationToken}
}

// Register handles POST /v1/drones/register
func (h *DroneHandler) Register(w http.ResponseWriter, r *http.Request) {
	if h.registrationToken != "" && r.Header.Get("X-Registration-Token") != h.registrationToken {
		handleError(w, utils.ErrUnauthorized)
		return
	}

	operatorID := getOperatorIDFromContext(r)
	if operatorID == "" {
		handleError(w, utils.ErrUnauthorized)
		return
	}
	ownerID, err := uuid.Parse(operatorID)
	if err != nil {
		handleError(w, utils.ErrUnauthorized)
		return
	}

	var req struct {
		DroneID string `json:"droneId,omitempty"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	droneID, token, err := h.droneService.Register(ownerID, req.DroneID)
	if err != nil {
		handleError(w, utils.WrapAPIError(err, "REGISTRATION_FAILED", "Failed to register drone", http.StatusInternalServerError))
		return
	}

	jsonResponse(w, http.StatusCreated, map[string]string{"drone_id": droneID, "session_token": token})
}

// IngestTelemetry handles POST /v1/telemetry, authenticated by a drone
// session token.
func (h *DroneHandler) IngestTelemetry(w http.ResponseWriter, r *http.Request) {
	droneID := getDroneIDFromContext(r)
	if droneID == "" {
		handleError(w, utils.ErrUnauthorized)
		return
	}

	var req struct {
		Lat        float64 `json:"lat"`
		Lon        float64 `json:"lon"`
		AltitudeM  float64 `json:"altitudeM"`
		VX         float64 `json:"vx"`
		VY         float64 `json:"vy"`
		VZ         float64 `json:"vz"`
		HeadingDeg float64 `json:"headingDeg"`
		SpeedMps   float64 `json:"speedMps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(w, utils.ErrBadRequest)
		return
	}

	if err := h.droneService.IngestTelemetry(droneID, req.Lat, req.Lon, req.AltitudeM, req.VX, req.VY, req.VZ, req.HeadingDeg, req.SpeedMps); err != nil {
		observability.RecordTelemetryIngested("rejected")
		handleError(w, utils.WrapAPIError(err, "UNKNOWN_DRONE", "Drone is not registered", http.StatusNotFound))
		return
	}
	observability.RecordTelemetryIngested("accepted")

	jsonResponse(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// ListFleet handles GET /v1/drones
func (h *DroneHandler) ListFleet(w http.ResponseWriter, r *http.Request) {
	ownerFilter := ""
	if getOperatorRoleFromContext(r) != "admin" {
		ownerFilter = getOperatorIDFromContext(r)
		if ownerFilter == "" {
			handleError(w, utils.ErrUnauthorized)
			return
		}
	} else {
		ownerFilter = r.URL.Query().Get("owner")
	}

	drones := h.droneService.ListFleet(ownerFilter, 30)
	jsonResponse(w, http.StatusOK, map[string]interface{}{"drones": drones})
}

// Get handles GET /v1/drones/{id}
func (h *DroneHandler) Get(w http.ResponseWriter, r *http.Request) {
	droneID := chi.URLParam(r, "id")

	drone, ok := h.droneService.Get(droneID)
	if !ok {
		handleError(w, utils.ErrNotFound)
		return
	}

	if getOperatorRoleFromContext(r) != "admin" && drone.OwnerID != getOperatorIDFromContext(r) {
		handleError(w, utils.ErrOwnerMismatch)
		return
	}

	jsonResponse(w, http.StatusOK, drone)
}
