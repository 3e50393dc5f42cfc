// Package handlers provides HTTP handlers for API endpoints.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/asgard/atc/internal/atc/admission"
	"github.com/asgard/atc/internal/atc/world"
	"github.com/asgard/atc/internal/services"
	"github.com/asgard/atc/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// FlightPlanHandler handles flight plan submission and retrieval.
type FlightPlanHandler struct {
	flightService *services.FlightPlanService
}

// NewFlightPlanHandler creates a new flight plan handler.
func NewFlightPlanHandler(flightService *services.FlightPlanService) *FlightPlanHandler {
	return &FlightPlanHandler{flightService: flightService}
}

type submitFlightRequest struct {
	DroneID       string            `json:"droneId"`
	Waypoints     []world.Waypoint  `json:"waypoints"`
	DepartureTime *time.Time        `json:"departureTime,omitempty"`
	BVLOS         bool              `json:"bvlos,omitempty"`
	DroneSpeedMps *float64          `json:"droneSpeedMps,omitempty"`
	ClearanceM    *float64          `json:"clearanceM,omitempty"`
}

// Submit handles both POST /v1/flights/plan (plan-only, no admission side
// effects beyond routing) and POST /v1/flights (full submit-and-admit).
func (h *FlightPlanHandler) Submit(w http.ResponseWriter, r *http.Request) {
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

	var req submitFlightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(w, utils.ErrBadRequest)
		return
	}
	if len(req.Waypoints) < 2 {
		handleError(w, utils.NewAPIError("INVALID_WAYPOINTS", "a flight plan requires at least 2 waypoints", http.StatusBadRequest))
		return
	}

	departure := time.Now()
	if req.DepartureTime != nil {
		departure = *req.DepartureTime
	}

	plan, decision, err := h.flightService.Submit(r.Context(), services.SubmitRequest{
		DroneID:       req.DroneID,
		OwnerID:       ownerID,
		Waypoints:     req.Waypoints,
		DepartureTime: departure,
		Metadata: admission.SubmissionMetadata{
			DroneSpeedMps: req.DroneSpeedMps,
			ClearanceM:    req.ClearanceM,
			BVLOS:         req.BVLOS,
		},
	})
	if err != nil {
		handleError(w, utils.WrapAPIError(err, "PLAN_FAILED", "Failed to plan flight", http.StatusInternalServerError))
		return
	}

	status := http.StatusCreated
	if !decision.Accepted {
		status = http.StatusUnprocessableEntity
	}

	jsonResponse(w, status, map[string]interface{}{
		"flightPlan": plan,
		"decision":   decision,
	})
}

// List handles GET /v1/flights?owner_id=…
func (h *FlightPlanHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" && getOperatorRoleFromContext(r) != "admin" {
		ownerID = getOperatorIDFromContext(r)
	}
	jsonResponse(w, http.StatusOK, map[string]interface{}{"flightPlans": h.flightService.ListByOwner(ownerID)})
}

// Get handles GET /v1/flights/{id}
func (h *FlightPlanHandler) Get(w http.ResponseWriter, r *http.Request) {
	flightID := chi.URLParam(r, "id")
	plan, ok := h.flightService.Get(flightID)
	if !ok {
		handleError(w, utils.ErrNotFound)
		return
	}
	if getOperatorRoleFromContext(r) != "admin" && plan.OwnerID != getOperatorIDFromContext(r) {
		handleError(w, utils.ErrOwnerMismatch)
		return
	}
	jsonResponse(w, http.StatusOK, plan)
}
