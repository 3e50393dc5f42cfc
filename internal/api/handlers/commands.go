// Package handlers provides HTTP handlers for API endpoints.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/asgard/atc/internal/atc/world"
	"github.com/asgard/atc/internal/services"
	"github.com/asgard/atc/internal/utils"
)

// CommandHandler handles command issuance, polling, and acknowledgement.
type CommandHandler struct {
	commandService *services.CommandService
	store          *world.Store
}

// NewCommandHandler creates a new command handler.
func NewCommandHandler(commandService *services.CommandService, store *world.Store) *CommandHandler {
	return &CommandHandler{commandService: commandService, store: store}
}

// Issue handles POST /v1/commands
func (h *CommandHandler) Issue(w http.ResponseWriter, r *http.Request) {
	operatorID := getOperatorIDFromContext(r)
	if operatorID == "" {
		handleError(w, utils.ErrUnauthorized)
		return
	}

	var req struct {
		DroneID         string            `json:"droneId"`
		Type            world.CommandKind `json:"type"`
		DurationSecs    int               `json:"durationSecs,omitempty"`
		Waypoints       []world.Waypoint  `json:"waypoints,omitempty"`
		Reason          string            `json:"reason,omitempty"`
		TargetAltitudeM float64           `json:"targetAltitudeM,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(w, utils.ErrBadRequest)
		return
	}

	cmd, err := h.commandService.Issue(operatorID, req.DroneID, req.Type, req.DurationSecs, req.Waypoints, req.Reason, req.TargetAltitudeM)
	if err != nil {
		handleError(w, utils.WrapAPIError(err, "COMMAND_REJECTED", err.Error(), http.StatusForbidden))
		return
	}

	jsonResponse(w, http.StatusCreated, cmd)
}

// List handles GET /v1/commands
func (h *CommandHandler) List(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{"commands": h.store.ListPendingCommands()})
}

// Next handles GET /v1/commands/next?drone_id=…, polled by a drone's own
// session (or an operator inspecting its fleet).
func (h *CommandHandler) Next(w http.ResponseWriter, r *http.Request) {
	droneID := getDroneIDFromContext(r)
	if droneID == "" {
		droneID = r.URL.Query().Get("drone_id")
	}
	if droneID == "" {
		handleError(w, utils.ErrBadRequest)
		return
	}

	cmd, ok := h.store.PeekNextCommand(droneID)
	if !ok {
		jsonResponse(w, http.StatusOK, nil)
		return
	}
	jsonResponse(w, http.StatusOK, cmd)
}

// Ack handles POST /v1/commands/ack
func (h *CommandHandler) Ack(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CommandID string `json:"commandId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(w, utils.ErrBadRequest)
		return
	}

	ok, err := h.commandService.Acknowledge(req.CommandID)
	if err != nil {
		handleError(w, utils.WrapAPIError(err, "ACK_PERSIST_FAILED", "Failed to persist acknowledgement", http.StatusInternalServerError))
		return
	}
	if !ok {
		handleError(w, utils.ErrNotFound)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"status": "acknowledged"})
}
