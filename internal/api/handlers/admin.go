// Package handlers provides HTTP handlers for API endpoints.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/asgard/atc/internal/atc/world"
	"github.com/asgard/atc/internal/repositories"
	"github.com/asgard/atc/internal/utils"
)

// AdminHandler handles operator-facing administrative actions.
type AdminHandler struct {
	store     *world.Store
	auditRepo *repositories.AuditRepository
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(store *world.Store, auditRepo *repositories.AuditRepository) *AdminHandler {
	return &AdminHandler{store: store, auditRepo: auditRepo}
}

// Reset handles POST /v1/admin/reset
func (h *AdminHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirm     string `json:"confirm"`
		RequireIdle bool   `json:"require_idle"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Confirm != "RESET" {
		handleError(w, utils.NewAPIError("INVALID_RESET_REQUEST", `body must be {"confirm":"RESET",...}`, http.StatusBadRequest))
		return
	}

	if req.RequireIdle && !h.store.IsIdle() {
		handleError(w, utils.NewAPIError("NOT_IDLE", "world has active plans or pending commands", http.StatusConflict))
		return
	}

	h.store.Reset()

	if h.auditRepo != nil {
		operatorID := getOperatorIDFromContext(r)
		_ = h.auditRepo.Record("admin", "world_reset", operatorID, nil)
	}

	w.WriteHeader(http.StatusNoContent)
}
