// Package handlers provides HTTP handlers for API endpoints.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/asgard/atc/internal/services"
	"github.com/asgard/atc/internal/utils"
	"github.com/go-chi/chi/v5"
)

// OperatorHandler handles operator profile and administration endpoints.
type OperatorHandler struct {
	operatorService *services.OperatorService
}

// NewOperatorHandler creates a new operator handler.
func NewOperatorHandler(operatorService *services.OperatorService) *OperatorHandler {
	return &OperatorHandler{operatorService: operatorService}
}

// GetProfile handles GET /v1/operators/me
func (h *OperatorHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	operatorID := getOperatorIDFromContext(r)
	if operatorID == "" {
		handleError(w, utils.ErrUnauthorized)
		return
	}

	op, err := h.operatorService.GetProfile(operatorID)
	if err != nil {
		handleError(w, utils.WrapAPIError(err, "NOT_FOUND", "Operator not found", http.StatusNotFound))
		return
	}

	jsonResponse(w, http.StatusOK, op)
}

// UpdateProfile handles PATCH /v1/operators/me
func (h *OperatorHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	operatorID := getOperatorIDFromContext(r)
	if operatorID == "" {
		handleError(w, utils.ErrUnauthorized)
		return
	}

	var req struct {
		DisplayName string `json:"displayName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(w, utils.ErrBadRequest)
		return
	}

	op, err := h.operatorService.UpdateProfile(operatorID, req.DisplayName)
	if err != nil {
		handleError(w, utils.WrapAPIError(err, "UPDATE_FAILED", "Failed to update profile", http.StatusInternalServerError))
		return
	}

	jsonResponse(w, http.StatusOK, op)
}

// ListOperators handles GET /v1/admin/operators
func (h *OperatorHandler) ListOperators(w http.ResponseWriter, r *http.Request) {
	limit, _ := parsePaginationParams(r)

	operators, err := h.operatorService.ListOperators(limit)
	if err != nil {
		handleError(w, utils.WrapAPIError(err, "LIST_FAILED", "Failed to list operators", http.StatusInternalServerError))
		return
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{"operators": operators})
}

// SetRole handles PATCH /v1/admin/operators/{id}/role
func (h *OperatorHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	operatorID := chi.URLParam(r, "id")

	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(w, utils.ErrBadRequest)
		return
	}

	if err := h.operatorService.SetRole(operatorID, req.Role); err != nil {
		handleError(w, utils.WrapAPIError(err, "INVALID_ROLE", err.Error(), http.StatusBadRequest))
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "role updated"})
}
