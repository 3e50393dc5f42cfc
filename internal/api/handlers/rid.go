// Package handlers provides HTTP handlers for API endpoints.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/asgard/atc/internal/services"
	"github.com/asgard/atc/internal/utils"
)

// RIDHandler updates the Remote ID subscription bounding box watched by the
// RID pull loop.
type RIDHandler struct {
	ridView *services.RIDViewService
}

// NewRIDHandler creates a new RID handler.
func NewRIDHandler(ridView *services.RIDViewService) *RIDHandler {
	return &RIDHandler{ridView: ridView}
}

// UpdateView handles POST /v1/rid/view
func (h *RIDHandler) UpdateView(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MinLat float64 `json:"minLat"`
		MaxLat float64 `json:"maxLat"`
		MinLon float64 `json:"minLon"`
		MaxLon float64 `json:"maxLon"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(w, utils.ErrBadRequest)
		return
	}
	if req.MinLat >= req.MaxLat || req.MinLon >= req.MaxLon {
		handleError(w, utils.NewAPIError("INVALID_BOUNDS", "minLat/minLon must be less than maxLat/maxLon", http.StatusBadRequest))
		return
	}

	h.ridView.SetView(services.RIDBox{
		MinLat: req.MinLat,
		MaxLat: req.MaxLat,
		MinLon: req.MinLon,
		MaxLon: req.MaxLon,
	})

	jsonResponse(w, http.StatusOK, map[string]string{"status": "updated"})
}
