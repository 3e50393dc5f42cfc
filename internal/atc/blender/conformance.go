package blender

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/asgard/atc/internal/atc/loops"
)

type conformanceResponse struct {
	Status string `json:"status"`
	Record *struct {
		Conforming     bool   `json:"conforming"`
		GeofenceBreach bool   `json:"geofence_breach"`
		Code           string `json:"code"`
		Message        string `json:"message"`
	} `json:"record"`
}

// PullConformance fetches the latest conformance record for one aircraft.
// It satisfies loops.ConformancePuller. An absent record (Blender has no
// opinion yet, e.g. a drone that just took off) is treated as conforming.
func (c *Client) PullConformance(ctx context.Context, droneID string) (loops.ConformanceStatus, error) {
	path := "/conformance_monitoring_operations/conformance_status/?aircraft_id=" + url.QueryEscape(droneID)
	resp, err := c.do(ctx, "GET", path, nil)
	if err != nil {
		return loops.ConformanceStatus{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return loops.ConformanceStatus{}, fmt.Errorf("blender: conformance status rejected: HTTP %d", resp.StatusCode)
	}

	var payload conformanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return loops.ConformanceStatus{}, fmt.Errorf("blender: decode conformance status: %w", err)
	}

	if payload.Record == nil {
		return loops.ConformanceStatus{Conforming: true, Code: "no_record"}, nil
	}

	return loops.ConformanceStatus{
		Conforming:     payload.Record.Conforming,
		GeofenceBreach: payload.Record.GeofenceBreach,
		Code:           payload.Record.Code,
		Message:        payload.Record.Message,
	}, nil
}
