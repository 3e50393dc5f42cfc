package blender

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/asgard/atc/internal/atc/world"
)

type observation struct {
	LatDD       float64            `json:"lat_dd"`
	LonDD       float64            `json:"lon_dd"`
	AltitudeMM  int64              `json:"altitude_mm"`
	ICAOAddress string             `json:"icao_address"`
	TrafficSrc  int                `json:"traffic_source"`
	SourceType  int                `json:"source_type"`
	Timestamp   int64              `json:"timestamp"`
	Metadata    observationDetails `json:"metadata"`
}

type observationDetails struct {
	Heading      float64 `json:"heading"`
	SpeedMps     float64 `json:"speed_mps"`
	AircraftType string  `json:"aircraft_type"`
}

type observationRequest struct {
	Observations []observation `json:"observations"`
}

// PushSnapshot sends a batch of drone positions to the upstream observation
// stream. It satisfies loops.BlenderPusher; full is accepted for API
// symmetry with the loop's resync signal but otherwise ignored — Blender
// has no distinct "full" ingestion mode, every batch simply replaces what
// it describes.
func (c *Client) PushSnapshot(ctx context.Context, drones []world.Drone, full bool) error {
	if len(drones) == 0 {
		return nil
	}

	now := time.Now().Unix()
	observations := make([]observation, 0, len(drones))
	for _, d := range drones {
		observations = append(observations, observation{
			LatDD:       d.Lat,
			LonDD:       d.Lon,
			AltitudeMM:  int64(d.AltitudeM * 1000),
			ICAOAddress: d.DroneID,
			TrafficSrc:  1,
			SourceType:  1,
			Timestamp:   now,
			Metadata: observationDetails{
				Heading:      d.HeadingDeg,
				SpeedMps:     d.SpeedMps,
				AircraftType: "UAV",
			},
		})
	}

	path := fmt.Sprintf("/flight_stream/set_air_traffic/%s", c.sessionID)
	resp, err := c.do(ctx, "POST", path, observationRequest{Observations: observations})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("blender: push snapshot rejected: HTTP %d", resp.StatusCode)
	}
	return nil
}
