package blender

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/asgard/atc/internal/atc/loops"
	"github.com/asgard/atc/internal/services"
)

type ridSubscriptionRequest struct {
	View [4]float64 `json:"view"` // min_lon, min_lat, max_lon, max_lat
}

type ridSubscriptionResponse struct {
	SubscriptionID string `json:"subscription_id"`
}

type ridObservationResponse struct {
	Observations []struct {
		ICAOAddress string  `json:"icao_address"`
		LatDD       float64 `json:"lat_dd"`
		LonDD       float64 `json:"lon_dd"`
		AltitudeMM  int64   `json:"altitude_mm"`
		Metadata    struct {
			Heading  float64 `json:"heading"`
			SpeedMps float64 `json:"speed_mps"`
		} `json:"metadata"`
	} `json:"observations"`
}

// RIDSource wraps Client with the current subscription bounding box, pulled
// from the shared RIDViewService each time the subscription refreshes.
type RIDSource struct {
	client *Client
	view   *services.RIDViewService

	mu             sync.Mutex
	subscriptionID string
}

// NewRIDSource builds a RID source bound to the given client and view
// service; callers use its Subscribe/Pull methods as the loop's function
// seams.
func NewRIDSource(client *Client, view *services.RIDViewService) *RIDSource {
	return &RIDSource{client: client, view: view}
}

// Subscribe refreshes the upstream bounding-box subscription to the
// current view. It satisfies loops.RIDSubscriber.
func (s *RIDSource) Subscribe(ctx context.Context) error {
	box := s.view.View()
	request := ridSubscriptionRequest{View: [4]float64{box.MinLon, box.MinLat, box.MaxLon, box.MaxLat}}

	resp, err := s.client.do(ctx, "PUT", "/rid_ops/subscriptions", request)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("blender: rid subscribe rejected: HTTP %d", resp.StatusCode)
	}

	var payload ridSubscriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("blender: decode rid subscription: %w", err)
	}

	s.mu.Lock()
	s.subscriptionID = payload.SubscriptionID
	s.mu.Unlock()
	return nil
}

// Pull fetches the latest observation batch under the active subscription.
// It satisfies loops.RIDPuller.
func (s *RIDSource) Pull(ctx context.Context) ([]loops.RIDObservation, error) {
	s.mu.Lock()
	subscriptionID := s.subscriptionID
	s.mu.Unlock()
	if subscriptionID == "" {
		return nil, nil
	}

	resp, err := s.client.do(ctx, "GET", "/rid_ops/observations/"+subscriptionID, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("blender: rid pull rejected: HTTP %d", resp.StatusCode)
	}

	var payload ridObservationResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("blender: decode rid observations: %w", err)
	}

	observations := make([]loops.RIDObservation, 0, len(payload.Observations))
	for _, o := range payload.Observations {
		observations = append(observations, loops.RIDObservation{
			DroneID:    o.ICAOAddress,
			Lat:        o.LatDD,
			Lon:        o.LonDD,
			AltitudeM:  float64(o.AltitudeMM) / 1000,
			HeadingDeg: o.Metadata.Heading,
			SpeedMps:   o.Metadata.SpeedMps,
		})
	}
	return observations, nil
}
