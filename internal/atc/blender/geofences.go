package blender

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"

	"github.com/asgard/atc/internal/atc/loops"
	"github.com/asgard/atc/internal/atc/world"
)

type geofenceFeatureCollection struct {
	Features []geofenceFeature `json:"features"`
}

type geofenceFeature struct {
	ID         string             `json:"id"`
	Properties geofenceProperties `json:"properties"`
	Geometry   geofenceGeometry   `json:"geometry"`
}

type geofenceProperties struct {
	Name       string `json:"name"`
	UpperLimit int    `json:"upper_limit"`
	LowerLimit int    `json:"lower_limit"`
	Status     string `json:"status"`
}

type geofenceGeometry struct {
	Type        string         `json:"type"`
	Coordinates [][][2]float64 `json:"coordinates"`
}

// FetchGeofences pulls the full active geofence set from upstream UTM and
// adapts it to local geofence shapes, keyed by a stable fingerprint so the
// sync loop can skip unchanged entries. It satisfies loops.GeofenceSource.
func (c *Client) FetchGeofences(ctx context.Context) ([]loops.UpstreamGeofence, error) {
	resp, err := c.do(ctx, "GET", "/geo_fence_ops/geo_fence", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("blender: fetch geofences rejected: HTTP %d", resp.StatusCode)
	}

	var payload geofenceFeatureCollection
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("blender: decode geofences: %w", err)
	}

	result := make([]loops.UpstreamGeofence, 0, len(payload.Features))
	for _, f := range payload.Features {
		if f.Properties.Status == "inactive" {
			continue
		}
		if len(f.Geometry.Coordinates) == 0 {
			continue
		}

		ring := f.Geometry.Coordinates[0]
		vertices := make([]world.LatLon, 0, len(ring))
		for _, pt := range ring {
			// GeoJSON orders coordinates [lon, lat].
			vertices = append(vertices, world.LatLon{Lat: pt[1], Lon: pt[0]})
		}

		gf := world.Geofence{
			ID:             f.ID,
			Name:           f.Properties.Name,
			Type:           world.GeofenceRestrictedArea,
			Vertices:       vertices,
			LowerAltitudeM: float64(f.Properties.LowerLimit),
			UpperAltitudeM: float64(f.Properties.UpperLimit),
			Active:         true,
		}

		result = append(result, loops.UpstreamGeofence{
			Fingerprint: fingerprintGeofence(gf),
			Geofence:    gf,
		})
	}

	return result, nil
}

// fingerprintGeofence hashes a geofence's shape-defining fields so the sync
// loop can detect no-op ticks without re-sending unchanged geometry.
func fingerprintGeofence(gf world.Geofence) string {
	h := fnv.New64a()
	h.Write([]byte(gf.Name))
	h.Write([]byte(strconv.FormatFloat(gf.LowerAltitudeM, 'f', 2, 64)))
	h.Write([]byte(strconv.FormatFloat(gf.UpperAltitudeM, 'f', 2, 64)))
	for _, v := range gf.Vertices {
		h.Write([]byte(strconv.FormatFloat(v.Lat, 'f', 6, 64)))
		h.Write([]byte(strconv.FormatFloat(v.Lon, 'f', 6, 64)))
	}
	return strconv.FormatUint(h.Sum64(), 16)
}
