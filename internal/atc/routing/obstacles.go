package routing

import (
	"sort"

	"github.com/asgard/atc/internal/atc/spatial"
)

// Hazard is an obstacle reported back to the caller as a routing concern,
// sorted nearest-first so a truncated list still surfaces the ones that
// mattered most.
type Hazard struct {
	Lat        float64
	Lon        float64
	DistanceM  float64
	RadiusM    float64
	HeightM    float64
}

const maxReportedHazards = 50

// nearestHazards sorts obstacles by distance to the route corridor's
// centroid and truncates the report; the full obstacle set is still used
// for feasibility, this list is purely informational.
func nearestHazards(obstacles []Obstacle, centroidLat, centroidLon float64) []Hazard {
	hazards := make([]Hazard, 0, len(obstacles))
	for _, o := range obstacles {
		height := 0.0
		if o.HeightM != nil {
			height = *o.HeightM
		}
		hazards = append(hazards, Hazard{
			Lat:       o.Lat,
			Lon:       o.Lon,
			DistanceM: spatial.HaversineDistance(centroidLat, centroidLon, o.Lat, o.Lon),
			RadiusM:   o.RadiusM,
			HeightM:   height,
		})
	}
	sort.Slice(hazards, func(i, j int) bool { return hazards[i].DistanceM < hazards[j].DistanceM })
	if len(hazards) > maxReportedHazards {
		hazards = hazards[:maxReportedHazards]
	}
	return hazards
}
