package world

import "github.com/asgard/atc/internal/atc/spatial"

// ContainsPoint reports whether (lat, lon, alt) lies inside the geofence:
// the altitude is within the band and the planar point is inside the
// polygon under a ray-cast test. The result is independent of vertex winding
// order and idempotent under repeated evaluation.
func (g Geofence) ContainsPoint(lat, lon, alt float64) bool {
	if alt < g.LowerAltitudeM || alt > g.UpperAltitudeM {
		return false
	}
	return pointInPolygon(g.Vertices, lat, lon)
}

// pointInPolygon implements the standard ray-casting algorithm: a ray cast
// due "east" in lon from the test point crosses the polygon boundary an odd
// number of times iff the point is inside. Vertices are treated as an
// implicitly closed ring (the last vertex connects back to the first).
func pointInPolygon(vertices []LatLon, lat, lon float64) bool {
	if len(vertices) < 3 {
		return false
	}
	inside := false
	n := len(vertices)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := vertices[i], vertices[j]
		if (vi.Lat > lat) != (vj.Lat > lat) {
			lonAtLat := vj.Lon + (lat-vj.Lat)/(vi.Lat-vj.Lat)*(vi.Lon-vj.Lon)
			if lon < lonAtLat {
				inside = !inside
			}
		}
	}
	return inside
}

// IntersectsSegment samples a straight 3D segment at fixed spacing and
// returns true if any sample lies inside the geofence. altFn interpolates
// altitude along the segment; a straight linear interpolation between the
// segment endpoints is the typical caller.
func (g Geofence) IntersectsSegment(lat1, lon1, alt1, lat2, lon2, alt2, sampleSpacingM float64) bool {
	dist := spatial.HaversineDistance(lat1, lon1, lat2, lon2)
	if dist == 0 {
		return g.ContainsPoint(lat1, lon1, alt1) || g.ContainsPoint(lat1, lon1, alt2)
	}
	steps := int(dist/sampleSpacingM) + 1
	if steps < 1 {
		steps = 1
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		lat := lat1 + (lat2-lat1)*t
		lon := lon1 + (lon2-lon1)*t
		alt := alt1 + (alt2-alt1)*t
		if g.ContainsPoint(lat, lon, alt) {
			return true
		}
	}
	return false
}
