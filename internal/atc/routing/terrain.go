package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"
)

// TerrainGrid is a cached rectangular elevation sample, bilinearly
// interpolated for arbitrary in-bounds queries. Out-of-bounds coordinates
// clamp to the grid edge rather than extrapolating.
type TerrainGrid struct {
	minLat, minLon float64
	maxLat, maxLon float64
	latStepDeg     float64
	lonStepDeg     float64
	rows, cols     int
	elevationsM    []float64
}

// Sample bilinearly interpolates ground elevation at (lat, lon), clamping
// to the grid's bounds. Non-finite input returns 0.
func (g *TerrainGrid) Sample(lat, lon float64) float64 {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return 0.0
	}
	clampedLat := clampF(lat, g.minLat, g.maxLat)
	clampedLon := clampF(lon, g.minLon, g.maxLon)

	latStep := math.Max(g.latStepDeg, 1e-9)
	lonStep := math.Max(g.lonStepDeg, 1e-9)

	y := (clampedLat - g.minLat) / latStep
	x := (clampedLon - g.minLon) / lonStep
	if math.IsNaN(y) || math.IsNaN(x) {
		return 0.0
	}

	maxY := float64(g.rows - 1)
	maxX := float64(g.cols - 1)
	y = clampF(y, 0, maxY)
	x = clampF(x, 0, maxX)

	y0 := int(math.Floor(y))
	x0 := int(math.Floor(x))
	y1 := minInt(y0+1, g.rows-1)
	x1 := minInt(x0+1, g.cols-1)
	dy := y - float64(y0)
	dx := x - float64(x0)

	v00 := g.valueAt(y0, x0)
	v10 := g.valueAt(y0, x1)
	v01 := g.valueAt(y1, x0)
	v11 := g.valueAt(y1, x1)

	v0 := v00 + (v10-v00)*dx
	v1 := v01 + (v11-v01)*dx
	return v0 + (v1-v0)*dy
}

func (g *TerrainGrid) valueAt(row, col int) float64 {
	idx := row*g.cols + minInt(col, g.cols-1)
	if idx < 0 || idx >= len(g.elevationsM) {
		return 0.0
	}
	return g.elevationsM[idx]
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

type terrainBounds struct {
	minLat, maxLat float64
	minLon, maxLon float64
}

func boundsFromPoints(lats, lons []float64) (terrainBounds, bool) {
	minLat, maxLat := math.Inf(1), math.Inf(-1)
	minLon, maxLon := math.Inf(1), math.Inf(-1)
	found := false
	for i := range lats {
		lat, lon := lats[i], lons[i]
		if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
			continue
		}
		found = true
		minLat = math.Min(minLat, lat)
		maxLat = math.Max(maxLat, lat)
		minLon = math.Min(minLon, lon)
		maxLon = math.Max(maxLon, lon)
	}
	if !found {
		return terrainBounds{}, false
	}
	return terrainBounds{minLat: minLat, maxLat: maxLat, minLon: minLon, maxLon: maxLon}, true
}

// expandBounds pads the bounding box so the grid covers points just outside
// a tight route corridor, e.g. after lane-offset lateral sampling.
func expandBounds(b terrainBounds, padRatio float64) terrainBounds {
	latSpan := b.maxLat - b.minLat
	lonSpan := b.maxLon - b.minLon
	padLat := math.Max(latSpan*padRatio, 0.0015)
	padLon := math.Max(lonSpan*padRatio, 0.0015)
	return terrainBounds{
		minLat: b.minLat - padLat,
		maxLat: b.maxLat + padLat,
		minLon: b.minLon - padLon,
		maxLon: b.maxLon + padLon,
	}
}

func resolveGridDims(b terrainBounds, spacingM float64, metersPerDegLat, metersPerDegLon float64, maxPoints int) (rows, cols int, latStepDeg, lonStepDeg float64) {
	spacing := math.Max(spacingM, 5.0)
	if maxPoints < 1000 {
		maxPoints = 1000
	}
	for {
		latStepDeg = spacing / metersPerDegLat
		lonStepDeg = spacing / metersPerDegLon
		rows = int(math.Max(math.Ceil((b.maxLat-b.minLat)/latStepDeg), 1)) + 1
		cols = int(math.Max(math.Ceil((b.maxLon-b.minLon)/lonStepDeg), 1)) + 1
		total := rows * cols
		if total <= maxPoints {
			return
		}
		scale := math.Max(math.Sqrt(float64(total)/float64(maxPoints)), 1.1)
		spacing *= scale
		if spacing > 2000.0 {
			return
		}
	}
}

type terrainCacheEntry struct {
	fetchedAt time.Time
	grid      *TerrainGrid
}

// terrainCache is a process-wide, TTL-bounded cache of fetched elevation
// grids keyed by bounding box and spacing. A stale (but not too stale) entry
// is served if a refetch fails, so a transient provider outage degrades
// routing precision rather than blocking it outright.
type terrainCache struct {
	mu      sync.Mutex
	entries map[string]terrainCacheEntry
}

var globalTerrainCache = &terrainCache{entries: make(map[string]terrainCacheEntry)}

func terrainCacheKey(b terrainBounds, spacingM float64) string {
	return fmt.Sprintf("terrain:%.4f:%.4f:%.4f:%.4f:%.1f", b.minLat, b.minLon, b.maxLat, b.maxLon, spacingM)
}

// TerrainProvider resolves elevation samples for a batch of coordinates,
// e.g. an Open-Meteo-style elevation API.
type TerrainProvider struct {
	BaseURL           string
	CacheTTL          time.Duration
	SampleSpacingM    float64
	MaxGridPoints     int
	MaxPointsPerBatch int
	RequestTimeout    time.Duration
	Client            *http.Client
}

type elevationResponse struct {
	Elevation []float64 `json:"elevation"`
}

// FetchGrid resolves (from cache or the provider) a terrain grid covering
// the bounding box of points, padded by 20% (minimum ~0.0015 degrees).
func (p TerrainProvider) FetchGrid(ctx context.Context, lats, lons []float64, gridSpacingM float64) (*TerrainGrid, error) {
	if strings.TrimSpace(p.BaseURL) == "" {
		return nil, fmt.Errorf("terrain provider URL is empty")
	}
	bounds, ok := boundsFromPoints(lats, lons)
	if !ok {
		return nil, nil
	}
	bounds = expandBounds(bounds, 0.2)

	ttl := p.CacheTTL
	if ttl < 30*time.Second {
		ttl = 30 * time.Second
	}
	cacheKey := terrainCacheKey(bounds, gridSpacingM)

	globalTerrainCache.mu.Lock()
	entry, found := globalTerrainCache.entries[cacheKey]
	globalTerrainCache.mu.Unlock()

	var staleGrid *TerrainGrid
	if found {
		age := time.Since(entry.fetchedAt)
		if age <= ttl {
			return entry.grid, nil
		}
		if age <= 2*ttl {
			staleGrid = entry.grid
		}
	}

	maxGridPoints := p.MaxGridPoints
	if maxGridPoints == 0 {
		return nil, fmt.Errorf("terrain_max_grid_points must be > 0")
	}

	spacingM := math.Max(p.SampleSpacingM, 5.0)
	maxGridSpacing := math.Max(gridSpacingM, 2.0) * 2.0
	if spacingM > maxGridSpacing {
		spacingM = maxGridSpacing
	}

	meanLat := (bounds.minLat + bounds.maxLat) / 2.0 * math.Pi / 180
	metersPerDegLat := 111_320.0
	metersPerDegLon := 111_320.0 * math.Max(math.Cos(meanLat), 0.01)

	rows, cols, latStepDeg, lonStepDeg := resolveGridDims(bounds, spacingM, metersPerDegLat, metersPerDegLon, maxGridPoints)
	total := rows * cols
	if total == 0 {
		return nil, nil
	}

	latitudes := make([]float64, 0, total)
	longitudes := make([]float64, 0, total)
	for row := 0; row < rows; row++ {
		lat := bounds.minLat + float64(row)*latStepDeg
		for col := 0; col < cols; col++ {
			lon := bounds.minLon + float64(col)*lonStepDeg
			latitudes = append(latitudes, lat)
			longitudes = append(longitudes, lon)
		}
	}

	maxPoints := p.MaxPointsPerBatch
	if maxPoints < 1 {
		maxPoints = 1
	}
	timeout := p.RequestTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	elevations := make([]float64, total)

	for start := 0; start < total; {
		end := start + maxPoints
		if end > total {
			end = total
		}

		reqURL := buildProviderURL(p.BaseURL, joinParams(latitudes[start:end]), joinParams(longitudes[start:end]))
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, nil)
		if err != nil {
			cancel()
			if staleGrid != nil {
				return staleGrid, nil
			}
			return nil, err
		}
		resp, err := client.Do(req)
		cancel()
		if err != nil {
			if staleGrid != nil {
				return staleGrid, nil
			}
			return nil, err
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			if staleGrid != nil {
				return staleGrid, nil
			}
			return nil, fmt.Errorf("terrain provider HTTP %d", resp.StatusCode)
		}

		var payload elevationResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&payload)
		resp.Body.Close()
		if decodeErr != nil {
			if staleGrid != nil {
				return staleGrid, nil
			}
			return nil, decodeErr
		}
		if len(payload.Elevation) != end-start {
			if staleGrid != nil {
				return staleGrid, nil
			}
			return nil, fmt.Errorf("terrain provider returned unexpected sample count")
		}
		for idx, v := range payload.Elevation {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0.0
			}
			elevations[start+idx] = v
		}
		start = end
	}

	grid := &TerrainGrid{
		minLat: bounds.minLat, minLon: bounds.minLon,
		maxLat: bounds.maxLat, maxLon: bounds.maxLon,
		latStepDeg: latStepDeg, lonStepDeg: lonStepDeg,
		rows: rows, cols: cols,
		elevationsM: elevations,
	}

	globalTerrainCache.mu.Lock()
	globalTerrainCache.entries[cacheKey] = terrainCacheEntry{fetchedAt: time.Now(), grid: grid}
	globalTerrainCache.mu.Unlock()

	return grid, nil
}

func joinParams(values []float64) string {
	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%.6f", v)
	}
	return b.String()
}

func buildProviderURL(base, latitudes, longitudes string) string {
	separator := "?"
	if strings.Contains(base, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%slatitude=%s&longitude=%s", base, separator, latitudes, longitudes)
}
