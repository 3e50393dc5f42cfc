package admission

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/asgard/atc/internal/atc/spatial"
	"github.com/asgard/atc/internal/platform/observability"
)

// Evaluator runs compliance checks against the configured weather and
// obstacle providers.
type Evaluator struct {
	cfg        Config
	httpClient *http.Client
}

// NewEvaluator builds an evaluator with its own bounded HTTP client.
func NewEvaluator(cfg Config) *Evaluator {
	return &Evaluator{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

type weatherCurrent struct {
	WindSpeed10m   *float64
	WindGusts10m   *float64
	Precipitation  *float64
}

type weatherResponse struct {
	Current       *weatherCurrentPayload `json:"current"`
	CurrentWeatherAlt *weatherAltPayload `json:"current_weather"`
}

type weatherCurrentPayload struct {
	WindSpeed10m  *float64 `json:"wind_speed_10m"`
	WindGusts10m  *float64 `json:"wind_gusts_10m"`
	Precipitation *float64 `json:"precipitation"`
}

type weatherAltPayload struct {
	WindSpeed     *float64 `json:"windspeed"`
	WindGusts     *float64 `json:"windgusts"`
	Precipitation *float64 `json:"precipitation"`
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat"`
	Lon    *float64          `json:"lon"`
	Center *overpassCenter   `json:"center"`
	Tags   map[string]string `json:"tags"`
}

type overpassCenter struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type obstacleAnalysis struct {
	hazards             []ObstacleHazard
	obstacleCount       int
	truncated           bool
	buildingCount       int
	estimatedPopulation float64
	density             float64
	areaKm2             float64
}

type bounds struct {
	minLat, maxLat, minLon, maxLon float64
}

// Evaluate runs every compliance check for a proposed route and produces the
// admission decision derived from them. Weather and obstacle data are
// fetched concurrently; a provider failure degrades its check to Pending
// rather than failing the whole evaluation.
func (e *Evaluator) Evaluate(ctx context.Context, meta SubmissionMetadata, points []RoutePoint) ComplianceEvaluation {
	clearanceM := e.cfg.DefaultClearanceM
	if meta.ClearanceM != nil {
		clearanceM = *meta.ClearanceM
	}

	route := buildRouteMetrics(points, meta.DroneSpeedMps)

	var weather weatherCurrent
	var weatherErr error
	var analysis obstacleAnalysis
	var obstacleErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		weather, weatherErr = e.fetchWeather(gctx, points)
		return nil
	})
	g.Go(func() error {
		analysis, obstacleErr = e.fetchObstacles(gctx, points, clearanceM)
		return nil
	})
	_ = g.Wait() // errors are captured per-call and downgrade their own check

	var weatherCheck WeatherCheck
	if weatherErr != nil {
		weatherCheck = WeatherCheck{
			Status:      StatusPending,
			Message:     fmt.Sprintf("weather fetch failed: %v", weatherErr),
			MaxWindMps:  e.cfg.MaxWindMps,
			MaxGustMps:  e.cfg.MaxGustMps,
			MaxPrecipMm: e.cfg.MaxPrecipMm,
			Source:      "Open-Meteo",
		}
	} else {
		weatherCheck = e.evaluateWeather(weather)
	}

	var populationCheck PopulationCheck
	var obstaclesCheck ObstaclesCheck
	if obstacleErr != nil {
		populationCheck = PopulationCheck{Status: StatusPending, Message: fmt.Sprintf("population analysis failed: %v", obstacleErr)}
		obstaclesCheck = ObstaclesCheck{
			Status:     StatusPending,
			Message:    fmt.Sprintf("obstacle analysis failed: %v", obstacleErr),
			ClearanceM: clearanceM,
			Hazards:    defaultHazards(),
		}
	} else {
		populationCheck = e.evaluatePopulation(meta.BVLOS, analysis)
		obstaclesCheck = evaluateObstacles(points, clearanceM, analysis)
	}

	batteryCheck := e.evaluateBattery(route, meta.DroneSpeedMps, meta.BatteryCapacityMin, meta.BatteryReserveMin)

	checks := ComplianceChecks{
		Weather:    weatherCheck,
		Battery:    batteryCheck,
		Population: populationCheck,
		Obstacles:  obstaclesCheck,
	}
	overall := summarizeStatus(checks)

	observability.RecordComplianceCheck("weather", string(checks.Weather.Status))
	observability.RecordComplianceCheck("battery", string(checks.Battery.Status))
	observability.RecordComplianceCheck("population", string(checks.Population.Status))
	observability.RecordComplianceCheck("obstacles", string(checks.Obstacles.Status))

	var blocking []string
	for _, pair := range []struct {
		key    string
		status Status
	}{
		{"weather", checks.Weather.Status},
		{"battery", checks.Battery.Status},
		{"population", checks.Population.Status},
		{"obstacles", checks.Obstacles.Status},
	} {
		if pair.status == StatusFail || pair.status == StatusPending {
			blocking = append(blocking, pair.key)
		}
	}

	ok := len(blocking) == 0
	if meta.ComplianceOverrideEnabled {
		if len(strings.TrimSpace(meta.ComplianceOverrideNotes)) < 8 {
			ok = false
			blocking = append(blocking, "override")
		} else {
			ok = true
		}
	}

	return ComplianceEvaluation{
		Report: ComplianceReport{
			GeneratedAt:   time.Now(),
			OverallStatus: overall,
			Route:         route,
			Checks:        checks,
		},
		Blocking: blocking,
		OK:       ok,
	}
}

func buildRouteMetrics(points []RoutePoint, cruiseSpeedMps *float64) RouteMetrics {
	if len(points) < 2 {
		return RouteMetrics{}
	}
	distance := 0.0
	for i := 1; i < len(points); i++ {
		distance += spatial.HaversineDistance(points[i-1].Lat, points[i-1].Lon, points[i].Lat, points[i].Lon)
	}
	speed := 0.0
	if cruiseSpeedMps != nil {
		speed = *cruiseSpeedMps
	}
	estimatedMinutes := 0.0
	if speed > 0 {
		estimatedMinutes = distance / speed / 60.0
	}
	return RouteMetrics{DistanceM: distance, EstimatedMinutes: estimatedMinutes, HasRoute: true}
}

func (e *Evaluator) evaluateWeather(w weatherCurrent) WeatherCheck {
	if w.WindSpeed10m == nil || w.WindGusts10m == nil || w.Precipitation == nil {
		return WeatherCheck{
			Status:      StatusPending,
			Message:     "weather values missing",
			WindMps:     w.WindSpeed10m,
			GustMps:     w.WindGusts10m,
			PrecipMm:    w.Precipitation,
			MaxWindMps:  e.cfg.MaxWindMps,
			MaxGustMps:  e.cfg.MaxGustMps,
			MaxPrecipMm: e.cfg.MaxPrecipMm,
			Source:      "Open-Meteo",
		}
	}

	wind, gust, precip := *w.WindSpeed10m, *w.WindGusts10m, *w.Precipitation
	status := StatusPass
	switch {
	case wind > e.cfg.MaxWindMps || gust > e.cfg.MaxGustMps || precip > e.cfg.MaxPrecipMm:
		status = StatusFail
	case wind > e.cfg.MaxWindMps*e.cfg.WindWarnRatio || gust > e.cfg.MaxGustMps*e.cfg.WindWarnRatio || precip > e.cfg.MaxPrecipMm*e.cfg.WindWarnRatio:
		status = StatusWarn
	}

	return WeatherCheck{
		Status:      status,
		Message:     fmt.Sprintf("wind %.1f m/s, gust %.1f m/s, precip %.1f mm (source: Open-Meteo)", wind, gust, precip),
		WindMps:     &wind,
		GustMps:     &gust,
		PrecipMm:    &precip,
		MaxWindMps:  e.cfg.MaxWindMps,
		MaxGustMps:  e.cfg.MaxGustMps,
		MaxPrecipMm: e.cfg.MaxPrecipMm,
		Source:      "Open-Meteo",
	}
}

func (e *Evaluator) evaluateBattery(route RouteMetrics, cruiseSpeedMps, capacityMin, reserveMin *float64) BatteryCheck {
	speed := 0.0
	if cruiseSpeedMps != nil {
		speed = *cruiseSpeedMps
	}
	if !route.HasRoute || capacityMin == nil || reserveMin == nil || speed <= 0 {
		return BatteryCheck{
			Status:         StatusPending,
			Message:        "battery inputs missing",
			CapacityMin:    capacityMin,
			ReserveMin:     reserveMin,
			CruiseSpeedMps: cruiseSpeedMps,
		}
	}

	estimated := route.EstimatedMinutes
	capacity := *capacityMin
	reserve := *reserveMin
	remaining := capacity - estimated

	status := StatusPass
	switch {
	case remaining < reserve:
		status = StatusFail
	case remaining < reserve+e.cfg.BatteryWarnMarginMin:
		status = StatusWarn
	}

	return BatteryCheck{
		Status:         status,
		Message:        fmt.Sprintf("est %.1f min | remaining %.1f min", estimated, remaining),
		EstimatedMin:   &estimated,
		CapacityMin:    &capacity,
		ReserveMin:     &reserve,
		RemainingMin:   &remaining,
		CruiseSpeedMps: cruiseSpeedMps,
	}
}

func (e *Evaluator) evaluatePopulation(bvlos bool, analysis obstacleAnalysis) PopulationCheck {
	density := analysis.density
	classification := classifyDensity(density)
	status := StatusPass
	switch {
	case density >= e.cfg.PopulationAbsMax:
		status = StatusFail
	case bvlos && density > e.cfg.PopulationBVLOSMax:
		status = StatusFail
	case density >= e.cfg.PopulationWarn:
		status = StatusWarn
	}

	source := "OpenStreetMap"
	buildingCount := analysis.buildingCount
	estimatedPopulation := analysis.estimatedPopulation
	areaKm2 := analysis.areaKm2

	return PopulationCheck{
		Status:              status,
		Message:             fmt.Sprintf("density %.0f people/km^2 (%s)", density, classification),
		Density:             &density,
		Classification:      &classification,
		BuildingCount:       &buildingCount,
		EstimatedPopulation: &estimatedPopulation,
		AreaKm2:             &areaKm2,
		Source:              &source,
	}
}

func evaluateObstacles(points []RoutePoint, clearanceM float64, analysis obstacleAnalysis) ObstaclesCheck {
	hazardList := analysis.hazards
	if len(hazardList) == 0 {
		hazardList = defaultHazards()
	} else {
		combined := defaultHazards()
		hazardList = append(combined, hazardList...)
	}

	if len(points) == 0 {
		return ObstaclesCheck{
			Status:        StatusPending,
			Message:       "route missing",
			ClearanceM:    clearanceM,
			Hazards:       hazardList,
			ObstacleCount: analysis.obstacleCount,
			Truncated:     analysis.truncated,
		}
	}

	var conflicts, warnings []ObstacleConflict
	warnBuffer := clearanceM * 1.5

	for _, hazard := range hazardList {
		distance := distanceToRouteMeters(hazard.Lat, hazard.Lon, points)
		conflictThreshold := hazard.RadiusM + clearanceM
		warnThreshold := hazard.RadiusM + warnBuffer
		switch {
		case distance <= conflictThreshold:
			conflicts = append(conflicts, ObstacleConflict{ID: hazard.ID, Name: hazard.Name, DistanceM: distance, Severity: "conflict"})
		case distance <= warnThreshold:
			warnings = append(warnings, ObstacleConflict{ID: hazard.ID, Name: hazard.Name, DistanceM: distance, Severity: "warning"})
		}
	}

	status := StatusPass
	switch {
	case len(conflicts) > 0:
		status = StatusFail
	case len(warnings) > 0:
		status = StatusWarn
	}

	all := append(conflicts, warnings...)
	return ObstaclesCheck{
		Status:        status,
		Message:       fmt.Sprintf("%d conflicts", len(all)),
		ClearanceM:    clearanceM,
		Conflicts:     all,
		Hazards:       hazardList,
		ObstacleCount: analysis.obstacleCount,
		Truncated:     analysis.truncated,
	}
}

func summarizeStatus(checks ComplianceChecks) Status {
	hasWarn, hasPending, hasFail := false, false, false
	for _, s := range []Status{checks.Weather.Status, checks.Battery.Status, checks.Population.Status, checks.Obstacles.Status} {
		switch s {
		case StatusFail:
			hasFail = true
		case StatusPending:
			hasPending = true
		case StatusWarn:
			hasWarn = true
		}
	}
	switch {
	case hasFail:
		return StatusFail
	case hasPending:
		return StatusPending
	case hasWarn:
		return StatusWarn
	default:
		return StatusPass
	}
}

func (e *Evaluator) fetchWeather(ctx context.Context, points []RoutePoint) (weatherCurrent, error) {
	lat, lon, ok := routeCenter(points)
	if !ok {
		return weatherCurrent{}, fmt.Errorf("missing route center")
	}

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("current", "temperature_2m,wind_speed_10m,wind_gusts_10m,precipitation,weather_code")
	q.Set("windspeed_unit", "ms")
	q.Set("timezone", "UTC")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.cfg.WeatherURL+"?"+q.Encode(), nil)
	if err != nil {
		return weatherCurrent{}, err
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return weatherCurrent{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return weatherCurrent{}, fmt.Errorf("weather provider HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return weatherCurrent{}, err
	}
	var payload weatherResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return weatherCurrent{}, err
	}

	if payload.Current != nil {
		return weatherCurrent{
			WindSpeed10m:  payload.Current.WindSpeed10m,
			WindGusts10m:  payload.Current.WindGusts10m,
			Precipitation: payload.Current.Precipitation,
		}, nil
	}
	if payload.CurrentWeatherAlt != nil {
		return weatherCurrent{
			WindSpeed10m:  payload.CurrentWeatherAlt.WindSpeed,
			WindGusts10m:  payload.CurrentWeatherAlt.WindGusts,
			Precipitation: payload.CurrentWeatherAlt.Precipitation,
		}, nil
	}
	return weatherCurrent{}, fmt.Errorf("weather response missing current data")
}

func (e *Evaluator) fetchObstacles(ctx context.Context, points []RoutePoint, clearanceM float64) (obstacleAnalysis, error) {
	base, ok := computeBounds(points)
	if !ok {
		return obstacleAnalysis{}, fmt.Errorf("invalid route bounds")
	}
	b := expandBounds(base)
	areaKm2 := boundsAreaKm2(b)
	bbox := fmt.Sprintf("%f,%f,%f,%f", b.minLat, b.minLon, b.maxLat, b.maxLon)
	query := fmt.Sprintf(`[out:json][timeout:25];
(
  node["man_made"~"tower|mast|chimney"](%s);
  node["power"="tower"](%s);
  node["aeroway"~"helipad|heliport"](%s);
  way["man_made"~"tower|mast|chimney"](%s);
  way["power"="tower"](%s);
  way["aeroway"~"helipad|heliport"](%s);
  way["building"](%s);
);
out center tags;`, bbox, bbox, bbox, bbox, bbox, bbox, bbox)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.OverpassURL, strings.NewReader(query))
	if err != nil {
		return obstacleAnalysis{}, err
	}
	req.Header.Set("Content-Type", "text/plain")
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return obstacleAnalysis{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return obstacleAnalysis{}, fmt.Errorf("OSM provider HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return obstacleAnalysis{}, err
	}
	var payload overpassResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return obstacleAnalysis{}, err
	}

	elements := payload.Elements
	truncated := len(elements) > e.cfg.MaxOverpassElements
	if truncated {
		elements = elements[:e.cfg.MaxOverpassElements]
	}

	buildingCount := 0
	var hazards []ObstacleHazard
	seen := make(map[string]bool)
	maxDistance := math.Max(400.0, clearanceM*4.0)

	for _, el := range elements {
		tags := el.Tags
		if tags == nil {
			tags = map[string]string{}
		}
		lat, lon, ok := elementCenter(el)
		if !ok {
			continue
		}

		isBuilding := tags["building"] != ""
		if isBuilding {
			buildingCount++
		}

		manMade := tags["man_made"]
		aeroway := tags["aeroway"]
		power := tags["power"]
		var levels *float64
		if v, err := strconv.ParseFloat(tags["building:levels"], 64); err == nil {
			levels = &v
		}
		heightM := parseHeight(tags["height"])
		if heightM == nil {
			heightM = parseHeight(tags["height:roof"])
		}
		if heightM == nil && levels != nil {
			h := *levels * 3.0
			heightM = &h
		}

		isTower := manMade == "tower" || manMade == "mast" || manMade == "chimney"
		isPowerTower := power == "tower"
		isHelipad := aeroway == "helipad" || aeroway == "heliport"
		tallThreshold := math.Max(clearanceM, 20.0)
		isTallBuilding := isBuilding && heightM != nil && *heightM >= tallThreshold

		var obstacleType string
		switch {
		case isTower:
			obstacleType = manMade
		case isPowerTower:
			obstacleType = "power_tower"
		case isHelipad:
			obstacleType = aeroway
		case isTallBuilding:
			obstacleType = "tall_building"
		}
		if obstacleType == "" {
			continue
		}

		distanceM := distanceToRouteMeters(lat, lon, points)
		if !math.IsInf(distanceM, 0) && distanceM > maxDistance {
			continue
		}

		baseRadius := math.Max(clearanceM, 50.0)
		radiusM := baseRadius
		if heightM != nil {
			radiusM = math.Max(baseRadius, math.Min(200.0, *heightM*1.2))
		}

		key := fmt.Sprintf("%s:%.5f:%.5f", obstacleType, lat, lon)
		if seen[key] {
			continue
		}
		seen[key] = true

		name := tags["name"]
		if name == "" {
			name = strings.ReplaceAll(obstacleType, "_", " ")
		}
		var distPtr *float64
		if !math.IsInf(distanceM, 0) {
			d := distanceM
			distPtr = &d
		}

		hazards = append(hazards, ObstacleHazard{
			ID:        fmt.Sprintf("%s-%d", obstacleType, el.ID),
			Name:      name,
			Lat:       lat,
			Lon:       lon,
			RadiusM:   radiusM,
			HeightM:   heightM,
			Type:      obstacleType,
			Source:    "OpenStreetMap",
			DistanceM: distPtr,
		})
	}

	sort.Slice(hazards, func(i, j int) bool {
		di, dj := math.Inf(1), math.Inf(1)
		if hazards[i].DistanceM != nil {
			di = *hazards[i].DistanceM
		}
		if hazards[j].DistanceM != nil {
			dj = *hazards[j].DistanceM
		}
		return di < dj
	})

	obstacleCount := len(hazards)
	if len(hazards) > e.cfg.MaxObstaclesResponse {
		hazards = hazards[:e.cfg.MaxObstaclesResponse]
	}

	estimatedPopulation := float64(buildingCount) * e.cfg.PopulationPerBuilding
	density := 0.0
	if areaKm2 > 0 {
		density = estimatedPopulation / areaKm2
	}

	return obstacleAnalysis{
		hazards:             hazards,
		obstacleCount:       obstacleCount,
		truncated:           truncated,
		buildingCount:       buildingCount,
		estimatedPopulation: estimatedPopulation,
		density:             density,
		areaKm2:             areaKm2,
	}, nil
}

func routeCenter(points []RoutePoint) (lat, lon float64, ok bool) {
	if len(points) == 0 {
		return 0, 0, false
	}
	var sumLat, sumLon float64
	for _, p := range points {
		sumLat += p.Lat
		sumLon += p.Lon
	}
	n := float64(len(points))
	return sumLat / n, sumLon / n, true
}

func computeBounds(points []RoutePoint) (bounds, bool) {
	minLat, maxLat := math.Inf(1), math.Inf(-1)
	minLon, maxLon := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		if !spatial.Finite(p.Lat, p.Lon) {
			continue
		}
		minLat = math.Min(minLat, p.Lat)
		maxLat = math.Max(maxLat, p.Lat)
		minLon = math.Min(minLon, p.Lon)
		maxLon = math.Max(maxLon, p.Lon)
	}
	if math.IsInf(minLat, 0) || math.IsInf(minLon, 0) {
		return bounds{}, false
	}
	return bounds{minLat: minLat, maxLat: maxLat, minLon: minLon, maxLon: maxLon}, true
}

func expandBounds(b bounds) bounds {
	latSpan := b.maxLat - b.minLat
	lonSpan := b.maxLon - b.minLon
	padLat := math.Max(latSpan*0.3, 0.002)
	padLon := math.Max(lonSpan*0.3, 0.002)
	return bounds{
		minLat: b.minLat - padLat,
		maxLat: b.maxLat + padLat,
		minLon: b.minLon - padLon,
		maxLon: b.maxLon + padLon,
	}
}

func boundsAreaKm2(b bounds) float64 {
	meanLatRad := (b.minLat + b.maxLat) / 2.0 * math.Pi / 180.0
	metersPerDegLat := 111320.0
	metersPerDegLon := 111320.0 * math.Cos(meanLatRad)
	widthM := (b.maxLon - b.minLon) * metersPerDegLon
	heightM := (b.maxLat - b.minLat) * metersPerDegLat
	area := math.Max(widthM, 0) * math.Max(heightM, 0) / 1_000_000.0
	return math.Max(area, 0.15)
}

func parseHeight(value string) *float64 {
	if value == "" {
		return nil
	}
	var digits strings.Builder
	for _, ch := range value {
		if (ch >= '0' && ch <= '9') || ch == '.' {
			digits.WriteRune(ch)
		} else if digits.Len() > 0 {
			break
		}
	}
	if digits.Len() == 0 {
		return nil
	}
	v, err := strconv.ParseFloat(digits.String(), 64)
	if err != nil {
		return nil
	}
	return &v
}

func elementCenter(el overpassElement) (lat, lon float64, ok bool) {
	if el.Lat != nil && el.Lon != nil {
		return *el.Lat, *el.Lon, true
	}
	if el.Center != nil {
		return el.Center.Lat, el.Center.Lon, true
	}
	return 0, 0, false
}

func classifyDensity(density float64) string {
	switch {
	case !spatial.Finite(density):
		return "unknown"
	case density < 200.0:
		return "rural"
	case density < 1000.0:
		return "suburban"
	case density < 2500.0:
		return "urban"
	default:
		return "dense"
	}
}

// distanceToRouteMeters returns the minimum distance from a point to the
// polyline formed by points, using an equirectangular projection centered
// on the test point (adequate at the corridor scales involved here).
func distanceToRouteMeters(hazardLat, hazardLon float64, points []RoutePoint) float64 {
	if len(points) == 0 {
		return math.Inf(1)
	}

	refLatRad := hazardLat * math.Pi / 180.0
	metersPerDegLat := 111320.0
	metersPerDegLon := 111320.0 * math.Cos(refLatRad)

	toXY := func(p RoutePoint) (x, y float64) {
		return (p.Lon - hazardLon) * metersPerDegLon, (p.Lat - hazardLat) * metersPerDegLat
	}

	min := math.Inf(1)
	for _, p := range points {
		x, y := toXY(p)
		if d := math.Hypot(x, y); d < min {
			min = d
		}
	}

	for i := 1; i < len(points); i++ {
		ax, ay := toXY(points[i-1])
		bx, by := toXY(points[i])
		dx, dy := bx-ax, by-ay
		lenSq := dx*dx + dy*dy
		if lenSq == 0 {
			continue
		}
		t := -(ax*dx + ay*dy) / lenSq
		t = math.Max(0, math.Min(1, t))
		cx, cy := ax+t*dx, ay+t*dy
		if d := math.Hypot(cx, cy); d < min {
			min = d
		}
	}

	return min
}

// defaultHazards returns the charted baseline hazards present even when the
// upstream obstacle provider has nothing new to report for the area.
func defaultHazards() []ObstacleHazard {
	return []ObstacleHazard{
		{ID: "tower-1", Name: "Campus Tower", Lat: 33.6459, Lon: -117.8422, RadiusM: 80.0, Type: "tower", Source: "static"},
		{ID: "power-1", Name: "Power Corridor", Lat: 33.6835, Lon: -117.8302, RadiusM: 120.0, Type: "power", Source: "static"},
		{ID: "hospital-1", Name: "Helipad Zone", Lat: 33.6431, Lon: -117.8455, RadiusM: 150.0, Type: "helipad", Source: "static"},
		{ID: "stadium-1", Name: "Stadium Complex", Lat: 33.6505, Lon: -117.8372, RadiusM: 180.0, Type: "stadium", Source: "static"},
	}
}
