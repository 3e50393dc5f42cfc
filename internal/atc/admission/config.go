package admission

import "time"

// Config holds the tunables a compliance evaluation reads from, modeled on
// ServiceConfig's compliance_* fields.
type Config struct {
	WeatherURL           string
	OverpassURL          string
	HTTPTimeout          time.Duration
	DefaultClearanceM    float64
	MaxWindMps           float64
	MaxGustMps           float64
	MaxPrecipMm          float64
	WindWarnRatio        float64
	BatteryWarnMarginMin float64
	PopulationWarn       float64
	PopulationBVLOSMax   float64
	PopulationAbsMax     float64
	PopulationPerBuilding float64
	MaxOverpassElements   int
	MaxObstaclesResponse  int
	GeofenceSampleSpacingM float64
}

// DefaultConfig returns the evaluator's default thresholds.
func DefaultConfig() Config {
	return Config{
		WeatherURL:            "https://api.open-meteo.com/v1/forecast",
		OverpassURL:           "https://overpass-api.de/api/interpreter",
		HTTPTimeout:           15 * time.Second,
		DefaultClearanceM:     50.0,
		MaxWindMps:            12.0,
		MaxGustMps:            18.0,
		MaxPrecipMm:           4.0,
		WindWarnRatio:         0.75,
		BatteryWarnMarginMin:  5.0,
		PopulationWarn:        1000.0,
		PopulationBVLOSMax:    2500.0,
		PopulationAbsMax:      5000.0,
		PopulationPerBuilding: 15.0,
		MaxOverpassElements:   500,
		MaxObstaclesResponse:  25,
		GeofenceSampleSpacingM: 25.0,
	}
}
