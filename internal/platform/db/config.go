package db

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ErrMissingPassword is returned when required password environment variables are not set.
var ErrMissingPassword = errors.New("required password environment variable not set")

// Config holds storage and messaging connection settings.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	NATSHost string
	NATSPort string
}

// isDevelopmentMode returns true if ATC_ENV is set to "development".
func isDevelopmentMode() bool {
	return os.Getenv("ATC_ENV") == "development"
}

// LoadConfig loads storage configuration from environment variables.
// In production mode, POSTGRES_PASSWORD is required and its absence is an
// error. In development mode, a default value is used instead.
func LoadConfig() (*Config, error) {
	isDev := isDevelopmentMode()

	postgresPassword := os.Getenv("POSTGRES_PASSWORD")
	if !isDev {
		if postgresPassword == "" {
			return nil, fmt.Errorf("%w: POSTGRES_PASSWORD (set ATC_ENV=development to use a default)", ErrMissingPassword)
		}
	} else if postgresPassword == "" {
		postgresPassword = "dev_postgres_password"
		fmt.Println("[CONFIG] WARNING: Using default POSTGRES_PASSWORD for development")
	}

	cfg := &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "atc"),
		PostgresPassword: postgresPassword,
		PostgresDB:       getEnv("POSTGRES_DB", "atc"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		NATSHost: getEnv("NATS_HOST", "localhost"),
		NATSPort: getEnv("NATS_PORT", "4222"),
	}

	return cfg, nil
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresUser,
		c.PostgresPassword,
		c.PostgresDB,
		c.PostgresSSLMode,
	)
}

func (c *Config) NATSURI() string {
	return fmt.Sprintf("nats://%s:%s", c.NATSHost, c.NATSPort)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// ServiceConfig holds the ATC-specific tunables that sit alongside the
// storage Config: separation thresholds, routing defaults, backoff
// parameters, and upstream provider endpoints.
type ServiceConfig struct {
	HorizontalSeparationM float64
	VerticalSeparationM   float64
	LookaheadSecs         float64

	DefaultLaneRadiusM  float64
	DefaultGridSpacingM float64

	BackoffBaseMs int
	BackoffCapSecs int
	BackoffJitter  float64

	BlenderBaseURL  string
	BlenderTimeout  time.Duration
	TerrainProviderURL string
	ObstacleProviderURL string
	ProviderTimeout time.Duration

	// RegistrationToken, when non-empty, must be presented in the
	// X-Registration-Token header on POST /v1/drones/register. Empty
	// disables the check (open registration).
	RegistrationToken string
}

// LoadServiceConfig reads ATC-specific tunables from the environment,
// falling back to the defaults used throughout internal/atc when unset.
func LoadServiceConfig() ServiceConfig {
	return ServiceConfig{
		HorizontalSeparationM: getEnvFloat("ATC_HORIZONTAL_SEPARATION_M", 50.0),
		VerticalSeparationM:   getEnvFloat("ATC_VERTICAL_SEPARATION_M", 15.0),
		LookaheadSecs:         getEnvFloat("ATC_LOOKAHEAD_SECS", 30.0),

		DefaultLaneRadiusM:  getEnvFloat("ATC_LANE_RADIUS_M", 25.0),
		DefaultGridSpacingM: getEnvFloat("ATC_GRID_SPACING_M", 20.0),

		BackoffBaseMs:  int(getEnvDuration("ATC_BACKOFF_BASE_MS", 100*time.Millisecond).Milliseconds()),
		BackoffCapSecs: int(getEnvDuration("ATC_BACKOFF_CAP_SECS", 30*time.Second).Seconds()),
		BackoffJitter:  getEnvFloat("ATC_BACKOFF_JITTER", 0.2),

		BlenderBaseURL:      getEnv("ATC_BLENDER_URL", "https://utm.example.invalid"),
		BlenderTimeout:      getEnvDuration("ATC_BLENDER_TIMEOUT_SECS", 10*time.Second),
		TerrainProviderURL:  getEnv("ATC_TERRAIN_URL", ""),
		ObstacleProviderURL: getEnv("ATC_OBSTACLE_URL", ""),
		ProviderTimeout:     getEnvDuration("ATC_PROVIDER_TIMEOUT_SECS", 15*time.Second),

		RegistrationToken: getEnv("ATC_REGISTRATION_TOKEN", ""),
	}
}
