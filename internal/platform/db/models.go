package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Operator represents an authenticated human or system account that owns
// drones and submits flight plans.
type Operator struct {
	ID            uuid.UUID      `db:"id"`
	Email         string         `db:"email"`
	PasswordHash  string         `db:"password_hash"`
	DisplayName   sql.NullString `db:"display_name"`
	Role          string         `db:"role"` // "operator" or "admin"
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
	LastLogin     sql.NullTime   `db:"last_login"`
}

// DroneRow is the persisted row for a registered drone.
type DroneRow struct {
	DroneID    string    `db:"drone_id"`
	OwnerID    uuid.UUID `db:"owner_id"`
	Lat        float64   `db:"lat"`
	Lon        float64   `db:"lon"`
	AltitudeM  float64   `db:"altitude_m"`
	VX         float64   `db:"vx"`
	VY         float64   `db:"vy"`
	VZ         float64   `db:"vz"`
	HeadingDeg float64   `db:"heading_deg"`
	SpeedMps   float64   `db:"speed_mps"`
	Status     string    `db:"status"`
	LastUpdate time.Time `db:"last_update"`
	CreatedAt  time.Time `db:"created_at"`
}

// DroneToken is a session credential issued at drone registration, checked
// on every telemetry submission.
type DroneToken struct {
	TokenHash string    `db:"token_hash"`
	DroneID   string    `db:"drone_id"`
	IssuedAt  time.Time `db:"issued_at"`
	ExpiresAt time.Time `db:"expires_at"`
	RevokedAt sql.NullTime `db:"revoked_at"`
}

// FlightPlanRow is the persisted row for a flight plan; Waypoints,
// TrajectoryLog, and Metadata are stored as JSON columns.
type FlightPlanRow struct {
	FlightID       string         `db:"flight_id"`
	DroneID        string         `db:"drone_id"`
	OwnerID        uuid.UUID      `db:"owner_id"`
	Waypoints      []byte         `db:"waypoints"`      // JSON
	TrajectoryLog  []byte         `db:"trajectory_log"` // JSON
	Status         string         `db:"status"`
	DepartureTime  time.Time      `db:"departure_time"`
	ArrivalTime    sql.NullTime   `db:"arrival_time"`
	CreatedAt      time.Time      `db:"created_at"`
	ReservedUntil  sql.NullTime   `db:"reserved_until"`
	Metadata       []byte         `db:"metadata"` // JSON
}

// CommandRow is the persisted row for an issued command; CommandType stores
// the tagged union discriminator (HOLD/RESUME/REROUTE/ALTITUDE_CHANGE) plus
// its payload as JSON.
type CommandRow struct {
	CommandID       string       `db:"command_id"`
	DroneID         string       `db:"drone_id"`
	CommandType     []byte       `db:"command_type"` // JSON
	Reason          sql.NullString `db:"reason"`
	IssuedAt        time.Time    `db:"issued_at"`
	ExpiresAt       sql.NullTime `db:"expires_at"`
	Acknowledged    bool         `db:"acknowledged"`
	AckedAt         sql.NullTime `db:"acked_at"`
}

// GeofenceRow is the persisted row for a geofence polygon.
type GeofenceRow struct {
	ID             string    `db:"id"`
	Name           string    `db:"name"`
	Type           string    `db:"type"`
	Vertices       []byte    `db:"vertices"` // JSON array of {lat, lon}
	LowerAltitudeM float64   `db:"lower_altitude_m"`
	UpperAltitudeM float64   `db:"upper_altitude_m"`
	Active         bool      `db:"active"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// GeofenceSyncState tracks the upstream fingerprint last reconciled for a
// geofence, so the sync loop can detect additions, updates, and removals.
type GeofenceSyncState struct {
	GeofenceID  string    `db:"geofence_id"`
	Fingerprint string    `db:"fingerprint"`
	SyncedAt    time.Time `db:"synced_at"`
}

// AuditLog records administrative and lifecycle actions for post-incident
// review (command issuance/ack, plan rejection, admin reset).
type AuditLog struct {
	ID        int64          `db:"id"`
	Component string         `db:"component"`
	Action    string         `db:"action"`
	ActorID   sql.NullString `db:"actor_id"`
	Metadata  []byte         `db:"metadata"` // JSONB
	CreatedAt time.Time      `db:"created_at"`
}
