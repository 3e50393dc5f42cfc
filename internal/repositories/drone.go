// Package repositories provides data access layer for database operations.
package repositories

import (
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/asgard/atc/internal/platform/db"
	"github.com/google/uuid"
)

// DroneRepository handles drone registration and state database operations.
type DroneRepository struct {
	db *db.PostgresDB
}

// NewDroneRepository creates a new drone repository.
func NewDroneRepository(pgDB *db.PostgresDB) *DroneRepository {
	return &DroneRepository{db: pgDB}
}

// Create registers a new drone.
func (r *DroneRepository) Create(drone *db.DroneRow) error {
	query := `
		INSERT INTO drones (drone_id, owner_id, lat, lon, altitude_m, vx, vy, vz,
		                     heading_deg, speed_mps, status, last_update, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.Exec(query,
		drone.DroneID, drone.OwnerID, drone.Lat, drone.Lon, drone.AltitudeM,
		drone.VX, drone.VY, drone.VZ, drone.HeadingDeg, drone.SpeedMps,
		drone.Status, drone.LastUpdate, drone.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create drone: %w", err)
	}
	return nil
}

// GetByID retrieves a drone by its ID.
func (r *DroneRepository) GetByID(droneID string) (*db.DroneRow, error) {
	query := `
		SELECT drone_id, owner_id, lat, lon, altitude_m, vx, vy, vz,
		       heading_deg, speed_mps, status, last_update, created_at
		FROM drones
		WHERE drone_id = $1
	`
	drone := &db.DroneRow{}
	err := r.db.QueryRow(query, droneID).Scan(
		&drone.DroneID, &drone.OwnerID, &drone.Lat, &drone.Lon, &drone.AltitudeM,
		&drone.VX, &drone.VY, &drone.VZ, &drone.HeadingDeg, &drone.SpeedMps,
		&drone.Status, &drone.LastUpdate, &drone.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("drone not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query drone: %w", err)
	}
	return drone, nil
}

// ListByOwner returns every drone registered to an operator.
func (r *DroneRepository) ListByOwner(ownerID uuid.UUID) ([]*db.DroneRow, error) {
	query := `
		SELECT drone_id, owner_id, lat, lon, altitude_m, vx, vy, vz,
		       heading_deg, speed_mps, status, last_update, created_at
		FROM drones
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query drones: %w", err)
	}
	defer rows.Close()

	var drones []*db.DroneRow
	for rows.Next() {
		drone := &db.DroneRow{}
		if err := rows.Scan(
			&drone.DroneID, &drone.OwnerID, &drone.Lat, &drone.Lon, &drone.AltitudeM,
			&drone.VX, &drone.VY, &drone.VZ, &drone.HeadingDeg, &drone.SpeedMps,
			&drone.Status, &drone.LastUpdate, &drone.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan drone: %w", err)
		}
		drones = append(drones, drone)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate drones: %w", err)
	}
	return drones, nil
}

// ListActive returns every drone not in the Inactive/Lost state, used to seed
// the in-memory world store on startup.
func (r *DroneRepository) ListActive() ([]*db.DroneRow, error) {
	query := `
		SELECT drone_id, owner_id, lat, lon, altitude_m, vx, vy, vz,
		       heading_deg, speed_mps, status, last_update, created_at
		FROM drones
		WHERE status NOT IN ('Inactive', 'Lost')
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active drones: %w", err)
	}
	defer rows.Close()

	var drones []*db.DroneRow
	for rows.Next() {
		drone := &db.DroneRow{}
		if err := rows.Scan(
			&drone.DroneID, &drone.OwnerID, &drone.Lat, &drone.Lon, &drone.AltitudeM,
			&drone.VX, &drone.VY, &drone.VZ, &drone.HeadingDeg, &drone.SpeedMps,
			&drone.Status, &drone.LastUpdate, &drone.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan drone: %w", err)
		}
		drones = append(drones, drone)
	}
	return drones, rows.Err()
}

// UpdateTelemetry persists the latest reported state for a drone.
func (r *DroneRepository) UpdateTelemetry(drone *db.DroneRow) error {
	query := `
		UPDATE drones
		SET lat = $2, lon = $3, altitude_m = $4, vx = $5, vy = $6, vz = $7,
		    heading_deg = $8, speed_mps = $9, status = $10, last_update = $11
		WHERE drone_id = $1
	`
	result, err := r.db.Exec(query,
		drone.DroneID, drone.Lat, drone.Lon, drone.AltitudeM,
		drone.VX, drone.VY, drone.VZ, drone.HeadingDeg, drone.SpeedMps,
		drone.Status, drone.LastUpdate,
	)
	if err != nil {
		return fmt.Errorf("failed to update drone telemetry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("drone not found")
	}
	return nil
}

// SetStatus transitions a drone's lifecycle status without a full telemetry write.
func (r *DroneRepository) SetStatus(droneID, status string) error {
	query := `UPDATE drones SET status = $2, last_update = NOW() WHERE drone_id = $1`
	_, err := r.db.Exec(query, droneID, status)
	if err != nil {
		return fmt.Errorf("failed to set drone status: %w", err)
	}
	return nil
}

// IssueToken creates a new session token for a drone, hashing it before storage
// so the plaintext token exists only in the response returned at registration.
func (r *DroneRepository) IssueToken(droneID, token string, ttl time.Duration) error {
	hash := hashDroneToken(token)
	query := `
		INSERT INTO drone_tokens (token_hash, drone_id, issued_at, expires_at)
		VALUES ($1, $2, NOW(), $3)
	`
	_, err := r.db.Exec(query, hash, droneID, time.Now().Add(ttl))
	if err != nil {
		return fmt.Errorf("failed to issue drone token: %w", err)
	}
	return nil
}

// VerifyToken returns the owning drone ID for a live, unrevoked token.
func (r *DroneRepository) VerifyToken(token string) (string, error) {
	hash := hashDroneToken(token)
	query := `
		SELECT drone_id FROM drone_tokens
		WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > NOW()
	`
	var droneID string
	err := r.db.QueryRow(query, hash).Scan(&droneID)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("token invalid or expired")
	}
	if err != nil {
		return "", fmt.Errorf("failed to verify drone token: %w", err)
	}
	return droneID, nil
}

// RevokeToken marks a drone's session token as revoked.
func (r *DroneRepository) RevokeToken(token string) error {
	hash := hashDroneToken(token)
	_, err := r.db.Exec(`UPDATE drone_tokens SET revoked_at = NOW() WHERE token_hash = $1`, hash)
	if err != nil {
		return fmt.Errorf("failed to revoke drone token: %w", err)
	}
	return nil
}

func hashDroneToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawStdEncoding.EncodeToString(sum[:])
}
