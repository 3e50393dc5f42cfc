// Package repositories provides data access layer for database operations.
package repositories

import (
	"database/sql"
	"fmt"

	"github.com/asgard/atc/internal/platform/db"
	"github.com/google/uuid"
)

// FlightPlanRepository handles flight plan database operations.
type FlightPlanRepository struct {
	db *db.PostgresDB
}

// NewFlightPlanRepository creates a new flight plan repository.
func NewFlightPlanRepository(pgDB *db.PostgresDB) *FlightPlanRepository {
	return &FlightPlanRepository{db: pgDB}
}

// Create persists a newly admitted flight plan.
func (r *FlightPlanRepository) Create(plan *db.FlightPlanRow) error {
	query := `
		INSERT INTO flight_plans (flight_id, drone_id, owner_id, waypoints, trajectory_log,
		                          status, departure_time, arrival_time, created_at,
		                          reserved_until, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(query,
		plan.FlightID, plan.DroneID, plan.OwnerID, plan.Waypoints, plan.TrajectoryLog,
		plan.Status, plan.DepartureTime, plan.ArrivalTime, plan.CreatedAt,
		plan.ReservedUntil, plan.Metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to create flight plan: %w", err)
	}
	return nil
}

// GetByID retrieves a flight plan by ID.
func (r *FlightPlanRepository) GetByID(id string) (*db.FlightPlanRow, error) {
	query := `
		SELECT flight_id, drone_id, owner_id, waypoints, trajectory_log, status,
		       departure_time, arrival_time, created_at, reserved_until, metadata
		FROM flight_plans
		WHERE flight_id = $1
	`
	plan := &db.FlightPlanRow{}
	err := r.db.QueryRow(query, id).Scan(
		&plan.FlightID, &plan.DroneID, &plan.OwnerID, &plan.Waypoints, &plan.TrajectoryLog,
		&plan.Status, &plan.DepartureTime, &plan.ArrivalTime, &plan.CreatedAt,
		&plan.ReservedUntil, &plan.Metadata,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("flight plan not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query flight plan: %w", err)
	}
	return plan, nil
}

// ListByOwner returns every flight plan submitted by an operator.
func (r *FlightPlanRepository) ListByOwner(ownerID uuid.UUID) ([]*db.FlightPlanRow, error) {
	query := `
		SELECT flight_id, drone_id, owner_id, waypoints, trajectory_log, status,
		       departure_time, arrival_time, created_at, reserved_until, metadata
		FROM flight_plans
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query flight plans: %w", err)
	}
	defer rows.Close()
	return scanFlightPlans(rows)
}

// ListActive returns every flight plan in Approved or Active status, used to
// rehydrate the mission loop and conflict detector on startup.
func (r *FlightPlanRepository) ListActive() ([]*db.FlightPlanRow, error) {
	query := `
		SELECT flight_id, drone_id, owner_id, waypoints, trajectory_log, status,
		       departure_time, arrival_time, created_at, reserved_until, metadata
		FROM flight_plans
		WHERE status IN ('Approved', 'Active')
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active flight plans: %w", err)
	}
	defer rows.Close()
	return scanFlightPlans(rows)
}

func scanFlightPlans(rows *sql.Rows) ([]*db.FlightPlanRow, error) {
	var plans []*db.FlightPlanRow
	for rows.Next() {
		plan := &db.FlightPlanRow{}
		if err := rows.Scan(
			&plan.FlightID, &plan.DroneID, &plan.OwnerID, &plan.Waypoints, &plan.TrajectoryLog,
			&plan.Status, &plan.DepartureTime, &plan.ArrivalTime, &plan.CreatedAt,
			&plan.ReservedUntil, &plan.Metadata,
		); err != nil {
			return nil, fmt.Errorf("failed to scan flight plan: %w", err)
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

// UpdateStatus transitions a flight plan's status and, for terminal states,
// records the arrival time.
func (r *FlightPlanRepository) UpdateStatus(flightID, status string, arrivalTime sql.NullTime) error {
	query := `UPDATE flight_plans SET status = $2, arrival_time = $3 WHERE flight_id = $1`
	result, err := r.db.Exec(query, flightID, status, arrivalTime)
	if err != nil {
		return fmt.Errorf("failed to update flight plan status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("flight plan not found")
	}
	return nil
}

// AppendTrajectory overwrites the trajectory log with the accumulated JSON
// array maintained by the telemetry persistence loop.
func (r *FlightPlanRepository) AppendTrajectory(flightID string, trajectoryLog []byte) error {
	_, err := r.db.Exec(`UPDATE flight_plans SET trajectory_log = $2 WHERE flight_id = $1`, flightID, trajectoryLog)
	if err != nil {
		return fmt.Errorf("failed to append trajectory: %w", err)
	}
	return nil
}

// GetActiveCount returns the count of flight plans currently Active.
func (r *FlightPlanRepository) GetActiveCount() (int, error) {
	query := `SELECT COUNT(*) FROM flight_plans WHERE status = 'Active'`
	var count int
	if err := r.db.QueryRow(query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count flight plans: %w", err)
	}
	return count, nil
}
