// Package repositories provides data access layer for database operations.
package repositories

import (
	"database/sql"
	"fmt"

	"github.com/asgard/atc/internal/platform/db"
)

// CommandRepository handles issued-command database operations.
type CommandRepository struct {
	db *db.PostgresDB
}

// NewCommandRepository creates a new command repository.
func NewCommandRepository(pgDB *db.PostgresDB) *CommandRepository {
	return &CommandRepository{db: pgDB}
}

// Create persists a newly issued command.
func (r *CommandRepository) Create(cmd *db.CommandRow) error {
	query := `
		INSERT INTO commands (command_id, drone_id, command_type, reason, issued_at,
		                       expires_at, acknowledged, acked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(query,
		cmd.CommandID, cmd.DroneID, cmd.CommandType, cmd.Reason, cmd.IssuedAt,
		cmd.ExpiresAt, cmd.Acknowledged, cmd.AckedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create command: %w", err)
	}
	return nil
}

// GetByID retrieves a command by ID.
func (r *CommandRepository) GetByID(id string) (*db.CommandRow, error) {
	query := `
		SELECT command_id, drone_id, command_type, reason, issued_at, expires_at,
		       acknowledged, acked_at
		FROM commands
		WHERE command_id = $1
	`
	cmd := &db.CommandRow{}
	err := r.db.QueryRow(query, id).Scan(
		&cmd.CommandID, &cmd.DroneID, &cmd.CommandType, &cmd.Reason, &cmd.IssuedAt,
		&cmd.ExpiresAt, &cmd.Acknowledged, &cmd.AckedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("command not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query command: %w", err)
	}
	return cmd, nil
}

// ListPendingForDrone returns every unacknowledged, unexpired command for a drone.
func (r *CommandRepository) ListPendingForDrone(droneID string) ([]*db.CommandRow, error) {
	query := `
		SELECT command_id, drone_id, command_type, reason, issued_at, expires_at,
		       acknowledged, acked_at
		FROM commands
		WHERE drone_id = $1 AND acknowledged = false
		  AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY issued_at ASC
	`
	rows, err := r.db.Query(query, droneID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending commands: %w", err)
	}
	defer rows.Close()

	var cmds []*db.CommandRow
	for rows.Next() {
		cmd := &db.CommandRow{}
		if err := rows.Scan(
			&cmd.CommandID, &cmd.DroneID, &cmd.CommandType, &cmd.Reason, &cmd.IssuedAt,
			&cmd.ExpiresAt, &cmd.Acknowledged, &cmd.AckedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan command: %w", err)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

// Acknowledge marks a command as acknowledged by the drone that received it.
func (r *CommandRepository) Acknowledge(commandID string) error {
	result, err := r.db.Exec(`UPDATE commands SET acknowledged = true, acked_at = NOW() WHERE command_id = $1`, commandID)
	if err != nil {
		return fmt.Errorf("failed to acknowledge command: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("command not found")
	}
	return nil
}
