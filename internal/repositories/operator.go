// Package repositories provides data access layer for database operations.
package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/asgard/atc/internal/platform/db"
	"github.com/google/uuid"
)

// OperatorRepository handles operator account database operations.
type OperatorRepository struct {
	db *db.PostgresDB
}

// NewOperatorRepository creates a new operator repository.
func NewOperatorRepository(pgDB *db.PostgresDB) *OperatorRepository {
	return &OperatorRepository{db: pgDB}
}

// GetByID retrieves an operator by ID.
func (r *OperatorRepository) GetByID(id string) (*db.Operator, error) {
	operatorID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid operator ID: %w", err)
	}

	query := `
		SELECT id, email, password_hash, display_name, role, created_at, updated_at, last_login
		FROM operators
		WHERE id = $1
	`

	op := &db.Operator{}
	err = r.db.QueryRow(query, operatorID).Scan(
		&op.ID,
		&op.Email,
		&op.PasswordHash,
		&op.DisplayName,
		&op.Role,
		&op.CreatedAt,
		&op.UpdatedAt,
		&op.LastLogin,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("operator not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query operator: %w", err)
	}

	return op, nil
}

// GetByEmail retrieves an operator by email.
func (r *OperatorRepository) GetByEmail(email string) (*db.Operator, error) {
	query := `
		SELECT id, email, password_hash, display_name, role, created_at, updated_at, last_login
		FROM operators
		WHERE email = $1
	`

	op := &db.Operator{}
	err := r.db.QueryRow(query, email).Scan(
		&op.ID,
		&op.Email,
		&op.PasswordHash,
		&op.DisplayName,
		&op.Role,
		&op.CreatedAt,
		&op.UpdatedAt,
		&op.LastLogin,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("operator not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query operator: %w", err)
	}

	return op, nil
}

// Create creates a new operator account.
func (r *OperatorRepository) Create(op *db.Operator) error {
	query := `
		INSERT INTO operators (id, email, password_hash, display_name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(query,
		op.ID,
		op.Email,
		op.PasswordHash,
		op.DisplayName,
		op.Role,
		op.CreatedAt,
		op.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create operator: %w", err)
	}

	return nil
}

// Update updates an existing operator.
func (r *OperatorRepository) Update(op *db.Operator) error {
	query := `
		UPDATE operators
		SET email = $2, password_hash = $3, display_name = $4, role = $5,
		    updated_at = $6, last_login = $7
		WHERE id = $1
	`

	_, err := r.db.Exec(query,
		op.ID,
		op.Email,
		op.PasswordHash,
		op.DisplayName,
		op.Role,
		time.Now(),
		op.LastLogin,
	)
	if err != nil {
		return fmt.Errorf("failed to update operator: %w", err)
	}

	return nil
}

// ListOperators returns recent operator accounts for admin views.
func (r *OperatorRepository) ListOperators(limit int) ([]*db.Operator, error) {
	if limit <= 0 || limit > 200 {
		limit = 200
	}

	query := `
		SELECT id, email, password_hash, display_name, role, created_at, updated_at, last_login
		FROM operators
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query operators: %w", err)
	}
	defer rows.Close()

	operators := make([]*db.Operator, 0, limit)
	for rows.Next() {
		op := &db.Operator{}
		if err := rows.Scan(
			&op.ID,
			&op.Email,
			&op.PasswordHash,
			&op.DisplayName,
			&op.Role,
			&op.CreatedAt,
			&op.UpdatedAt,
			&op.LastLogin,
		); err != nil {
			return nil, fmt.Errorf("failed to scan operator: %w", err)
		}
		operators = append(operators, op)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate operators: %w", err)
	}

	return operators, nil
}
