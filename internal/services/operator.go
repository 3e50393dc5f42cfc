// Package services provides business logic services for the API.
package services

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/asgard/atc/internal/platform/db"
	"github.com/asgard/atc/internal/repositories"
)

// OperatorService handles operator-account business logic.
type OperatorService struct {
	operatorRepo *repositories.OperatorRepository
}

// NewOperatorService creates a new operator service.
func NewOperatorService(operatorRepo *repositories.OperatorRepository) *OperatorService {
	return &OperatorService{operatorRepo: operatorRepo}
}

// GetProfile retrieves an operator's profile.
func (s *OperatorService) GetProfile(operatorID string) (*db.Operator, error) {
	op, err := s.operatorRepo.GetByID(operatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get operator: %w", err)
	}
	return op, nil
}

// UpdateProfile updates an operator's display name.
func (s *OperatorService) UpdateProfile(operatorID string, displayName string) (*db.Operator, error) {
	op, err := s.operatorRepo.GetByID(operatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get operator: %w", err)
	}

	name := strings.TrimSpace(displayName)
	op.DisplayName = sql.NullString{String: name, Valid: name != ""}

	if err := s.operatorRepo.Update(op); err != nil {
		return nil, fmt.Errorf("failed to update operator: %w", err)
	}

	return op, nil
}

// ListOperators returns recent operator accounts for admin dashboards.
func (s *OperatorService) ListOperators(limit int) ([]*db.Operator, error) {
	return s.operatorRepo.ListOperators(limit)
}

// SetRole updates an operator's access role for admin workflows.
func (s *OperatorService) SetRole(operatorID, role string) (*db.Operator, error) {
	op, err := s.operatorRepo.GetByID(operatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get operator: %w", err)
	}

	role = strings.ToLower(strings.TrimSpace(role))
	switch role {
	case "operator", "admin":
		op.Role = role
	default:
		return nil, fmt.Errorf("invalid role")
	}

	if err := s.operatorRepo.Update(op); err != nil {
		return nil, fmt.Errorf("failed to update operator: %w", err)
	}

	return op, nil
}
