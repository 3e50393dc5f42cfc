// Package services provides business logic services for the API.
package services

import (
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/asgard/atc/internal/platform/db"
	"github.com/asgard/atc/internal/repositories"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrOperatorNotFound   = errors.New("operator not found")
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrDroneTokenInvalid  = errors.New("drone token invalid or expired")
)

// isDevelopmentMode returns true if ATC_ENV is set to "development".
// In development mode, certain security fallbacks are allowed.
func isDevelopmentMode() bool {
	return os.Getenv("ATC_ENV") == "development"
}

// AuthService handles operator authentication and drone session credentials.
type AuthService struct {
	operatorRepo *repositories.OperatorRepository
	droneRepo    *repositories.DroneRepository
	jwtSecret    []byte
	tokenExpiry  time.Duration
	droneTokenTTL time.Duration
}

// TokenClaims represents validated operator JWT claims.
type TokenClaims struct {
	OperatorID string
	TokenID    string
	Role       string
}

// NewAuthService creates a new authentication service.
// In production (ATC_ENV != "development"), ATC_JWT_SECRET must be set and >= 32 bytes.
func NewAuthService(operatorRepo *repositories.OperatorRepository, droneRepo *repositories.DroneRepository) *AuthService {
	secret := []byte(os.Getenv("ATC_JWT_SECRET"))
	if len(secret) < 32 {
		if isDevelopmentMode() {
			secret = []byte("atc_dev_jwt_secret_not_for_production_use!!")
		} else {
			panic("FATAL: ATC_JWT_SECRET environment variable must be set and at least 32 bytes in production")
		}
	}

	return &AuthService{
		operatorRepo:  operatorRepo,
		droneRepo:     droneRepo,
		jwtSecret:     secret,
		tokenExpiry:   24 * time.Hour,
		droneTokenTTL: 90 * 24 * time.Hour,
	}
}

// SignIn authenticates an operator and returns a JWT token.
func (s *AuthService) SignIn(email, password string) (*db.Operator, string, error) {
	op, err := s.operatorRepo.GetByEmail(email)
	if err != nil {
		return nil, "", ErrInvalidCredentials
	}

	if !s.verifyPassword(op.PasswordHash, password) {
		return nil, "", ErrInvalidCredentials
	}

	now := time.Now()
	op.LastLogin = sql.NullTime{Time: now, Valid: true}
	if err := s.operatorRepo.Update(op); err != nil {
		return nil, "", fmt.Errorf("failed to update last login: %w", err)
	}

	token, _, err := s.generateToken(op)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	return op, token, nil
}

// SignUp creates a new operator account.
func (s *AuthService) SignUp(email, password, displayName string) (*db.Operator, string, error) {
	_, err := s.operatorRepo.GetByEmail(email)
	if err == nil {
		return nil, "", ErrEmailExists
	}

	passwordHash, err := s.hashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	op := &db.Operator{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  sql.NullString{String: displayName, Valid: displayName != ""},
		Role:         "operator",
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := s.operatorRepo.Create(op); err != nil {
		return nil, "", fmt.Errorf("failed to create operator: %w", err)
	}

	token, _, err := s.generateToken(op)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	return op, token, nil
}

// ValidateToken validates an operator JWT and returns its claims.
func (s *AuthService) ValidateToken(tokenString string) (TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		return TokenClaims{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return TokenClaims{}, ErrInvalidToken
	}

	operatorID, _ := claims["operator_id"].(string)
	tokenID, _ := claims["jti"].(string)
	role, _ := claims["role"].(string)

	if operatorID == "" {
		return TokenClaims{}, ErrInvalidToken
	}

	return TokenClaims{OperatorID: operatorID, TokenID: tokenID, Role: role}, nil
}

// RegisterDrone issues a fresh session token for a newly registered drone.
func (s *AuthService) RegisterDrone(droneID string) (string, error) {
	token := uuid.New().String()
	if err := s.droneRepo.IssueToken(droneID, token, s.droneTokenTTL); err != nil {
		return "", fmt.Errorf("failed to issue drone token: %w", err)
	}
	return token, nil
}

// ValidateDroneToken resolves a drone session token to its owning drone ID.
func (s *AuthService) ValidateDroneToken(token string) (string, error) {
	droneID, err := s.droneRepo.VerifyToken(token)
	if err != nil {
		return "", ErrDroneTokenInvalid
	}
	return droneID, nil
}

// hashPassword hashes a password using Argon2id.
func (s *AuthService) hashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s", argon2.Version, 64*1024, 1, 4, b64Salt, b64Hash), nil
}

// verifyPassword verifies a password against a hash.
// Only properly hashed Argon2id passwords are accepted.
func (s *AuthService) verifyPassword(hash, password string) bool {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 {
		return false
	}
	if parts[1] != "argon2id" {
		return false
	}
	if !strings.HasPrefix(parts[2], "v=") {
		return false
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || version != argon2.Version {
		return false
	}

	var memory, timeCost, parallelism uint32
	for _, param := range strings.Split(parts[3], ",") {
		kv := strings.SplitN(param, "=", 2)
		if len(kv) != 2 {
			return false
		}
		value, err := strconv.Atoi(kv[1])
		if err != nil {
			return false
		}
		switch kv[0] {
		case "m":
			memory = uint32(value)
		case "t":
			timeCost = uint32(value)
		case "p":
			parallelism = uint32(value)
		}
	}
	if memory == 0 || timeCost == 0 || parallelism == 0 {
		return false
	}

	decodedSalt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}

	decodedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), decodedSalt, timeCost, memory, uint8(parallelism), uint32(len(decodedHash)))
	return subtle.ConstantTimeCompare(decodedHash, computedHash) == 1
}

// generateToken generates a JWT token for an operator.
func (s *AuthService) generateToken(op *db.Operator) (string, string, error) {
	tokenID := uuid.New().String()
	claims := jwt.MapClaims{
		"operator_id": op.ID.String(),
		"jti":         tokenID,
		"role":        op.Role,
		"exp":         time.Now().Add(s.tokenExpiry).Unix(),
		"iat":         time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", "", err
	}
	return signed, tokenID, nil
}
