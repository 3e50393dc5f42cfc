// Package handlers provides HTTP handlers for API endpoints.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/asgard/atc/internal/services"
	"github.com/asgard/atc/internal/utils"
)

// AuthHandler handles operator authentication endpoints.
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// SignIn handles POST /v1/auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(w, utils.ErrBadRequest)
		return
	}

	if !validateEmail(req.Email) {
		handleError(w, utils.NewAPIError("INVALID_EMAIL", "Invalid email address", http.StatusBadRequest))
		return
	}

	if !validatePassword(req.Password) {
		handleError(w, utils.NewAPIError("INVALID_PASSWORD", "Password must be at least 8 characters", http.StatusBadRequest))
		return
	}

	op, token, err := h.authService.SignIn(req.Email, req.Password)
	if err != nil {
		handleError(w, utils.WrapAPIError(err, "INVALID_CREDENTIALS", "Invalid email or password", http.StatusUnauthorized))
		return
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"operator": op,
		"token":    token,
	})
}

// SignUp handles POST /v1/auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(w, utils.ErrBadRequest)
		return
	}

	if !validateEmail(req.Email) {
		handleError(w, utils.NewAPIError("INVALID_EMAIL", "Invalid email address", http.StatusBadRequest))
		return
	}
	if !validatePassword(req.Password) {
		handleError(w, utils.NewAPIError("INVALID_PASSWORD", "Password must be at least 8 characters", http.StatusBadRequest))
		return
	}

	op, token, err := h.authService.SignUp(req.Email, req.Password, req.DisplayName)
	if err != nil {
		if err == services.ErrEmailExists {
			handleError(w, utils.NewAPIError("EMAIL_EXISTS", "Email already exists", http.StatusConflict))
			return
		}
		handleError(w, utils.WrapAPIError(err, "SIGNUP_FAILED", "Failed to create account", http.StatusBadRequest))
		return
	}

	jsonResponse(w, http.StatusCreated, map[string]interface{}{
		"operator": op,
		"token":    token,
	})
}

// RequireAuth is middleware that requires a valid operator JWT.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			handleError(w, utils.ErrUnauthorized)
			return
		}

		claims, err := h.authService.ValidateToken(token)
		if err != nil {
			handleError(w, utils.ErrUnauthorized)
			return
		}

		ctx := contextWithAuthClaims(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin is middleware that requires a valid operator JWT with the
// admin role.
func (h *AuthHandler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			handleError(w, utils.ErrUnauthorized)
			return
		}

		claims, err := h.authService.ValidateToken(token)
		if err != nil {
			handleError(w, utils.ErrUnauthorized)
			return
		}
		if claims.Role != "admin" {
			handleError(w, utils.ErrForbidden)
			return
		}

		ctx := contextWithAuthClaims(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireDroneAuth is middleware that requires a valid drone session token,
// issued at registration, on Authorization or the X-Drone-Token header.
func (h *AuthHandler) RequireDroneAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			token = r.Header.Get("X-Drone-Token")
		}
		if token == "" {
			handleError(w, utils.ErrUnauthorized)
			return
		}

		droneID, err := h.authService.ValidateDroneToken(token)
		if err != nil {
			handleError(w, utils.ErrUnauthorized)
			return
		}

		ctx := contextWithDroneID(r.Context(), droneID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth is middleware that attaches operator claims to the context
// when a valid token is present, but never rejects the request.
func (h *AuthHandler) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token != "" {
			if claims, err := h.authService.ValidateToken(token); err == nil {
				ctx := contextWithAuthClaims(r.Context(), claims)
				r = r.WithContext(ctx)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Helper functions

func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		return authHeader[7:]
	}
	return r.URL.Query().Get("token")
}
