package integration_test

import (
	"os"
	"testing"

	"github.com/asgard/atc/internal/services"
)

func setupAuthTest(t *testing.T) {
	t.Helper()
	os.Setenv("ATC_ENV", "development")
}

func TestAuthServiceCreation(t *testing.T) {
	setupAuthTest(t)

	authService := services.NewAuthService(nil, nil)

	if authService == nil {
		t.Fatal("auth service should not be nil")
	}
}

func TestAuthServiceJWTValidation(t *testing.T) {
	setupAuthTest(t)

	authService := services.NewAuthService(nil, nil)

	_, err := authService.ValidateToken("invalid.token.here")
	if err == nil {
		t.Error("expected error for invalid token")
	}

	_, err = authService.ValidateToken("")
	if err == nil {
		t.Error("expected error for empty token")
	}
}

func TestAuthServiceMalformedTokens(t *testing.T) {
	setupAuthTest(t)

	authService := services.NewAuthService(nil, nil)

	malformedTokens := []string{
		"not.a.jwt",
		"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9",          // missing parts
		"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..invalid", // invalid signature
		"random.string.here",
		"",
	}

	for _, token := range malformedTokens {
		_, err := authService.ValidateToken(token)
		if err == nil {
			t.Errorf("expected error for token: %q", token)
		}
	}
}
