// Package blender is the HTTP client for the upstream UTM service. It
// mirrors local drone state outward and pulls conformance status, Remote ID
// traffic, and geofences from the same endpoint, supplying the function
// seams internal/atc/loops declares for each.
package blender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/asgard/atc/internal/platform/observability"
)

// Client talks to the upstream UTM observation/conformance/geofence API
// under a single base URL and session. Every call generates a fresh
// short-lived token: the upstream accepts any well-formed bearer token in
// bypass-auth deployments, so there is nothing to cache or refresh.
type Client struct {
	httpClient *http.Client
	baseURL    string
	sessionID  string
	issuer     string
}

// Config is the subset of db.ServiceConfig the client needs.
type Config struct {
	BaseURL   string
	SessionID string
	Timeout   time.Duration
}

// NewClient builds a client bound to one observation session.
func NewClient(cfg Config) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		sessionID:  cfg.SessionID,
		issuer:     "https://atc-server.local",
	}
}

// bearerToken mints a short-lived unsigned-trust token carrying the scopes
// upstream expects. It is not a credential: deployments that require real
// auth front this client with an OAuth-issuing reverse proxy.
func (c *Client) bearerToken() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   c.issuer,
		"sub":   "atc-server",
		"aud":   "flightblender",
		"scope": "flightblender.read flightblender.write",
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("atc-blender-bridge"))
	if err != nil {
		return "", fmt.Errorf("blender: mint token: %w", err)
	}
	return signed, nil
}

// do issues an HTTP request with a fresh bearer token, recording the call in
// the blender_requests_total/blender_request_duration_seconds metrics.
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	start := time.Now()
	operation := method + " " + path

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("blender: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("blender: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := c.bearerToken()
	if err != nil {
		observability.RecordBlenderRequest(operation, "error", time.Since(start))
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordBlenderRequest(operation, "error", time.Since(start))
		return nil, fmt.Errorf("blender: %s %s: %w", method, path, err)
	}

	result := "ok"
	if resp.StatusCode >= 400 {
		result = "rejected"
	}
	observability.RecordBlenderRequest(operation, result, time.Since(start))
	return resp, nil
}
