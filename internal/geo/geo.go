// Package geo provides reverse geocoding for report coordinates.
//
// The client speaks the Nominatim reverse API (OpenStreetMap). Geocoding is
// strictly best-effort: callers treat a failure as "no address" and carry on.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultBaseURL is the public Nominatim instance. Production deployments
// should point at a self-hosted instance to respect the usage policy.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// requestTimeout bounds a single geocoding call so a slow upstream never
// stalls a report submission.
const requestTimeout = 5 * time.Second

// Client is a reverse geocoding client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a reverse geocoding client. An empty baseURL selects the
// public Nominatim instance.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}
}

// nominatimResponse is the subset of the reverse API response we use.
type nominatimResponse struct {
	DisplayName string `json:"display_name"`
}

// ReverseGeocode resolves coordinates to a display address.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	query := url.Values{}
	query.Set("format", "jsonv2")
	query.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	query.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))

	endpoint := fmt.Sprintf("%s/reverse?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build geocoding request: %w", err)
	}
	// Nominatim's usage policy requires an identifying User-Agent.
	req.Header.Set("User-Agent", "beacon-emergency-reporting")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("geocoding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geocoding request: unexpected status %d", resp.StatusCode)
	}

	var body nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode geocoding response: %w", err)
	}

	if body.DisplayName == "" {
		return "", fmt.Errorf("geocoding response: no address for %f,%f", lat, lon)
	}

	c.logger.Debug("reverse geocoded", "lat", lat, "lon", lon, "address", body.DisplayName)

	return body.DisplayName, nil
}
