// Package nominatim implements geocoding against the OpenStreetMap Nominatim
// search API. Nominatim's usage policy requires an identifying User-Agent and
// a hard cap of one request per second; the throttling lives in the geocode
// wrapper, this client only issues single lookups.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/terror-data-ingest/internal/domain"
)

// Client implements geocode.Provider using the Nominatim search endpoint.
type Client struct {
	userAgent  string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Nominatim client identifying itself as userAgent.
func NewClient(userAgent string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		userAgent: userAgent,
		baseURL:   "https://nominatim.openstreetmap.org",
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Geocode resolves a free-text query to coordinates. A 200 response with no
// results is a definitive not-found; transport and server errors are
// returned for the caller to retry.
func (c *Client) Geocode(ctx context.Context, query string) (domain.Coordinates, bool, error) {
	params := url.Values{
		"q":      {query},
		"format": {"jsonv2"},
		"limit":  {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return domain.Coordinates{}, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Coordinates{}, false, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return domain.Coordinates{}, false, fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return domain.Coordinates{}, false, fmt.Errorf("decode response: %w", err)
	}

	if len(places) == 0 {
		return domain.Coordinates{}, false, nil
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return domain.Coordinates{}, false, fmt.Errorf("parse lat %q: %w", places[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return domain.Coordinates{}, false, fmt.Errorf("parse lon %q: %w", places[0].Lon, err)
	}

	return domain.Coordinates{Lat: lat, Lon: lon}, true, nil
}

// Nominatim API response type. Coordinates arrive as strings.

type place struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}
