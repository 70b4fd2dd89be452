package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"geosnap-service/internal/config"
	"geosnap-service/internal/util"
)

// GeocodeClient resolves coordinates to a human readable address via a
// Nominatim-compatible reverse geocoding endpoint. Lookups are best-effort;
// callers swallow failures and omit the address.
type GeocodeClient struct {
	httpClient *http.Client
	config     *config.GeocoderConfig
}

func NewGeocodeClient(cfg *config.Config, logger *zap.Logger) *GeocodeClient {
	geoConfig := cfg.Geocoder

	util.Info("Reverse geocoder initialized",
		zap.String("base_url", geoConfig.BaseURL),
		zap.Bool("enabled", geoConfig.Enabled),
	)

	return &GeocodeClient{
		httpClient: &http.Client{Timeout: geoConfig.Timeout},
		config:     &geoConfig,
	}
}

type nominatimResponse struct {
	DisplayName string `json:"display_name"`
}

// ReverseGeocode returns the display name for a coordinate pair.
func (c *GeocodeClient) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	if !c.config.Enabled {
		return "", fmt.Errorf("reverse geocoding disabled")
	}

	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	query.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.config.BaseURL+"/reverse?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build geocode request: %w", err)
	}
	// Nominatim usage policy requires an identifying agent.
	req.Header.Set("User-Agent", "geosnap-service")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("reverse geocode failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reverse geocode failed: status %d", res.StatusCode)
	}

	var parsed nominatimResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode geocode response: %w", err)
	}
	if parsed.DisplayName == "" {
		return "", fmt.Errorf("no address for coordinates")
	}

	return parsed.DisplayName, nil
}
