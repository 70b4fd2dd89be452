package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"geosnap-service/internal/model"
	"geosnap-service/internal/service"
	"geosnap-service/internal/spoofing"
)

func newLocationRouter(t *testing.T) http.Handler {
	t.Helper()
	locationService := service.NewLocationService(nil, nil, zap.NewNop())
	locationHandler := NewLocationHandler(locationService, zap.NewNop())
	authHandler := NewAuthHandler(nil, zap.NewNop())
	return NewRouter(authHandler, locationHandler, false, zap.NewNop())
}

func TestAnalyzeEndpointCleanSample(t *testing.T) {
	router := newLocationRouter(t)

	body := `{
		"sample": {"latitude": 40.7128, "longitude": -74.0061, "accuracy": 35, "altitude": 12.5, "timestamp": 1700000000000},
		"history": [],
		"platform_is_mobile": true
	}`
	rr := postJSON(t, router, "/api/v1/location/analyze", body)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Verdict model.SpoofingVerdict `json:"verdict"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.False(t, resp.Data.Verdict.IsSuspicious)
	assert.Equal(t, model.ConfidenceLow, resp.Data.Verdict.Confidence)
}

func TestAnalyzeEndpointEmulatorProfile(t *testing.T) {
	router := newLocationRouter(t)

	// Perfect accuracy, no altitude, coarse coordinates: the emulator shape.
	body := `{
		"sample": {"latitude": 37.4, "longitude": -122.08, "accuracy": 1, "altitude": null, "timestamp": 1700000000000},
		"history": [],
		"platform_is_mobile": true
	}`
	rr := postJSON(t, router, "/api/v1/location/analyze", body)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Data struct {
			Verdict model.SpoofingVerdict `json:"verdict"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Verdict.IsSuspicious)
	assert.Equal(t, model.ConfidenceHigh, resp.Data.Verdict.Confidence)
	assert.Contains(t, resp.Data.Verdict.Reasons, spoofing.ReasonHighAccuracy)
	assert.Contains(t, resp.Data.Verdict.Reasons, spoofing.ReasonMissingAltitude)
	assert.Contains(t, resp.Data.Verdict.Reasons, spoofing.ReasonRoundCoords)
}

func TestAnalyzeEndpointRejectsOutOfRangeCoordinates(t *testing.T) {
	router := newLocationRouter(t)

	body := `{"sample": {"latitude": 91.0, "longitude": 0.0, "accuracy": 10, "timestamp": 1}, "platform_is_mobile": true}`
	rr := postJSON(t, router, "/api/v1/location/analyze", body)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAnalyzeEndpointMalformedBody(t *testing.T) {
	router := newLocationRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/location/analyze", strings.NewReader(`{"sample":`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
