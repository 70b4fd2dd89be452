package spoofing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geosnap-service/internal/model"
)

func floatPtr(v float64) *float64 {
	return &v
}

func cleanSample() model.LocationSample {
	return model.LocationSample{
		Latitude:  40.7128,
		Longitude: -74.0061,
		Accuracy:  50,
		Altitude:  floatPtr(10),
		Timestamp: 1700000000000,
	}
}

func TestAnalyzeCleanSample(t *testing.T) {
	verdict := Analyze(cleanSample(), nil, true)

	assert.False(t, verdict.IsSuspicious)
	assert.Empty(t, verdict.Reasons)
	assert.Equal(t, model.ConfidenceLow, verdict.Confidence)
}

func TestAnalyzeIsPure(t *testing.T) {
	sample := cleanSample()
	sample.Accuracy = 1
	history := []model.LocationSample{
		{Latitude: 0, Longitude: 0, Timestamp: 0},
		{Latitude: 10, Longitude: 10, Timestamp: 1000},
	}

	first := Analyze(sample, history, true)
	second := Analyze(sample, history, true)

	assert.Equal(t, first, second)
}

func TestAnalyzeHighAccuracyMissingAltitudeRoundCoords(t *testing.T) {
	sample := model.LocationSample{
		Latitude:  37.4,
		Longitude: -122.08,
		Accuracy:  1,
		Altitude:  nil,
		Timestamp: 1700000000000,
	}

	verdict := Analyze(sample, nil, true)

	require.True(t, verdict.IsSuspicious)
	assert.Equal(t, []string{
		ReasonHighAccuracy,
		ReasonMissingAltitude,
		ReasonRoundCoords,
	}, verdict.Reasons)
	assert.Equal(t, model.ConfidenceHigh, verdict.Confidence)
}

func TestAnalyzeMissingAltitudeDesktopIgnored(t *testing.T) {
	sample := cleanSample()
	sample.Altitude = nil

	verdict := Analyze(sample, nil, false)

	assert.False(t, verdict.IsSuspicious)
}

func TestAnalyzeImpossibleSpeed(t *testing.T) {
	history := []model.LocationSample{
		{Latitude: 0, Longitude: 0, Timestamp: 0},
		{Latitude: 10, Longitude: 10, Timestamp: 1000},
	}

	verdict := Analyze(cleanSample(), history, true)

	require.True(t, verdict.IsSuspicious)
	assert.Equal(t, []string{ReasonImpossibleSpeed}, verdict.Reasons)
	assert.Equal(t, model.ConfidenceMedium, verdict.Confidence)
}

func TestAnalyzeZeroTimeDelta(t *testing.T) {
	moved := []model.LocationSample{
		{Latitude: 0, Longitude: 0, Timestamp: 5000},
		{Latitude: 10, Longitude: 10, Timestamp: 5000},
	}
	verdict := Analyze(cleanSample(), moved, true)
	assert.Contains(t, verdict.Reasons, ReasonImpossibleSpeed)

	// Same fix reported twice with the same timestamp is not movement.
	stationary := []model.LocationSample{
		{Latitude: 10, Longitude: 10, Timestamp: 5000},
		{Latitude: 10, Longitude: 10, Timestamp: 5000},
	}
	verdict = Analyze(cleanSample(), stationary, true)
	assert.NotContains(t, verdict.Reasons, ReasonImpossibleSpeed)
}

func TestAnalyzeSingleHistoryEntrySkipsSpeedCheck(t *testing.T) {
	history := []model.LocationSample{
		{Latitude: 10, Longitude: 10, Timestamp: 0},
	}

	verdict := Analyze(cleanSample(), history, true)

	assert.NotContains(t, verdict.Reasons, ReasonImpossibleSpeed)
}

func TestAnalyzeKnownTestLocations(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		flagged  bool
	}{
		{"null island", 0, 0, true},
		{"reference coordinate exact", 37.422, -122.084, true},
		{"reference coordinate nearby", 37.4225, -122.0845, true},
		{"outside tolerance", 37.4231, -122.0851, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sample := cleanSample()
			sample.Latitude = tt.lat
			sample.Longitude = tt.lon

			verdict := Analyze(sample, nil, true)

			if tt.flagged {
				assert.Contains(t, verdict.Reasons, ReasonTestLocation)
			} else {
				assert.NotContains(t, verdict.Reasons, ReasonTestLocation)
			}
		})
	}
}

func TestAnalyzeChecksNeverShortCircuit(t *testing.T) {
	sample := model.LocationSample{
		Latitude:  0,
		Longitude: 0,
		Accuracy:  1,
		Altitude:  nil,
		Timestamp: 2000,
	}
	history := []model.LocationSample{
		{Latitude: 0, Longitude: 0, Timestamp: 0},
		{Latitude: 10, Longitude: 10, Timestamp: 1000},
	}

	verdict := Analyze(sample, history, true)

	assert.Equal(t, []string{
		ReasonHighAccuracy,
		ReasonMissingAltitude,
		ReasonImpossibleSpeed,
		ReasonRoundCoords,
		ReasonTestLocation,
	}, verdict.Reasons)
	assert.Equal(t, model.ConfidenceHigh, verdict.Confidence)
}

func TestHaversine(t *testing.T) {
	// Roughly 1,568 km between (0,0) and (10,10).
	distance := Haversine(0, 0, 10, 10)
	assert.InDelta(t, 1568500, distance, 5000)

	assert.Zero(t, Haversine(51.5, -0.12, 51.5, -0.12))
}

func TestDecimalDigits(t *testing.T) {
	assert.Equal(t, 1, decimalDigits(37.4))
	assert.Equal(t, 2, decimalDigits(-122.08))
	assert.Equal(t, 4, decimalDigits(40.7128))
	assert.Equal(t, 0, decimalDigits(42))
}
