package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"geosnap-service/internal/model"
	"geosnap-service/internal/spoofing"
)

type fakeGeocoder struct {
	address string
	err     error
	calls   int
}

func (g *fakeGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.address, nil
}

func cleanSample() model.LocationSample {
	altitude := 12.5
	return model.LocationSample{
		Latitude:  40.7128,
		Longitude: -74.0061,
		Accuracy:  35,
		Altitude:  &altitude,
		Timestamp: 1700000000000,
	}
}

func TestAnalyzeAttachesAddress(t *testing.T) {
	geo := &fakeGeocoder{address: "Broadway, New York, NY, USA"}
	svc := NewLocationService(geo, nil, zap.NewNop())

	sample, verdict := svc.Analyze(context.Background(), cleanSample(), nil, true)

	assert.Equal(t, "Broadway, New York, NY, USA", sample.Address)
	assert.Equal(t, 1, geo.calls)
	assert.False(t, verdict.IsSuspicious)
	assert.Empty(t, verdict.Reasons)
}

func TestAnalyzeGeocoderFailureStillScores(t *testing.T) {
	geo := &fakeGeocoder{err: errors.New("nominatim timeout")}
	svc := NewLocationService(geo, nil, zap.NewNop())

	sample := cleanSample()
	sample.Accuracy = 1
	sample.Altitude = nil

	enriched, verdict := svc.Analyze(context.Background(), sample, nil, true)

	assert.Empty(t, enriched.Address)
	require.True(t, verdict.IsSuspicious)
	assert.Contains(t, verdict.Reasons, spoofing.ReasonHighAccuracy)
	assert.Contains(t, verdict.Reasons, spoofing.ReasonMissingAltitude)
}

func TestAnalyzeTrimsOversizedHistory(t *testing.T) {
	svc := NewLocationService(nil, nil, zap.NewNop())

	history := make([]model.LocationSample, 0, 15)
	for i := 0; i < 13; i++ {
		history = append(history, model.LocationSample{Latitude: 40.7128, Longitude: -74.0061, Timestamp: int64(i)})
	}
	// The two newest entries imply a 1568 km jump in one second.
	history = append(history,
		model.LocationSample{Latitude: 0, Longitude: 0, Timestamp: 100000},
		model.LocationSample{Latitude: 10, Longitude: 10, Timestamp: 101000},
	)

	_, verdict := svc.Analyze(context.Background(), cleanSample(), history, true)

	require.True(t, verdict.IsSuspicious)
	assert.Contains(t, verdict.Reasons, spoofing.ReasonImpossibleSpeed)
}

func TestAnalyzeWithoutGeocoder(t *testing.T) {
	svc := NewLocationService(nil, nil, zap.NewNop())

	sample, verdict := svc.Analyze(context.Background(), cleanSample(), nil, true)

	assert.Empty(t, sample.Address)
	assert.False(t, verdict.IsSuspicious)
}
