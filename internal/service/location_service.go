package service

import (
	"context"

	"go.uber.org/zap"

	"geosnap-service/internal/audit"
	"geosnap-service/internal/model"
	"geosnap-service/internal/spoofing"
	"geosnap-service/internal/util"
)

// ReverseGeocoder resolves coordinates to a human-readable address.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}

// LocationService enriches captured location samples and scores them for
// spoofing indicators.
type LocationService struct {
	geocoder ReverseGeocoder
	recorder *audit.Recorder
	logger   *zap.Logger
}

func NewLocationService(geocoder ReverseGeocoder, recorder *audit.Recorder, logger *zap.Logger) *LocationService {
	return &LocationService{
		geocoder: geocoder,
		recorder: recorder,
		logger:   logger,
	}
}

// Analyze scores a sample against the caller's history and attaches a
// reverse-geocoded address when the geocoder can resolve one. Geocoding is
// best effort; a failure there never blocks the verdict.
func (s *LocationService) Analyze(ctx context.Context, sample model.LocationSample, history []model.LocationSample, platformIsMobile bool) (model.LocationSample, model.SpoofingVerdict) {
	if s.geocoder != nil {
		address, err := s.geocoder.ReverseGeocode(ctx, sample.Latitude, sample.Longitude)
		if err != nil {
			s.logger.Warn("Reverse geocoding failed",
				util.Float64("latitude", sample.Latitude),
				util.Float64("longitude", sample.Longitude),
				util.ErrorField(err),
			)
		} else {
			sample.Address = address
		}
	}

	// Retention is bounded regardless of how much history the caller sends;
	// only the most recent samples participate in the verdict.
	buf := spoofing.NewHistory(spoofing.DefaultHistorySize)
	for _, past := range history {
		buf.Append(past)
	}

	verdict := spoofing.Analyze(sample, buf.Samples(), platformIsMobile)

	if verdict.IsSuspicious {
		s.logger.Info("Location flagged as suspicious",
			util.Any("reasons", verdict.Reasons),
			util.String("confidence", string(verdict.Confidence)),
		)
	}

	if s.recorder != nil {
		s.recorder.RecordVerdict(ctx, sample, verdict)
	}

	return sample, verdict
}
