package service

import (
	"go.uber.org/zap"

	"geosnap-service/internal/audit"
	"geosnap-service/internal/bucketing"
	"geosnap-service/internal/config"
	"geosnap-service/internal/identity"
	"geosnap-service/internal/model"
)

// ServiceFactory creates and manages service instances
type ServiceFactory struct {
	otpRepo   model.OTPRepository
	limiter   model.RateLimitCache
	transport model.EmailTransport
	provider  identity.Provider
	recorder  *audit.Recorder
	stripes   *bucketing.StripeManager
	geocoder  ReverseGeocoder
	otpConfig config.OTPConfig
	logger    *zap.Logger

	otpService      *OTPService
	locationService *LocationService
}

// NewServiceFactory creates a new service factory
func NewServiceFactory(
	otpRepo model.OTPRepository,
	limiter model.RateLimitCache,
	transport model.EmailTransport,
	provider identity.Provider,
	recorder *audit.Recorder,
	stripes *bucketing.StripeManager,
	geocoder ReverseGeocoder,
	otpConfig config.OTPConfig,
	logger *zap.Logger,
) *ServiceFactory {
	return &ServiceFactory{
		otpRepo:   otpRepo,
		limiter:   limiter,
		transport: transport,
		provider:  provider,
		recorder:  recorder,
		stripes:   stripes,
		geocoder:  geocoder,
		otpConfig: otpConfig,
		logger:    logger,
	}
}

// OTPService returns the OTP service instance (singleton)
func (f *ServiceFactory) OTPService() *OTPService {
	if f.otpService == nil {
		f.otpService = NewOTPService(
			f.otpRepo,
			f.limiter,
			f.transport,
			f.provider,
			f.recorder,
			f.stripes,
			f.otpConfig,
			f.logger,
		)
	}
	return f.otpService
}

// LocationService returns the location service instance (singleton)
func (f *ServiceFactory) LocationService() *LocationService {
	if f.locationService == nil {
		f.locationService = NewLocationService(f.geocoder, f.recorder, f.logger)
	}
	return f.locationService
}
