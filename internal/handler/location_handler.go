package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"geosnap-service/internal/model"
	"geosnap-service/internal/service"
	"geosnap-service/internal/util"
)

// LocationHandler handles HTTP requests for location analysis
type LocationHandler struct {
	locationService *service.LocationService
	logger          *zap.Logger
}

// NewLocationHandler creates a new location handler
func NewLocationHandler(locationService *service.LocationService, logger *zap.Logger) *LocationHandler {
	return &LocationHandler{
		locationService: locationService,
		logger:          logger,
	}
}

type analyzeRequest struct {
	Sample           model.LocationSample   `json:"sample"`
	History          []model.LocationSample `json:"history"`
	PlatformIsMobile bool                   `json:"platform_is_mobile"`
}

type analyzeResponse struct {
	Sample  model.LocationSample  `json:"sample"`
	Verdict model.SpoofingVerdict `json:"verdict"`
}

// RegisterRoutes registers all location routes
func (h *LocationHandler) RegisterRoutes(router chi.Router) {
	router.Route("/location", func(r chi.Router) {
		r.Post("/analyze", h.Analyze)
	})
}

// Analyze scores a location sample for spoofing indicators
func (h *LocationHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if req.Sample.Latitude < -90 || req.Sample.Latitude > 90 ||
		req.Sample.Longitude < -180 || req.Sample.Longitude > 180 {
		h.respondWithJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "coordinates out of range",
			Message: "Invalid location sample",
		})
		return
	}

	sample, verdict := h.locationService.Analyze(ctx, req.Sample, req.History, req.PlatformIsMobile)

	h.respondWithJSON(w, http.StatusOK, successResponse(analyzeResponse{
		Sample:  sample,
		Verdict: verdict,
	}, "Location analyzed"))
	h.logger.Debug("Location analyzed via HTTP",
		util.Bool("suspicious", verdict.IsSuspicious),
		util.Duration("duration", time.Since(startTime)),
		util.String("method", "Analyze"),
	)
}

// respondWithJSON sends a JSON response
func (h *LocationHandler) respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", util.ErrorField(err))
	}
}

// respondWithError sends an error response
func (h *LocationHandler) respondWithError(w http.ResponseWriter, statusCode int, err error, message string) {
	h.logger.Warn("HTTP error response",
		util.ErrorField(err),
		util.Int("status_code", statusCode),
		util.String("message", message),
	)
	h.respondWithJSON(w, statusCode, errorResponse(err, message))
}
