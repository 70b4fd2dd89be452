package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"geosnap-service/internal/service"
	"geosnap-service/internal/util"
)

// AuthHandler handles HTTP requests for OTP authentication
type AuthHandler struct {
	otpService *service.OTPService
	logger     *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(otpService *service.OTPService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		otpService: otpService,
		logger:     logger,
	}
}

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// successResponse creates a successful response
func successResponse(data interface{}, message string) Response {
	return Response{
		Success: true,
		Data:    data,
		Message: message,
	}
}

// errorResponse creates an error response
func errorResponse(err error, message string) Response {
	return Response{
		Success: false,
		Error:   err.Error(),
		Message: message,
	}
}

type sendOTPRequest struct {
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// RegisterRoutes registers all auth routes
func (h *AuthHandler) RegisterRoutes(router chi.Router) {
	router.Route("/auth/otp", func(r chi.Router) {
		r.Post("/send", h.SendOTP)
		r.Post("/verify", h.VerifyOTP)
	})
}

// SendOTP issues a fresh verification code and emails it
func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	var req sendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	if err := h.otpService.Issue(ctx, req.Email); err != nil {
		h.respondWithError(w, h.getStatusCode(err), err, "Failed to send verification code")
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(nil, "Verification code sent"))
	h.logger.Info("OTP send requested via HTTP",
		util.String("email_hash", util.EmailHash(req.Email)),
		util.Duration("duration", time.Since(startTime)),
		util.String("method", "SendOTP"),
	)
}

// VerifyOTP consumes a code and returns a freshly minted session
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	session, err := h.otpService.Verify(ctx, req.Email, req.Code)
	if err != nil {
		h.respondWithError(w, h.getStatusCode(err), err, "Verification failed")
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(session, "Verification successful"))
	h.logger.Info("OTP verified via HTTP",
		util.String("email_hash", util.EmailHash(req.Email)),
		util.Duration("duration", time.Since(startTime)),
		util.String("method", "VerifyOTP"),
	)
}

// respondWithJSON sends a JSON response
func (h *AuthHandler) respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", util.ErrorField(err))
	}
}

// respondWithError sends an error response
func (h *AuthHandler) respondWithError(w http.ResponseWriter, statusCode int, err error, message string) {
	h.logger.Warn("HTTP error response",
		util.ErrorField(err),
		util.Int("status_code", statusCode),
		util.String("message", message),
	)
	h.respondWithJSON(w, statusCode, errorResponse(err, message))
}

// getStatusCode determines the appropriate HTTP status code for an error
func (h *AuthHandler) getStatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrInvalidOrExpired):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
