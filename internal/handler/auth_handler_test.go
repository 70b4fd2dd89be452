package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"geosnap-service/internal/config"
	"geosnap-service/internal/identity"
	"geosnap-service/internal/model"
	"geosnap-service/internal/service"
)

// stubRepo keeps issued codes in memory for handler round-trips.
type stubRepo struct {
	mu      sync.Mutex
	records []*model.OTPCode
}

func (r *stubRepo) Create(_ context.Context, otp *model.OTPCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	otp.ID = uuid.New().String()
	clone := *otp
	r.records = append(r.records, &clone)
	return nil
}

func (r *stubRepo) InvalidateActive(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.Email == email {
			rec.Used = true
		}
	}
	return nil
}

func (r *stubRepo) FindValid(_ context.Context, email, code string, now time.Time) (*model.OTPCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.Email == email && rec.Code == code && !rec.Used && !rec.ExpiresAt.Before(now) {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *stubRepo) ConsumeIfUnused(_ context.Context, otp *model.OTPCode) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == otp.ID && !rec.Used {
			rec.Used = true
			return true, nil
		}
	}
	return false, nil
}

func (r *stubRepo) lastCode(email string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].Email == email {
			return r.records[i].Code
		}
	}
	return ""
}

type stubTransport struct{ err error }

func (t *stubTransport) Send(_ context.Context, _, _, _ string) error { return t.err }

type stubProvider struct{}

func (stubProvider) FindUserByEmail(_ context.Context, email string) (*identity.User, error) {
	return &identity.User{ID: "u-1", Email: email, EmailConfirmed: true}, nil
}

func (stubProvider) CreateUser(_ context.Context, email string) (*identity.User, error) {
	return &identity.User{ID: "u-1", Email: email, EmailConfirmed: true}, nil
}

func (stubProvider) SessionForVerifiedEmail(_ context.Context, _ string) (*model.Session, error) {
	return &model.Session{AccessToken: "token", TokenType: "bearer", ExpiresIn: 3600, RefreshToken: "refresh"}, nil
}

func newTestRouter(t *testing.T, repo *stubRepo, transport *stubTransport) http.Handler {
	t.Helper()
	otpConfig := config.OTPConfig{Expiry: 10 * time.Minute}
	otpService := service.NewOTPService(repo, nil, transport, stubProvider{}, nil, nil, otpConfig, zap.NewNop())
	locationService := service.NewLocationService(nil, nil, zap.NewNop())

	authHandler := NewAuthHandler(otpService, zap.NewNop())
	locationHandler := NewLocationHandler(locationService, zap.NewNop())
	return NewRouter(authHandler, locationHandler, false, zap.NewNop())
}

func postJSON(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestSendOTPEndpoint(t *testing.T) {
	repo := &stubRepo{}
	router := newTestRouter(t, repo, &stubTransport{})

	rr := postJSON(t, router, "/api/v1/auth/otp/send", `{"email":"user@example.com"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, repo.lastCode("user@example.com"))
}

func TestSendOTPInvalidEmail(t *testing.T) {
	router := newTestRouter(t, &stubRepo{}, &stubTransport{})

	rr := postJSON(t, router, "/api/v1/auth/otp/send", `{"email":"nope"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestSendOTPMalformedBody(t *testing.T) {
	router := newTestRouter(t, &stubRepo{}, &stubTransport{})

	rr := postJSON(t, router, "/api/v1/auth/otp/send", `{"email":`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSendOTPDispatchFailure(t *testing.T) {
	router := newTestRouter(t, &stubRepo{}, &stubTransport{err: errors.New("resend 500")})

	rr := postJSON(t, router, "/api/v1/auth/otp/send", `{"email":"user@example.com"}`)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestVerifyOTPEndpoint(t *testing.T) {
	repo := &stubRepo{}
	router := newTestRouter(t, repo, &stubTransport{})

	rr := postJSON(t, router, "/api/v1/auth/otp/send", `{"email":"user@example.com"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	code := repo.lastCode("user@example.com")

	body, _ := json.Marshal(map[string]string{"email": "user@example.com", "code": code})
	rr = postJSON(t, router, "/api/v1/auth/otp/verify", string(body))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Success bool          `json:"success"`
		Data    model.Session `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "token", resp.Data.AccessToken)
	assert.Equal(t, "bearer", resp.Data.TokenType)
}

func TestVerifyOTPWrongCode(t *testing.T) {
	repo := &stubRepo{}
	router := newTestRouter(t, repo, &stubTransport{})

	rr := postJSON(t, router, "/api/v1/auth/otp/send", `{"email":"user@example.com"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = postJSON(t, router, "/api/v1/auth/otp/verify", `{"email":"user@example.com","code":"000000"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "invalid or expired code")
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	router := newTestRouter(t, &stubRepo{}, &stubTransport{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"endpoint not found"}`, rr.Body.String())
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, &stubRepo{}, &stubTransport{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "healthy")
}

func TestMethodNotAllowed(t *testing.T) {
	router := newTestRouter(t, &stubRepo{}, &stubTransport{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/otp/send", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
