package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"geosnap-service/internal/config"
	"geosnap-service/internal/model"
	"geosnap-service/internal/util"
)

// GoTrueProvider talks to a GoTrue-compatible auth backend over its admin API
// using the service role key.
type GoTrueProvider struct {
	httpClient *http.Client
	config     *config.IdentityConfig
}

func NewGoTrueProvider(cfg *config.Config, logger *zap.Logger) *GoTrueProvider {
	identityConfig := cfg.Identity

	util.Info("Identity provider client initialized",
		zap.String("base_url", identityConfig.BaseURL),
	)

	return &GoTrueProvider{
		httpClient: &http.Client{Timeout: identityConfig.Timeout},
		config:     &identityConfig,
	}
}

type listUsersResponse struct {
	Users []User `json:"users"`
}

func (p *GoTrueProvider) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	email = util.NormalizeEmail(email)

	endpoint := p.config.BaseURL + "/admin/users?email=" + url.QueryEscape(email)
	var parsed listUsersResponse
	if err := p.doJSON(ctx, http.MethodGet, endpoint, nil, &parsed); err != nil {
		return nil, err
	}

	for i := range parsed.Users {
		if util.NormalizeEmail(parsed.Users[i].Email) == email {
			return &parsed.Users[i], nil
		}
	}
	return nil, ErrUserNotFound
}

type createUserRequest struct {
	Email        string `json:"email"`
	EmailConfirm bool   `json:"email_confirm"`
}

func (p *GoTrueProvider) CreateUser(ctx context.Context, email string) (*User, error) {
	email = util.NormalizeEmail(email)

	body := createUserRequest{Email: email, EmailConfirm: true}
	var user User
	err := p.doJSON(ctx, http.MethodPost, p.config.BaseURL+"/admin/users", body, &user)
	if err != nil {
		return nil, err
	}

	return &user, nil
}

type generateLinkRequest struct {
	Type  string `json:"type"`
	Email string `json:"email"`
}

type generateLinkResponse struct {
	EmailOTP string `json:"email_otp"`
}

type verifyTokenRequest struct {
	Type  string `json:"type"`
	Email string `json:"email"`
	Token string `json:"token"`
}

// SessionForVerifiedEmail generates a magiclink token admin-side and redeems
// it in the same call, yielding a session without any email leaving the
// provider.
func (p *GoTrueProvider) SessionForVerifiedEmail(ctx context.Context, email string) (*model.Session, error) {
	email = util.NormalizeEmail(email)

	var link generateLinkResponse
	err := p.doJSON(ctx, http.MethodPost, p.config.BaseURL+"/admin/generate_link",
		generateLinkRequest{Type: "magiclink", Email: email}, &link)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}
	if link.EmailOTP == "" {
		return nil, fmt.Errorf("identity provider returned no redeemable token")
	}

	var session model.Session
	err = p.doJSON(ctx, http.MethodPost, p.config.BaseURL+"/verify",
		verifyTokenRequest{Type: "magiclink", Email: email, Token: link.EmailOTP}, &session)
	if err != nil {
		return nil, fmt.Errorf("failed to redeem session token: %w", err)
	}
	if session.AccessToken == "" {
		return nil, fmt.Errorf("identity provider returned no session")
	}

	return &session, nil
}

func (p *GoTrueProvider) doJSON(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.config.ServiceKey)
	req.Header.Set("apikey", p.config.ServiceKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity provider request failed: %w", err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return ErrUserNotFound
	case res.StatusCode == http.StatusConflict || res.StatusCode == http.StatusUnprocessableEntity:
		return ErrUserExists
	case res.StatusCode >= 300:
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("identity provider error: status %d: %s", res.StatusCode, string(raw))
	}

	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode identity response: %w", err)
		}
	}
	return nil
}
