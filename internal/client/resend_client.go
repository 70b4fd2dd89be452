package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"geosnap-service/internal/config"
	"geosnap-service/internal/util"
)

// ResendClient delivers transactional email through the Resend HTTP API.
// Failures are surfaced to the caller and never retried here.
type ResendClient struct {
	httpClient *http.Client
	config     *config.EmailConfig
}

func NewResendClient(cfg *config.Config, logger *zap.Logger) (*ResendClient, error) {
	emailConfig := cfg.Email

	if emailConfig.APIKey == "" {
		return nil, fmt.Errorf("RESEND_API_KEY not configured")
	}

	util.Info("Resend email client initialized",
		zap.String("from", emailConfig.From),
	)

	return &ResendClient{
		httpClient: &http.Client{Timeout: emailConfig.Timeout},
		config:     &emailConfig,
	}, nil
}

type resendSendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Send posts one message to the Resend /emails endpoint.
func (c *ResendClient) Send(ctx context.Context, to, subject, htmlBody string) error {
	payload, err := json.Marshal(resendSendRequest{
		From:    c.config.From,
		To:      []string{to},
		Subject: subject,
		HTML:    htmlBody,
	})
	if err != nil {
		return fmt.Errorf("failed to encode email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email send failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("resend error: status %d: %s", res.StatusCode, string(body))
	}

	return nil
}
