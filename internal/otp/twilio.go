package otp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const twilioVerifyBase = "https://verify.twilio.com/v2/Services"

// TwilioConfig holds the Verify service credentials.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	ServiceSID string
	// BaseURL overrides the Verify API endpoint. Tests point it at a
	// local server; empty means production.
	BaseURL string
	Timeout time.Duration
}

// TwilioGateway is a Gateway backed by the Twilio Verify v2 REST API.
// One Send/Check round trip per call, no retries: a failed send is
// surfaced to the caller, who decides whether to resend.
type TwilioGateway struct {
	cfg        TwilioConfig
	httpClient *http.Client
}

// NewTwilio builds a gateway from cfg.
func NewTwilio(cfg TwilioConfig) (*TwilioGateway, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.ServiceSID == "" {
		return nil, fmt.Errorf("otp: twilio credentials incomplete")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = twilioVerifyBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	return &TwilioGateway{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (g *TwilioGateway) Send(ctx context.Context, phone string) (Status, error) {
	form := url.Values{}
	form.Set("To", phone)
	form.Set("Channel", "sms")

	status, err := g.post(ctx, "/Verifications", form)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return status, nil
}

func (g *TwilioGateway) Check(ctx context.Context, phone, code string) (Status, error) {
	form := url.Values{}
	form.Set("To", phone)
	form.Set("Code", code)

	status, err := g.post(ctx, "/VerificationCheck", form)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCheckFailed, err)
	}
	return status, nil
}

func (g *TwilioGateway) post(ctx context.Context, path string, form url.Values) (Status, error) {
	endpoint := g.cfg.BaseURL + "/" + g.cfg.ServiceSID + path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(g.cfg.AccountSID, g.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	// Twilio reports a failed code check as 404 on VerificationCheck
	// after the verification expired or was already concluded.
	if resp.StatusCode == http.StatusNotFound {
		return StatusExpired, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("verify api status %d", resp.StatusCode)
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	if payload.Status == "" {
		return "", fmt.Errorf("verify api response missing status")
	}
	return Status(payload.Status), nil
}
