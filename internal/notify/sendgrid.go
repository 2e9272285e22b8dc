package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"time"
)

const sendgridSendURL = "https://api.sendgrid.com/v3/mail/send"

// SendGridConfig holds the mail provider credentials and link base.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	// FrontendURL is the base for links embedded in mail, e.g. the
	// password reset page.
	FrontendURL string
	// BaseURL overrides the SendGrid endpoint for tests.
	BaseURL string
	Timeout time.Duration
}

// SendGrid is a Mailer over the SendGrid v3 mail send API.
type SendGrid struct {
	cfg        SendGridConfig
	httpClient *http.Client
}

// NewSendGrid builds a mailer from cfg.
func NewSendGrid(cfg SendGridConfig) (*SendGrid, error) {
	if cfg.APIKey == "" || cfg.FromEmail == "" {
		return nil, fmt.Errorf("notify: sendgrid credentials incomplete")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = sendgridSendURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	return &SendGrid{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (s *SendGrid) SendWelcome(ctx context.Context, email, firstName string) error {
	subject := "Welcome aboard"
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Your account is ready. Log in to start learning.</p>",
		html.EscapeString(firstName))
	return s.send(ctx, email, subject, body)
}

func (s *SendGrid) SendPasswordReset(ctx context.Context, email, firstName, token string) error {
	link := s.cfg.FrontendURL + "/reset-password?token=" + url.QueryEscape(token)
	subject := "Password reset request"
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Use the link below to choose a new password. It expires in 30 minutes.</p><p><a href=%q>Reset password</a></p><p>If you did not request this, ignore this mail.</p>",
		html.EscapeString(firstName), link)
	return s.send(ctx, email, subject, body)
}

func (s *SendGrid) send(ctx context.Context, to, subject, html string) error {
	payload := map[string]any{
		"personalizations": []map[string]any{
			{"to": []map[string]string{{"email": to}}},
		},
		"from":    map[string]string{"email": s.cfg.FromEmail, "name": s.cfg.FromName},
		"subject": subject,
		"content": []map[string]string{
			{"type": "text/html", "value": html},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	// SendGrid answers 202 on acceptance.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: provider status %d", ErrDeliveryFailed, resp.StatusCode)
	}
	return nil
}

