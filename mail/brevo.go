package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MrEthical07/shopauth"
)

// DefaultBrevoEndpoint is the Brevo transactional email API.
const DefaultBrevoEndpoint = "https://api.brevo.com/v3/smtp/email"

// BrevoConfig configures [BrevoMailer].
type BrevoConfig struct {
	APIKey     string
	FromEmail  string
	FromName   string
	Endpoint   string
	HTTPClient *http.Client
}

// BrevoMailer sends through the Brevo HTTP API.
type BrevoMailer struct {
	apiKey   string
	sender   brevoContact
	endpoint string
	client   *http.Client
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoRequest struct {
	Sender      brevoContact   `json:"sender"`
	To          []brevoContact `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
}

type brevoResponse struct {
	MessageID string `json:"messageId"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// NewBrevoMailer validates cfg.
func NewBrevoMailer(cfg BrevoConfig) (*BrevoMailer, error) {
	if cfg.APIKey == "" || cfg.FromEmail == "" {
		return nil, errors.New("brevo api key and sender email are required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultBrevoEndpoint
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &BrevoMailer{
		apiKey:   cfg.APIKey,
		sender:   brevoContact{Email: cfg.FromEmail, Name: cfg.FromName},
		endpoint: cfg.Endpoint,
		client:   cfg.HTTPClient,
	}, nil
}

// Send posts msg. A 400 answer means Brevo refused the request for this
// recipient and is reported as a rejected receipt; other non-2xx answers and
// network failures are errors.
func (m *BrevoMailer) Send(ctx context.Context, msg shopauth.MailMessage) (shopauth.MailReceipt, error) {
	body, err := json.Marshal(brevoRequest{
		Sender:      m.sender,
		To:          []brevoContact{{Email: msg.To}},
		Subject:     msg.Subject,
		HTMLContent: msg.HTML,
	})
	if err != nil {
		return shopauth.MailReceipt{}, fmt.Errorf("brevo marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return shopauth.MailReceipt{}, fmt.Errorf("brevo request: %w", err)
	}
	req.Header.Set("api-key", m.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return shopauth.MailReceipt{}, fmt.Errorf("brevo send: %w", err)
	}
	defer resp.Body.Close()

	var out brevoResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &out)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return shopauth.MailReceipt{MessageID: out.MessageID, Accepted: []string{msg.To}}, nil
	case resp.StatusCode == http.StatusBadRequest:
		return shopauth.MailReceipt{Rejected: []string{msg.To}}, nil
	default:
		return shopauth.MailReceipt{}, fmt.Errorf("brevo api error: status %d: %s", resp.StatusCode, out.Code)
	}
}
