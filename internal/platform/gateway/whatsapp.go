package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// WhatsAppConfig holds Cloud API credentials.
type WhatsAppConfig struct {
	BaseURL       string
	PhoneNumberID string
	AccessToken   string
	Language      string
}

// WhatsAppOption configures a WhatsAppSender.
type WhatsAppOption func(*WhatsAppSender)

func WithHTTPClient(c *http.Client) WhatsAppOption {
	return func(s *WhatsAppSender) { s.httpClient = c }
}

// WithRateLimit caps outbound requests per second across all callers.
func WithRateLimit(rps float64, burst int) WhatsAppOption {
	return func(s *WhatsAppSender) { s.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WhatsAppSender sends approved templates through the WhatsApp Cloud API.
type WhatsAppSender struct {
	cfg        WhatsAppConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewWhatsAppSender(cfg WhatsAppConfig, opts ...WhatsAppOption) *WhatsAppSender {
	s := &WhatsAppSender{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type waParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type waComponent struct {
	Type       string        `json:"type"`
	Parameters []waParameter `json:"parameters"`
}

type waLanguage struct {
	Code string `json:"code"`
}

type waTemplate struct {
	Name       string        `json:"name"`
	Language   waLanguage    `json:"language"`
	Components []waComponent `json:"components,omitempty"`
}

type waRequest struct {
	MessagingProduct string     `json:"messaging_product"`
	To               string     `json:"to"`
	Type             string     `json:"type"`
	Template         waTemplate `json:"template"`
}

type waResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (s *WhatsAppSender) Send(ctx context.Context, to string, r Rendered) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("whatsapp rate limit: %w", err)
	}

	params := make([]waParameter, 0, len(r.Params))
	for _, p := range r.Params {
		params = append(params, waParameter{Type: "text", Text: p})
	}
	body := waRequest{
		MessagingProduct: "whatsapp",
		To:               strings.TrimPrefix(to, "+"),
		Type:             "template",
		Template: waTemplate{
			Name:     r.Template.ProviderName,
			Language: waLanguage{Code: s.cfg.Language},
		},
	}
	if len(params) > 0 {
		body.Template.Components = []waComponent{{Type: "body", Parameters: params}}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode whatsapp request: %w", err)
	}

	url := strings.TrimRight(s.cfg.BaseURL, "/") + "/" + s.cfg.PhoneNumberID + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build whatsapp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.AccessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whatsapp request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
	var out waResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out.Error != nil && out.Error.Message != "" {
			return "", fmt.Errorf("whatsapp %d: %s (code %d)", resp.StatusCode, out.Error.Message, out.Error.Code)
		}
		return "", fmt.Errorf("whatsapp non-2xx response: %d", resp.StatusCode)
	}
	if len(out.Messages) == 0 || out.Messages[0].ID == "" {
		return "", fmt.Errorf("whatsapp response has no message id")
	}
	return out.Messages[0].ID, nil
}
