package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/LungheSam/FareFlow-Server/internal/config"
)

// EmailClient sends templated mail through the EmailJS REST API.
type EmailClient struct {
	cfg    config.EmailConfig
	client *http.Client
}

func NewEmailClient(cfg config.EmailConfig) *EmailClient {
	return &EmailClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *EmailClient) Name() string { return "email" }

func (c *EmailClient) Send(ctx context.Context, kind Kind, p Payload) error {
	templateID := c.cfg.PaymentTemplateID
	if kind == KindWelcome {
		templateID = c.cfg.TemplateID
	}

	body, err := json.Marshal(map[string]any{
		"service_id":      c.cfg.ServiceID,
		"template_id":     templateID,
		"user_id":         c.cfg.PublicKey,
		"accessToken":     c.cfg.PrivateKey,
		"template_params": EmailParams(kind, p),
	})
	if err != nil {
		return fmt.Errorf("marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("email gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
