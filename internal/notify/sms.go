package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/LungheSam/FareFlow-Server/internal/config"
)

// Channel delivers a rendered notification over one transport.
type Channel interface {
	Name() string
	Send(ctx context.Context, kind Kind, p Payload) error
}

// SMSClient sends text messages through the Africa's Talking messaging API.
type SMSClient struct {
	cfg    config.SMSConfig
	client *http.Client
}

func NewSMSClient(cfg config.SMSConfig) *SMSClient {
	return &SMSClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *SMSClient) Name() string { return "sms" }

func (c *SMSClient) Send(ctx context.Context, kind Kind, p Payload) error {
	form := url.Values{}
	form.Set("username", c.cfg.Username)
	form.Set("to", p.Phone)
	form.Set("message", SMSText(kind, p))
	if c.cfg.Sender != "" {
		form.Set("from", c.cfg.Sender)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apiKey", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
