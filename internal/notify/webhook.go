package notify

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/litecron/litecron/internal/config"
)

// Webhook delivers notifications over a configurable HTTP request: method,
// content type, extra headers and a body template with $title and $content
// placeholders.
type Webhook struct {
	cfg    config.WebhookConfig
	client *http.Client
}

func NewWebhook(cfg config.WebhookConfig) *Webhook {
	return &Webhook{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Configured reports whether the transport has enough config to deliver
func (w *Webhook) Configured() bool {
	return w.cfg.URL != ""
}

func (w *Webhook) Name() string {
	return "webhook"
}

func (w *Webhook) Send(title, body string) error {
	if w.cfg.URL == "" {
		return fmt.Errorf("webhook URL not configured")
	}

	target := strings.ReplaceAll(w.cfg.URL, "$title", url.QueryEscape(title))
	target = strings.ReplaceAll(target, "$content", url.QueryEscape(body))

	payload, err := w.buildBody(title, body)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(w.cfg.Method, target, strings.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	for key, value := range parseHeaderLines(w.cfg.Headers) {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", w.cfg.ContentType)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (w *Webhook) buildBody(title, body string) (string, error) {
	if w.cfg.Body != "" {
		templated := strings.ReplaceAll(w.cfg.Body, "$title", escapeNewlines(title))
		return strings.ReplaceAll(templated, "$content", escapeNewlines(body)), nil
	}

	switch w.cfg.ContentType {
	case "application/json":
		data, err := json.Marshal(map[string]string{"title": title, "content": body})
		if err != nil {
			return "", fmt.Errorf("failed to encode webhook body: %w", err)
		}
		return string(data), nil
	case "application/x-www-form-urlencoded":
		values := url.Values{}
		values.Set("title", title)
		values.Set("content", body)
		return values.Encode(), nil
	default:
		return title + " " + body, nil
	}
}

func escapeNewlines(s string) string {
	return strings.ReplaceAll(s, "\n", "\\n")
}

// parseHeaderLines parses "Key: Value" lines into a header map
func parseHeaderLines(headers string) map[string]string {
	parsed := make(map[string]string)
	for _, line := range strings.Split(headers, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		i := strings.Index(line, ":")
		if i <= 0 {
			continue
		}
		parsed[strings.TrimSpace(line[:i])] = strings.TrimSpace(line[i+1:])
	}
	return parsed
}
