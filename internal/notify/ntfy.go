package notify

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/litecron/litecron/internal/config"
)

// Ntfy delivers push notifications to an ntfy server, publishing as JSON
// with topic-based routing and a priority level.
type Ntfy struct {
	cfg    config.NtfyConfig
	client *http.Client
}

func NewNtfy(cfg config.NtfyConfig) *Ntfy {
	return &Ntfy{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Configured reports whether the transport has enough config to deliver
func (n *Ntfy) Configured() bool {
	return n.cfg.URL != "" && n.cfg.Topic != ""
}

func (n *Ntfy) Name() string {
	return "ntfy"
}

func (n *Ntfy) Send(title, body string) error {
	if !n.Configured() {
		return fmt.Errorf("ntfy URL or topic not configured")
	}

	priority := 3
	if p, err := strconv.Atoi(n.cfg.Priority); err == nil {
		priority = p
	}

	payload, err := json.Marshal(map[string]any{
		"topic":    n.cfg.Topic,
		"title":    title,
		"message":  body,
		"priority": priority,
	})
	if err != nil {
		return fmt.Errorf("failed to encode ntfy message: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, n.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build ntfy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if n.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+n.cfg.Token)
	} else if n.cfg.Username != "" && n.cfg.Password != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(n.cfg.Username + ":" + n.cfg.Password))
		req.Header.Set("Authorization", "Basic "+auth)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("ntfy request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ntfy returned status %d", resp.StatusCode)
	}
	return nil
}

// Transports assembles the configured transports from the notify section
func Transports(cfg config.NotifyConfig) []Transport {
	var transports []Transport
	if w := NewWebhook(cfg.Webhook); w.Configured() {
		transports = append(transports, w)
	}
	if n := NewNtfy(cfg.Ntfy); n.Configured() {
		transports = append(transports, n)
	}
	return transports
}
