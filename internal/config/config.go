package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/litecron/litecron/pkg/types"
	"gopkg.in/yaml.v3"
)

// Config is the engine configuration loaded from config.yml. The task list is
// the authoritative job declaration; everything else tunes the engine around
// it.
type Config struct {
	Server    ServerConfig      `yaml:"server"`
	Logs      LogsConfig        `yaml:"logs"`
	Runner    RunnerConfig      `yaml:"runner"`
	Notify    NotifyConfig      `yaml:"notify"`
	GlobalEnv map[string]string `yaml:"global_env,omitempty"`
	Tasks     []types.JobSpec   `yaml:"tasks"`

	// Errors collects entries skipped at load time (duplicate or empty
	// names). The engine continues with the valid subset.
	Errors []types.JobError `yaml:"-"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type LogsConfig struct {
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
}

type RunnerConfig struct {
	Timeout string `yaml:"timeout"`
}

type NotifyConfig struct {
	OnFailure bool          `yaml:"on_failure"`
	OnSuccess bool          `yaml:"on_success"`
	LogLines  int           `yaml:"log_lines"`
	Webhook   WebhookConfig `yaml:"webhook"`
	Ntfy      NtfyConfig    `yaml:"ntfy"`
}

type WebhookConfig struct {
	URL         string `yaml:"url"`
	Method      string `yaml:"method"`
	ContentType string `yaml:"content_type"`
	Headers     string `yaml:"headers"`
	Body        string `yaml:"body"`
}

type NtfyConfig struct {
	URL      string `yaml:"url"`
	Topic    string `yaml:"topic"`
	Priority string `yaml:"priority"`
	Token    string `yaml:"token"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// rawTask mirrors types.JobSpec with a nilable enabled flag so that an absent
// key defaults to enabled, matching the declaration format.
type rawTask struct {
	Name        string            `yaml:"name"`
	Schedule    string            `yaml:"schedule"`
	Command     string            `yaml:"command"`
	Description string            `yaml:"description,omitempty"`
	Enabled     *bool             `yaml:"enabled,omitempty"`
	Env         map[string]string `yaml:"env,omitempty"`
}

type rawConfig struct {
	Server    ServerConfig      `yaml:"server"`
	Logs      LogsConfig        `yaml:"logs"`
	Runner    RunnerConfig      `yaml:"runner"`
	Notify    NotifyConfig      `yaml:"notify"`
	GlobalEnv map[string]string `yaml:"global_env,omitempty"`
	Tasks     []rawTask         `yaml:"tasks"`
}

// Load reads and validates the configuration document. An unreadable or
// unparseable document is an error; malformed task entries are skipped and
// reported through Config.Errors.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := &Config{
		Server:    raw.Server,
		Logs:      raw.Logs,
		Runner:    raw.Runner,
		Notify:    raw.Notify,
		GlobalEnv: raw.GlobalEnv,
	}
	cfg.applyDefaults()

	seen := make(map[string]bool, len(raw.Tasks))
	for _, task := range raw.Tasks {
		name := strings.TrimSpace(task.Name)
		if name == "" {
			cfg.Errors = append(cfg.Errors, types.JobError{JobName: task.Name, Reason: "task name is empty"})
			continue
		}
		if seen[strings.ToLower(name)] {
			cfg.Errors = append(cfg.Errors, types.JobError{JobName: name, Reason: "duplicate task name"})
			continue
		}
		seen[strings.ToLower(name)] = true

		enabled := true
		if task.Enabled != nil {
			enabled = *task.Enabled
		}
		cfg.Tasks = append(cfg.Tasks, types.JobSpec{
			Name:        name,
			Schedule:    task.Schedule,
			Command:     task.Command,
			Description: task.Description,
			Enabled:     enabled,
			Env:         task.Env,
		})
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = getEnv("PORT", "8080")
	}
	if c.Logs.Dir == "" {
		c.Logs.Dir = getEnv("LOG_DIR", "logs")
	}
	if c.Logs.RetentionDays <= 0 {
		c.Logs.RetentionDays = 7
	}
	if c.Notify.LogLines <= 0 {
		c.Notify.LogLines = 15
	}
	if c.Notify.Webhook.Method == "" {
		c.Notify.Webhook.Method = "POST"
	}
	if c.Notify.Webhook.ContentType == "" {
		c.Notify.Webhook.ContentType = "application/json"
	}
	if c.Notify.Ntfy.Priority == "" {
		c.Notify.Ntfy.Priority = "3"
	}
}

// Job returns the task with the given name, case-insensitively
func (c *Config) Job(name string) (*types.JobSpec, bool) {
	for i := range c.Tasks {
		if strings.EqualFold(c.Tasks[i].Name, name) {
			return &c.Tasks[i], true
		}
	}
	return nil, false
}

// Timeout parses the configured per-run timeout; zero means no timeout
func (c *Config) Timeout() (time.Duration, error) {
	if c.Runner.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Runner.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid runner timeout: %w", err)
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
