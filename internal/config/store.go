package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const cacheKey = "config"

// Store serves the live configuration to every trigger path. Reads are cached
// briefly so the dashboard does not re-parse the file on each request; writes
// go through an atomic temp-file swap and invalidate the cache.
type Store struct {
	path   string
	logger *logrus.Logger
	cache  *cache.Cache
	mu     sync.Mutex
}

func NewStore(path string, logger *logrus.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger,
		cache:  cache.New(2*time.Second, 30*time.Second),
	}
}

func (s *Store) Path() string {
	return s.path
}

// Exists reports whether the configuration document is present
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load returns the current configuration, from cache when fresh
func (s *Store) Load() (*Config, error) {
	if cached, found := s.cache.Get(cacheKey); found {
		return cached.(*Config), nil
	}
	return s.Reload()
}

// Reload re-reads the configuration document, bypassing the cache
func (s *Store) Reload() (*Config, error) {
	cfg, err := Load(s.path)
	if err != nil {
		return nil, err
	}
	for _, jobErr := range cfg.Errors {
		s.logger.WithFields(logrus.Fields{
			"job_name": jobErr.JobName,
			"reason":   jobErr.Reason,
		}).Warn("Skipping invalid task entry")
	}
	s.cache.Set(cacheKey, cfg, cache.DefaultExpiration)
	return cfg, nil
}

// Toggle flips the enabled flag of the named task and persists the document.
// Returns the updated configuration.
func (s *Store) Toggle(name string, enable bool) (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	found := false
	for i := range raw.Tasks {
		if strings.EqualFold(raw.Tasks[i].Name, name) {
			value := enable
			raw.Tasks[i].Enabled = &value
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("task %s not found", name)
	}

	out, err := yaml.Marshal(&raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := s.writeAtomic(out); err != nil {
		return nil, err
	}

	s.cache.Delete(cacheKey)
	return s.Reload()
}

func (s *Store) writeAtomic(data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".config-*.yml")
	if err != nil {
		return fmt.Errorf("failed to create temp config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp config: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}
