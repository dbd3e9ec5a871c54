package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents ~/.pinchat/config.toml. The token grants full access
// to the account's messages, hence the 0600 on save.
type Config struct {
	APIBaseURL     string `toml:"api_base_url"`
	WSURL          string `toml:"ws_url"`
	APIToken       string `toml:"api_token"`
	UserID         int64  `toml:"user_id"`
	DefaultProfile string `toml:"default_profile"`

	ListPollSeconds   int `toml:"list_poll_seconds"`
	ThreadPollSeconds int `toml:"thread_poll_seconds"`
	FreshnessSeconds  int `toml:"freshness_seconds"`
}

// Load reads config from the given path. Returns an error if the file is
// missing; first-run setup handles that case.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Validate checks the fields a client cannot run without.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("api_base_url is required")
	}
	if c.APIToken == "" {
		return fmt.Errorf("api_token is required")
	}
	if c.UserID == 0 {
		return fmt.Errorf("user_id is required")
	}
	return nil
}

// ListPollInterval returns the conversation list poll interval, defaulted.
func (c *Config) ListPollInterval() time.Duration {
	if c.ListPollSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.ListPollSeconds) * time.Second
}

// ThreadPollInterval returns the active thread poll interval, defaulted.
func (c *Config) ThreadPollInterval() time.Duration {
	if c.ThreadPollSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ThreadPollSeconds) * time.Second
}

// Freshness returns how long a fetched thread is trusted, defaulted.
func (c *Config) Freshness() time.Duration {
	if c.FreshnessSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.FreshnessSeconds) * time.Second
}
