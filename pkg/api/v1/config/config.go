package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the rate file. It is loaded fresh every loop so edits apply within one period.
type Config struct {
	Services    []string `json:"services" yaml:"services"`
	RateLimit   float64  `json:"rate_limit" yaml:"rate_limit"`
	LoopSeconds int      `json:"loop_seconds" yaml:"loop_seconds"`
	ComedAPIURL string   `json:"comed_api_url" yaml:"comed_api_url"`
	GitPull     bool     `json:"git_pull" yaml:"git_pull"`
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.LoopSeconds) * time.Second
}

func (c *Config) Validate() error {
	if c.LoopSeconds <= 0 {
		return fmt.Errorf("loop_seconds must be positive, got %d", c.LoopSeconds)
	}
	if strings.TrimSpace(c.ComedAPIURL) == "" {
		return fmt.Errorf("comed_api_url is empty")
	}
	return nil
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	cfg := &Config{}
	if err := decode(path, b, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config %s: %w", path, err)
	}

	// a zero limit would stop services at every positive price, so the key must be present.
	required := &struct {
		RateLimit *float64 `json:"rate_limit" yaml:"rate_limit"`
	}{}
	if err := decode(path, b, required); err != nil {
		return nil, fmt.Errorf("error parsing config %s: %w", path, err)
	}
	if required.RateLimit == nil {
		return nil, fmt.Errorf("invalid config %s: rate_limit is missing", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func decode(path string, b []byte, v interface{}) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, v)
	}
	return json.NewDecoder(bytes.NewReader(b)).Decode(v)
}
