// File path: internal/embedding/config.go
package embedding

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Model     string        `json:"model"`
	APIKey    string        `json:"api_key"`
	Endpoint  string        `json:"endpoint"`
	Dimension int           `json:"dimension"`
	Timeout   time.Duration `json:"-"`
}

func (c Config) Merge(override Config) Config {
	result := c
	if strings.TrimSpace(override.Model) != "" {
		result.Model = strings.TrimSpace(override.Model)
	}
	if strings.TrimSpace(override.APIKey) != "" {
		result.APIKey = override.APIKey
	}
	if strings.TrimSpace(override.Endpoint) != "" {
		result.Endpoint = strings.TrimSpace(override.Endpoint)
	}
	if override.Dimension > 0 {
		result.Dimension = override.Dimension
	}
	if override.Timeout > 0 {
		result.Timeout = override.Timeout
	}
	return result
}

func LoadConfig() (Config, error) {
	cfg := Config{}
	if model := strings.TrimSpace(os.Getenv("GRAPHDESK_EMBED_MODEL")); model != "" {
		cfg.Model = model
	}
	cfg.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	cfg.Endpoint = strings.TrimSpace(os.Getenv("OPENAI_ENDPOINT"))
	if dim := strings.TrimSpace(os.Getenv("GRAPHDESK_EMBED_DIM")); dim != "" {
		value, err := strconv.Atoi(dim)
		if err != nil {
			return Config{}, fmt.Errorf("parse GRAPHDESK_EMBED_DIM: %w", err)
		}
		if value > 0 {
			cfg.Dimension = value
		}
	}
	if timeout := strings.TrimSpace(os.Getenv("GRAPHDESK_EMBED_TIMEOUT")); timeout != "" {
		parsed, err := time.ParseDuration(timeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse GRAPHDESK_EMBED_TIMEOUT: %w", err)
		}
		cfg.Timeout = parsed
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Model) == "" {
		c.Model = "text-embedding-3-small"
	}
	if c.Dimension <= 0 {
		c.Dimension = 768
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}
