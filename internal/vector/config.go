// File path: internal/vector/config.go
package vector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	Path      string `json:"path"`
	Dimension int    `json:"dimension"`
}

func (c Config) Merge(override Config) Config {
	result := c
	if strings.TrimSpace(override.Path) != "" {
		result.Path = strings.TrimSpace(override.Path)
	}
	if override.Dimension > 0 {
		result.Dimension = override.Dimension
	}
	return result
}

func LoadConfig() (Config, error) {
	cfg := Config{}
	if path := strings.TrimSpace(os.Getenv("GRAPHDESK_INDEX_CONFIG_FILE")); path != "" {
		fileCfg, err := loadConfigFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = cfg.Merge(fileCfg)
	}
	envCfg, err := loadConfigEnv()
	if err != nil {
		return Config{}, err
	}
	cfg = cfg.Merge(envCfg)
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Path) == "" {
		c.Path = filepath.Join("data", "index.gob")
	}
	if c.Dimension <= 0 {
		c.Dimension = 768
	}
}

func loadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("read index config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse index config: %w", err)
	}
	return cfg, nil
}

func loadConfigEnv() (Config, error) {
	cfg := Config{}
	if path := strings.TrimSpace(os.Getenv("GRAPHDESK_INDEX_PATH")); path != "" {
		cfg.Path = path
	}
	if dim := strings.TrimSpace(os.Getenv("GRAPHDESK_INDEX_DIM")); dim != "" {
		value, err := strconv.Atoi(dim)
		if err != nil {
			return Config{}, fmt.Errorf("parse GRAPHDESK_INDEX_DIM: %w", err)
		}
		if value > 0 {
			cfg.Dimension = value
		}
	}
	return cfg, nil
}
