package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/copywrite-ai/nano-web-git/internal/utils"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigPath = filepath.Join(home, ".nanogit", "config.json")
	DefaultRelayURL   = "ws://localhost:7478/relay"
	DefaultLocalDir   = filepath.Join(home, "nanogit")
)

// Config is the controller-side configuration. The relay decision inputs
// (origin, open proxy) are caller-supplied, never inferred.
type Config struct {
	LocalDir   string `json:"local_dir"`
	RelayURL   string `json:"relay_url"`
	Origin     string `json:"origin,omitempty"`
	OpenProxy  string `json:"open_proxy,omitempty"`
	ExplainURL string `json:"explain_url,omitempty"`
	Path       string `json:"-"`
}

func (c *Config) Validate() error {
	if c.LocalDir == "" {
		return errors.New("config: local_dir is required")
	}
	return nil
}

func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.Path = path
	if cfg.RelayURL == "" {
		cfg.RelayURL = DefaultRelayURL
	}
	return &cfg, nil
}
