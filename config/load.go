package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// searchPaths are tried in order when no explicit path is given.
var searchPaths = []string{"./config.toml", "/etc/registrar/config.toml"}

// Find locates the config file, searching ./config.toml then
// /etc/registrar/config.toml.
func Find() (string, error) {
	for _, p := range searchPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("config: no config file found in %v", searchPaths)
}

// Load reads, decodes, defaults, and validates the config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Instance.decodeRoleConfig(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	return cfg, nil
}

// LoadDefault locates and loads the config file via Find.
func LoadDefault() (*Config, string, error) {
	path, err := Find()
	if err != nil {
		return nil, "", err
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}
