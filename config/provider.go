package config

import "sync/atomic"

// Provider holds the current configuration and allows atomic, lock-free
// reads from any goroutine while Reload swaps in a new snapshot.
type Provider struct {
	value   atomic.Value // holds *Config
	path    string       // file the config was loaded from, used by Reload
}

// NewProvider creates a Provider seeded with an already-loaded config and
// the path it came from, so a later SIGHUP can re-read the same file.
func NewProvider(c *Config, path string) *Provider {
	if c == nil {
		panic("config: initial config cannot be nil")
	}
	p := &Provider{path: path}
	p.value.Store(c)
	return p
}

// Get returns the current configuration snapshot. Safe for concurrent use.
func (p *Provider) Get() *Config {
	return p.value.Load().(*Config)
}

// Update atomically swaps in a new configuration. The caller must have
// validated newConfig already.
func (p *Provider) Update(newConfig *Config) {
	if newConfig == nil {
		panic("config: new config cannot be nil")
	}
	p.value.Store(newConfig)
}

// Reload re-reads, validates, and swaps in the configuration from the path
// the Provider was created with. Intended to run on SIGHUP.
func (p *Provider) Reload() error {
	newCfg, err := Load(p.path)
	if err != nil {
		return err
	}
	p.Update(newCfg)
	return nil
}
