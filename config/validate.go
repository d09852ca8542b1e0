package config

import "fmt"

// Validate checks the entire configuration for correctness, aggregating
// per-section checks the way the whole config tree is validated.
func Validate(cfg *Config) error {
	if err := validateDB(&cfg.DB); err != nil {
		return fmt.Errorf("db config validation failed: %w", err)
	}
	if err := validateInstance(&cfg.Instance); err != nil {
		return fmt.Errorf("instance config validation failed: %w", err)
	}
	if err := validateSweeper(&cfg.Sweeper); err != nil {
		return fmt.Errorf("sweeper config validation failed: %w", err)
	}
	return nil
}

func validateDB(cfg *DB) error {
	if cfg.URI == "" {
		return fmt.Errorf("uri must not be empty")
	}
	if cfg.Name == "" {
		return fmt.Errorf("name must not be empty")
	}
	return nil
}

func validateInstance(cfg *InstanceConfig) error {
	switch cfg.Role {
	case RoleAdapterListener:
		return validateAdapterListener(&cfg.AdapterListener)
	case RoleSessionNotifier:
		return validateSessionNotifier(&cfg.SessionNotifier)
	case RoleSingleInstance:
		if err := validateAdapterListener(&cfg.AdapterListener); err != nil {
			return err
		}
		return validateSessionNotifier(&cfg.SessionNotifier)
	default:
		return fmt.Errorf("unknown role %q", cfg.Role)
	}
}

func validateAdapterListener(cfg *AdapterListenerConfig) error {
	for _, w := range cfg.Watchers {
		if w.Network == "" || w.Endpoint == "" {
			return fmt.Errorf("watcher entries require network and endpoint")
		}
	}
	if cfg.DisplayName.Enabled && (cfg.DisplayName.Limit < 0 || cfg.DisplayName.Limit > 1) {
		return fmt.Errorf("display_name.limit must be within [0,1]")
	}
	return nil
}

func validateSessionNotifier(cfg *SessionNotifierConfig) error {
	if cfg.APIAddress == "" {
		return fmt.Errorf("api_address must not be empty")
	}
	if cfg.DisplayName.Enabled && (cfg.DisplayName.Limit < 0 || cfg.DisplayName.Limit > 1) {
		return fmt.Errorf("display_name.limit must be within [0,1]")
	}
	return nil
}

func validateSweeper(cfg *Sweeper) error {
	if cfg.Interval.Duration <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if cfg.IdleTimeout.Duration <= 0 {
		return fmt.Errorf("idle_timeout must be positive")
	}
	return nil
}
