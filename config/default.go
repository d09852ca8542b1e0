package config

import "time"

// defaultDisplayNameLimit is the Jaro-words similarity threshold above
// which two display names are reported as a collision.
const defaultDisplayNameLimit = 0.85

// defaultIdleTimeout is how long a JudgementState may sit without progress
// before the sweeper marks it Erroneous and deletes it.
const defaultIdleTimeout = 8 * time.Hour

// defaultSweepInterval is how often the sweeper scans for timed-out
// states.
const defaultSweepInterval = 10 * time.Second

// defaultShutdownGracefulTimeout bounds how long Server.Run waits for
// daemons to stop before exiting non-zero.
const defaultShutdownGracefulTimeout = 20 * time.Second

// defaultAdapterInterval is the poll interval for a MessageAdapter when
// the config omits one.
const defaultAdapterInterval = 30 * time.Second

// applyDefaults fills in zero-valued timeouts and thresholds so a minimal
// config file is still usable. It never overwrites a value the file set.
func applyDefaults(c *Config) {
	if c.Sweeper.Interval.Duration == 0 {
		c.Sweeper.Interval.Duration = defaultSweepInterval
	}
	if c.Sweeper.IdleTimeout.Duration == 0 {
		c.Sweeper.IdleTimeout.Duration = defaultIdleTimeout
	}
	if c.Server.ShutdownGracefulTimeout.Duration == 0 {
		c.Server.ShutdownGracefulTimeout.Duration = defaultShutdownGracefulTimeout
	}

	if c.Instance.SessionNotifier.DisplayName.Limit == 0 {
		c.Instance.SessionNotifier.DisplayName.Limit = defaultDisplayNameLimit
	}

	al := &c.Instance.AdapterListener
	if al.DisplayName.Limit == 0 {
		al.DisplayName.Limit = defaultDisplayNameLimit
	}
	for _, adapter := range []*AdapterConfig{&al.Matrix, &al.Twitter, &al.Email} {
		if adapter.Interval.Duration == 0 {
			adapter.Interval.Duration = defaultAdapterInterval
		}
	}
}
