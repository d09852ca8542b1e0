// Package config loads and holds the registrar's TOML configuration, the
// teacher's own format (config/config_load.go unmarshals with
// pelletier/go-toml/v2), exposing it through a Provider so components can
// observe an in-place reload triggered by SIGHUP without restarting.
package config

import (
	"fmt"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration wraps time.Duration with TOML text support ("10s", "8h"),
// following the teacher's pattern of giving every timeout its own
// marshalable type instead of storing raw nanoseconds. go-toml/v2 decodes
// and encodes through encoding.TextUnmarshaler/TextMarshaler for any type
// that implements them, the same way it handles time.Time.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// Role selects which instance role a process runs as (spec.md §6): a
// chain-facing adapter/listener instance, a session-facing notifier
// instance, or both combined in a single process.
type Role string

const (
	RoleAdapterListener Role = "adapter_listener"
	RoleSessionNotifier Role = "session_notifier"
	RoleSingleInstance  Role = "single_instance"
)

// DB holds the sqlite connection target.
type DB struct {
	URI  string `toml:"uri"`
	Name string `toml:"name"`
}

// WatcherEndpoint is one chain watcher the adapter/listener role connects
// to as a client.
type WatcherEndpoint struct {
	Network  string `toml:"network"`
	Endpoint string `toml:"endpoint"`
}

// AdapterConfig is the enabled/transport block shared by every
// MessageAdapter entry (matrix, twitter, email) and the display-name
// checker.
type AdapterConfig struct {
	Enabled bool `toml:"enabled"`

	// Poll interval between fetch_messages calls; ignored by display_name,
	// which has no poller.
	Interval Duration `toml:"interval"`

	// Transport-specific fields. Only the fields relevant to the adapter
	// are populated; TOML simply leaves the rest at their zero value.
	Server   string `toml:"server,omitempty"`   // matrix homeserver / email SMTP host
	Username string `toml:"username,omitempty"` // matrix/twitter/email login
	Password string `toml:"password,omitempty"`
	Token    string `toml:"token,omitempty"` // twitter bearer token

	IMAPServer string `toml:"imap_server,omitempty"`
	IMAPPort   int    `toml:"imap_port,omitempty"`
	SMTPPort   int    `toml:"smtp_port,omitempty"`
	From       string `toml:"from,omitempty"` // email adapter's SMTP From header

	// Limit is the display-name similarity threshold; meaningful only for
	// the display_name block.
	Limit float64 `toml:"limit,omitempty"`
}

// AdapterListenerConfig is the role-specific config for an
// adapter_listener instance: which chains to watch and which message
// adapters to run.
type AdapterListenerConfig struct {
	Watchers    []WatcherEndpoint `toml:"watchers"`
	Matrix      AdapterConfig     `toml:"matrix"`
	Twitter     AdapterConfig     `toml:"twitter"`
	Email       AdapterConfig     `toml:"email"`
	DisplayName AdapterConfig     `toml:"display_name"`
}

// SessionNotifierConfig is the role-specific config for a
// session_notifier instance: the HTTP/WS bind address and the
// display-name check endpoint's threshold.
type SessionNotifierConfig struct {
	APIAddress  string `toml:"api_address"`
	DisplayName struct {
		Enabled bool    `toml:"enabled"`
		Limit   float64 `toml:"limit"`
	} `toml:"display_name"`
}

// Sweeper configures the idle-timeout sweep (spec.md §4.2).
type Sweeper struct {
	Interval    Duration `toml:"interval"`
	IdleTimeout Duration `toml:"idle_timeout"`
}

// Server holds the process-lifecycle knobs server.Server reads.
type Server struct {
	ShutdownGracefulTimeout Duration `toml:"shutdown_graceful_timeout"`
}

// Backup configures continuous replication of the store's sqlite file to a
// local replica directory. Disabled (zero-valued) by default; set
// ReplicaPath to enable it.
type Backup struct {
	ReplicaPath string `toml:"replica_path,omitempty"`
	ReplicaName string `toml:"replica_name,omitempty"`
}

// Config is the fully parsed, validated configuration for one process.
type Config struct {
	DB       DB             `toml:"db"`
	Instance InstanceConfig `toml:"instance"`

	Sweeper Sweeper `toml:"sweeper"`
	Server  Server  `toml:"server"`
	Backup  Backup  `toml:"backup"`
}

// InstanceConfig is decoded in two passes: the envelope (Role plus the raw
// "config" table) first, then RawConfig is re-encoded and re-decoded into
// whichever role-specific struct Role selects. go-toml/v2 has no Node type
// to decode a subtree directly, so the generic map gets marshaled back to
// TOML bytes and unmarshaled again, the way the teacher's config_load.go
// treats the whole file as an opaque byte blob between decrypt and decode.
type InstanceConfig struct {
	Role      Role                   `toml:"role"`
	RawConfig map[string]interface{} `toml:"config"`

	// Populated by decodeRoleConfig after the envelope pass. Exactly one
	// is meaningful per Role; single_instance populates both.
	AdapterListener AdapterListenerConfig `toml:"-"`
	SessionNotifier SessionNotifierConfig `toml:"-"`
}

// decodeRoleConfig re-decodes RawConfig into the struct(s) selected by
// Role, the second pass of the discriminated-union decode.
func (i *InstanceConfig) decodeRoleConfig() error {
	raw, err := toml.Marshal(i.RawConfig)
	if err != nil {
		return fmt.Errorf("config: re-encode instance config: %w", err)
	}

	switch i.Role {
	case RoleAdapterListener:
		if err := toml.Unmarshal(raw, &i.AdapterListener); err != nil {
			return fmt.Errorf("config: decode adapter_listener config: %w", err)
		}
	case RoleSessionNotifier:
		if err := toml.Unmarshal(raw, &i.SessionNotifier); err != nil {
			return fmt.Errorf("config: decode session_notifier config: %w", err)
		}
	case RoleSingleInstance:
		if err := toml.Unmarshal(raw, &i.AdapterListener); err != nil {
			return fmt.Errorf("config: decode single_instance adapter config: %w", err)
		}
		if err := toml.Unmarshal(raw, &i.SessionNotifier); err != nil {
			return fmt.Errorf("config: decode single_instance notifier config: %w", err)
		}
	default:
		return fmt.Errorf("config: unknown instance role %q", i.Role)
	}
	return nil
}
