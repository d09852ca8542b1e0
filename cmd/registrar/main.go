// Command registrar runs one identity-registrar process: an
// adapter_listener, a session_notifier, or both combined, per the role
// selected in its config file (spec.md §6).
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dotsama/identity-registrar/backup"
	"github.com/dotsama/identity-registrar/config"
	"github.com/dotsama/identity-registrar/listener"
	"github.com/dotsama/identity-registrar/listener/adapters"
	"github.com/dotsama/identity-registrar/notifier"
	"github.com/dotsama/identity-registrar/ratesketch"
	"github.com/dotsama/identity-registrar/server"
	"github.com/dotsama/identity-registrar/similarity"
	"github.com/dotsama/identity-registrar/store/sqlite"
	"github.com/dotsama/identity-registrar/verifier"
	"github.com/dotsama/identity-registrar/watcher"
)

func main() {
	configPath := flag.String("config", "", "path to config.toml (default: search ./config.toml then /etc/registrar/config.toml)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cfg, path, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("configuration loaded", "path", path, "role", cfg.Instance.Role)

	if err := run(cfg, path, logger); err != nil {
		logger.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func loadConfig(explicitPath string) (*config.Config, string, error) {
	if explicitPath != "" {
		cfg, err := config.Load(explicitPath)
		return cfg, explicitPath, err
	}
	return config.LoadDefault()
}

func run(cfg *config.Config, path string, logger *slog.Logger) error {
	db, err := sqlite.New(cfg.DB.URI)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	sim := similarity.NewChecker(cfg.Instance.AdapterListener.DisplayName.Limit)
	engine := verifier.NewEngine(db, sim)

	provider := config.NewProvider(cfg, path)
	srv := server.NewServer(provider, logger)

	if cfg.Backup.ReplicaPath != "" {
		lsDaemon, err := backup.NewLitestream(cfg.DB.URI, cfg.Backup, logger)
		if err != nil {
			return fmt.Errorf("init backup: %w", err)
		}
		srv.AddDaemon(lsDaemon)
	}

	var connectors []*watcher.Connector
	role := cfg.Instance.Role

	if role == config.RoleAdapterListener || role == config.RoleSingleInstance {
		for _, w := range cfg.Instance.AdapterListener.Watchers {
			c := watcher.NewConnector(w.Network, w.Endpoint, engine, db, logger)
			connectors = append(connectors, c)
			srv.AddDaemon(c)
		}

		var reporter verifier.JudgementReporter
		if len(connectors) > 0 {
			reporter = connectors[0]
		}
		srv.AddDaemon(verifier.NewSweeper(engine, reporter, cfg.Sweeper))

		for _, poller := range buildPollers(&cfg.Instance.AdapterListener, engine, logger) {
			srv.AddDaemon(poller)
		}
	}

	if role == config.RoleSessionNotifier || role == config.RoleSingleInstance {
		sessionCfg := cfg.Instance.SessionNotifier
		hub := notifier.NewHub(db, logger)
		srv.AddDaemon(hub)

		notifySim := similarity.NewChecker(sessionCfg.DisplayName.Limit)
		clock := func() int64 { return time.Now().UnixMilli() }
		notifyServer := notifier.NewServer(sessionCfg.APIAddress, db, engine, db, db, hub, notifySim, clock, logger)
		srv.AddDaemon(notifyServer)
	}

	srv.Run()
	return nil
}

// buildPollers constructs one supervised listener.Poller per enabled
// adapter, wiring each to the shared abuse sketch so the operator sees one
// unified view of per-origin message volume across all three transports.
func buildPollers(cfg *config.AdapterListenerConfig, engine *verifier.Engine, logger *slog.Logger) []*listener.Poller {
	abuse := listener.NewAbusePolicy(ratesketch.SketchParams{
		K:          20,
		WindowSize: 10,
		Width:      256,
		Depth:      4,
	}, logger)

	var pollers []*listener.Poller
	if cfg.Matrix.Enabled {
		a := adapters.NewMatrix(cfg.Matrix.Server, cfg.Matrix.Username, cfg.Matrix.Password)
		pollers = append(pollers, listener.NewPoller(a, engine, cfg.Matrix.Interval.Duration, abuse, nil, logger))
	}
	if cfg.Twitter.Enabled {
		a := adapters.NewTwitter(cfg.Twitter.Token, cfg.Twitter.Username)
		pollers = append(pollers, listener.NewPoller(a, engine, cfg.Twitter.Interval.Duration, abuse, nil, logger))
	}
	if cfg.Email.Enabled {
		a := adapters.NewEmail(cfg.Email.IMAPServer, cfg.Email.IMAPPort, cfg.Email.Username, cfg.Email.Password,
			cfg.Email.Server, cfg.Email.SMTPPort, cfg.Email.From)
		engine.WithSender(a)
		pollers = append(pollers, listener.NewPoller(a, engine, cfg.Email.Interval.Duration, abuse, nil, logger))
	}
	return pollers
}
