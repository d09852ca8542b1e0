// Package server provides the top-level process lifecycle: starting every
// long-running component together, handling OS signals, and shutting
// everything down gracefully within a deadline.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dotsama/identity-registrar/config"
	"golang.org/x/sync/errgroup"
)

// Daemon defines the contract for background components managed by the
// server's lifecycle (Start/Stop): the verification sweeper, each message
// adapter poller, the watcher connector, and the notifier's HTTP server all
// implement it.
type Daemon interface {
	Name() string // For logging/identification
	Start() error
	Stop(ctx context.Context) error
}

// Server owns the set of daemons that make up a running registrar process
// and coordinates their startup, signal handling, and graceful shutdown.
type Server struct {
	configProvider *config.Provider
	logger         *slog.Logger
	daemons        []Daemon
}

// NewServer constructs a Server with no daemons attached; call AddDaemon to
// register each component before Run.
func NewServer(provider *config.Provider, logger *slog.Logger) *Server {
	return &Server{
		configProvider: provider,
		logger:         logger,
		daemons:        make([]Daemon, 0),
	}
}

// AddDaemon adds a daemon whose lifecycle will be managed by the server.
func (s *Server) AddDaemon(daemon Daemon) {
	if daemon == nil {
		s.logger.Warn("attempted to add a nil daemon")
		return
	}
	s.logger.Info("adding daemon", "daemon_name", daemon.Name())
	s.daemons = append(s.daemons, daemon)
}

func (s *Server) handleSIGHUP() {
	s.logger.Info("received SIGHUP, reloading configuration")
	if err := s.configProvider.Reload(); err != nil {
		s.logger.Error("configuration reload failed, keeping previous configuration", "error", err)
	}
}

// Run starts every registered daemon, then blocks until a termination
// signal or a daemon failure, and finally stops every daemon concurrently
// within the configured shutdown deadline.
func (s *Server) Run() {
	s.logger.Info("starting daemons sequentially")

	daemonError := make(chan error, 1)
	var startupFailed bool
	for _, daemon := range s.daemons {
		s.logger.Info("starting daemon", "daemon_name", daemon.Name())
		if err := daemon.Start(); err != nil {
			s.logger.Error("daemon failed to start, initiating shutdown",
				"daemon_name", daemon.Name(), "error", err)
			daemonError <- fmt.Errorf("daemon %q failed to start: %w", daemon.Name(), err)
			startupFailed = true
			break
		}
		s.logger.Info("daemon started", "daemon_name", daemon.Name())
	}
	if !startupFailed {
		s.logger.Info("all daemons started")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)

	running := true
	for running {
		select {
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				s.logger.Info("received termination signal, shutting down", "signal", sig)
				running = false
			case syscall.SIGHUP:
				s.handleSIGHUP()
			}
		case err := <-daemonError:
			s.logger.Error("daemon error, shutting down", "error", err)
			running = false
		}
	}

	signal.Stop(sigChan)
	close(sigChan)

	shutdownTimeout := s.configProvider.Get().Server.ShutdownGracefulTimeout.Duration
	gracefulCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	shutdownGroup, _ := errgroup.WithContext(gracefulCtx)
	s.logger.Info("stopping daemons")
	for _, d := range s.daemons {
		daemon := d
		shutdownGroup.Go(func() error {
			s.logger.Info("stopping daemon", "daemon_name", daemon.Name())
			if err := daemon.Stop(gracefulCtx); err != nil {
				s.logger.Error("daemon failed to stop gracefully", "daemon_name", daemon.Name(), "error", err)
				return fmt.Errorf("daemon %q failed to stop gracefully: %w", daemon.Name(), err)
			}
			s.logger.Info("daemon stopped", "daemon_name", daemon.Name())
			return nil
		})
	}

	if err := shutdownGroup.Wait(); err != nil {
		s.logger.Error("error during shutdown", "error", err)
		os.Exit(1)
	}

	s.logger.Info("all systems stopped gracefully")
}
