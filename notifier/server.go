// Package notifier implements the Notifier / Session Server (spec.md
// §4.5): the WebSocket account_status fan-out, the verify_second_challenge
// and check_display_name HTTP endpoints, and the health check.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dotsama/identity-registrar/router"
	httprouter "github.com/dotsama/identity-registrar/router/httprouter"
	"github.com/dotsama/identity-registrar/similarity"
)

// Server is the notifier's HTTP/WebSocket Daemon.
type Server struct {
	addr   string
	logger *slog.Logger
	http   *http.Server
}

// NewServer wires every notifier route onto a fresh router and returns a
// Server ready to Start.
func NewServer(addr string, source StateSource, engine ChallengeVerifier, displayNames DisplayNameStore, health HealthChecker, hub *Hub, checker similarity.Checker, clock Clock, logger *slog.Logger) *Server {
	var r router.Router = httprouter.New()

	r.Get("/api/account_status", AccountStatusHandler(source, hub, logger))
	r.Post("/api/verify_second_challenge", VerifySecondChallengeHandler(engine, clock, logger))
	r.Post("/api/check_display_name", CheckDisplayNameHandler(displayNames, checker, logger))
	r.Get("/healthcheck", HealthcheckHandler(health))

	return &Server{
		addr:   addr,
		logger: logger,
		http:   &http.Server{Addr: addr, Handler: r},
	}
}

// Name implements server.Daemon.
func (s *Server) Name() string { return "notifier.server" }

// Start implements server.Daemon.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("notifier: listen on %s: %w", s.addr, err)
	}
	go func() {
		s.logger.Info("notifier server listening", "addr", s.addr)
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("notifier server stopped", "err", err)
		}
	}()
	return nil
}

// Stop implements server.Daemon.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}
