package verifier

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dotsama/identity-registrar/config"
	"github.com/dotsama/identity-registrar/identity"
)

// sweepConcurrencyMultiplier bounds how many timed-out states a tick
// processes concurrently, scaled by CPU count like the teacher's job
// scheduler scales its per-tick worker count.
const sweepConcurrencyMultiplier = 2

// JudgementReporter is the subset of the watcher connector the Sweeper
// needs: notifying it that a timed-out state must be reported erroneous.
type JudgementReporter interface {
	ReportErroneous(ctx context.Context, c identity.Context) error
}

// Sweeper is a Daemon that periodically deletes judgement states that have
// sat unverified past the configured idle timeout, notifying the watcher
// connector with an Erroneous judgement for each before deleting it.
type Sweeper struct {
	engine   *Engine
	reporter JudgementReporter
	cfg      config.Sweeper

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownDone chan struct{}
}

// NewSweeper builds a Sweeper. reporter may be nil in deployments that run
// a Sweeper without a live watcher connection (the sweep still deletes
// timed-out states; it simply skips the Erroneous notification).
func NewSweeper(engine *Engine, reporter JudgementReporter, cfg config.Sweeper) *Sweeper {
	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		engine:       engine,
		reporter:     reporter,
		cfg:          cfg,
		ctx:          ctx,
		cancel:       cancel,
		shutdownDone: make(chan struct{}),
	}
}

// Name implements server.Daemon.
func (s *Sweeper) Name() string { return "verifier.sweeper" }

// Start implements server.Daemon.
func (s *Sweeper) Start() error {
	go func() {
		slog.Info("starting timeout sweeper", "interval", s.cfg.Interval.Duration)
		ticker := time.NewTicker(s.cfg.Interval.Duration)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				close(s.shutdownDone)
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
	return nil
}

// Stop implements server.Daemon.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.cancel()
	select {
	case <-s.shutdownDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) sweep() {
	deadline := time.Now().Add(-s.cfg.IdleTimeout.Duration).UnixMilli()

	states, err := s.engine.store.FetchTimedOut(s.ctx, deadline)
	if err != nil {
		slog.Error("sweeper: fetch timed out states", "err", err)
		return
	}
	if len(states) == 0 {
		return
	}

	g, ctx := errgroup.WithContext(s.ctx)
	g.SetLimit(runtime.NumCPU() * sweepConcurrencyMultiplier)

	for _, st := range states {
		st := st
		g.Go(func() error {
			if s.reporter != nil {
				if err := s.reporter.ReportErroneous(ctx, st.Context); err != nil {
					slog.Error("sweeper: report erroneous", "context", st.Context, "err", err)
				}
			}
			if err := s.engine.store.DeleteJudgement(ctx, st.Context); err != nil {
				slog.Error("sweeper: delete timed out judgement", "context", st.Context, "err", err)
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("sweeper: batch finished with errors", "err", err)
	}
}
