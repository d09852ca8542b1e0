package verifier

import (
	"context"
	"testing"
	"time"

	"github.com/dotsama/identity-registrar/config"
	"github.com/dotsama/identity-registrar/identity"
	"github.com/dotsama/identity-registrar/similarity"
	"github.com/dotsama/identity-registrar/store/storetest"
)

type fakeReporter struct {
	reported []identity.Context
}

func (r *fakeReporter) ReportErroneous(ctx context.Context, c identity.Context) error {
	r.reported = append(r.reported, c)
	return nil
}

func TestSweeperSweepReportsAndDeletes(t *testing.T) {
	timedOut := identity.Context{Address: "1stale", Chain: identity.Polkadot}
	var deleted []identity.Context

	mock := &storetest.Store{
		FetchTimedOutFunc: func(ctx context.Context, deadline int64) ([]identity.JudgementState, error) {
			return []identity.JudgementState{{Context: timedOut}}, nil
		},
		DeleteJudgementFunc: func(ctx context.Context, c identity.Context) error {
			deleted = append(deleted, c)
			return nil
		},
	}
	engine := NewEngine(mock, similarity.NewChecker(0.85))
	reporter := &fakeReporter{}
	sweeper := NewSweeper(engine, reporter, config.Sweeper{
		Interval:    config.Duration{Duration: time.Hour},
		IdleTimeout: config.Duration{Duration: time.Hour},
	})

	sweeper.sweep()

	if len(reporter.reported) != 1 || reporter.reported[0] != timedOut {
		t.Fatalf("expected one ReportErroneous call for %v, got %v", timedOut, reporter.reported)
	}
	if len(deleted) != 1 || deleted[0] != timedOut {
		t.Fatalf("expected one DeleteJudgement call for %v, got %v", timedOut, deleted)
	}
}

func TestSweeperStartStop(t *testing.T) {
	mock := &storetest.Store{
		FetchTimedOutFunc: func(ctx context.Context, deadline int64) ([]identity.JudgementState, error) {
			return nil, nil
		},
	}
	engine := NewEngine(mock, similarity.NewChecker(0.85))
	sweeper := NewSweeper(engine, nil, config.Sweeper{
		Interval:    config.Duration{Duration: time.Millisecond},
		IdleTimeout: config.Duration{Duration: time.Hour},
	})

	if err := sweeper.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sweeper.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
