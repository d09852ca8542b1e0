package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dotsama/identity-registrar/cache"
	"github.com/dotsama/identity-registrar/cache/ristretto"
	"github.com/dotsama/identity-registrar/identity"
)

// State is the connector's position in the Disconnected/Connecting/Live
// state machine.
type State int

const (
	Disconnected State = iota
	Connecting
	Live
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Live:
		return "live"
	default:
		return "disconnected"
	}
}

const (
	heartbeatInterval = 5 * time.Second
	pingTimeout       = 30 * time.Second
	judgementPoll     = 1 * time.Second
	backoffStart      = 1 * time.Second
	backoffCap        = 10 * time.Second
	dedupTTL          = 10 * time.Second
)

// IngestEngine is the subset of verifier.Engine the connector drives with
// inbound judgement requests.
type IngestEngine interface {
	IngestRequest(ctx context.Context, address string, fields []identity.FieldValue, now int64) error
}

// SubmitStore is the subset of store.Store the judgement-provider loop
// needs: finding completed-but-unsubmitted identities and marking them
// submitted once the watcher acknowledges the judgementResult frame.
type SubmitStore interface {
	FetchCompletedUnsubmitted(ctx context.Context, now int64) ([]identity.JudgementState, error)
	SetSubmitted(ctx context.Context, c identity.Context) error
}

// Clock abstracts wall-clock time so the connector stays testable.
type Clock func() int64

// Connector owns one persistent link to a chain watcher, running the
// Disconnected/Connecting/Live state machine described by spec.md §4.3.
type Connector struct {
	Network  string
	Endpoint string
	Engine   IngestEngine
	Store    SubmitStore
	Clock    Clock
	Logger   *slog.Logger

	dial func(ctx context.Context, endpoint string) (*Link, error)

	mu    sync.Mutex
	state State
	link  *Link

	dedup cache.Cache[string, struct{}]

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownDone chan struct{}
}

// NewConnector builds a Connector for one chain watcher endpoint.
func NewConnector(network, endpoint string, engine IngestEngine, store SubmitStore, logger *slog.Logger) *Connector {
	dedup, err := ristretto.New[struct{}]("small")
	if err != nil {
		// The "small" preset is a fixed literal; a failure here means the
		// cache library itself is broken, not bad input.
		panic(fmt.Sprintf("watcher: build dedup cache: %v", err))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Connector{
		Network:      network,
		Endpoint:     endpoint,
		Engine:       engine,
		Store:        store,
		Clock:        func() int64 { return time.Now().UnixMilli() },
		Logger:       logger.With("network", network),
		dial:         Dial,
		dedup:        dedup,
		ctx:          ctx,
		cancel:       cancel,
		shutdownDone: make(chan struct{}),
	}
}

// Name implements server.Daemon.
func (c *Connector) Name() string { return "watcher." + c.Network }

// Start implements server.Daemon.
func (c *Connector) Start() error {
	go c.run()
	return nil
}

// Stop implements server.Daemon.
func (c *Connector) Stop(ctx context.Context) error {
	c.cancel()
	select {
	case <-c.shutdownDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReportErroneous implements verifier.JudgementReporter: it sends an
// erroneous judgementResult frame for c over the current link, if live.
func (c *Connector) ReportErroneous(ctx context.Context, id identity.Context) error {
	return c.sendJudgement(id, JudgementErroneous)
}

func (c *Connector) run() {
	defer close(c.shutdownDone)
	backoff := backoffStart

	for {
		if c.ctx.Err() != nil {
			return
		}

		c.setState(Connecting)
		link, err := c.dial(c.ctx, c.Endpoint)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.Logger.Warn("dial failed, retrying", "err", err, "backoff", backoff)
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = nextBackoff(backoff)
			continue
		}

		backoff = backoffStart
		c.resetDedup()
		c.enterLive(link)

		// enterLive blocks until the link drops or the connector stops.
		c.setState(Disconnected)
		if c.ctx.Err() != nil {
			return
		}
	}
}

// resetDedup replaces the dedup cache with a fresh one on each reconnect
// (spec.md §4.3: "the in-memory dedup cache is cleared on reconnect").
func (c *Connector) resetDedup() {
	dedup, err := ristretto.New[struct{}]("small")
	if err != nil {
		panic(fmt.Sprintf("watcher: rebuild dedup cache: %v", err))
	}
	c.mu.Lock()
	c.dedup = dedup
	c.mu.Unlock()
}

func (c *Connector) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Current reports the connector's current state.
func (c *Connector) Current() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connector) enterLive(link *Link) {
	c.mu.Lock()
	c.link = link
	c.mu.Unlock()
	defer func() {
		link.Close()
		c.mu.Lock()
		c.link = nil
		c.mu.Unlock()
	}()

	if err := link.Send(EventPendingJudgementsRequest, struct{}{}); err != nil {
		c.Logger.Error("send pendingJudgementsRequest failed", "err", err)
		return
	}
	if err := link.Send(EventDisplayNamesRequest, struct{}{}); err != nil {
		c.Logger.Error("send displayNamesRequest failed", "err", err)
		return
	}
	c.setState(Live)
	c.Logger.Info("watcher link live")

	readErrs := make(chan error, 1)

	go func() {
		readErrs <- c.readLoop(link)
	}()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	submitTicker := time.NewTicker(judgementPoll)
	defer submitTicker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case err := <-readErrs:
			if err != nil {
				c.Logger.Warn("watcher link read failed", "err", err)
			}
			return
		case <-ticker.C:
			if err := link.Send(EventPing, struct{}{}); err != nil {
				c.Logger.Warn("ping failed", "err", err)
				return
			}
		case <-submitTicker.C:
			c.submitCompleted(link)
		}
	}
}

// readLoop dispatches every inbound frame until the link errors out or a
// read exceeds pingTimeout, the "no frame received in 30s" rule.
func (c *Connector) readLoop(link *Link) error {
	for {
		if err := link.SetReadDeadline(time.Now().Add(pingTimeout)); err != nil {
			return err
		}
		frame, err := link.ReadFrame()
		if err != nil {
			return err
		}
		if err := c.dispatch(link, frame); err != nil {
			c.Logger.Error("dispatch frame failed", "event", frame.Event, "err", err)
		}
	}
}

func (c *Connector) dispatch(link *Link, frame Frame) error {
	switch frame.Event {
	case EventNewJudgementRequest:
		var p AccountsPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return err
		}
		return c.ingest(p)
	case EventPendingJudgementsResponse:
		var entries []AccountsPayload
		if err := json.Unmarshal(frame.Data, &entries); err != nil {
			return err
		}
		for _, p := range entries {
			if err := c.ingest(p); err != nil {
				c.Logger.Error("ingest pending judgement failed", "address", p.Address, "err", err)
			}
		}
		return nil
	case EventDisplayNamesResponse:
		// Every display name the watcher knows about arrives attached to
		// a newJudgementRequest/pendingJudgementsResponse entry already
		// routed through ingest above, so there is nothing further to
		// persist here.
		return nil
	case EventAck:
		var p AckPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return err
		}
		return c.handleAck(p)
	case EventError:
		var p ErrorPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return err
		}
		c.Logger.Error("watcher reported error", "message", p.Message)
		return nil
	default:
		c.Logger.Warn("unhandled watcher frame", "event", frame.Event)
		return nil
	}
}

func (c *Connector) ingest(p AccountsPayload) error {
	fields := make([]identity.FieldValue, 0, len(p.Accounts))
	for accountType, value := range p.Accounts {
		v, ok := identity.FieldValueFromAccount(identity.AccountType(accountType), value)
		if !ok {
			c.Logger.Warn("unknown account type in judgement request", "account_type", accountType)
			continue
		}
		fields = append(fields, v)
	}
	return c.Engine.IngestRequest(c.ctx, p.Address, fields, c.Clock())
}

func (c *Connector) handleAck(p AckPayload) error {
	if p.Address == "" {
		return nil
	}
	id := identity.NewContext(p.Address)
	if p.Result != "ok" {
		c.Logger.Warn("watcher rejected judgementResult", "address", p.Address, "result", p.Result)
		return nil
	}
	return c.Store.SetSubmitted(c.ctx, id)
}

// submitCompleted polls for fully-verified, unsubmitted identities and
// reports each as "reasonable", deduped within dedupTTL so a slow ack
// doesn't cause a resend every tick.
func (c *Connector) submitCompleted(link *Link) {
	states, err := c.Store.FetchCompletedUnsubmitted(c.ctx, c.Clock())
	if err != nil {
		c.Logger.Error("fetch completed unsubmitted failed", "err", err)
		return
	}
	for _, st := range states {
		if err := c.sendJudgementOn(link, st.Context, JudgementReasonable); err != nil {
			c.Logger.Error("send judgementResult failed", "address", st.Context.Address, "err", err)
		}
	}
}

// sendJudgement sends a judgementResult frame over whatever link is
// currently live, used by ReportErroneous which has no link reference.
func (c *Connector) sendJudgement(id identity.Context, judgement Judgement) error {
	c.mu.Lock()
	link := c.link
	c.mu.Unlock()
	if link == nil {
		return errors.New("watcher: no live connection")
	}
	return c.sendJudgementOn(link, id, judgement)
}

func (c *Connector) sendJudgementOn(link *Link, id identity.Context, judgement Judgement) error {
	key := id.Address + ":" + string(judgement)

	c.mu.Lock()
	dedup := c.dedup
	c.mu.Unlock()

	if _, found := dedup.Get(key); found {
		return nil
	}
	if err := link.Send(EventJudgementResult, JudgementResultPayload{Address: id.Address, Judgement: judgement}); err != nil {
		return err
	}
	dedup.SetWithTTL(key, struct{}{}, 1, dedupTTL)
	return nil
}

func nextBackoff(d time.Duration) time.Duration {
	next := d * 2
	if next > backoffCap {
		return backoffCap
	}
	return next
}
