package notifier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dotsama/identity-registrar/identity"
)

// EventSource is the subset of store.Store the hub needs to tail the
// append-only event log.
type EventSource interface {
	FetchEvents(ctx context.Context, cursor int64) ([]identity.Event, int64, error)
}

// eventBuffer is the per-subscriber channel capacity. A slow client drops
// nothing silently: the send is non-blocking and a full buffer just means
// the handle is garbage-collected as dead on the next fan-out, per
// spec.md §4.5's cyclic session/server reference note.
const eventBuffer = 32

// hubTickInterval is how often the hub polls the event log for new entries.
const hubTickInterval = 200 * time.Millisecond

// Hub tails the event log once and fans each entry out to every handle
// subscribed to that entry's context. It is itself a Daemon so the server
// manages its lifecycle alongside the HTTP listener.
type Hub struct {
	source EventSource
	logger *slog.Logger

	mu          sync.Mutex
	subscribers map[identity.Context][]chan identity.Event

	cursor int64

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownDone chan struct{}
}

// NewHub builds a Hub over source.
func NewHub(source EventSource, logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		source:       source,
		logger:       logger,
		subscribers:  make(map[identity.Context][]chan identity.Event),
		ctx:          ctx,
		cancel:       cancel,
		shutdownDone: make(chan struct{}),
	}
}

// Name implements server.Daemon.
func (h *Hub) Name() string { return "notifier.hub" }

// Start implements server.Daemon.
func (h *Hub) Start() error {
	go func() {
		defer close(h.shutdownDone)
		h.Run(h.ctx, hubTickInterval)
	}()
	return nil
}

// Stop implements server.Daemon.
func (h *Hub) Stop(ctx context.Context) error {
	h.cancel()
	select {
	case <-h.shutdownDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers a new handle for ctx and returns it along with an
// unsubscribe func the caller must run when the session ends.
func (h *Hub) Subscribe(ctx identity.Context) (<-chan identity.Event, func()) {
	ch := make(chan identity.Event, eventBuffer)
	h.mu.Lock()
	h.subscribers[ctx] = append(h.subscribers[ctx], ch)
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		handles := h.subscribers[ctx]
		for i, c := range handles {
			if c == ch {
				h.subscribers[ctx] = append(handles[:i], handles[i+1:]...)
				close(ch)
				break
			}
		}
		if len(h.subscribers[ctx]) == 0 {
			delete(h.subscribers, ctx)
		}
	}
	return ch, unsubscribe
}

// Run tails the event log on interval until ctx is cancelled.
func (h *Hub) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.tick(ctx)
		}
	}
}

func (h *Hub) tick(ctx context.Context) {
	events, next, err := h.source.FetchEvents(ctx, h.cursor)
	if err != nil {
		h.logger.Error("hub: fetch events failed", "err", err)
		return
	}
	h.cursor = next

	for _, ev := range events {
		h.fanOut(ev)
	}
}

func (h *Hub) fanOut(ev identity.Event) {
	h.mu.Lock()
	handles := append([]chan identity.Event(nil), h.subscribers[ev.Message.Ctx]...)
	h.mu.Unlock()

	for _, ch := range handles {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("dropping event for a slow subscriber", "context", ev.Message.Ctx)
		}
	}
}
