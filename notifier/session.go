package notifier

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/dotsama/identity-registrar/identity"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StateSource is the subset of store.Store a session needs to answer the
// initial account_status subscribe frame.
type StateSource interface {
	FetchJudgementState(ctx context.Context, c identity.Context) (identity.JudgementState, error)
}

// subscribeFrame is the one JSON frame a client sends to open a session.
type subscribeFrame struct {
	Address string         `json:"address"`
	Chain   identity.Chain `json:"chain"`
}

// envelope is the {"result_type": "ok"|"err", "message": ...} response
// shape verify_second_challenge and check_display_name both use.
type envelope struct {
	ResultType string `json:"result_type"`
	Message    any    `json:"message"`
}

// AccountStatusHandler upgrades /api/account_status to a websocket and
// runs one session per connection: subscribe, send current blanked state,
// then stream every subsequent event for that context until the socket
// closes, per spec.md §4.5.
func AccountStatusHandler(source StateSource, hub *Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("account_status upgrade failed", "err", err)
			return
		}
		defer conn.Close()

		var sub subscribeFrame
		if err := conn.ReadJSON(&sub); err != nil {
			writeErr(conn, "invalid subscribe frame")
			return
		}
		c := identity.Context{Address: sub.Address, Chain: sub.Chain}

		state, err := source.FetchJudgementState(r.Context(), c)
		if err != nil {
			writeErr(conn, "unknown identity")
			return
		}
		if err := conn.WriteJSON(identity.Blank(state)); err != nil {
			return
		}

		events, unsubscribe := hub.Subscribe(c)
		defer unsubscribe()

		runSession(conn, events)
	}
}

// runSession streams subscribed events to the client until the socket
// errors or a close frame arrives (spec.md §6: "WebSocket close frames
// propagate and terminate the session's task").
func runSession(conn *websocket.Conn, events <-chan identity.Event) {
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

func writeErr(conn *websocket.Conn, message string) {
	_ = conn.WriteJSON(envelope{ResultType: "err", Message: message})
}
