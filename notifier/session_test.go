package notifier

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dotsama/identity-registrar/identity"
)

type fakeStateSource struct {
	state identity.JudgementState
}

func (f *fakeStateSource) FetchJudgementState(ctx context.Context, c identity.Context) (identity.JudgementState, error) {
	return f.state, nil
}

func TestAccountStatusHandlerSendsInitialStateThenEvents(t *testing.T) {
	c := identity.NewContext("14abc")
	req := identity.JudgementRequest{Context: c, Fields: []identity.FieldValue{identity.Email("a@example.com")}}
	state, err := req.ToState(1000)
	if err != nil {
		t.Fatalf("ToState: %v", err)
	}

	source := &fakeStateSource{state: state}
	eventSource := &fakeEventSource{}
	hub := NewHub(eventSource, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx, 5*time.Millisecond)

	srv := httptest.NewServer(AccountStatusHandler(source, hub, testLogger()))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(subscribeFrame{Address: "14abc", Chain: identity.Polkadot}); err != nil {
		t.Fatalf("write subscribe frame: %v", err)
	}

	var blanked identity.JudgementStateBlanked
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&blanked); err != nil {
		t.Fatalf("read initial state: %v", err)
	}
	if blanked.Context.Address != "14abc" {
		t.Fatalf("expected address 14abc, got %q", blanked.Context.Address)
	}

	eventSource.push(identity.Event{Timestamp: 1, Message: identity.FieldVerified(c, identity.KindEmail)})

	var ev identity.Event
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read fanned-out event: %v", err)
	}
	if ev.Message.Kind != identity.NotifyFieldVerified {
		t.Fatalf("expected FieldVerified event, got %v", ev.Message.Kind)
	}
}
