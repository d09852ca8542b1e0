package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMatrixFetchMessagesJoinsInviteAndReturnsTimelineMessages(t *testing.T) {
	var joined string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/_matrix/client/v3/login":
			json.NewEncoder(w).Encode(map[string]string{"access_token": "tok"})
		case r.URL.Path == "/_matrix/client/v3/sync":
			json.NewEncoder(w).Encode(map[string]any{
				"next_batch": "batch2",
				"rooms": map[string]any{
					"invite": map[string]any{"!new:example.org": map[string]any{}},
					"join": map[string]any{
						"!room:example.org": map[string]any{
							"timeline": map[string]any{
								"events": []map[string]any{
									{
										"type":             "m.room.message",
										"sender":           "@alice:example.org",
										"event_id":         "$1",
										"origin_server_ts": 1000,
										"content":          map[string]string{"body": "my token is abc"},
									},
								},
							},
						},
					},
				},
			})
		default:
			if r.Method == http.MethodPost {
				joined = r.URL.Path
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{})
		}
	}))
	defer srv.Close()

	m := NewMatrix(srv.URL, "@registrar:example.org", "secret")
	msgs, err := m.FetchMessages(context.Background())
	if err != nil {
		t.Fatalf("FetchMessages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Values[0] != "my token is abc" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	if joined == "" {
		t.Fatalf("expected adapter to auto-join the pending invite")
	}
	if m.nextBatch != "batch2" {
		t.Fatalf("expected next_batch to be tracked, got %q", m.nextBatch)
	}
}
