// Package adapters implements the three concrete MessageAdapter
// transports the Adapter Listener polls: Matrix, Twitter, and Email. No
// client library for any of the three exists anywhere in the retrieved
// corpus, so each implements the minimal subset of its wire protocol the
// adapter needs: Matrix and Twitter over plain net/http, Email over IMAP
// on crypto/tls for reading and SMTP for sending (documented in DESIGN.md
// as a stdlib fallback).
package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dotsama/identity-registrar/identity"
)

// Matrix polls one homeserver's /sync endpoint for messages in rooms the
// registrar account has been invited to, treating every invite as an
// implicit join (spec.md §4.1's "DM only" contact model).
type Matrix struct {
	Server   string
	Username string
	Password string

	client      *http.Client
	accessToken string
	nextBatch   string
}

// NewMatrix builds a Matrix adapter. Login happens lazily on first
// FetchMessages call so construction never blocks on the network.
func NewMatrix(server, username, password string) *Matrix {
	return &Matrix{
		Server:   strings.TrimSuffix(server, "/"),
		Username: username,
		Password: password,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (m *Matrix) Name() string { return "matrix" }

func (m *Matrix) ensureLogin(ctx context.Context) error {
	if m.accessToken != "" {
		return nil
	}
	body, err := json.Marshal(map[string]any{
		"type": "m.login.password",
		"identifier": map[string]string{
			"type": "m.id.user",
			"user": m.Username,
		},
		"password": m.Password,
	})
	if err != nil {
		return fmt.Errorf("matrix: encode login body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Server+"/_matrix/client/v3/login", strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("matrix: build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("matrix: login: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("matrix: login returned status %d", resp.StatusCode)
	}

	var decoded struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("matrix: decode login response: %w", err)
	}
	m.accessToken = decoded.AccessToken
	return nil
}

type syncResponse struct {
	NextBatch string `json:"next_batch"`
	Rooms     struct {
		Invite map[string]json.RawMessage `json:"invite"`
		Join   map[string]struct {
			Timeline struct {
				Events []struct {
					Type    string `json:"type"`
					Sender  string `json:"sender"`
					EventID string `json:"event_id"`
					Origin  int64  `json:"origin_server_ts"`
					Content struct {
						Body string `json:"body"`
					} `json:"content"`
				} `json:"events"`
			} `json:"timeline"`
		} `json:"join"`
	} `json:"rooms"`
}

// FetchMessages calls /sync once with a zero timeout (no long-poll), auto-joining any pending invite and
// returning every m.room.message event received since the last call.
func (m *Matrix) FetchMessages(ctx context.Context) ([]identity.ExternalMessage, error) {
	if err := m.ensureLogin(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("access_token", m.accessToken)
	params.Set("timeout", "0")
	if m.nextBatch != "" {
		params.Set("since", m.nextBatch)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.Server+"/_matrix/client/v3/sync?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("matrix: build sync request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("matrix: sync: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("matrix: sync returned status %d", resp.StatusCode)
	}

	var sync syncResponse
	if err := json.NewDecoder(resp.Body).Decode(&sync); err != nil {
		return nil, fmt.Errorf("matrix: decode sync response: %w", err)
	}
	m.nextBatch = sync.NextBatch

	for roomID := range sync.Rooms.Invite {
		m.join(ctx, roomID)
	}

	var out []identity.ExternalMessage
	for _, room := range sync.Rooms.Join {
		for _, ev := range room.Timeline.Events {
			if ev.Type != "m.room.message" || ev.Sender == m.Username {
				continue
			}
			out = append(out, identity.ExternalMessage{
				Origin:    identity.MatrixOrigin(ev.Sender),
				ID:        idFromEventID(ev.EventID),
				Timestamp: ev.Origin,
				Values:    []string{ev.Content.Body},
			})
		}
	}
	return out, nil
}

func (m *Matrix) join(ctx context.Context, roomID string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/_matrix/client/v3/join/%s?access_token=%s", m.Server, url.PathEscape(roomID), m.accessToken), nil)
	if err != nil {
		return
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}

// idFromEventID turns a Matrix event ID into the uint64 dedup key
// ExternalMessage.ID wants, via a cheap FNV-style fold since event IDs are
// opaque, server-chosen strings with no numeric structure.
func idFromEventID(eventID string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(eventID); i++ {
		h ^= uint64(eventID[i])
		h *= 1099511628211
	}
	return h
}
