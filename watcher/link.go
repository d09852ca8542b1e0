package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// Link is a thin wrapper over one websocket connection to a chain
// watcher, framing every read/write as a Frame.
type Link struct {
	conn *websocket.Conn
}

// Dial opens a new Link to endpoint.
func Dial(ctx context.Context, endpoint string) (*Link, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("watcher: dial %s: %w", endpoint, err)
	}
	return &Link{conn: conn}, nil
}

// Close closes the underlying connection.
func (l *Link) Close() error {
	return l.conn.Close()
}

// Send encodes data and writes it as a frame with the given event type.
func (l *Link) Send(event EventType, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("watcher: marshal %s payload: %w", event, err)
	}
	frame := Frame{Event: event, Data: raw}
	encoded, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("watcher: marshal frame: %w", err)
	}
	return l.conn.WriteMessage(websocket.TextMessage, encoded)
}

// SetReadDeadline forwards to the underlying connection, used by the
// connector's read loop to detect a watcher that stopped responding.
func (l *Link) SetReadDeadline(t time.Time) error {
	return l.conn.SetReadDeadline(t)
}

// ReadFrame blocks for the next frame off the wire.
func (l *Link) ReadFrame() (Frame, error) {
	var frame Frame
	_, raw, err := l.conn.ReadMessage()
	if err != nil {
		return frame, err
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		return frame, fmt.Errorf("watcher: unmarshal frame: %w", err)
	}
	return frame, nil
}
