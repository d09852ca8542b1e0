package sqlite

import (
	"context"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/dotsama/identity-registrar/identity"
	"github.com/dotsama/identity-registrar/store"
)

// appendEvent inserts one event-log row. Callers run it inside the same
// savepoint as the state mutation it documents, so invariant 5 (exactly
// one event per mutation) holds even on crash/retry.
func appendEvent(conn *sqlite.Conn, msg identity.NotificationMessage) error {
	payload, err := encodeMessage(msg)
	if err != nil {
		return err
	}
	if err := sqlitex.Execute(conn, `
		INSERT INTO event_log (timestamp, message_json) VALUES (unixepoch('now','subsec') * 1000, ?)`,
		&sqlitex.ExecOptions{Args: []any{payload}}); err != nil {
		return store.Transient(err)
	}
	return nil
}

// FetchEvents implements store.Store. The cursor is the event_log rowid;
// results are ordered by cursor (insertion order), and the returned cursor
// is the last row's, ready to resume from.
func (s *Store) FetchEvents(ctx context.Context, cursor int64) ([]identity.Event, int64, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, cursor, err
	}
	defer s.pool.Put(conn)

	var events []identity.Event
	nextCursor := cursor
	var scanErr error

	execErr := sqlitex.Execute(conn, `
		SELECT cursor, timestamp, message_json FROM event_log WHERE cursor > ? ORDER BY cursor ASC`,
		&sqlitex.ExecOptions{
			Args: []any{cursor},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				msg, err := decodeMessage(stmt.GetText("message_json"))
				if err != nil {
					scanErr = err
					return err
				}
				events = append(events, identity.Event{
					Timestamp: stmt.GetInt64("timestamp"),
					Message:   msg,
				})
				nextCursor = stmt.GetInt64("cursor")
				return nil
			},
		})
	if execErr != nil {
		return nil, cursor, store.Transient(execErr)
	}
	if scanErr != nil {
		return nil, cursor, store.Fatal(scanErr)
	}
	return events, nextCursor, nil
}
