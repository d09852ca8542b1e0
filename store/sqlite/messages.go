package sqlite

import (
	"context"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/dotsama/identity-registrar/identity"
	"github.com/dotsama/identity-registrar/store"
)

// AddMessage implements store.Store: upsert by (origin, id), idempotent
// per invariant 7.
func (s *Store) AddMessage(ctx context.Context, msg identity.ExternalMessage) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	valuesJSON, err := encodeValues(msg.Values)
	if err != nil {
		return err
	}

	if err := sqlitex.Execute(conn, `
		INSERT INTO external_messages (origin_kind, origin_address, msg_id, timestamp, values_json)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(origin_kind, origin_address, msg_id) DO NOTHING`,
		&sqlitex.ExecOptions{
			Args: []any{
				int64(msg.Origin.Kind), msg.Origin.Address, int64(msg.ID),
				msg.Timestamp, valuesJSON,
			},
		}); err != nil {
		return store.Transient(err)
	}
	return nil
}

// FetchMessagesSince implements store.Store: messages ordered by timestamp
// ascending, with the cursor advanced to the last message's timestamp.
func (s *Store) FetchMessagesSince(ctx context.Context, cursor int64) ([]identity.ExternalMessage, int64, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, cursor, err
	}
	defer s.pool.Put(conn)

	var messages []identity.ExternalMessage
	nextCursor := cursor
	var scanErr error

	execErr := sqlitex.Execute(conn, `
		SELECT origin_kind, origin_address, msg_id, timestamp, values_json
		FROM external_messages WHERE timestamp > ? ORDER BY timestamp ASC`,
		&sqlitex.ExecOptions{
			Args: []any{cursor},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				values, err := decodeValues(stmt.GetText("values_json"))
				if err != nil {
					scanErr = err
					return err
				}
				msg := identity.ExternalMessage{
					Origin: identity.MessageOrigin{
						Kind:    identity.FieldKind(stmt.GetInt64("origin_kind")),
						Address: stmt.GetText("origin_address"),
					},
					ID:        uint64(stmt.GetInt64("msg_id")),
					Timestamp: stmt.GetInt64("timestamp"),
					Values:    values,
				}
				messages = append(messages, msg)
				nextCursor = msg.Timestamp
				return nil
			},
		})
	if execErr != nil {
		return nil, cursor, store.Transient(execErr)
	}
	if scanErr != nil {
		return nil, cursor, store.Fatal(scanErr)
	}
	return messages, nextCursor, nil
}
