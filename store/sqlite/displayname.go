package sqlite

import (
	"context"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/dotsama/identity-registrar/identity"
	"github.com/dotsama/identity-registrar/store"
)

// FetchDisplayNames implements store.Store: every display name currently
// attached to an active (non-deleted) state, for the checker to scan new
// submissions against.
func (s *Store) FetchDisplayNames(ctx context.Context) ([]store.DisplayNameRecord, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var records []store.DisplayNameRecord
	var scanErr error

	execErr := sqlitex.Execute(conn, `
		SELECT address, chain, fields_json FROM judgement_states`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				fields, err := decodeFields(stmt.GetText("fields_json"))
				if err != nil {
					scanErr = err
					return err
				}
				ctx := identity.Context{
					Address: stmt.GetText("address"),
					Chain:   identity.Chain(stmt.GetInt64("chain")),
				}
				for _, f := range fields {
					if f.Value.Kind == identity.KindDisplayName {
						records = append(records, store.DisplayNameRecord{
							Context:     ctx,
							DisplayName: f.Value.Value,
						})
					}
				}
				return nil
			},
		})
	if execErr != nil {
		return nil, store.Transient(execErr)
	}
	if scanErr != nil {
		return nil, store.Fatal(scanErr)
	}
	return records, nil
}

// InsertDisplayNameViolations implements store.Store.
func (s *Store) InsertDisplayNameViolations(ctx context.Context, c identity.Context, violations []identity.DisplayNameEntry) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	violationsJSON, err := encodeViolations(violations)
	if err != nil {
		return err
	}

	displayName := ""
	state, stateErr := fetchState(conn, c)
	if stateErr == nil {
		if f, ok := state.FieldByKind(identity.KindDisplayName); ok {
			displayName = f.Value.Value
		}
	}

	if err := sqlitex.Execute(conn, `
		INSERT INTO display_name_violations (address, chain, display_name, passed, violations_json, updated_at)
		VALUES (?, ?, ?, ?, ?, unixepoch())
		ON CONFLICT(address, chain) DO UPDATE SET
			display_name = excluded.display_name,
			passed = excluded.passed,
			violations_json = excluded.violations_json,
			updated_at = excluded.updated_at`,
		&sqlitex.ExecOptions{
			Args: []any{
				c.Address, int64(c.Chain), displayName,
				boolToInt(len(violations) == 0), violationsJSON,
			},
		}); err != nil {
		return store.Transient(err)
	}
	return nil
}

// ConnectivityCheck implements store.Store: a trivial round-trip query
// used by the health check endpoint.
func (s *Store) ConnectivityCheck(ctx context.Context) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	if err := sqlitex.Execute(conn, `SELECT 1`, nil); err != nil {
		return store.Transient(err)
	}
	return nil
}
