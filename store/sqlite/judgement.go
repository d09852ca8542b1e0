package sqlite

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/dotsama/identity-registrar/identity"
	"github.com/dotsama/identity-registrar/store"
)

func scanJudgementState(stmt *sqlite.Stmt) (identity.JudgementState, error) {
	fields, err := decodeFields(stmt.GetText("fields_json"))
	if err != nil {
		return identity.JudgementState{}, err
	}

	s := identity.JudgementState{
		Context: identity.Context{
			Address: stmt.GetText("address"),
			Chain:   identity.Chain(stmt.GetInt64("chain")),
		},
		IsFullyVerified:    stmt.GetInt64("is_fully_verified") != 0,
		InsertedAt:         stmt.GetInt64("inserted_at"),
		JudgementSubmitted: stmt.GetInt64("judgement_submitted") != 0,
		Fields:             fields,
	}
	// A stored 0 means NULL (unset): valid timestamps here are always
	// positive unix-millisecond values, so 0 is an unambiguous sentinel
	// that avoids depending on per-column null-checking.
	if v := stmt.GetInt64("completion_at"); v != 0 {
		s.CompletionAt = &v
	}
	if v := stmt.GetInt64("issue_judgement_at"); v != 0 {
		s.IssueJudgementAt = &v
	}
	return s, nil
}

// AddJudgementRequest implements store.Store.
func (s *Store) AddJudgementRequest(ctx context.Context, state identity.JudgementState) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	return s.withTx(conn, func() error {
		existing, err := fetchState(conn, state.Context)
		if err != nil && err != store.ErrNotFound {
			return err
		}

		var notification identity.NotificationMessage
		switch {
		case err == store.ErrNotFound:
			notification = identity.IdentityInserted(state.Context)
		case existing.SameFieldSet(state):
			return nil // no-op per invariant: identical field set
		default:
			notification = identity.IdentityUpdated(state.Context)
		}

		fieldsJSON, err := encodeFields(state.Fields)
		if err != nil {
			return err
		}

		if err := sqlitex.Execute(conn, `
			INSERT INTO judgement_states
				(address, chain, is_fully_verified, inserted_at, completion_at, judgement_submitted, issue_judgement_at, fields_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(address, chain) DO UPDATE SET
				is_fully_verified = excluded.is_fully_verified,
				inserted_at = excluded.inserted_at,
				completion_at = excluded.completion_at,
				judgement_submitted = excluded.judgement_submitted,
				issue_judgement_at = excluded.issue_judgement_at,
				fields_json = excluded.fields_json`,
			&sqlitex.ExecOptions{
				Args: []any{
					state.Context.Address, int64(state.Context.Chain),
					boolToInt(state.IsFullyVerified), state.InsertedAt,
					optionalInt64(state.CompletionAt), boolToInt(state.JudgementSubmitted),
					optionalInt64(state.IssueJudgementAt), fieldsJSON,
				},
			}); err != nil {
			return store.Transient(err)
		}

		return appendEvent(conn, notification)
	})
}

// FetchJudgementState implements store.Store.
func (s *Store) FetchJudgementState(ctx context.Context, c identity.Context) (identity.JudgementState, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return identity.JudgementState{}, err
	}
	defer s.pool.Put(conn)

	return fetchState(conn, c)
}

func fetchState(conn *sqlite.Conn, c identity.Context) (identity.JudgementState, error) {
	var (
		state identity.JudgementState
		found bool
		err   error
	)
	execErr := sqlitex.Execute(conn, `
		SELECT address, chain, is_fully_verified, inserted_at, completion_at, judgement_submitted, issue_judgement_at, fields_json
		FROM judgement_states WHERE address = ? AND chain = ? LIMIT 1`,
		&sqlitex.ExecOptions{
			Args: []any{c.Address, int64(c.Chain)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				state, err = scanJudgementState(stmt)
				found = true
				return err
			},
		})
	if execErr != nil {
		return identity.JudgementState{}, store.Transient(execErr)
	}
	if err != nil {
		return identity.JudgementState{}, store.Fatal(err)
	}
	if !found {
		return identity.JudgementState{}, store.ErrNotFound
	}
	return state, nil
}

// FetchStatesByOrigin implements store.Store. There is no indexed column
// for this, so it scans fields_json; the judgement_states table is small
// enough (one row per pending/verified identity) for this to be fine.
func (s *Store) FetchStatesByOrigin(ctx context.Context, origin identity.MessageOrigin) ([]identity.JudgementState, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var states []identity.JudgementState
	var scanErr error
	execErr := sqlitex.Execute(conn, `
		SELECT address, chain, is_fully_verified, inserted_at, completion_at, judgement_submitted, issue_judgement_at, fields_json
		FROM judgement_states`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				st, err := scanJudgementState(stmt)
				if err != nil {
					scanErr = err
					return err
				}
				if _, ok := st.FieldByOrigin(origin); ok {
					states = append(states, st)
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
	return states, nil
}

// FetchCompletedUnsubmitted implements store.Store.
func (s *Store) FetchCompletedUnsubmitted(ctx context.Context, now int64) ([]identity.JudgementState, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var states []identity.JudgementState
	var scanErr error
	execErr := sqlitex.Execute(conn, `
		SELECT address, chain, is_fully_verified, inserted_at, completion_at, judgement_submitted, issue_judgement_at, fields_json
		FROM judgement_states
		WHERE is_fully_verified = 1 AND judgement_submitted = 0
		  AND (issue_judgement_at IS NULL OR issue_judgement_at <= ?)`,
		&sqlitex.ExecOptions{
			Args: []any{now},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				st, err := scanJudgementState(stmt)
				if err != nil {
					scanErr = err
					return err
				}
				states = append(states, st)
				return nil
			},
		})
	if execErr != nil {
		return nil, store.Transient(execErr)
	}
	if scanErr != nil {
		return nil, store.Fatal(scanErr)
	}
	return states, nil
}

// FetchTimedOut implements store.Store.
func (s *Store) FetchTimedOut(ctx context.Context, deadline int64) ([]identity.JudgementState, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var states []identity.JudgementState
	var scanErr error
	execErr := sqlitex.Execute(conn, `
		SELECT address, chain, is_fully_verified, inserted_at, completion_at, judgement_submitted, issue_judgement_at, fields_json
		FROM judgement_states
		WHERE is_fully_verified = 0 AND inserted_at <= ?`,
		&sqlitex.ExecOptions{
			Args: []any{deadline},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				st, err := scanJudgementState(stmt)
				if err != nil {
					scanErr = err
					return err
				}
				states = append(states, st)
				return nil
			},
		})
	if execErr != nil {
		return nil, store.Transient(execErr)
	}
	if scanErr != nil {
		return nil, store.Fatal(scanErr)
	}
	return states, nil
}

// SetSubmitted implements store.Store.
func (s *Store) SetSubmitted(ctx context.Context, c identity.Context) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	return s.withTx(conn, func() error {
		if _, err := fetchState(conn, c); err != nil {
			return err
		}
		if err := sqlitex.Execute(conn, `
			UPDATE judgement_states SET judgement_submitted = 1 WHERE address = ? AND chain = ?`,
			&sqlitex.ExecOptions{Args: []any{c.Address, int64(c.Chain)}}); err != nil {
			return store.Transient(err)
		}
		return appendEvent(conn, identity.JudgementProvided(c))
	})
}

// DeleteJudgement implements store.Store.
func (s *Store) DeleteJudgement(ctx context.Context, c identity.Context) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	if err := sqlitex.Execute(conn, `DELETE FROM judgement_states WHERE address = ? AND chain = ?`,
		&sqlitex.ExecOptions{Args: []any{c.Address, int64(c.Chain)}}); err != nil {
		return store.Transient(err)
	}
	return nil
}

// VerifyManually implements store.Store.
func (s *Store) VerifyManually(ctx context.Context, c identity.Context, field identity.RawFieldName, verified bool, rationale string, now int64) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	return s.withTx(conn, func() error {
		state, err := fetchState(conn, c)
		if err != nil {
			return err
		}
		kind, ok := field.Kind()
		if !ok {
			return fmt.Errorf("store/sqlite: %w: unknown field %s", store.ErrNotFound, field)
		}
		f, ok := state.FieldByKind(kind)
		if !ok {
			return store.ErrNotFound
		}
		applyManualVerification(f, verified)

		if err := saveFields(conn, c, state.Fields); err != nil {
			return err
		}
		if err := recomputeFullyVerified(conn, &state, now); err != nil {
			return err
		}
		return appendEvent(conn, identity.ManuallyVerified(c, field))
	})
}

// FullManualVerification implements store.Store.
func (s *Store) FullManualVerification(ctx context.Context, c identity.Context, now int64) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	return s.withTx(conn, func() error {
		state, err := fetchState(conn, c)
		if err != nil {
			return err
		}

		var affected []identity.FieldKind
		for i := range state.Fields {
			f := &state.Fields[i]
			if !f.IsVerified() {
				applyManualVerification(f, true)
				affected = append(affected, f.Value.Kind)
			}
		}

		if err := saveFields(conn, c, state.Fields); err != nil {
			return err
		}
		if err := recomputeFullyVerified(conn, &state, now); err != nil {
			return err
		}
		for _, kind := range affected {
			raw := rawFieldNameForKind(kind)
			if err := appendEvent(conn, identity.ManuallyVerified(c, raw)); err != nil {
				return err
			}
		}
		return appendEvent(conn, identity.FullManualVerification(c))
	})
}

// applyManualVerification flips a field's challenge per admin_verify's
// per-kind rule: ExpectedMessage flips primary (and secondary, if any) to
// verified; DisplayNameCheck flips passed and clears violations;
// Unsupported sets the manual flag directly.
func applyManualVerification(f *identity.IdentityField, verified bool) {
	switch f.Challenge.Kind {
	case identity.ChallengeExpectedMessage:
		f.Challenge.Primary.IsVerified = verified
		if f.Challenge.Secondary != nil {
			f.Challenge.Secondary.IsVerified = verified
		}
	case identity.ChallengeDisplayNameCheck:
		f.Challenge.Passed = verified
		if verified {
			f.Challenge.Violations = nil
		}
	case identity.ChallengeUnsupported:
		f.Challenge.SetManuallyVerified(verified)
	}
}

func rawFieldNameForKind(kind identity.FieldKind) identity.RawFieldName {
	for _, raw := range []identity.RawFieldName{
		identity.RawLegalName, identity.RawDisplayName, identity.RawEmail,
		identity.RawWeb, identity.RawTwitter, identity.RawMatrix,
		identity.RawPGPFingerprint, identity.RawImage, identity.RawAdditional,
	} {
		if k, ok := raw.Kind(); ok && k == kind {
			return raw
		}
	}
	return identity.RawAll
}

func saveFields(conn *sqlite.Conn, c identity.Context, fields []identity.IdentityField) error {
	fieldsJSON, err := encodeFields(fields)
	if err != nil {
		return err
	}
	if err := sqlitex.Execute(conn, `UPDATE judgement_states SET fields_json = ? WHERE address = ? AND chain = ?`,
		&sqlitex.ExecOptions{Args: []any{fieldsJSON, c.Address, int64(c.Chain)}}); err != nil {
		return store.Transient(err)
	}
	return nil
}

// recomputeFullyVerified checks the (already-mutated, in-memory) state's
// fields and persists is_fully_verified/completion_at if it just became
// true. It never reverts a previously-true flag (invariant 3).
func recomputeFullyVerified(conn *sqlite.Conn, state *identity.JudgementState, now int64) error {
	if state.IsFullyVerified || !state.AllFieldsVerified() {
		return nil
	}
	if err := sqlitex.Execute(conn, `
		UPDATE judgement_states SET is_fully_verified = 1, completion_at = ?
		WHERE address = ? AND chain = ? AND is_fully_verified = 0`,
		&sqlitex.ExecOptions{Args: []any{now, state.Context.Address, int64(state.Context.Chain)}}); err != nil {
		return store.Transient(err)
	}
	return appendEvent(conn, identity.IdentityFullyVerified(state.Context))
}
