package sqlite

import (
	"context"

	"github.com/dotsama/identity-registrar/identity"
	"github.com/dotsama/identity-registrar/store"
)

// ApplyFieldUpdate implements store.Store.
func (s *Store) ApplyFieldUpdate(ctx context.Context, c identity.Context, now int64, mutate func(*identity.JudgementState) ([]identity.NotificationMessage, error)) error {
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

		events, err := mutate(&state)
		if err != nil {
			return err
		}

		if err := saveFields(conn, c, state.Fields); err != nil {
			return err
		}
		for _, ev := range events {
			if err := appendEvent(conn, ev); err != nil {
				return err
			}
		}
		return recomputeFullyVerified(conn, &state, now)
	})
}
