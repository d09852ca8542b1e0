// Package storetest provides a function-field mock of store.Store for unit
// testing the verification engine without a database: every method the
// interface requires has a corresponding exported func field, nil-defaults
// to a canned zero-value response so tests only need to set the methods
// they exercise.
package storetest

import (
	"context"

	"github.com/dotsama/identity-registrar/identity"
	"github.com/dotsama/identity-registrar/store"
)

// Store is a function-field fake of store.Store.
type Store struct {
	AddJudgementRequestFunc func(ctx context.Context, state identity.JudgementState) error
	AddMessageFunc          func(ctx context.Context, msg identity.ExternalMessage) error
	FetchMessagesSinceFunc  func(ctx context.Context, cursor int64) ([]identity.ExternalMessage, int64, error)
	FetchJudgementStateFunc func(ctx context.Context, c identity.Context) (identity.JudgementState, error)
	FetchStatesByOriginFunc func(ctx context.Context, origin identity.MessageOrigin) ([]identity.JudgementState, error)
	FetchCompletedUnsubmittedFunc func(ctx context.Context, now int64) ([]identity.JudgementState, error)
	FetchDisplayNamesFunc   func(ctx context.Context) ([]store.DisplayNameRecord, error)
	InsertDisplayNameViolationsFunc func(ctx context.Context, c identity.Context, violations []identity.DisplayNameEntry) error
	SetSubmittedFunc        func(ctx context.Context, c identity.Context) error
	VerifyManuallyFunc      func(ctx context.Context, c identity.Context, field identity.RawFieldName, verified bool, rationale string, now int64) error
	FullManualVerificationFunc func(ctx context.Context, c identity.Context, now int64) error
	DeleteJudgementFunc     func(ctx context.Context, c identity.Context) error
	ApplyFieldUpdateFunc    func(ctx context.Context, c identity.Context, now int64, mutate func(*identity.JudgementState) ([]identity.NotificationMessage, error)) error
	FetchEventsFunc         func(ctx context.Context, cursor int64) ([]identity.Event, int64, error)
	FetchTimedOutFunc       func(ctx context.Context, deadline int64) ([]identity.JudgementState, error)
	ConnectivityCheckFunc   func(ctx context.Context) error
}

var _ store.Store = (*Store)(nil)

func (m *Store) AddJudgementRequest(ctx context.Context, state identity.JudgementState) error {
	if m.AddJudgementRequestFunc != nil {
		return m.AddJudgementRequestFunc(ctx, state)
	}
	return nil
}

func (m *Store) AddMessage(ctx context.Context, msg identity.ExternalMessage) error {
	if m.AddMessageFunc != nil {
		return m.AddMessageFunc(ctx, msg)
	}
	return nil
}

func (m *Store) FetchMessagesSince(ctx context.Context, cursor int64) ([]identity.ExternalMessage, int64, error) {
	if m.FetchMessagesSinceFunc != nil {
		return m.FetchMessagesSinceFunc(ctx, cursor)
	}
	return nil, cursor, nil
}

func (m *Store) FetchJudgementState(ctx context.Context, c identity.Context) (identity.JudgementState, error) {
	if m.FetchJudgementStateFunc != nil {
		return m.FetchJudgementStateFunc(ctx, c)
	}
	return identity.JudgementState{}, store.ErrNotFound
}

func (m *Store) FetchStatesByOrigin(ctx context.Context, origin identity.MessageOrigin) ([]identity.JudgementState, error) {
	if m.FetchStatesByOriginFunc != nil {
		return m.FetchStatesByOriginFunc(ctx, origin)
	}
	return nil, nil
}

func (m *Store) FetchCompletedUnsubmitted(ctx context.Context, now int64) ([]identity.JudgementState, error) {
	if m.FetchCompletedUnsubmittedFunc != nil {
		return m.FetchCompletedUnsubmittedFunc(ctx, now)
	}
	return nil, nil
}

func (m *Store) FetchDisplayNames(ctx context.Context) ([]store.DisplayNameRecord, error) {
	if m.FetchDisplayNamesFunc != nil {
		return m.FetchDisplayNamesFunc(ctx)
	}
	return nil, nil
}

func (m *Store) InsertDisplayNameViolations(ctx context.Context, c identity.Context, violations []identity.DisplayNameEntry) error {
	if m.InsertDisplayNameViolationsFunc != nil {
		return m.InsertDisplayNameViolationsFunc(ctx, c, violations)
	}
	return nil
}

func (m *Store) SetSubmitted(ctx context.Context, c identity.Context) error {
	if m.SetSubmittedFunc != nil {
		return m.SetSubmittedFunc(ctx, c)
	}
	return nil
}

func (m *Store) VerifyManually(ctx context.Context, c identity.Context, field identity.RawFieldName, verified bool, rationale string, now int64) error {
	if m.VerifyManuallyFunc != nil {
		return m.VerifyManuallyFunc(ctx, c, field, verified, rationale, now)
	}
	return nil
}

func (m *Store) FullManualVerification(ctx context.Context, c identity.Context, now int64) error {
	if m.FullManualVerificationFunc != nil {
		return m.FullManualVerificationFunc(ctx, c, now)
	}
	return nil
}

func (m *Store) DeleteJudgement(ctx context.Context, c identity.Context) error {
	if m.DeleteJudgementFunc != nil {
		return m.DeleteJudgementFunc(ctx, c)
	}
	return nil
}

func (m *Store) ApplyFieldUpdate(ctx context.Context, c identity.Context, now int64, mutate func(*identity.JudgementState) ([]identity.NotificationMessage, error)) error {
	if m.ApplyFieldUpdateFunc != nil {
		return m.ApplyFieldUpdateFunc(ctx, c, now, mutate)
	}
	return nil
}

func (m *Store) FetchEvents(ctx context.Context, cursor int64) ([]identity.Event, int64, error) {
	if m.FetchEventsFunc != nil {
		return m.FetchEventsFunc(ctx, cursor)
	}
	return nil, cursor, nil
}

func (m *Store) FetchTimedOut(ctx context.Context, deadline int64) ([]identity.JudgementState, error) {
	if m.FetchTimedOutFunc != nil {
		return m.FetchTimedOutFunc(ctx, deadline)
	}
	return nil, nil
}

func (m *Store) ConnectivityCheck(ctx context.Context) error {
	if m.ConnectivityCheckFunc != nil {
		return m.ConnectivityCheckFunc(ctx)
	}
	return nil
}
