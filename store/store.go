// Package store defines the registrar's durable persistence contract: the
// Store interface operations spec §4.1 names, their typed errors, and the
// cursor conventions the event log and message log share.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dotsama/identity-registrar/identity"
)

// Sentinel error kinds. Every Store operation that can fail wraps one of
// these, so callers can branch with errors.Is instead of string matching.
var (
	// ErrTransient marks a failure a caller should retry (a busy
	// connection, a lock timeout). It never indicates malformed input.
	ErrTransient = errors.New("store: transient error")

	// ErrFatal marks an unrecoverable failure (corrupt database, schema
	// mismatch). Retrying will not help.
	ErrFatal = errors.New("store: fatal error")

	// ErrNotFound is returned when an operation addresses a context or
	// field that does not exist.
	ErrNotFound = errors.New("store: not found")
)

// Transient wraps err so errors.Is(err, ErrTransient) succeeds.
func Transient(err error) error { return fmt.Errorf("%w: %v", ErrTransient, err) }

// Fatal wraps err so errors.Is(err, ErrFatal) succeeds.
func Fatal(err error) error { return fmt.Errorf("%w: %v", ErrFatal, err) }

// DisplayNameRecord pairs a display name with the context it belongs to,
// the shape fetch_display_names returns for the checker to scan against.
type DisplayNameRecord struct {
	Context     identity.Context
	DisplayName string
}

// Store is the durable persistence contract every component talks to.
// Implementations must make every state-mutating operation atomic with its
// event-log append (invariant 5: exactly one event per mutation).
type Store interface {
	// AddJudgementRequest inserts or replaces by context. If an
	// equivalent request already exists (same field set, compared by
	// type+value), it is a no-op: no event, no challenge regeneration.
	// Otherwise the old state is replaced and IdentityUpdated is emitted
	// (or IdentityInserted if there was no prior state).
	AddJudgementRequest(ctx context.Context, state identity.JudgementState) error

	// AddMessage upserts by (origin, id); idempotent.
	AddMessage(ctx context.Context, msg identity.ExternalMessage) error

	// FetchMessagesSince returns messages ordered by timestamp ascending
	// and the cursor to resume from on the next call.
	FetchMessagesSince(ctx context.Context, cursor int64) ([]identity.ExternalMessage, int64, error)

	// FetchJudgementState returns the state for a context, or
	// ErrNotFound.
	FetchJudgementState(ctx context.Context, c identity.Context) (identity.JudgementState, error)

	// FetchStatesByOrigin returns every state carrying a field matching
	// origin's channel and address, the set verify_message correlates an
	// inbound message against.
	FetchStatesByOrigin(ctx context.Context, origin identity.MessageOrigin) ([]identity.JudgementState, error)

	// FetchCompletedUnsubmitted returns states with is_fully_verified &&
	// !judgement_submitted whose issue_judgement_at is due (<= now) or
	// unset.
	FetchCompletedUnsubmitted(ctx context.Context, now int64) ([]identity.JudgementState, error)

	// FetchDisplayNames returns every display name currently attached to
	// an active state, for the checker to scan new submissions against.
	FetchDisplayNames(ctx context.Context) ([]DisplayNameRecord, error)

	// InsertDisplayNameViolations persists the violations list computed
	// for a context's display-name field.
	InsertDisplayNameViolations(ctx context.Context, c identity.Context, violations []identity.DisplayNameEntry) error

	// SetSubmitted flips judgement_submitted=true and emits
	// JudgementProvided.
	SetSubmitted(ctx context.Context, c identity.Context) error

	// VerifyManually applies a manual flip to one field. now stamps
	// completion_at if this flip reaches full verification. Returns
	// ErrNotFound if the context or field does not exist. Emits
	// ManuallyVerified.
	VerifyManually(ctx context.Context, c identity.Context, field identity.RawFieldName, verified bool, rationale string, now int64) error

	// FullManualVerification flips every field whose challenge variant
	// permits manual verification, emitting one ManuallyVerified per
	// affected field followed by one FullManualVerification. now stamps
	// completion_at if this reaches full verification. Returns
	// ErrNotFound if the context does not exist.
	FullManualVerification(ctx context.Context, c identity.Context, now int64) error

	// DeleteJudgement hard-deletes a state; no event.
	DeleteJudgement(ctx context.Context, c identity.Context) error

	// ApplyFieldUpdate loads the state for c and passes it to mutate,
	// which may modify its Fields in place and returns the notification
	// events the mutation should emit (in order). The mutated state and
	// its events are then persisted atomically in one savepoint,
	// including a trailing IdentityFullyVerified if this mutation just
	// completed verification. Returns ErrNotFound if c has no state.
	// This is how the verifier engine's verify_message and
	// verify_second_challenge persist their field-level decisions
	// without duplicating the event-outbox transaction boundary.
	ApplyFieldUpdate(ctx context.Context, c identity.Context, now int64, mutate func(*identity.JudgementState) ([]identity.NotificationMessage, error)) error

	// FetchEvents tails the event log from cursor and returns the new
	// cursor to resume from.
	FetchEvents(ctx context.Context, cursor int64) ([]identity.Event, int64, error)

	// FetchTimedOut returns states older than the given idle deadline
	// (inserted_at <= deadline) that have not completed.
	FetchTimedOut(ctx context.Context, deadline int64) ([]identity.JudgementState, error)

	// ConnectivityCheck verifies the store is reachable, for health
	// checks.
	ConnectivityCheck(ctx context.Context) error
}
