// Package verifier implements the judgement state machine's verification
// engine: ingesting requests, correlating inbound messages against
// per-field challenges, the display-name similarity check, and the admin
// manual-verification surface (spec.md §4.2). The engine is stateless — a
// pure function of its inputs and whatever the Store currently holds.
package verifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dotsama/identity-registrar/identity"
	"github.com/dotsama/identity-registrar/similarity"
	"github.com/dotsama/identity-registrar/store"
)

// Sender delivers the secondary challenge token to a claimant once the
// primary channel for that field has verified. Only email fields carry a
// secondary challenge (identity.NewIdentityField), so in practice this is
// always an outbound email.
type Sender interface {
	SendSecondChallenge(ctx context.Context, field identity.FieldValue, token string) error
}

// Engine is the verification engine. It holds no state of its own beyond
// an optional outbound Sender; every other operation reads and writes
// through Store.
type Engine struct {
	store  store.Store
	sim    similarity.Checker
	sender Sender
}

// NewEngine builds an Engine backed by s, scoring display names with sim.
func NewEngine(s store.Store, sim similarity.Checker) *Engine {
	return &Engine{store: s, sim: sim}
}

// WithSender attaches sender, used to email the secondary challenge token
// once a field's primary channel verifies. Returns e for chaining at
// construction time.
func (e *Engine) WithSender(sender Sender) *Engine {
	e.sender = sender
	return e
}

// IngestRequest derives the identity context from address, builds a fresh
// candidate state with per-field challenges, and persists it. If an
// existing state for that context has the same field set, this is a no-op.
// Otherwise, and only then, a freshly-submitted DisplayName field is run
// through the similarity check.
func (e *Engine) IngestRequest(ctx context.Context, address string, fields []identity.FieldValue, now int64) error {
	reqCtx := identity.NewContext(address)
	req := identity.JudgementRequest{Context: reqCtx, Fields: fields}

	candidate, err := req.ToState(now)
	if err != nil {
		return fmt.Errorf("verifier: build candidate state: %w", err)
	}

	existing, fetchErr := e.store.FetchJudgementState(ctx, reqCtx)
	unchanged := fetchErr == nil && existing.SameFieldSet(candidate)

	if err := e.store.AddJudgementRequest(ctx, candidate); err != nil {
		return err
	}
	if unchanged {
		return nil
	}
	if _, ok := candidate.FieldByKind(identity.KindDisplayName); ok {
		return e.VerifyDisplayName(ctx, reqCtx, now)
	}
	return nil
}

// VerifyMessage upserts an inbound message (idempotent by (origin, id))
// and, for every state carrying a field addressed by the message's origin,
// tests it against that field's challenge. It returns the notification
// events produced across every affected state, so a caller such as
// listener.AbusePolicy can tell a message that matched nothing from one
// that made progress.
func (e *Engine) VerifyMessage(ctx context.Context, msg identity.ExternalMessage, now int64) ([]identity.NotificationMessage, error) {
	if err := e.store.AddMessage(ctx, msg); err != nil {
		return nil, err
	}

	states, err := e.store.FetchStatesByOrigin(ctx, msg.Origin)
	if err != nil {
		return nil, err
	}

	var all []identity.NotificationMessage
	var sends []pendingSecondChallenge
	for _, st := range states {
		if err := e.store.ApplyFieldUpdate(ctx, st.Context, now, func(s *identity.JudgementState) ([]identity.NotificationMessage, error) {
			f, ok := s.FieldByOrigin(msg.Origin)
			if !ok {
				return nil, nil
			}
			events, err := testMessageAgainstField(f, s.Context, msg)
			all = append(all, events...)
			if containsAwaitingSecondChallenge(events) {
				sends = append(sends, pendingSecondChallenge{field: f.Value, token: f.Challenge.Secondary.Value})
			}
			return events, err
		}); err != nil {
			return all, err
		}
	}

	// Dispatched after every store mutation has committed, so a slow SMTP
	// send never holds a sqlite write transaction open.
	if e.sender != nil {
		for _, ps := range sends {
			if err := e.sender.SendSecondChallenge(ctx, ps.field, ps.token); err != nil {
				slog.Error("verifier: send second challenge failed", "field", ps.field, "err", err)
			}
		}
	}
	return all, nil
}

// pendingSecondChallenge is a second-challenge email queued for dispatch
// once the enclosing ApplyFieldUpdate transaction has committed.
type pendingSecondChallenge struct {
	field identity.FieldValue
	token string
}

func containsAwaitingSecondChallenge(events []identity.NotificationMessage) bool {
	for _, ev := range events {
		if ev.Kind == identity.NotifyAwaitingSecondChallenge {
			return true
		}
	}
	return false
}

// testMessageAgainstField applies spec.md §4.2(4)-(6) to one field's
// challenge, mutating it in place and returning the events the mutation
// produced. Called with the field already known to belong to msg's origin.
func testMessageAgainstField(f *identity.IdentityField, ctx identity.Context, msg identity.ExternalMessage) ([]identity.NotificationMessage, error) {
	if f.Challenge.IsVerified() {
		return nil, nil
	}

	var events []identity.NotificationMessage
	kind := f.Value.Kind

	if !f.Challenge.Primary.IsVerified {
		if msg.ContainsToken(f.Challenge.Primary.Value) {
			f.Challenge.Primary.IsVerified = true
			switch {
			case f.Challenge.Secondary == nil:
				events = append(events, identity.FieldVerified(ctx, kind))
			case f.Challenge.Secondary.IsVerified:
				events = append(events, identity.FieldVerified(ctx, kind))
			default:
				events = append(events, identity.AwaitingSecondChallenge(ctx, kind))
			}
		} else {
			f.FailedAttempts++
			events = append(events, identity.FieldVerificationFailed(ctx, kind))
		}
	}

	if f.Challenge.Secondary != nil && f.Challenge.Primary.IsVerified && !f.Challenge.Secondary.IsVerified {
		if msg.ContainsToken(f.Challenge.Secondary.Value) {
			f.Challenge.Secondary.IsVerified = true
			events = append(events, identity.SecondFieldVerified(ctx, kind))
		} else {
			events = append(events, identity.SecondFieldVerificationFailed(ctx, kind))
		}
	}

	return events, nil
}

// VerifyDisplayName recomputes the display-name collision check for c,
// scanning every other identity's display name and persisting the
// resulting violation list. It emits FieldVerified/FieldVerificationFailed
// only when the passed flag actually flips.
func (e *Engine) VerifyDisplayName(ctx context.Context, c identity.Context, now int64) error {
	state, err := e.store.FetchJudgementState(ctx, c)
	if err != nil {
		return err
	}
	field, ok := state.FieldByKind(identity.KindDisplayName)
	if !ok {
		return nil
	}

	records, err := e.store.FetchDisplayNames(ctx)
	if err != nil {
		return err
	}
	violations := e.sim.Violations(c, field.Value.Value, records)

	if err := e.store.InsertDisplayNameViolations(ctx, c, violations); err != nil {
		return err
	}

	prevPassed := field.Challenge.Passed
	next := identity.NewDisplayNameChallenge(violations)

	return e.store.ApplyFieldUpdate(ctx, c, now, func(s *identity.JudgementState) ([]identity.NotificationMessage, error) {
		f, ok := s.FieldByKind(identity.KindDisplayName)
		if !ok {
			return nil, nil
		}
		f.Challenge = next
		if next.Passed == prevPassed {
			return nil, nil
		}
		if next.Passed {
			return []identity.NotificationMessage{identity.FieldVerified(c, identity.KindDisplayName)}, nil
		}
		return []identity.NotificationMessage{identity.FieldVerificationFailed(c, identity.KindDisplayName)}, nil
	})
}

// VerifySecondChallenge is the frontend endpoint backing spec.md §4.2(5):
// it finds the identity whose field value matches field and whose primary
// is verified but secondary is not, then substring-matches challengeValue
// against the secondary token. Returns whether the secondary token
// matched; a non-nil error means a Store failure, reported to callers as
// "Backend error, contact admin" per spec.md.
func (e *Engine) VerifySecondChallenge(ctx context.Context, field identity.FieldValue, challengeValue string, now int64) (bool, error) {
	origin := identity.MessageOrigin{Kind: field.Kind, Address: field.Value}
	states, err := e.store.FetchStatesByOrigin(ctx, origin)
	if err != nil {
		return false, err
	}

	var target identity.Context
	found := false
	for _, st := range states {
		f, ok := st.FieldByValue(field)
		if ok && f.Challenge.Primary.IsVerified && f.Challenge.Secondary != nil && !f.Challenge.Secondary.IsVerified {
			target = st.Context
			found = true
			break
		}
	}
	if !found {
		return false, store.ErrNotFound
	}

	var success bool
	err = e.store.ApplyFieldUpdate(ctx, target, now, func(s *identity.JudgementState) ([]identity.NotificationMessage, error) {
		f, ok := s.FieldByValue(field)
		if !ok || f.Challenge.Secondary == nil {
			return nil, nil
		}
		matched := strings.Contains(challengeValue, f.Challenge.Secondary.Value)
		if matched {
			f.Challenge.Secondary.IsVerified = true
			success = true
			return []identity.NotificationMessage{identity.SecondFieldVerified(target, f.Value.Kind)}, nil
		}
		success = false
		return []identity.NotificationMessage{identity.SecondFieldVerificationFailed(target, f.Value.Kind)}, nil
	})
	return success, err
}

// AdminVerify implements spec.md §4.2's admin_verify: for RawAll it
// short-circuits to a full manual verification; otherwise it manually
// verifies each named field in turn.
func (e *Engine) AdminVerify(ctx context.Context, c identity.Context, fields []identity.RawFieldName, rationale string, now int64) error {
	for _, field := range fields {
		if field == identity.RawAll {
			return e.store.FullManualVerification(ctx, c, now)
		}
	}
	for _, field := range fields {
		if err := e.store.VerifyManually(ctx, c, field, true, rationale, now); err != nil {
			return err
		}
	}
	return nil
}
