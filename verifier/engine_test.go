package verifier

import (
	"context"
	"errors"
	"testing"

	"github.com/dotsama/identity-registrar/identity"
	"github.com/dotsama/identity-registrar/similarity"
	"github.com/dotsama/identity-registrar/store"
	"github.com/dotsama/identity-registrar/store/storetest"
)

func TestIngestRequestNewIdentity(t *testing.T) {
	var added identity.JudgementState
	mock := &storetest.Store{
		FetchJudgementStateFunc: func(ctx context.Context, c identity.Context) (identity.JudgementState, error) {
			return identity.JudgementState{}, store.ErrNotFound
		},
		AddJudgementRequestFunc: func(ctx context.Context, state identity.JudgementState) error {
			added = state
			return nil
		},
	}
	e := NewEngine(mock, similarity.NewChecker(0.85))

	err := e.IngestRequest(context.Background(), "14abc", []identity.FieldValue{identity.Email("a@example.com")}, 1000)
	if err != nil {
		t.Fatalf("IngestRequest: %v", err)
	}
	if added.Context.Address != "14abc" {
		t.Fatalf("expected candidate address 14abc, got %q", added.Context.Address)
	}
	if len(added.Fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(added.Fields))
	}
}

func TestIngestRequestUnchangedSkipsDisplayNameCheck(t *testing.T) {
	existing := mustState(t, "1existing", []identity.FieldValue{identity.DisplayName("alice")})

	var displayNameChecked bool
	mock := &storetest.Store{
		FetchJudgementStateFunc: func(ctx context.Context, c identity.Context) (identity.JudgementState, error) {
			return existing, nil
		},
		AddJudgementRequestFunc: func(ctx context.Context, state identity.JudgementState) error {
			return nil
		},
		FetchDisplayNamesFunc: func(ctx context.Context) ([]store.DisplayNameRecord, error) {
			displayNameChecked = true
			return nil, nil
		},
	}
	e := NewEngine(mock, similarity.NewChecker(0.85))

	if err := e.IngestRequest(context.Background(), "1existing", []identity.FieldValue{identity.DisplayName("alice")}, 1000); err != nil {
		t.Fatalf("IngestRequest: %v", err)
	}
	if displayNameChecked {
		t.Fatalf("expected display-name check to be skipped for an unchanged field set")
	}
}

func TestVerifyMessagePrimaryMatchTwitter(t *testing.T) {
	state := mustState(t, "1twitter", []identity.FieldValue{identity.Twitter("@alice")})
	token := state.Fields[0].Challenge.Primary.Value

	var events []identity.NotificationMessage
	mock := &storetest.Store{
		AddMessageFunc: func(ctx context.Context, msg identity.ExternalMessage) error { return nil },
		FetchStatesByOriginFunc: func(ctx context.Context, origin identity.MessageOrigin) ([]identity.JudgementState, error) {
			return []identity.JudgementState{state}, nil
		},
		ApplyFieldUpdateFunc: func(ctx context.Context, c identity.Context, now int64, mutate func(*identity.JudgementState) ([]identity.NotificationMessage, error)) error {
			s := state
			evs, err := mutate(&s)
			events = evs
			return err
		},
	}
	e := NewEngine(mock, similarity.NewChecker(0.85))

	msg := identity.ExternalMessage{
		Origin: identity.TwitterOrigin("@alice"),
		ID:     1,
		Values: []string{"please verify: " + token},
	}
	if _, err := e.VerifyMessage(context.Background(), msg, 2000); err != nil {
		t.Fatalf("VerifyMessage: %v", err)
	}
	if len(events) != 1 || events[0].Kind != identity.NotifyFieldVerified {
		t.Fatalf("expected one FieldVerified event, got %v", events)
	}
}

func TestVerifyMessageNoMatchIncrementsFailures(t *testing.T) {
	state := mustState(t, "1twitter2", []identity.FieldValue{identity.Twitter("@bob")})

	var events []identity.NotificationMessage
	mock := &storetest.Store{
		AddMessageFunc: func(ctx context.Context, msg identity.ExternalMessage) error { return nil },
		FetchStatesByOriginFunc: func(ctx context.Context, origin identity.MessageOrigin) ([]identity.JudgementState, error) {
			return []identity.JudgementState{state}, nil
		},
		ApplyFieldUpdateFunc: func(ctx context.Context, c identity.Context, now int64, mutate func(*identity.JudgementState) ([]identity.NotificationMessage, error)) error {
			s := state
			evs, err := mutate(&s)
			events = evs
			if s.Fields[0].FailedAttempts != 1 {
				t.Fatalf("expected failed attempts incremented to 1, got %d", s.Fields[0].FailedAttempts)
			}
			return err
		},
	}
	e := NewEngine(mock, similarity.NewChecker(0.85))

	msg := identity.ExternalMessage{Origin: identity.TwitterOrigin("@bob"), ID: 1, Values: []string{"nope"}}
	if _, err := e.VerifyMessage(context.Background(), msg, 2000); err != nil {
		t.Fatalf("VerifyMessage: %v", err)
	}
	if len(events) != 1 || events[0].Kind != identity.NotifyFieldVerificationFailed {
		t.Fatalf("expected one FieldVerificationFailed event, got %v", events)
	}
}

func TestVerifyMessageEmailAwaitsSecondChallenge(t *testing.T) {
	state := mustState(t, "1email", []identity.FieldValue{identity.Email("a@example.com")})
	field := &state.Fields[0]
	token := field.Challenge.Primary.Value

	var capturedState identity.JudgementState
	mock := &storetest.Store{
		AddMessageFunc: func(ctx context.Context, msg identity.ExternalMessage) error { return nil },
		FetchStatesByOriginFunc: func(ctx context.Context, origin identity.MessageOrigin) ([]identity.JudgementState, error) {
			return []identity.JudgementState{state}, nil
		},
		ApplyFieldUpdateFunc: func(ctx context.Context, c identity.Context, now int64, mutate func(*identity.JudgementState) ([]identity.NotificationMessage, error)) error {
			s := state
			if _, err := mutate(&s); err != nil {
				return err
			}
			capturedState = s
			return nil
		},
	}
	e := NewEngine(mock, similarity.NewChecker(0.85))

	msg := identity.ExternalMessage{Origin: identity.EmailOrigin("a@example.com"), ID: 1, Values: []string{token}}
	if _, err := e.VerifyMessage(context.Background(), msg, 2000); err != nil {
		t.Fatalf("VerifyMessage: %v", err)
	}
	if !capturedState.Fields[0].Challenge.Primary.IsVerified {
		t.Fatalf("expected primary verified")
	}
	if capturedState.Fields[0].Challenge.Secondary.IsVerified {
		t.Fatalf("expected secondary still unverified")
	}
}

func TestVerifySecondChallengeMatch(t *testing.T) {
	state := mustState(t, "1email2", []identity.FieldValue{identity.Email("b@example.com")})
	state.Fields[0].Challenge.Primary.IsVerified = true
	secondary := state.Fields[0].Challenge.Secondary.Value

	mock := &storetest.Store{
		FetchStatesByOriginFunc: func(ctx context.Context, origin identity.MessageOrigin) ([]identity.JudgementState, error) {
			return []identity.JudgementState{state}, nil
		},
		ApplyFieldUpdateFunc: func(ctx context.Context, c identity.Context, now int64, mutate func(*identity.JudgementState) ([]identity.NotificationMessage, error)) error {
			s := state
			_, err := mutate(&s)
			return err
		},
	}
	e := NewEngine(mock, similarity.NewChecker(0.85))

	ok, err := e.VerifySecondChallenge(context.Background(), identity.Email("b@example.com"), "token="+secondary, 3000)
	if err != nil {
		t.Fatalf("VerifySecondChallenge: %v", err)
	}
	if !ok {
		t.Fatalf("expected success")
	}
}

func TestVerifySecondChallengeNotFound(t *testing.T) {
	mock := &storetest.Store{
		FetchStatesByOriginFunc: func(ctx context.Context, origin identity.MessageOrigin) ([]identity.JudgementState, error) {
			return nil, nil
		},
	}
	e := NewEngine(mock, similarity.NewChecker(0.85))

	_, err := e.VerifySecondChallenge(context.Background(), identity.Email("missing@example.com"), "x", 1)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAdminVerifyAllShortCircuits(t *testing.T) {
	var fullCalled, perFieldCalled bool
	mock := &storetest.Store{
		FullManualVerificationFunc: func(ctx context.Context, c identity.Context, now int64) error {
			fullCalled = true
			return nil
		},
		VerifyManuallyFunc: func(ctx context.Context, c identity.Context, field identity.RawFieldName, verified bool, rationale string, now int64) error {
			perFieldCalled = true
			return nil
		},
	}
	e := NewEngine(mock, similarity.NewChecker(0.85))

	c := identity.Context{Address: "1x", Chain: identity.Polkadot}
	if err := e.AdminVerify(context.Background(), c, []identity.RawFieldName{identity.RawEmail, identity.RawAll}, "operator review", 1); err != nil {
		t.Fatalf("AdminVerify: %v", err)
	}
	if !fullCalled {
		t.Fatalf("expected FullManualVerification to be called for RawAll")
	}
	if perFieldCalled {
		t.Fatalf("expected per-field VerifyManually to be skipped once RawAll short-circuits")
	}
}

func mustState(t *testing.T, address string, fields []identity.FieldValue) identity.JudgementState {
	t.Helper()
	req := identity.JudgementRequest{Context: identity.NewContext(address), Fields: fields}
	state, err := req.ToState(1000)
	if err != nil {
		t.Fatalf("ToState: %v", err)
	}
	return state
}
