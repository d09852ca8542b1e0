package admin

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dotsama/identity-registrar/identity"
	"github.com/dotsama/identity-registrar/store"
)

type fakeVerifier struct {
	lastFields []identity.RawFieldName
	err        error
}

func (f *fakeVerifier) AdminVerify(ctx context.Context, c identity.Context, fields []identity.RawFieldName, rationale string, now int64) error {
	f.lastFields = fields
	return f.err
}

type fakeStateReader struct {
	state identity.JudgementState
	err   error
}

func (f *fakeStateReader) FetchJudgementState(ctx context.Context, c identity.Context) (identity.JudgementState, error) {
	return f.state, f.err
}

func clock() int64 { return 5000 }

func TestExecuteHelp(t *testing.T) {
	c := NewCommand(&fakeVerifier{}, &fakeStateReader{}, clock)
	out, err := c.Execute(context.Background(), "help")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "status <address>") {
		t.Fatalf("expected help text to mention status command, got %q", out)
	}
}

func TestExecuteStatusNotFound(t *testing.T) {
	c := NewCommand(&fakeVerifier{}, &fakeStateReader{err: store.ErrNotFound}, clock)
	out, err := c.Execute(context.Background(), "status 14abc")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "IdentityNotFound" {
		t.Fatalf("expected IdentityNotFound, got %q", out)
	}
}

func TestExecuteStatusFound(t *testing.T) {
	req := identity.JudgementRequest{Context: identity.NewContext("14abc"), Fields: []identity.FieldValue{identity.Email("a@example.com")}}
	state, err := req.ToState(1000)
	if err != nil {
		t.Fatalf("ToState: %v", err)
	}
	c := NewCommand(&fakeVerifier{}, &fakeStateReader{state: state}, clock)

	out, err := c.Execute(context.Background(), "status 14abc")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "14abc") {
		t.Fatalf("expected status output to mention address, got %q", out)
	}
}

func TestExecuteVerifyParsesFields(t *testing.T) {
	fv := &fakeVerifier{}
	c := NewCommand(fv, &fakeStateReader{}, clock)

	out, err := c.Execute(context.Background(), "verify 14abc display-name email")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(fv.lastFields) != 2 || fv.lastFields[0] != identity.RawDisplayName || fv.lastFields[1] != identity.RawEmail {
		t.Fatalf("expected [display_name email], got %v", fv.lastFields)
	}
	if !strings.Contains(out, "2 field(s)") {
		t.Fatalf("expected summary to mention field count, got %q", out)
	}
}

func TestExecuteVerifyUnknownField(t *testing.T) {
	c := NewCommand(&fakeVerifier{}, &fakeStateReader{}, clock)
	_, err := c.Execute(context.Background(), "verify 14abc bogus")
	if !errors.Is(err, ErrInvalidSyntax) {
		t.Fatalf("expected ErrInvalidSyntax, got %v", err)
	}
}

func TestExecuteUnknownCommand(t *testing.T) {
	c := NewCommand(&fakeVerifier{}, &fakeStateReader{}, clock)
	_, err := c.Execute(context.Background(), "frobnicate 14abc")
	if !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestExecuteEmptyLine(t *testing.T) {
	c := NewCommand(&fakeVerifier{}, &fakeStateReader{}, clock)
	_, err := c.Execute(context.Background(), "   ")
	if !errors.Is(err, ErrInvalidSyntax) {
		t.Fatalf("expected ErrInvalidSyntax, got %v", err)
	}
}
