// Package admin implements the admin command surface (spec.md §4.7): a
// single line of whitespace-separated tokens parsed into status, verify,
// or help.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dotsama/identity-registrar/identity"
	"github.com/dotsama/identity-registrar/store"
)

// Errors the command surface reports back to its caller.
var (
	ErrUnknownCommand = errors.New("admin: unknown command")
	ErrInvalidSyntax  = errors.New("admin: invalid syntax")
	ErrInternal       = errors.New("admin: internal error")
)

const helpText = `Commands:
  status <address>            show the blanked judgement state for address
  verify <address> <field>... manually verify one or more fields ("all" for every field)
  help                         show this text`

// Verifier is the subset of verifier.Engine the admin surface drives.
type Verifier interface {
	AdminVerify(ctx context.Context, c identity.Context, fields []identity.RawFieldName, rationale string, now int64) error
}

// StateReader is the subset of store.Store the status command needs.
type StateReader interface {
	FetchJudgementState(ctx context.Context, c identity.Context) (identity.JudgementState, error)
}

// Clock abstracts wall-clock time for the verify command.
type Clock func() int64

// Command dispatches admin console lines against a Verifier and StateReader.
type Command struct {
	Verifier Verifier
	States   StateReader
	Clock    Clock
}

// NewCommand builds a Command.
func NewCommand(verifier Verifier, states StateReader, clock Clock) *Command {
	return &Command{Verifier: verifier, States: states, Clock: clock}
}

// Execute parses and runs one line, returning the text to print to the
// operator or one of the package's sentinel errors.
func (c *Command) Execute(ctx context.Context, line string) (string, error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return "", fmt.Errorf("%w: empty command", ErrInvalidSyntax)
	}

	switch strings.ToLower(tokens[0]) {
	case "status":
		return c.status(ctx, tokens[1:])
	case "verify":
		return c.verify(ctx, tokens[1:])
	case "help":
		return helpText, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, tokens[0])
	}
}

func (c *Command) status(ctx context.Context, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%w: usage: status <address>", ErrInvalidSyntax)
	}
	id := identity.NewContext(args[0])

	state, err := c.States.FetchJudgementState(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return "IdentityNotFound", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return formatState(identity.Blank(state)), nil
}

func (c *Command) verify(ctx context.Context, args []string) (string, error) {
	if len(args) < 2 {
		return "", fmt.Errorf("%w: usage: verify <address> <field>...", ErrInvalidSyntax)
	}
	address := args[0]

	fields := make([]identity.RawFieldName, 0, len(args)-1)
	for _, token := range args[1:] {
		field, ok := identity.ParseRawFieldName(token)
		if !ok {
			return "", fmt.Errorf("%w: unknown field %q", ErrInvalidSyntax, token)
		}
		fields = append(fields, field)
	}

	id := identity.NewContext(address)
	if err := c.Verifier.AdminVerify(ctx, id, fields, "admin console", c.Clock()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "IdentityNotFound", nil
		}
		return "", fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return fmt.Sprintf("verified %d field(s) for %s", len(fields), address), nil
}

func formatState(s identity.JudgementStateBlanked) string {
	var b strings.Builder
	fmt.Fprintf(&b, "address: %s (chain: %s)\n", s.Context.Address, s.Context.Chain)
	fmt.Fprintf(&b, "fully_verified: %t\n", s.IsFullyVerified)
	fmt.Fprintf(&b, "judgement_submitted: %t\n", s.JudgementSubmitted)
	for _, f := range s.Fields {
		fmt.Fprintf(&b, "  %s: verified=%t failed_attempts=%d\n", f.Value.Kind, fieldVerified(f.Challenge), f.FailedAttempts)
	}
	return b.String()
}

// fieldVerified reports whether a blanked field's challenge is satisfied,
// mirroring Challenge.IsVerified for the wire-safe projection.
func fieldVerified(c identity.BlankedChallenge) bool {
	switch c.Kind {
	case identity.ChallengeExpectedMessage:
		return c.Primary.IsVerified && (!c.HasSecondary || c.SecondaryVerified)
	case identity.ChallengeDisplayNameCheck:
		return c.Passed
	case identity.ChallengeUnsupported:
		return c.ManuallyVerified != nil && *c.ManuallyVerified
	default:
		return false
	}
}
