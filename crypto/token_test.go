package crypto

import "testing"

func TestGenerateSecureToken(t *testing.T) {
	tok, err := GenerateSecureToken(16)
	if err != nil {
		t.Fatalf("GenerateSecureToken: %v", err)
	}
	if len(tok) != 32 {
		t.Fatalf("expected 32 hex chars for 16 bytes, got %d (%q)", len(tok), tok)
	}

	other, err := GenerateSecureToken(16)
	if err != nil {
		t.Fatalf("GenerateSecureToken: %v", err)
	}
	if tok == other {
		t.Fatalf("two consecutive tokens collided: %q", tok)
	}
}

func TestGenerateSecureTokenZeroLength(t *testing.T) {
	tok, err := GenerateSecureToken(0)
	if err != nil {
		t.Fatalf("GenerateSecureToken: %v", err)
	}
	if tok != "" {
		t.Fatalf("expected empty token for zero length, got %q", tok)
	}
}
