package identity

import "testing"

func TestChainFromAddress(t *testing.T) {
	if ChainFromAddress("14xyz") != Polkadot {
		t.Fatalf("expected address starting with '1' to be Polkadot")
	}
	if ChainFromAddress("Fxyz") != Kusama {
		t.Fatalf("expected address not starting with '1' to be Kusama")
	}
}

func TestNewContextInfersChain(t *testing.T) {
	c := NewContext("1abc")
	if c.Address != "1abc" || c.Chain != Polkadot {
		t.Fatalf("unexpected context: %+v", c)
	}
}

func TestFieldValueEqual(t *testing.T) {
	a := Email("a@example.com")
	b := Email("a@example.com")
	c := Email("b@example.com")
	if !a.Equal(b) {
		t.Fatalf("expected equal field values to compare equal")
	}
	if a.Equal(c) {
		t.Fatalf("expected different values to compare unequal")
	}
}

func TestParseRawFieldNameNormalizesToken(t *testing.T) {
	cases := map[string]RawFieldName{
		"display-name": RawDisplayName,
		"Display_Name": RawDisplayName,
		"displayname":  RawDisplayName,
		"email":        RawEmail,
		"all":          RawAll,
	}
	for token, want := range cases {
		got, ok := ParseRawFieldName(token)
		if !ok || got != want {
			t.Fatalf("ParseRawFieldName(%q) = (%v, %v), want (%v, true)", token, got, ok, want)
		}
	}
	if _, ok := ParseRawFieldName("bogus"); ok {
		t.Fatalf("expected unknown token to fail parsing")
	}
}

func TestFieldValueFromAccount(t *testing.T) {
	v, ok := FieldValueFromAccount("email", "a@example.com")
	if !ok || v.Kind != KindEmail || v.Value != "a@example.com" {
		t.Fatalf("unexpected field value: %+v, ok=%v", v, ok)
	}
	if _, ok := FieldValueFromAccount("bogus", "x"); ok {
		t.Fatalf("expected unknown account type to fail")
	}
}

func TestNewIdentityFieldChallengeKinds(t *testing.T) {
	email, err := NewIdentityField(Email("a@example.com"))
	if err != nil {
		t.Fatalf("NewIdentityField(email): %v", err)
	}
	if email.Challenge.Kind != ChallengeExpectedMessage || email.Challenge.Secondary == nil {
		t.Fatalf("expected email to get an ExpectedMessage challenge with a secondary token")
	}

	twitter, err := NewIdentityField(Twitter("alice"))
	if err != nil {
		t.Fatalf("NewIdentityField(twitter): %v", err)
	}
	if twitter.Challenge.Kind != ChallengeExpectedMessage || twitter.Challenge.Secondary != nil {
		t.Fatalf("expected twitter to get an ExpectedMessage challenge with no secondary")
	}

	display, err := NewIdentityField(DisplayName("alice"))
	if err != nil {
		t.Fatalf("NewIdentityField(display_name): %v", err)
	}
	if display.Challenge.Kind != ChallengeDisplayNameCheck {
		t.Fatalf("expected display_name to get a DisplayNameCheck challenge")
	}

	legal, err := NewIdentityField(LegalName("Alice"))
	if err != nil {
		t.Fatalf("NewIdentityField(legal_name): %v", err)
	}
	if legal.Challenge.Kind != ChallengeUnsupported {
		t.Fatalf("expected legal_name to get an Unsupported challenge")
	}
}

func TestToStateAndAllFieldsVerified(t *testing.T) {
	req := JudgementRequest{
		Context: NewContext("14abc"),
		Fields:  []FieldValue{Email("a@example.com"), DisplayName("alice")},
	}
	state, err := req.ToState(1000)
	if err != nil {
		t.Fatalf("ToState: %v", err)
	}
	if len(state.Fields) != 2 || state.InsertedAt != 1000 {
		t.Fatalf("unexpected state: %+v", state)
	}
	if state.AllFieldsVerified() {
		t.Fatalf("expected fresh state to not be fully verified")
	}

	emailField, ok := state.FieldByKind(KindEmail)
	if !ok {
		t.Fatalf("expected to find email field")
	}
	emailField.Challenge.Primary.IsVerified = true
	emailField.Challenge.Secondary.IsVerified = true

	displayField, ok := state.FieldByKind(KindDisplayName)
	if !ok {
		t.Fatalf("expected to find display_name field")
	}
	displayField.Challenge.Passed = true

	if !state.AllFieldsVerified() {
		t.Fatalf("expected state to be fully verified once every challenge passes")
	}
}

func TestSameFieldSet(t *testing.T) {
	ctx := NewContext("14abc")
	a, _ := JudgementRequest{Context: ctx, Fields: []FieldValue{Email("a@example.com")}}.ToState(1)
	b, _ := JudgementRequest{Context: ctx, Fields: []FieldValue{Email("a@example.com")}}.ToState(2)
	c, _ := JudgementRequest{Context: ctx, Fields: []FieldValue{Email("b@example.com")}}.ToState(3)

	if !a.SameFieldSet(b) {
		t.Fatalf("expected identical field sets to match regardless of challenge state")
	}
	if a.SameFieldSet(c) {
		t.Fatalf("expected different field values to not match")
	}
}

func TestFieldByOrigin(t *testing.T) {
	ctx := NewContext("14abc")
	state, _ := JudgementRequest{Context: ctx, Fields: []FieldValue{Email("a@example.com")}}.ToState(1)

	field, ok := state.FieldByOrigin(EmailOrigin("a@example.com"))
	if !ok || field.Value.Kind != KindEmail {
		t.Fatalf("expected to find field by origin, got %+v, ok=%v", field, ok)
	}
	if _, ok := state.FieldByOrigin(EmailOrigin("other@example.com")); ok {
		t.Fatalf("expected no match for an unrelated origin")
	}
}

func TestChallengeIsVerified(t *testing.T) {
	msg, err := NewExpectedMessageChallenge(true)
	if err != nil {
		t.Fatalf("NewExpectedMessageChallenge: %v", err)
	}
	if msg.IsVerified() {
		t.Fatalf("expected fresh challenge to be unverified")
	}
	msg.Primary.IsVerified = true
	if msg.IsVerified() {
		t.Fatalf("expected challenge with unverified secondary to stay unverified")
	}
	msg.Secondary.IsVerified = true
	if !msg.IsVerified() {
		t.Fatalf("expected challenge to verify once both tokens are confirmed")
	}

	unsupported := NewUnsupportedChallenge()
	if unsupported.IsVerified() {
		t.Fatalf("expected Unsupported to start unverified")
	}
	unsupported.SetManuallyVerified(true)
	if !unsupported.IsVerified() {
		t.Fatalf("expected Unsupported to verify once manually flipped")
	}
}

func TestBlankNeverExposesSecondaryValue(t *testing.T) {
	state, err := JudgementRequest{
		Context: NewContext("14abc"),
		Fields:  []FieldValue{Email("a@example.com")},
	}.ToState(1)
	if err != nil {
		t.Fatalf("ToState: %v", err)
	}

	blanked := Blank(state)
	if len(blanked.Fields) != 1 {
		t.Fatalf("expected one blanked field")
	}
	field := blanked.Fields[0]
	if !field.Challenge.HasSecondary {
		t.Fatalf("expected email field to report HasSecondary")
	}
	if field.Challenge.SecondaryVerified {
		t.Fatalf("expected fresh secondary to be unverified")
	}
}
