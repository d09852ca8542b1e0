package identity

// IdentityField is one off-chain value attached to an identity together
// with its verification challenge and failure counter.
type IdentityField struct {
	Value          FieldValue `json:"value"`
	Challenge      Challenge  `json:"challenge"`
	FailedAttempts uint32     `json:"failed_attempts"`
}

// NewIdentityField builds a field with the challenge its kind requires:
// ExpectedMessage for Email (with secondary)/Twitter/Matrix,
// DisplayNameCheck for DisplayName, Unsupported for everything else.
func NewIdentityField(value FieldValue) (IdentityField, error) {
	var challenge Challenge
	var err error

	switch value.Kind {
	case KindEmail:
		challenge, err = NewExpectedMessageChallenge(true)
	case KindTwitter, KindMatrix:
		challenge, err = NewExpectedMessageChallenge(false)
	case KindDisplayName:
		challenge = NewDisplayNameChallenge(nil)
	default:
		challenge = NewUnsupportedChallenge()
	}
	if err != nil {
		return IdentityField{}, err
	}
	return IdentityField{Value: value, Challenge: challenge}, nil
}

// IsVerified reports whether the field's challenge is satisfied.
func (f IdentityField) IsVerified() bool {
	return f.Challenge.IsVerified()
}

// JudgementState is the full verification record for one on-chain identity:
// the primary key the rest of the system operates on.
type JudgementState struct {
	Context            Context         `json:"context"`
	IsFullyVerified    bool            `json:"is_fully_verified"`
	InsertedAt         int64           `json:"inserted_at"`
	CompletionAt       *int64          `json:"completion_at,omitempty"`
	JudgementSubmitted bool            `json:"judgement_submitted"`
	IssueJudgementAt   *int64          `json:"issue_judgement_at,omitempty"`
	Fields             []IdentityField `json:"fields"`
}

// FieldSet is the (type, value) pair set used to test whether two
// judgement requests address the same identity content, per
// add_judgement_request's "same field-set: do nothing" rule.
func (s JudgementState) FieldSet() map[FieldValue]struct{} {
	set := make(map[FieldValue]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		set[f.Value] = struct{}{}
	}
	return set
}

// SameFieldSet reports whether two states carry exactly the same field
// values, ignoring challenge/verification progress.
func (s JudgementState) SameFieldSet(other JudgementState) bool {
	a, b := s.FieldSet(), other.FieldSet()
	if len(a) != len(b) {
		return false
	}
	for v := range a {
		if _, ok := b[v]; !ok {
			return false
		}
	}
	return true
}

// FieldByKind returns the field of the given kind, if present.
func (s JudgementState) FieldByKind(kind FieldKind) (*IdentityField, bool) {
	for i := range s.Fields {
		if s.Fields[i].Value.Kind == kind {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// FieldByValue returns the field matching a specific value, used by
// verify_second_challenge to locate the field a POST references.
func (s JudgementState) FieldByValue(v FieldValue) (*IdentityField, bool) {
	for i := range s.Fields {
		if s.Fields[i].Value.Equal(v) {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// FieldByOrigin returns the field a message origin applies to.
func (s JudgementState) FieldByOrigin(origin MessageOrigin) (*IdentityField, bool) {
	for i := range s.Fields {
		if origin.Matches(s.Fields[i].Value) {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// AllFieldsVerified reports whether every field in the state is now
// verified. The Engine calls this after any field transition to decide
// whether to emit IdentityFullyVerified.
func (s JudgementState) AllFieldsVerified() bool {
	for _, f := range s.Fields {
		if !f.IsVerified() {
			return false
		}
	}
	return true
}

// JudgementRequest is the chain-sourced request to judge an identity: an
// address plus the set of fields the owner wants verified.
type JudgementRequest struct {
	Context Context      `json:"context"`
	Fields  []FieldValue `json:"fields"`
}

// ToState builds a fresh, unverified JudgementState from a request,
// generating challenges for every field. insertedAt is supplied by the
// caller (the Engine stamps it with the current time) rather than read
// from the clock here, keeping this function deterministic and testable.
func (r JudgementRequest) ToState(insertedAt int64) (JudgementState, error) {
	fields := make([]IdentityField, 0, len(r.Fields))
	for _, v := range r.Fields {
		f, err := NewIdentityField(v)
		if err != nil {
			return JudgementState{}, err
		}
		fields = append(fields, f)
	}
	return JudgementState{
		Context:    r.Context,
		InsertedAt: insertedAt,
		Fields:     fields,
	}, nil
}
