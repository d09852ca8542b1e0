package identity

// BlankedField is an IdentityField with the secondary challenge token's
// value removed. Verification status is preserved; only the secret string
// is withheld.
type BlankedField struct {
	Value          FieldValue      `json:"value"`
	Challenge      BlankedChallenge `json:"challenge"`
	FailedAttempts uint32          `json:"failed_attempts"`
}

// BlankedChallenge mirrors Challenge but never carries a secondary token
// value, only whether it has been verified.
type BlankedChallenge struct {
	Kind ChallengeKind `json:"kind"`

	Primary           ExpectedMessage `json:"primary,omitempty"`
	HasSecondary      bool            `json:"has_secondary,omitempty"`
	SecondaryVerified bool            `json:"secondary_verified,omitempty"`

	Passed     bool               `json:"passed,omitempty"`
	Violations []DisplayNameEntry `json:"violations,omitempty"`

	ManuallyVerified *bool `json:"manually_verified,omitempty"`
}

func blankChallenge(c Challenge) BlankedChallenge {
	b := BlankedChallenge{
		Kind:       c.Kind,
		Passed:     c.Passed,
		Violations: c.Violations,
		ManuallyVerified: c.ManuallyVerified,
	}
	if c.Kind == ChallengeExpectedMessage {
		b.Primary = c.Primary
		if c.Secondary != nil {
			b.HasSecondary = true
			b.SecondaryVerified = c.Secondary.IsVerified
		}
	}
	return b
}

// JudgementStateBlanked is the outward-facing projection of JudgementState
// delivered to every websocket subscriber and admin status query: the
// secondary email token's value is never present on the wire, so it can
// only reach a claimant by way of the already-verified primary channel.
type JudgementStateBlanked struct {
	Context            Context        `json:"context"`
	IsFullyVerified    bool           `json:"is_fully_verified"`
	InsertedAt         int64          `json:"inserted_at"`
	CompletionAt       *int64         `json:"completion_at,omitempty"`
	JudgementSubmitted bool           `json:"judgement_submitted"`
	IssueJudgementAt   *int64         `json:"issue_judgement_at,omitempty"`
	Fields             []BlankedField `json:"fields"`
}

// Blank projects a JudgementState into its wire-safe form.
func Blank(s JudgementState) JudgementStateBlanked {
	fields := make([]BlankedField, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = BlankedField{
			Value:          f.Value,
			Challenge:      blankChallenge(f.Challenge),
			FailedAttempts: f.FailedAttempts,
		}
	}
	return JudgementStateBlanked{
		Context:            s.Context,
		IsFullyVerified:    s.IsFullyVerified,
		InsertedAt:         s.InsertedAt,
		CompletionAt:       s.CompletionAt,
		JudgementSubmitted: s.JudgementSubmitted,
		IssueJudgementAt:   s.IssueJudgementAt,
		Fields:             fields,
	}
}
