package identity

import "strings"

// FieldKind discriminates the tagged IdentityFieldValue union from the spec.
// Go has no sum type, so the union is represented the way the rest of the
// corpus represents tagged payloads (see queue.Job's JobType/Payload pair):
// a Kind discriminant plus a single string payload.
type FieldKind int

const (
	KindLegalName FieldKind = iota
	KindDisplayName
	KindEmail
	KindWeb
	KindTwitter
	KindMatrix
	KindPGPFingerprint
	KindImage
	KindAdditional
)

func (k FieldKind) String() string {
	switch k {
	case KindLegalName:
		return "legal_name"
	case KindDisplayName:
		return "display_name"
	case KindEmail:
		return "email"
	case KindWeb:
		return "web"
	case KindTwitter:
		return "twitter"
	case KindMatrix:
		return "matrix"
	case KindPGPFingerprint:
		return "pgpFingerprint"
	case KindImage:
		return "image"
	case KindAdditional:
		return "additional"
	default:
		return "unknown"
	}
}

// FieldValue is one off-chain identifier attached to an identity.
type FieldValue struct {
	Kind  FieldKind `json:"type"`
	Value string    `json:"value"`
}

func LegalName(s string) FieldValue     { return FieldValue{KindLegalName, s} }
func DisplayName(s string) FieldValue   { return FieldValue{KindDisplayName, s} }
func Email(s string) FieldValue         { return FieldValue{KindEmail, s} }
func Web(s string) FieldValue           { return FieldValue{KindWeb, s} }
func Twitter(s string) FieldValue       { return FieldValue{KindTwitter, s} }
func Matrix(s string) FieldValue        { return FieldValue{KindMatrix, s} }
func PGPFingerprint(s string) FieldValue { return FieldValue{KindPGPFingerprint, s} }
func Image() FieldValue                 { return FieldValue{Kind: KindImage} }
func Additional(s string) FieldValue    { return FieldValue{KindAdditional, s} }

// IsMessageChannel reports whether this field's channel is one the engine
// can actually correlate inbound messages against (Email/Twitter/Matrix),
// as opposed to the display-name check or an unsupported admin-only field.
func (k FieldKind) IsMessageChannel() bool {
	switch k {
	case KindEmail, KindTwitter, KindMatrix:
		return true
	default:
		return false
	}
}

// Equal compares two field values by type and value, the equality used by
// Store.add_judgement_request to decide whether an incoming request's field
// set matches an already-stored one.
func (v FieldValue) Equal(other FieldValue) bool {
	return v.Kind == other.Kind && v.Value == other.Value
}

// AccountType is the wire-level account identifier used by the watcher
// protocol's newJudgementRequest/pendingJudgementsResponse payloads
// (spec.md §6).
type AccountType string

const (
	AccountLegalName      AccountType = "legal_name"
	AccountDisplayName    AccountType = "display_name"
	AccountEmail          AccountType = "email"
	AccountWeb            AccountType = "web"
	AccountTwitter        AccountType = "twitter"
	AccountMatrix         AccountType = "matrix"
	AccountPGPFingerprint AccountType = "pgpFingerprint"
	AccountImage          AccountType = "image"
	AccountAdditional     AccountType = "additional"
)

// FieldValueFromAccount builds a FieldValue from a wire account type/value
// pair, as seen when the Watcher Connector ingests a judgement request.
func FieldValueFromAccount(accountType AccountType, value string) (FieldValue, bool) {
	switch accountType {
	case AccountLegalName:
		return LegalName(value), true
	case AccountDisplayName:
		return DisplayName(value), true
	case AccountEmail:
		return Email(value), true
	case AccountWeb:
		return Web(value), true
	case AccountTwitter:
		return Twitter(value), true
	case AccountMatrix:
		return Matrix(value), true
	case AccountPGPFingerprint:
		return PGPFingerprint(value), true
	case AccountImage:
		return Image(), true
	case AccountAdditional:
		return Additional(value), true
	default:
		return FieldValue{}, false
	}
}

// RawFieldName is the admin-facing field name accepted by the "verify"
// command (spec.md §4.7): case-insensitive, with '-'/'_' stripped.
type RawFieldName int

const (
	RawLegalName RawFieldName = iota
	RawDisplayName
	RawEmail
	RawWeb
	RawTwitter
	RawMatrix
	RawPGPFingerprint
	RawImage
	RawAdditional
	RawAll
)

// ParseRawFieldName parses an admin command token into a RawFieldName,
// normalizing case and stripping '-'/'_' separators so "display-name",
// "Display_Name" and "displayname" are all accepted.
func ParseRawFieldName(token string) (RawFieldName, bool) {
	normalized := strings.ToLower(token)
	normalized = strings.ReplaceAll(normalized, "-", "")
	normalized = strings.ReplaceAll(normalized, "_", "")

	switch normalized {
	case "legalname":
		return RawLegalName, true
	case "displayname":
		return RawDisplayName, true
	case "email":
		return RawEmail, true
	case "web":
		return RawWeb, true
	case "twitter":
		return RawTwitter, true
	case "matrix":
		return RawMatrix, true
	case "pgpfingerprint":
		return RawPGPFingerprint, true
	case "image":
		return RawImage, true
	case "additional":
		return RawAdditional, true
	case "all":
		return RawAll, true
	default:
		return 0, false
	}
}

func (r RawFieldName) String() string {
	switch r {
	case RawLegalName:
		return "legal_name"
	case RawDisplayName:
		return "display_name"
	case RawEmail:
		return "email"
	case RawWeb:
		return "web"
	case RawTwitter:
		return "twitter"
	case RawMatrix:
		return "matrix"
	case RawPGPFingerprint:
		return "pgp_fingerprint"
	case RawImage:
		return "image"
	case RawAdditional:
		return "additional"
	case RawAll:
		return "all"
	default:
		return "unknown"
	}
}

// Kind maps a RawFieldName back to the FieldKind it selects, used when the
// admin surface resolves which Field in a JudgementState to manually verify.
func (r RawFieldName) Kind() (FieldKind, bool) {
	switch r {
	case RawLegalName:
		return KindLegalName, true
	case RawDisplayName:
		return KindDisplayName, true
	case RawEmail:
		return KindEmail, true
	case RawWeb:
		return KindWeb, true
	case RawTwitter:
		return KindTwitter, true
	case RawMatrix:
		return KindMatrix, true
	case RawPGPFingerprint:
		return KindPGPFingerprint, true
	case RawImage:
		return KindImage, true
	case RawAdditional:
		return KindAdditional, true
	default:
		return 0, false
	}
}
