package sqlite

import (
	"encoding/json"
	"fmt"

	"github.com/dotsama/identity-registrar/identity"
)

func encodeFields(fields []identity.IdentityField) (string, error) {
	b, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("store/sqlite: encode fields: %w", err)
	}
	return string(b), nil
}

func decodeFields(raw string) ([]identity.IdentityField, error) {
	var fields []identity.IdentityField
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("store/sqlite: decode fields: %w", err)
	}
	return fields, nil
}

func encodeValues(values []string) (string, error) {
	b, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("store/sqlite: encode values: %w", err)
	}
	return string(b), nil
}

func decodeValues(raw string) ([]string, error) {
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("store/sqlite: decode values: %w", err)
	}
	return values, nil
}

func encodeMessage(msg identity.NotificationMessage) (string, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("store/sqlite: encode message: %w", err)
	}
	return string(b), nil
}

func decodeMessage(raw string) (identity.NotificationMessage, error) {
	var msg identity.NotificationMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return identity.NotificationMessage{}, fmt.Errorf("store/sqlite: decode message: %w", err)
	}
	return msg, nil
}

func encodeViolations(violations []identity.DisplayNameEntry) (string, error) {
	b, err := json.Marshal(violations)
	if err != nil {
		return "", fmt.Errorf("store/sqlite: encode violations: %w", err)
	}
	return string(b), nil
}

func decodeViolations(raw string) ([]identity.DisplayNameEntry, error) {
	var violations []identity.DisplayNameEntry
	if err := json.Unmarshal([]byte(raw), &violations); err != nil {
		return nil, fmt.Errorf("store/sqlite: decode violations: %w", err)
	}
	return violations, nil
}

// optionalInt64 encodes a nullable timestamp as 0 when unset. See
// scanJudgementState for why 0 is an unambiguous "unset" sentinel here.
func optionalInt64(v *int64) any {
	if v == nil {
		return int64(0)
	}
	return *v
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
