package identity

import (
	"fmt"
	"strings"
)

// MessageOrigin identifies the channel and sender address an inbound
// ExternalMessage arrived on. Only Email/Twitter/Matrix carry a message
// channel; other field kinds are never the origin of a message.
type MessageOrigin struct {
	Kind    FieldKind `json:"kind"`
	Address string    `json:"address"`
}

func EmailOrigin(addr string) MessageOrigin   { return MessageOrigin{KindEmail, addr} }
func TwitterOrigin(handle string) MessageOrigin { return MessageOrigin{KindTwitter, handle} }
func MatrixOrigin(handle string) MessageOrigin  { return MessageOrigin{KindMatrix, handle} }

// Matches reports whether this origin addresses the same channel and
// account as the given field value, the equality verify_message uses to
// locate the JudgementState field a message applies to.
func (o MessageOrigin) Matches(v FieldValue) bool {
	return o.Kind == v.Kind && o.Address == v.Value
}

func (o MessageOrigin) String() string {
	return fmt.Sprintf("%s:%s", o.Kind, o.Address)
}

// ExternalMessage is one inbound message fetched by a MessageAdapter.
// (origin, ID) is the dedup key a Store enforces on add_message.
type ExternalMessage struct {
	Origin    MessageOrigin `json:"origin"`
	ID        uint64        `json:"id"`
	Timestamp int64         `json:"timestamp"`
	Values    []string      `json:"values"`
}

// ContainsToken reports whether any line of the message contains token as a
// substring, the rule verify_message and verify_second_challenge both use
// to test a claimant's reply against an ExpectedMessage.value.
func (m ExternalMessage) ContainsToken(token string) bool {
	if token == "" {
		return false
	}
	for _, line := range m.Values {
		if strings.Contains(line, token) {
			return true
		}
	}
	return false
}
