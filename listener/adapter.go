// Package listener runs the Adapter Listener (spec.md §4.4): one
// supervised poller per configured MessageAdapter, each feeding the
// verification engine with fetched messages.
package listener

import (
	"context"

	"github.com/dotsama/identity-registrar/identity"
)

// MessageAdapter is one external message source (email, Matrix, Twitter).
// Implementations are polled on a fixed interval; Non-goal: adapters do
// not push, the Listener always pulls.
type MessageAdapter interface {
	Name() string
	FetchMessages(ctx context.Context) ([]identity.ExternalMessage, error)
}
