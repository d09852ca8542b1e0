// Package identity holds the judgement state machine's data model: the
// per-address verification context, the fields attached to it, their
// challenges, and the event log entries the rest of the system emits.
package identity

import "strings"

// Chain is the network an address belongs to.
type Chain int

const (
	Polkadot Chain = iota
	Kusama
)

func (c Chain) String() string {
	switch c {
	case Polkadot:
		return "polkadot"
	case Kusama:
		return "kusama"
	default:
		return "unknown"
	}
}

// Context uniquely identifies an on-chain identity: a primary key in the
// state store (invariant 1 of the spec).
type Context struct {
	Address string `json:"address"`
	Chain   Chain  `json:"chain"`
}

// ChainFromAddress derives the chain from the address's first byte.
//
// This reproduces the upstream registrar's "starts with '1' implies
// Polkadot, else Kusama" rule exactly, for wire compatibility with chains
// that already rely on it. It is wrong for a number of legitimate SS58
// address forms on both networks.
func ChainFromAddress(address string) Chain {
	if strings.HasPrefix(address, "1") {
		return Polkadot
	}
	return Kusama
}

// NewContext builds a Context from a raw chain address, inferring the
// chain with ChainFromAddress.
func NewContext(address string) Context {
	return Context{Address: address, Chain: ChainFromAddress(address)}
}
