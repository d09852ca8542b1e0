// Package router defines a transport-independent routing contract so the
// notifier's HTTP layer isn't coupled to a specific router library.
package router

import (
	"context"
	"net/http"
)

// Param is one named path parameter extracted from a matched route.
type Param struct {
	Key   string
	Value string
}

// Params is the set of named path parameters for a request.
type Params []Param

// Get returns the value of the named parameter, if present.
func (p Params) Get(name string) (string, bool) {
	for _, param := range p {
		if param.Key == name {
			return param.Value, true
		}
	}
	return "", false
}

// ParamGeter extracts a router implementation's named parameters from a
// request context into the router-independent Params type.
type ParamGeter interface {
	Get(ctx context.Context) Params
}

// Router is the minimal routing surface the notifier depends on.
type Router interface {
	Get(path string, handler http.Handler)
	Post(path string, handler http.Handler)
	http.Handler
}
