// Package httprouter adapts github.com/julienschmidt/httprouter to the
// router.Router contract.
package httprouter

import (
	"context"
	"net/http"

	"github.com/dotsama/identity-registrar/router"
	jshttprouter "github.com/julienschmidt/httprouter"
)

// Router implements router.Router over julienschmidt/httprouter.
type Router struct {
	*jshttprouter.Router
}

func New() *Router {
	return &Router{jshttprouter.New()}
}

func (r *Router) Get(path string, handler http.Handler) {
	r.Handler(http.MethodGet, path, handler)
}

func (r *Router) Post(path string, handler http.Handler) {
	r.Handler(http.MethodPost, path, handler)
}

// jsParams implements router.ParamGeter over httprouter's context-carried
// Params.
type jsParams struct{}

func (jsParams) Get(ctx context.Context) router.Params {
	pms, _ := ctx.Value(jshttprouter.ParamsKey).(jshttprouter.Params)
	params := make(router.Params, 0, len(pms))
	for _, v := range pms {
		params = append(params, router.Param{Key: v.Key, Value: v.Value})
	}
	return params
}

func NewParamGeter() router.ParamGeter {
	return jsParams{}
}
