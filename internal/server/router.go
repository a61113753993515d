package server

import (
	"net/http"
	"slices"
	"strings"
)

// BasicRouter implements [Router] over [http.ServeMux] method patterns. A path may carry one
// handler per method; the mux answers other methods with 405.
type BasicRouter struct {
	mux   *http.ServeMux
	chain []Middleware
}

func NewBasicRouter() *BasicRouter {
	return &BasicRouter{mux: http.NewServeMux()}
}

// Use appends middleware. Only handlers registered afterwards are wrapped.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.chain = append(r.chain, middleware...)
}

// Handle registers handler under "METHOD path".
func (r *BasicRouter) Handle(method, path string, handler http.Handler) {
	r.mux.Handle(strings.ToUpper(method)+" "+path, r.Apply(handler))
}

// Handler registers handler under every pattern from [Handler.Routes].
func (r *BasicRouter) Handler(handler Handler) {
	wrapped := r.Apply(handler)
	for _, pattern := range handler.Routes() {
		r.mux.Handle(pattern, wrapped)
	}
}

func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Apply wraps handler so the first middleware added sees the request first.
func (r *BasicRouter) Apply(handler http.Handler) http.Handler {
	for _, m := range slices.Backward(r.chain) {
		handler = m(handler)
	}
	return handler
}
