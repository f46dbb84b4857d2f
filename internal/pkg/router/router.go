// Package router adapts httprouter to handlers that return a value or an
// error, and applies the middleware every endpoint shares.
package router

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/phoneauth/internal/pkg/config"
	"github.com/shandysiswandi/phoneauth/internal/pkg/instrument"
	"github.com/shandysiswandi/phoneauth/internal/pkg/jwt"
	"github.com/shandysiswandi/phoneauth/internal/pkg/uid"
)

// Handler returns a value to wrap in the success envelope, or an error.
type Handler func(r *Request) (any, error)

type Config struct {
	Config     config.Config
	UUID       uid.StringID // correlation ids
	JWT        jwt.JWT
	Instrument instrument.Instrumentation
}

// publicRoutes need no bearer token.
var publicRoutes = routeSet{
	http.MethodGet: {
		"/":                                        {},
		"/health":                                  {},
		"/api/v1/verification/providers":           {},
		"/api/v1/verification/sessions/:id":        {},
		"/api/v1/verification/sessions/:id/stream": {},
	},
	http.MethodPost: {
		"/api/v1/verification/sessions":                    {},
		"/api/v1/verification/sessions/:id/subject":        {},
		"/api/v1/verification/sessions/:id/code":           {},
		"/api/v1/verification/sessions/:id/code/entry":     {},
		"/api/v1/verification/sessions/:id/code/backspace": {},
		"/api/v1/verification/sessions/:id/resend":         {},
		"/api/v1/verification/sessions/:id/back":           {},
		"/api/v1/verification/sessions/:id/reset":          {},
	},
}

type Router struct {
	hr  *httprouter.Router
	mws []Middleware
}

// NewRouter builds the router with recover, client ip, correlation id,
// observability, maintenance and authentication middleware, outermost first.
func NewRouter(cfg Config) *Router {
	trustProxy := cfg.Config != nil && cfg.Config.GetBool("app.server.trust_proxy_headers")

	r := &Router{
		hr: &httprouter.Router{
			RedirectTrailingSlash:  true,
			RedirectFixedPath:      true,
			HandleMethodNotAllowed: true,
			HandleOPTIONS:          true,
			SaveMatchedRoutePath:   true,
			NotFound:               messageHandler("endpoint not found", http.StatusNotFound),
			MethodNotAllowed:       messageHandler("method not allowed", http.StatusMethodNotAllowed),
		},
		mws: []Middleware{
			middlewareRecoverer,
			middlewareIP(trustProxy),
			middlewareCorrelationID(cfg.UUID),
			middlewareObservability(cfg.Config, cfg.Instrument),
			middlewareMaintenance(cfg.Config),
			middlewareAuthentication(cfg.JWT, publicRoutes),
		},
	}
	r.hr.Handler(http.MethodGet, "/", messageHandler("Welcome to API PhoneAuth", http.StatusOK))

	return r
}

func messageHandler(msg string, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, errorResponse{Message: msg}, status)
	})
}

func (r *Router) GET(path string, h Handler, mws ...Middleware) {
	r.handle(http.MethodGet, path, r.adapt(h), mws)
}

func (r *Router) POST(path string, h Handler, mws ...Middleware) {
	r.handle(http.MethodPost, path, r.adapt(h), mws)
}

// GETRaw registers h as is, for endpoints such as event streams that own the
// response writer.
func (r *Router) GETRaw(path string, h http.Handler, mws ...Middleware) {
	r.handle(http.MethodGet, path, h, mws)
}

func (r *Router) handle(method, path string, h http.Handler, mws []Middleware) {
	chain := make([]Middleware, 0, len(r.mws)+len(mws))
	chain = append(append(chain, r.mws...), mws...)
	r.hr.Handler(method, path, Chain(h, chain...))
}

// adapt runs h and writes its result. The error is also handed to the
// observability writer so the request log carries it.
func (r *Router) adapt(h Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		resp, err := h(&Request{Request: req})
		if err == nil {
			writeOK(w, resp)
			return
		}
		if setter, ok := w.(interface{ SetError(error) }); ok {
			setter.SetError(err)
		}
		writeError(w, err)
	})
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.hr.ServeHTTP(w, req)
}
