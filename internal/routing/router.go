package routing

import (
	"context"
	"net/http"
	"runtime/debug"
)

type Router struct {
	classifier *Classifier
	routes     map[string]map[string]routeEntry
	patterns   []patternEntry
}

type routeEntry struct {
	rc      RouteClass
	handler http.Handler
}

type patternEntry struct {
	pattern PathPattern
	method  string
	rc      RouteClass
	handler http.Handler
}

func NewRouter(classifier *Classifier) *Router {
	return &Router{
		classifier: classifier,
		routes:     make(map[string]map[string]routeEntry),
	}
}

func (r *Router) Handle(rc RouteClass, method string, path string, h http.Handler) {
	wrapped := recoverWrap(rc, h)

	if p, ok := parsePathPattern(path); ok {
		r.patterns = append(r.patterns, patternEntry{pattern: p, method: method, rc: rc, handler: wrapped})
		return
	}

	if r.routes[path] == nil {
		r.routes[path] = make(map[string]routeEntry)
	}
	r.routes[path][method] = routeEntry{rc: rc, handler: wrapped}
}

func recoverWrap(rc RouteClass, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				_ = debug.Stack()
				WriteError(w, req, rc, http.StatusInternalServerError, "internal_error", "internal error")
			}
		}()
		h.ServeHTTP(w, req)
	})
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if methods, ok := r.routes[req.URL.Path]; ok {
		if entry, ok := methods[req.Method]; ok {
			entry.handler.ServeHTTP(w, req)
			return
		}
		WriteError(w, req, entrypointClass(methods, r.classifier.Classify(req.URL.Path)), http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	pathMatched := false
	for _, e := range r.patterns {
		if !e.pattern.Match(req.URL.Path) {
			continue
		}
		pathMatched = true
		if e.method != req.Method {
			continue
		}
		req = req.WithContext(withPathParams(req.Context(), e.pattern.Params(req.URL.Path)))
		e.handler.ServeHTTP(w, req)
		return
	}
	if pathMatched {
		WriteError(w, req, r.classifier.Classify(req.URL.Path), http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	WriteError(w, req, r.classifier.Classify(req.URL.Path), http.StatusNotFound, "not_found", "not found")
}

func entrypointClass(methods map[string]routeEntry, fallback RouteClass) RouteClass {
	for _, e := range methods {
		return e.rc
	}
	return fallback
}

type pathParamsKey struct{}

func withPathParams(ctx context.Context, params map[string]string) context.Context {
	if params == nil {
		return ctx
	}
	return context.WithValue(ctx, pathParamsKey{}, params)
}

// RequestWithPathParams returns a request carrying explicit path params,
// bypassing dispatch. Handler tests use it to exercise handlers directly.
func RequestWithPathParams(r *http.Request, params map[string]string) *http.Request {
	return r.WithContext(withPathParams(r.Context(), params))
}

// PathParam returns the named path parameter captured during dispatch.
func PathParam(r *http.Request, name string) string {
	params, _ := r.Context().Value(pathParamsKey{}).(map[string]string)
	return params[name]
}
