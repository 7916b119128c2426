package routing

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func testRouter(t *testing.T) *Router {
	t.Helper()
	c, err := NewClassifier(testAllowlist(t), "server")
	if err != nil {
		t.Fatalf("new classifier: %v", err)
	}
	return NewRouter(c)
}

func TestRouter_ExactDispatch(t *testing.T) {
	t.Parallel()

	r := testRouter(t)
	r.Handle(RouteClassOps, http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestRouter_PatternDispatch(t *testing.T) {
	t.Parallel()

	r := testRouter(t)
	r.Handle(RouteClassPublicAPI, http.MethodGet, "/api/media/{id}", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(PathParam(req, "id")))
	}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/media/abc123", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "abc123" {
		t.Fatalf("path param = %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/media/abc123", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestRouter_RecoverFromPanic(t *testing.T) {
	t.Parallel()

	r := testRouter(t)
	r.Handle(RouteClassPublicAPI, http.MethodGet, "/api/media", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/media", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestPathParam_Missing(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/api/media", nil)
	if got := PathParam(req, "id"); got != "" {
		t.Fatalf("PathParam = %q, want empty", got)
	}
}
