package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNew(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error")
	}
	if _, err := New("   "); err == nil {
		t.Fatal("expected error")
	}
	if _, err := New("ftp://localhost:4433"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := New("http://"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := New("http://%zz"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := New("http://localhost:4433"); err != nil {
		t.Fatal(err)
	}
}

func TestClient_Whoami_Success(t *testing.T) {
	var gotToken string

	mux := http.NewServeMux()
	mux.HandleFunc("/sessions/whoami", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method=%s", r.Method)
		}
		gotToken = r.Header.Get("X-Session-Token")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"identity": map[string]any{
				"id": "ident-1",
				"traits": map[string]any{
					"email":     "op@example.com",
					"role_slug": "operator",
				},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	ident, err := c.Whoami(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if gotToken != "tok-1" {
		t.Fatalf("token=%q", gotToken)
	}
	if ident.ID != "ident-1" {
		t.Fatalf("id=%q", ident.ID)
	}
	if role, ok := ident.StringTrait("role_slug"); !ok || role != "operator" {
		t.Fatalf("role=%q ok=%v", role, ok)
	}
}

func TestClient_Whoami_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"no session"}}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Whoami(context.Background(), "bad")
	var he *HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if he.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status=%d", he.StatusCode)
	}
	if he.Error() == "" {
		t.Fatal("expected message")
	}
}

func TestClient_Whoami_MissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"identity": map[string]any{}})
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Whoami(context.Background(), "tok"); err == nil {
		t.Fatal("expected error for missing identity id")
	}
}

func TestIdentity_StringTrait(t *testing.T) {
	t.Parallel()

	id := Identity{Traits: map[string]any{"email": "a@b.c", "n": 1, "blank": "  "}}
	if v, ok := id.StringTrait("email"); !ok || v != "a@b.c" {
		t.Fatalf("email=%q ok=%v", v, ok)
	}
	if _, ok := id.StringTrait("n"); ok {
		t.Fatal("non-string trait should not resolve")
	}
	if _, ok := id.StringTrait("blank"); ok {
		t.Fatal("blank trait should not resolve")
	}
	if _, ok := id.StringTrait("missing"); ok {
		t.Fatal("missing trait should not resolve")
	}
}
