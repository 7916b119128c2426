package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestAugmenterAttachesStoredKey(t *testing.T) {
	var gotHeader string
	var hasHeader bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, hasHeader = r.Header[adminKeyHeader]
		gotHeader = r.Header.Get(adminKeyHeader)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[]}`))
	})

	if _, err := c.ListMedia(context.Background()); err != nil {
		t.Fatalf("ListMedia: %v", err)
	}
	if hasHeader {
		t.Fatalf("header present with no stored key: %q", gotHeader)
	}

	c.Keys().Set("abc")
	if _, err := c.ListMedia(context.Background()); err != nil {
		t.Fatalf("ListMedia: %v", err)
	}
	if gotHeader != "abc" {
		t.Fatalf("header = %q, want abc", gotHeader)
	}
}

func TestAugmenterNeverSendsEmptyKey(t *testing.T) {
	var hasHeader bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, hasHeader = r.Header[adminKeyHeader]
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[]}`))
	})

	c.Keys().Set("abc")
	c.Keys().Clear()
	if _, err := c.ListMedia(context.Background()); err != nil {
		t.Fatalf("ListMedia: %v", err)
	}
	if hasHeader {
		t.Fatal("header present after Clear")
	}
}

func TestDetectorPublishesOnGateDenial(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"Write operations are disabled in demo mode","message":"read only","allowedOperations":["GET"],"blockedOperation":"POST"}`))
	})

	var events []WriteBlocked
	c.Notifier().Subscribe(func(e WriteBlocked) { events = append(events, e) })

	_, err := c.CreateMedia(context.Background(), MediaItem{Title: "x", MediaType: "book"})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusForbidden {
		t.Fatalf("err = %v, want 403 HTTPError", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].BlockedOperation != "POST" || events[0].Path != "/api/media" {
		t.Fatalf("event = %+v", events[0])
	}
}

func TestDetectorIgnoresUnrelated403(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"Access denied"}`))
	})

	published := false
	c.Notifier().Subscribe(func(WriteBlocked) { published = true })

	_, err := c.CreateMedia(context.Background(), MediaItem{Title: "x", MediaType: "book"})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("err = %v", err)
	}
	if published {
		t.Fatal("unrelated 403 triggered a denial notification")
	}
}

func TestDetectorIgnoresNon403(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	published := false
	c.Notifier().Subscribe(func(WriteBlocked) { published = true })

	if _, err := c.GetMedia(context.Background(), "someid"); err == nil {
		t.Fatal("want error")
	}
	if published {
		t.Fatal("404 triggered a denial notification")
	}
}

func TestUnlockStoresKeyAndLockClearsIt(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/demo/unlock":
			if r.URL.Query().Get("code") != "123456" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"message":"Write access unlocked successfully!","expiresInMinutes":20,"expiresAt":"2026-03-01T12:20:00Z","adminKey":"issued-key"}`))
		case "/demo/lock":
			_, _ = w.Write([]byte(`{"message":"Write access revoked"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	result, err := c.UnlockWriteAccess(context.Background(), "123456")
	if err != nil {
		t.Fatalf("UnlockWriteAccess: %v", err)
	}
	if result.AdminKey != "issued-key" || result.ExpiresInMinutes != 20 {
		t.Fatalf("result = %+v", result)
	}
	if key, ok := c.Keys().Get(); !ok || key != "issued-key" {
		t.Fatalf("stored key = %q, %v", key, ok)
	}

	if err := c.LockWriteAccess(context.Background()); err != nil {
		t.Fatalf("LockWriteAccess: %v", err)
	}
	if _, ok := c.Keys().Get(); ok {
		t.Fatal("key still stored after lock")
	}
}

func TestUnlockFailureLeavesKeyUntouched(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	c.Keys().Set("old-key")

	if _, err := c.UnlockWriteAccess(context.Background(), "000000"); err == nil {
		t.Fatal("want error")
	}
	if key, ok := c.Keys().Get(); !ok || key != "old-key" {
		t.Fatalf("stored key = %q, %v", key, ok)
	}
}

func TestLockFailureKeepsKey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	c.Keys().Set("key")

	if err := c.LockWriteAccess(context.Background()); err == nil {
		t.Fatal("want error")
	}
	if _, ok := c.Keys().Get(); !ok {
		t.Fatal("key cleared despite failed lock")
	}
}

func TestClearStoredKeyDropsKeyWithoutServerCall(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	c.Keys().Set("key")

	c.ClearStoredKey()
	if _, ok := c.Keys().Get(); ok {
		t.Fatal("key still stored after clear")
	}
	if called {
		t.Fatal("clear must not contact the server")
	}
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	for _, u := range []string{"", "   ", "not a url", "/relative"} {
		if _, err := New(u); err == nil {
			t.Fatalf("New(%q): want error", u)
		}
	}
}
