package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

const testTOTPSecret = "JBSWY3DPEHPK3PXP"

func newTestDemoAPI(t *testing.T, cfg DemoConfig, flags FeatureFlagStore, clock func() time.Time) (*demoAPI, *ephemeralAdminKey) {
	t.Helper()
	key := &ephemeralAdminKey{}
	return newDemoAPI(cfg, flags, key, clock), key
}

func validCode(t *testing.T, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCode(testTOTPSecret, at)
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	return code
}

func TestDemoStatusNonDemo(t *testing.T) {
	cfg := demoCfg()
	cfg.IsDemoEnvironment = false
	api, _ := newTestDemoAPI(t, cfg, nil, nil)

	rec := httptest.NewRecorder()
	api.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/demo/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body demoStatusBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.IsDemoEnvironment || !body.WriteAccessEnabled {
		t.Fatalf("body = %+v", body)
	}
}

func TestDemoStatusLockedAndUnlocked(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	api, key := newTestDemoAPI(t, demoCfg(), nil, clock)

	rec := httptest.NewRecorder()
	api.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/demo/status", nil))
	var body demoStatusBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !body.IsDemoEnvironment || body.WriteAccessEnabled {
		t.Fatalf("locked body = %+v", body)
	}

	if _, _, err := key.Issue(now, 20*time.Minute); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	rec = httptest.NewRecorder()
	api.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/demo/status", nil))
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !body.WriteAccessEnabled {
		t.Fatalf("unlocked body = %+v", body)
	}
}

func TestDemoUnlockHappyPath(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	cfg := demoCfg()
	cfg.TOTPSecret = testTOTPSecret
	api, key := newTestDemoAPI(t, cfg, nil, clock)

	req := httptest.NewRequest(http.MethodGet, "/demo/unlock?code="+validCode(t, now), nil)
	rec := httptest.NewRecorder()
	api.handleUnlock(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var body demoUnlockBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Message != "Write access unlocked successfully!" {
		t.Fatalf("message = %q", body.Message)
	}
	if body.ExpiresInMinutes != 20 {
		t.Fatalf("expiresInMinutes = %d", body.ExpiresInMinutes)
	}
	if want := now.Add(20 * time.Minute).Format(time.RFC3339); body.ExpiresAt != want {
		t.Fatalf("expiresAt = %q, want %q", body.ExpiresAt, want)
	}
	if body.AdminKey == "" {
		t.Fatal("adminKey missing from unlock response")
	}
	if !key.IsValid(body.AdminKey, now) {
		t.Fatal("returned key is not valid against the issued key")
	}
}

func TestDemoUnlockAcceptsAdjacentWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	cfg := demoCfg()
	cfg.TOTPSecret = testTOTPSecret
	api, _ := newTestDemoAPI(t, cfg, nil, clock)

	// Code from the previous 30s step still validates with skew 1.
	req := httptest.NewRequest(http.MethodGet, "/demo/unlock?code="+validCode(t, now.Add(-30*time.Second)), nil)
	rec := httptest.NewRecorder()
	api.handleUnlock(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestDemoUnlockInvalidCode(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	cfg := demoCfg()
	cfg.TOTPSecret = testTOTPSecret
	api, key := newTestDemoAPI(t, cfg, nil, clock)

	issued, _, err := key.Issue(now, 20*time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	rec := httptest.NewRecorder()
	api.handleUnlock(rec, httptest.NewRequest(http.MethodGet, "/demo/unlock?code=000000", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if !key.IsValid(issued, now) {
		t.Fatal("failed unlock must not disturb the active key")
	}
}

func TestDemoUnlockUnconfiguredSecretLooksLikeBadCode(t *testing.T) {
	cfg := demoCfg()
	cfg.TOTPSecret = ""
	api, _ := newTestDemoAPI(t, cfg, nil, nil)

	rec := httptest.NewRecorder()
	api.handleUnlock(rec, httptest.NewRequest(http.MethodGet, "/demo/unlock?code=123456", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 with no configuration hint", rec.Code)
	}
}

func TestDemoUnlockMissingCode(t *testing.T) {
	cfg := demoCfg()
	cfg.TOTPSecret = testTOTPSecret
	api, _ := newTestDemoAPI(t, cfg, nil, nil)

	rec := httptest.NewRecorder()
	api.handleUnlock(rec, httptest.NewRequest(http.MethodGet, "/demo/unlock", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestDemoUnlockNotFoundOutsideDemo(t *testing.T) {
	cfg := demoCfg()
	cfg.IsDemoEnvironment = false
	cfg.TOTPSecret = testTOTPSecret
	api, _ := newTestDemoAPI(t, cfg, nil, nil)

	rec := httptest.NewRecorder()
	api.handleUnlock(rec, httptest.NewRequest(http.MethodGet, "/demo/unlock?code=123456", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestDemoUnlockTwiceInvalidatesFirstKey(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	cfg := demoCfg()
	cfg.TOTPSecret = testTOTPSecret
	api, key := newTestDemoAPI(t, cfg, nil, clock)

	unlock := func() string {
		t.Helper()
		rec := httptest.NewRecorder()
		api.handleUnlock(rec, httptest.NewRequest(http.MethodGet, "/demo/unlock?code="+validCode(t, now), nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("unlock status = %d", rec.Code)
		}
		var body demoUnlockBody
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return body.AdminKey
	}

	first := unlock()
	second := unlock()
	if key.IsValid(first, now) {
		t.Fatal("first key still valid after second unlock")
	}
	if !key.IsValid(second, now) {
		t.Fatal("second key not valid")
	}
}

func TestDemoLock(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	api, key := newTestDemoAPI(t, demoCfg(), nil, clock)

	issued, _, err := key.Issue(now, 20*time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	lock := func() {
		t.Helper()
		rec := httptest.NewRecorder()
		api.handleLock(rec, httptest.NewRequest(http.MethodPost, "/demo/lock", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("lock status = %d", rec.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if body["message"] != "Write access revoked" {
			t.Fatalf("message = %q", body["message"])
		}
	}

	lock()
	if key.IsValid(issued, now) {
		t.Fatal("key still valid after lock")
	}
	lock() // idempotent
}

func TestDemoLockNotFoundOutsideDemo(t *testing.T) {
	cfg := demoCfg()
	cfg.IsDemoEnvironment = false
	api, _ := newTestDemoAPI(t, cfg, nil, nil)

	rec := httptest.NewRecorder()
	api.handleLock(rec, httptest.NewRequest(http.MethodPost, "/demo/lock", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}
