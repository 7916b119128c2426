package server

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/medialoom/medialoom/internal/routing"
)

// demoAPI serves the unlock surface: status, TOTP unlock, and manual lock.
// Unlock and lock exist only on demo deployments; elsewhere they 404 so the
// surface is invisible.
type demoAPI struct {
	cfg   DemoConfig
	flags FeatureFlagStore
	key   *ephemeralAdminKey
	now   func() time.Time
}

func newDemoAPI(cfg DemoConfig, flags FeatureFlagStore, key *ephemeralAdminKey, now func() time.Time) *demoAPI {
	if now == nil {
		now = time.Now
	}
	return &demoAPI{cfg: cfg, flags: flags, key: key, now: now}
}

type demoStatusBody struct {
	IsDemoEnvironment  bool   `json:"isDemoEnvironment"`
	WriteAccessEnabled bool   `json:"writeAccessEnabled"`
	Message            string `json:"message"`
}

type demoUnlockBody struct {
	Message          string `json:"message"`
	ExpiresInMinutes int    `json:"expiresInMinutes"`
	ExpiresAt        string `json:"expiresAt"`
	AdminKey         string `json:"adminKey"`
}

func (a *demoAPI) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !a.cfg.IsDemoEnvironment {
		routing.WriteJSON(w, http.StatusOK, demoStatusBody{
			IsDemoEnvironment:  false,
			WriteAccessEnabled: true,
			Message:            "Not in demo environment - write operations are unrestricted",
		})
		return
	}

	enabled := a.cfg.StaticWriteEnabled ||
		a.key.Active(a.now()) ||
		(a.flags != nil && flagEnabledQuiet(r.Context(), a.flags, demoWriteFlagKey))

	msg := "Write access is disabled - use /demo/unlock with a valid TOTP code"
	if enabled {
		msg = "Write access is enabled"
	}
	routing.WriteJSON(w, http.StatusOK, demoStatusBody{
		IsDemoEnvironment:  true,
		WriteAccessEnabled: enabled,
		Message:            msg,
	})
}

func (a *demoAPI) handleUnlock(w http.ResponseWriter, r *http.Request) {
	if !a.cfg.IsDemoEnvironment {
		routing.WriteError(w, r, routing.RouteClassDemo, http.StatusNotFound, "not_found", "not found")
		return
	}

	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		routing.WriteError(w, r, routing.RouteClassDemo, http.StatusBadRequest, "code_required", "TOTP code is required")
		return
	}

	// An unconfigured secret and a wrong code look identical to the caller.
	// The distinction is for the operator, in the logs.
	if a.cfg.TOTPSecret == "" {
		log.Printf("demo unlock: DEMO_TOTP_SECRET not configured, rejecting code")
		a.writeUnlockRejected(w, r)
		return
	}

	now := a.now()
	valid, err := totp.ValidateCustom(code, a.cfg.TOTPSecret, now, totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		log.Printf("demo unlock: code validation errored: %v", err)
		a.writeUnlockRejected(w, r)
		return
	}
	if !valid {
		log.Printf("demo unlock: invalid TOTP code attempt")
		a.writeUnlockRejected(w, r)
		return
	}

	issued, expiresAt, err := a.key.Issue(now, a.cfg.UnlockDuration)
	if err != nil {
		log.Printf("demo unlock: key issuance failed: %v", err)
		routing.WriteError(w, r, routing.RouteClassDemo, http.StatusInternalServerError, "key_issuance_failed", "could not issue admin key")
		return
	}
	log.Printf("demo unlock: write access unlocked, expires at %s", expiresAt.UTC().Format(time.RFC3339))

	routing.WriteJSON(w, http.StatusOK, demoUnlockBody{
		Message:          "Write access unlocked successfully!",
		ExpiresInMinutes: int(a.cfg.UnlockDuration / time.Minute),
		ExpiresAt:        expiresAt.UTC().Format(time.RFC3339),
		AdminKey:         issued,
	})
}

func (a *demoAPI) writeUnlockRejected(w http.ResponseWriter, r *http.Request) {
	routing.WriteError(w, r, routing.RouteClassDemo, http.StatusUnauthorized, "invalid_code", "Invalid TOTP code")
}

func (a *demoAPI) handleLock(w http.ResponseWriter, r *http.Request) {
	if !a.cfg.IsDemoEnvironment {
		routing.WriteError(w, r, routing.RouteClassDemo, http.StatusNotFound, "not_found", "not found")
		return
	}

	a.key.Revoke()
	log.Printf("demo lock: write access manually revoked")
	routing.WriteJSON(w, http.StatusOK, map[string]string{"message": "Write access revoked"})
}
