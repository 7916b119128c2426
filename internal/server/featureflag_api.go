package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/medialoom/medialoom/internal/routing"
)

// featureFlagAPI is the management surface behind the demo_write_enabled
// toggle. It lives under /dev and is demo-exempt: flipping the flag is how
// an operator re-enables writes, so the gate cannot stand in front of it.
type featureFlagAPI struct {
	flags FeatureFlagStore
}

func newFeatureFlagAPI(flags FeatureFlagStore) *featureFlagAPI {
	return &featureFlagAPI{flags: flags}
}

func (a *featureFlagAPI) handleFlags(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.list(w, r)
	case http.MethodPost:
		a.set(w, r)
	default:
		routing.WriteError(w, r, routing.RouteClassDevOnly, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (a *featureFlagAPI) list(w http.ResponseWriter, r *http.Request) {
	flags, err := a.flags.List(r.Context())
	if err != nil {
		log.Printf("feature flags: list failed: %v", err)
		routing.WriteError(w, r, routing.RouteClassDevOnly, http.StatusInternalServerError, "flag_list_failed", "could not list feature flags")
		return
	}
	routing.WriteJSON(w, http.StatusOK, map[string]any{"flags": flags})
}

func (a *featureFlagAPI) set(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key     string `json:"key"`
		Enabled *bool  `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		routing.WriteError(w, r, routing.RouteClassDevOnly, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	req.Key = strings.TrimSpace(req.Key)
	if req.Key == "" {
		routing.WriteError(w, r, routing.RouteClassDevOnly, http.StatusBadRequest, "key_required", "key is required")
		return
	}
	if req.Enabled == nil {
		routing.WriteError(w, r, routing.RouteClassDevOnly, http.StatusBadRequest, "enabled_required", "enabled is required")
		return
	}

	flag, err := a.flags.SetEnabled(r.Context(), req.Key, *req.Enabled)
	if err != nil {
		log.Printf("feature flags: set %q=%v failed: %v", req.Key, *req.Enabled, err)
		routing.WriteError(w, r, routing.RouteClassDevOnly, http.StatusInternalServerError, "flag_set_failed", "could not update feature flag")
		return
	}
	log.Printf("feature flags: %q set to %v", flag.Key, flag.Enabled)
	routing.WriteJSON(w, http.StatusOK, flag)
}
