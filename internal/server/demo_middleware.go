package server

import (
	"log"
	"net/http"

	"github.com/medialoom/medialoom/internal/routing"
)

const (
	demoBlockedError   = "Write operations are disabled in demo mode"
	demoBlockedMessage = "This demo environment is read-only. You can browse all content, but cannot create, update, or delete data."
)

// demoDenialBody is the one body every blocked write receives. Clients key
// off the error string, so it never varies.
type demoDenialBody struct {
	Error             string   `json:"error"`
	Message           string   `json:"message"`
	AllowedOperations []string `json:"allowedOperations"`
	BlockedOperation  string   `json:"blockedOperation"`
}

func withDemoGate(gate *demoGate, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := gate.Decide(r.Context(), r.Method, r.URL.Path, r.Header)
		if d.Allowed {
			next.ServeHTTP(w, r)
			return
		}
		log.Printf("demo gate: blocked %s %s", r.Method, r.URL.Path)
		routing.WriteJSON(w, http.StatusForbidden, demoDenialBody{
			Error:             demoBlockedError,
			Message:           demoBlockedMessage,
			AllowedOperations: []string{http.MethodGet},
			BlockedOperation:  d.BlockedOperation,
		})
	})
}
