package server

import (
	"net/http"
	"strings"
)

// withCORS sits outermost so gate denials also carry CORS headers and the
// browser client can read the denial body.
func withCORS(next http.Handler) http.Handler {
	allowedHeaders := strings.Join([]string{
		"Accept",
		"Content-Type",
		adminKeyHeader,
		ssoAssertionHeader,
	}, ", ")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
