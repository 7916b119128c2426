package server

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	adminKeyHeader     = "X-Demo-Admin-Key"
	ssoAssertionHeader = "X-SSO-Assertion"

	demoWriteFlagKey = "demo_write_enabled"

	defaultUnlockMinutes = 20
)

// DemoConfig is read from the environment once at handler construction and
// passed by reference; nothing on the request path touches the environment.
type DemoConfig struct {
	// IsDemoEnvironment turns the write gate on. Outside the demo
	// deployment the gate is fully inert.
	IsDemoEnvironment bool

	// AdminSecret is the static bypass secret compared against
	// X-Demo-Admin-Key. Empty means the static bypass never applies.
	AdminSecret string

	// StaticWriteEnabled force-opens the gate; changing it requires a
	// process restart (the feature flag exists for restart-free toggling).
	StaticWriteEnabled bool

	// TOTPSecret is the base32 shared secret for unlock codes. Empty means
	// unlock always fails.
	TOTPSecret string

	// UnlockDuration is how long an issued ephemeral key stays valid.
	UnlockDuration time.Duration

	// ExemptRule is an optional CEL expression over {method, path} that
	// marks extra requests as exempt from the gate.
	ExemptRule string
}

func demoConfigFromEnv() DemoConfig {
	minutes := defaultUnlockMinutes
	if v := os.Getenv("DEMO_UNLOCK_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			minutes = n
		}
	}

	return DemoConfig{
		IsDemoEnvironment:  strings.EqualFold(getenvDefault("APP_ENV", "production"), "demo"),
		AdminSecret:        os.Getenv("DEMO_ADMIN_SECRET"),
		StaticWriteEnabled: envBool("DEMO_WRITE_ENABLED"),
		TOTPSecret:         strings.TrimSpace(os.Getenv("DEMO_TOTP_SECRET")),
		UnlockDuration:     time.Duration(minutes) * time.Minute,
		ExemptRule:         strings.TrimSpace(os.Getenv("DEMO_EXEMPT_RULE")),
	}
}

func envBool(key string) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	return v == "true" || v == "1"
}
