package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
)

// externalCheckTimeout bounds every external call made by the decision
// chain (SSO validation, flag reads). A timeout counts as "bypass not
// granted", never as a request failure.
const externalCheckTimeout = 3 * time.Second

func contextWithExternalTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, externalCheckTimeout)
}

type gateDecision struct {
	Allowed bool
	// Bypass names the check that allowed the request; empty on deny.
	Bypass string
	// BlockedOperation is the denied HTTP method; empty on allow.
	BlockedOperation string
}

func allowVia(name string) gateDecision {
	return gateDecision{Allowed: true, Bypass: name}
}

// bypassCheck is one named predicate in the chain. Order is the contract:
// checks run in sequence and the first true wins.
type bypassCheck struct {
	name     string
	evaluate func(ctx context.Context, method string, path string, header http.Header) bool
}

type demoGate struct {
	cfg    DemoConfig
	checks []bypassCheck
}

// newDemoGate builds the ordered bypass chain:
//
//  1. non-demo environment
//  2. read-only method
//  3. allowlisted exempt path
//  4. configured exemption rule (CEL, optional)
//  5. SSO assertion validates
//  6. feature flag demo_write_enabled
//  7. static env toggle
//  8. admin key header (static secret or active ephemeral key)
//
// Identity-based bypasses run before configuration-based ones so a stale
// flag never blocks an authenticated operator; the admin key runs last so
// it cannot mask a misconfiguration earlier in the chain.
func newDemoGate(cfg DemoConfig, exemptPath func(path string) bool, flags FeatureFlagStore, sso ssoValidator, key *ephemeralAdminKey, now func() time.Time) *demoGate {
	if now == nil {
		now = time.Now
	}
	if cfg.IsDemoEnvironment {
		if cfg.AdminSecret == "" {
			log.Printf("demo gate: DEMO_ADMIN_SECRET not configured; static admin key bypass disabled")
		}
		if cfg.TOTPSecret == "" {
			log.Printf("demo gate: DEMO_TOTP_SECRET not configured; unlock codes will be rejected")
		}
	}

	checks := []bypassCheck{
		{name: "non_demo_environment", evaluate: func(context.Context, string, string, http.Header) bool {
			return !cfg.IsDemoEnvironment
		}},
		{name: "read_only_method", evaluate: func(_ context.Context, method, _ string, _ http.Header) bool {
			return !isMutatingMethod(method)
		}},
		{name: "exempt_path", evaluate: func(_ context.Context, _, path string, _ http.Header) bool {
			return exemptPath != nil && exemptPath(path)
		}},
	}

	if rule := newExemptRule(cfg.ExemptRule); rule != nil {
		checks = append(checks, bypassCheck{name: "exempt_rule", evaluate: rule})
	}

	checks = append(checks,
		bypassCheck{name: "sso_assertion", evaluate: func(ctx context.Context, _, _ string, header http.Header) bool {
			return ssoAssertionValid(ctx, sso, header)
		}},
		bypassCheck{name: "feature_flag", evaluate: func(ctx context.Context, _, _ string, _ http.Header) bool {
			return flags != nil && flagEnabledQuiet(ctx, flags, demoWriteFlagKey)
		}},
		bypassCheck{name: "env_toggle", evaluate: func(context.Context, string, string, http.Header) bool {
			return cfg.StaticWriteEnabled
		}},
		bypassCheck{name: "admin_key", evaluate: func(_ context.Context, _, _ string, header http.Header) bool {
			candidate := header.Get(adminKeyHeader)
			if candidate == "" {
				return false
			}
			if cfg.AdminSecret != "" && constantTimeEqual(candidate, cfg.AdminSecret) {
				return true
			}
			return key != nil && key.IsValid(candidate, now())
		}},
	)

	return &demoGate{cfg: cfg, checks: checks}
}

// Decide runs the chain for one request. It never returns an error: every
// fallible check absorbs its own failures as "no".
func (g *demoGate) Decide(ctx context.Context, method string, path string, header http.Header) gateDecision {
	for _, c := range g.checks {
		if c.evaluate(ctx, method, path, header) {
			return allowVia(c.name)
		}
	}
	return gateDecision{BlockedOperation: method}
}

func isMutatingMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func ssoAssertionValid(ctx context.Context, sso ssoValidator, header http.Header) bool {
	if sso == nil {
		return false
	}
	assertion := strings.TrimSpace(header.Get(ssoAssertionHeader))
	if assertion == "" {
		return false
	}

	ctx, cancel := contextWithExternalTimeout(ctx)
	defer cancel()

	if _, err := sso.Validate(ctx, assertion); err != nil {
		if !errors.Is(err, errInvalidAssertion) {
			log.Printf("demo gate: sso validation failed: %v", err)
		}
		return false
	}
	return true
}

// newExemptRule compiles the configured CEL exemption expression. A compile
// failure disables the rule (logged); an eval failure counts as not exempt.
func newExemptRule(expr string) func(ctx context.Context, method string, path string, header http.Header) bool {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil
	}

	env, err := cel.NewEnv(cel.Variable("ctx", cel.MapType(cel.StringType, cel.StringType)))
	if err != nil {
		log.Printf("demo gate: exempt rule env: %v", err)
		return nil
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		log.Printf("demo gate: exempt rule compile failed, rule disabled: %v", issues.Err())
		return nil
	}
	if ast.OutputType() != cel.BoolType {
		log.Printf("demo gate: exempt rule must evaluate to bool, rule disabled")
		return nil
	}
	program, err := env.Program(ast)
	if err != nil {
		log.Printf("demo gate: exempt rule program: %v", err)
		return nil
	}

	return func(_ context.Context, method string, path string, _ http.Header) bool {
		out, _, err := program.Eval(map[string]any{"ctx": map[string]string{
			"method": method,
			"path":   path,
		}})
		if err != nil {
			log.Printf("demo gate: exempt rule eval failed: %v", err)
			return false
		}
		v, ok := out.Value().(bool)
		return ok && v
	}
}
