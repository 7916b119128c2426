package server

import (
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/medialoom/medialoom/internal/routing"
	"github.com/medialoom/medialoom/pkg/authz"
)

func loadAuthorizer() (*authz.Authorizer, error) {
	modelPath := os.Getenv("AUTHZ_MODEL_PATH")
	if modelPath == "" {
		p, err := defaultAuthzModelPath()
		if err != nil {
			return nil, err
		}
		modelPath = p
	}

	policyPath := os.Getenv("AUTHZ_POLICY_PATH")
	if policyPath == "" {
		p, err := defaultAuthzPolicyPath()
		if err != nil {
			return nil, err
		}
		policyPath = p
	}

	mode, err := authz.ModeFromEnv()
	if err != nil {
		return nil, err
	}

	return authz.NewAuthorizer(modelPath, policyPath, mode)
}

func defaultAuthzModelPath() (string, error) {
	path := "config/access/model.conf"
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: authz model not found")
}

func defaultAuthzPolicyPath() (string, error) {
	path := "config/access/policy.csv"
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: authz policy not found")
}

type authorizer interface {
	Authorize(subject string, object string, action string) (allowed bool, enforced bool, err error)
}

// authzRequirementForRoute maps dev-only management routes to the casbin
// object/action they require. Everything else passes through unchecked; the
// demo gate, not authz, is what protects the public surface.
func authzRequirementForRoute(method string, path string) (object string, action string, shouldCheck bool) {
	switch path {
	case "/dev/feature-flags":
		if method == http.MethodGet {
			return authz.ObjectDevFeatureFlags, authz.ActionRead, true
		}
		return authz.ObjectDevFeatureFlags, authz.ActionAdmin, true
	case "/dev/seed-demo-data":
		return authz.ObjectDevSeed, authz.ActionAdmin, true
	}
	if strings.HasPrefix(path, "/dev/") {
		return "", "", true
	}
	return "", "", false
}

// withDevAuthz guards /dev/* routes. The subject role comes from a validated
// SSO assertion; requests without one are anonymous.
func withDevAuthz(a authorizer, sso ssoValidator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		object, action, shouldCheck := authzRequirementForRoute(r.Method, r.URL.Path)
		if !shouldCheck {
			next.ServeHTTP(w, r)
			return
		}
		if object == "" {
			routing.WriteError(w, r, routing.RouteClassDevOnly, http.StatusNotFound, "not_found", "not found")
			return
		}

		roleSlug := authz.RoleAnonymous
		if sub, ok := ssoSubjectFromRequest(r, sso); ok {
			roleSlug = sub.Role
		}
		subject := authz.SubjectFromRoleSlug(roleSlug)

		allowed, enforced, err := a.Authorize(subject, object, action)
		if err != nil {
			log.Printf("authz: %s on %s errored: %v", subject, object, err)
			routing.WriteError(w, r, routing.RouteClassDevOnly, http.StatusInternalServerError, "authz_error", "authz error")
			return
		}
		if enforced && !allowed {
			routing.WriteError(w, r, routing.RouteClassDevOnly, http.StatusForbidden, "forbidden", "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func ssoSubjectFromRequest(r *http.Request, sso ssoValidator) (SSOSubject, bool) {
	if sso == nil {
		return SSOSubject{}, false
	}
	assertion := strings.TrimSpace(r.Header.Get(ssoAssertionHeader))
	if assertion == "" {
		return SSOSubject{}, false
	}
	ctx, cancel := contextWithExternalTimeout(r.Context())
	defer cancel()
	sub, err := sso.Validate(ctx, assertion)
	if err != nil {
		return SSOSubject{}, false
	}
	return sub, true
}
