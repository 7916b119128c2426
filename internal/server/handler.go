package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medialoom/medialoom/internal/identity"
	"github.com/medialoom/medialoom/internal/routing"
)

func NewHandler() (http.Handler, error) {
	return NewHandlerWithOptions(HandlerOptions{})
}

// HandlerOptions lets tests and alternate deployments swap any collaborator.
// Nil fields get production defaults: PG-backed stores, a Kratos-backed SSO
// validator, config from env.
type HandlerOptions struct {
	DemoConfig *DemoConfig
	Flags      FeatureFlagStore
	Media      MediaStore
	SSO        ssoValidator
	Authorizer authorizer
	Now        func() time.Time
}

func NewHandlerWithOptions(opts HandlerOptions) (http.Handler, error) {
	allowlistPath := os.Getenv("ALLOWLIST_PATH")
	if allowlistPath == "" {
		p, err := defaultAllowlistPath()
		if err != nil {
			return nil, err
		}
		allowlistPath = p
	}

	a, err := routing.LoadAllowlist(allowlistPath)
	if err != nil {
		return nil, err
	}

	classifier, err := routing.NewClassifier(a, "server")
	if err != nil {
		return nil, err
	}

	cfg := demoConfigFromEnv()
	if opts.DemoConfig != nil {
		cfg = *opts.DemoConfig
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	flags := opts.Flags
	media := opts.Media

	var pgPool *pgxpool.Pool
	if flags == nil || media == nil {
		pool, err := pgxpool.New(context.Background(), dbDSNFromEnv())
		if err != nil {
			return nil, err
		}
		pgPool = pool
	}
	if flags == nil {
		flags = newFlagPGStore(pgPool)
	}
	flags = newCachedFlagStore(flags, now)
	if media == nil {
		media = newMediaPGStore(pgPool)
	}

	sso := opts.SSO
	if sso == nil {
		if url := os.Getenv("SSO_PUBLIC_URL"); url != "" {
			client, err := identity.New(url)
			if err != nil {
				return nil, err
			}
			sso = newIdentitySSOValidator(client)
		}
	}

	auth := opts.Authorizer
	if auth == nil {
		loaded, err := loadAuthorizer()
		if err != nil {
			return nil, err
		}
		auth = loaded
	}

	adminKey := &ephemeralAdminKey{}
	gate := newDemoGate(cfg, classifier.DemoExempt, flags, sso, adminKey, now)

	demo := newDemoAPI(cfg, flags, adminKey, now)
	flagAPI := newFeatureFlagAPI(flags)
	mediaHandlers := newMediaAPI(media)
	seed := newSeedAPI(media)

	router := routing.NewRouter(classifier)

	router.Handle(routing.RouteClassOps, http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}))

	router.Handle(routing.RouteClassDemo, http.MethodGet, "/demo/status", http.HandlerFunc(demo.handleStatus))
	router.Handle(routing.RouteClassDemo, http.MethodGet, "/demo/unlock", http.HandlerFunc(demo.handleUnlock))
	router.Handle(routing.RouteClassDemo, http.MethodPost, "/demo/lock", http.HandlerFunc(demo.handleLock))

	router.Handle(routing.RouteClassDevOnly, http.MethodGet, "/dev/feature-flags", http.HandlerFunc(flagAPI.handleFlags))
	router.Handle(routing.RouteClassDevOnly, http.MethodPost, "/dev/feature-flags", http.HandlerFunc(flagAPI.handleFlags))
	router.Handle(routing.RouteClassDevOnly, http.MethodPost, "/dev/seed-demo-data", http.HandlerFunc(seed.handleSeedDemoData))

	router.Handle(routing.RouteClassPublicAPI, http.MethodGet, "/api/media", http.HandlerFunc(mediaHandlers.handleCollection))
	router.Handle(routing.RouteClassPublicAPI, http.MethodPost, "/api/media", http.HandlerFunc(mediaHandlers.handleCollection))
	router.Handle(routing.RouteClassPublicAPI, http.MethodGet, "/api/media/{id}", http.HandlerFunc(mediaHandlers.handleItem))
	router.Handle(routing.RouteClassPublicAPI, http.MethodPut, "/api/media/{id}", http.HandlerFunc(mediaHandlers.handleItem))
	router.Handle(routing.RouteClassPublicAPI, http.MethodDelete, "/api/media/{id}", http.HandlerFunc(mediaHandlers.handleItem))

	// CORS outermost so denials carry CORS headers; the gate ahead of dev
	// authz so blocked writes get the canonical denial, not a 403 from authz.
	var h http.Handler = router
	h = withDevAuthz(auth, sso, h)
	h = withDemoGate(gate, h)
	h = withCORS(h)
	return h, nil
}

func defaultAllowlistPath() (string, error) {
	path := "config/routing/allowlist.yaml"
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: allowlist not found")
}
