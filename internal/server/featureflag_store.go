package server

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/medialoom/medialoom/pkg/uuidv7"
)

var errFlagKeyRequired = errors.New("FLAG_KEY_REQUIRED")

type FeatureFlag struct {
	Key       string    `json:"key"`
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FeatureFlagStore is the persisted toggle surface. Absence of a key reads
// as disabled, never as an error.
type FeatureFlagStore interface {
	IsEnabled(ctx context.Context, key string) (bool, error)
	SetEnabled(ctx context.Context, key string, enabled bool) (FeatureFlag, error)
	Get(ctx context.Context, key string) (FeatureFlag, bool, error)
	List(ctx context.Context) ([]FeatureFlag, error)
}

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type flagPGStore struct {
	pool pgBeginner
}

func newFlagPGStore(pool pgBeginner) FeatureFlagStore {
	return &flagPGStore{pool: pool}
}

func (s *flagPGStore) IsEnabled(ctx context.Context, key string) (bool, error) {
	flag, ok, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return flag.Enabled, nil
}

func (s *flagPGStore) Get(ctx context.Context, key string) (FeatureFlag, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return FeatureFlag{}, false, errFlagKeyRequired
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return FeatureFlag{}, false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var flag FeatureFlag
	err = tx.QueryRow(ctx, `
SELECT key, enabled, updated_at
FROM demo.feature_flags
WHERE key = $1
`, key).Scan(&flag.Key, &flag.Enabled, &flag.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return FeatureFlag{}, false, nil
	}
	if err != nil {
		return FeatureFlag{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return FeatureFlag{}, false, err
	}
	return flag, true, nil
}

func (s *flagPGStore) SetEnabled(ctx context.Context, key string, enabled bool) (FeatureFlag, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return FeatureFlag{}, errFlagKeyRequired
	}

	eventUUID, err := uuidv7.NewString()
	if err != nil {
		return FeatureFlag{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return FeatureFlag{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var flag FeatureFlag
	err = tx.QueryRow(ctx, `
INSERT INTO demo.feature_flags (key, enabled, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = now()
RETURNING key, enabled, updated_at
`, key, enabled).Scan(&flag.Key, &flag.Enabled, &flag.UpdatedAt)
	if err != nil {
		return FeatureFlag{}, err
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO demo.feature_flag_events (event_uuid, flag_key, enabled, tx_time)
VALUES ($1, $2, $3, now())
`, eventUUID, key, enabled); err != nil {
		return FeatureFlag{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return FeatureFlag{}, err
	}
	return flag, nil
}

func (s *flagPGStore) List(ctx context.Context) ([]FeatureFlag, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT key, enabled, updated_at
FROM demo.feature_flags
ORDER BY key ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flags := make([]FeatureFlag, 0)
	for rows.Next() {
		var f FeatureFlag
		if err := rows.Scan(&f.Key, &f.Enabled, &f.UpdatedAt); err != nil {
			return nil, err
		}
		flags = append(flags, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return flags, nil
}

type flagMemoryStore struct {
	mu    sync.Mutex
	flags map[string]FeatureFlag
	now   func() time.Time
}

func newFlagMemoryStore() *flagMemoryStore {
	return &flagMemoryStore{flags: map[string]FeatureFlag{}, now: time.Now}
}

func (s *flagMemoryStore) IsEnabled(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags[key].Enabled, nil
}

func (s *flagMemoryStore) SetEnabled(_ context.Context, key string, enabled bool) (FeatureFlag, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return FeatureFlag{}, errFlagKeyRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f := FeatureFlag{Key: key, Enabled: enabled, UpdatedAt: s.now()}
	s.flags[key] = f
	return f, nil
}

func (s *flagMemoryStore) Get(_ context.Context, key string) (FeatureFlag, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flags[key]
	return f, ok, nil
}

func (s *flagMemoryStore) List(_ context.Context) ([]FeatureFlag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	flags := make([]FeatureFlag, 0, len(s.flags))
	for _, f := range s.flags {
		flags = append(flags, f)
	}
	return flags, nil
}

const flagCacheTTL = 3 * time.Second

// cachedFlagStore bounds hot-path reads: IsEnabled serves a value at most
// flagCacheTTL old. Writes through the wrapper invalidate immediately so a
// toggle on the management surface takes effect without waiting out the TTL.
type cachedFlagStore struct {
	inner FeatureFlagStore
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]cachedFlagEntry
}

type cachedFlagEntry struct {
	enabled   bool
	fetchedAt time.Time
}

func newCachedFlagStore(inner FeatureFlagStore, now func() time.Time) *cachedFlagStore {
	if now == nil {
		now = time.Now
	}
	return &cachedFlagStore{inner: inner, now: now, entries: map[string]cachedFlagEntry{}}
}

func (s *cachedFlagStore) IsEnabled(ctx context.Context, key string) (bool, error) {
	now := s.now()

	s.mu.Lock()
	if e, ok := s.entries[key]; ok && now.Sub(e.fetchedAt) < flagCacheTTL {
		s.mu.Unlock()
		return e.enabled, nil
	}
	s.mu.Unlock()

	enabled, err := s.inner.IsEnabled(ctx, key)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	s.entries[key] = cachedFlagEntry{enabled: enabled, fetchedAt: now}
	s.mu.Unlock()
	return enabled, nil
}

func (s *cachedFlagStore) SetEnabled(ctx context.Context, key string, enabled bool) (FeatureFlag, error) {
	flag, err := s.inner.SetEnabled(ctx, key, enabled)
	if err != nil {
		return FeatureFlag{}, err
	}
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return flag, nil
}

func (s *cachedFlagStore) Get(ctx context.Context, key string) (FeatureFlag, bool, error) {
	return s.inner.Get(ctx, key)
}

func (s *cachedFlagStore) List(ctx context.Context) ([]FeatureFlag, error) {
	return s.inner.List(ctx)
}

// flagEnabledQuiet is the hot-path read used by the decision chain: store
// failures are logged and fold into "not enabled" rather than failing the
// request.
func flagEnabledQuiet(ctx context.Context, flags FeatureFlagStore, key string) bool {
	ctx, cancel := context.WithTimeout(ctx, externalCheckTimeout)
	defer cancel()

	enabled, err := flags.IsEnabled(ctx, key)
	if err != nil {
		log.Printf("demo gate: feature flag read failed for %q: %v", key, err)
		return false
	}
	return enabled
}
