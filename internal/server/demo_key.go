package server

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"io"
	"sync"
	"time"
)

var keyRandReader io.Reader = rand.Reader

// ephemeralAdminKey is the single process-wide temporary bypass credential.
// At most one value is active at a time: Issue replaces any previous value
// atomically (last writer wins), Revoke clears it, and expiry is checked on
// every validation. The value only ever lives in memory.
type ephemeralAdminKey struct {
	mu        sync.Mutex
	value     string
	issuedAt  time.Time
	expiresAt time.Time
}

func (k *ephemeralAdminKey) Issue(now time.Time, ttl time.Duration) (value string, expiresAt time.Time, err error) {
	var b [32]byte
	if _, err := io.ReadFull(keyRandReader, b[:]); err != nil {
		return "", time.Time{}, err
	}
	value = base64.RawURLEncoding.EncodeToString(b[:])
	expiresAt = now.Add(ttl)

	k.mu.Lock()
	k.value = value
	k.issuedAt = now
	k.expiresAt = expiresAt
	k.mu.Unlock()

	return value, expiresAt, nil
}

// Revoke clears the active key. Revoking when nothing is active is a no-op.
func (k *ephemeralAdminKey) Revoke() {
	k.mu.Lock()
	k.value = ""
	k.issuedAt = time.Time{}
	k.expiresAt = time.Time{}
	k.mu.Unlock()
}

// IsValid reports whether candidate matches the active, unexpired key.
// The comparison is fixed-time over digests so candidate length or content
// never shows up as a timing difference.
func (k *ephemeralAdminKey) IsValid(candidate string, now time.Time) bool {
	if candidate == "" {
		return false
	}

	k.mu.Lock()
	value, expiresAt := k.value, k.expiresAt
	k.mu.Unlock()

	if value == "" || !now.Before(expiresAt) {
		return false
	}
	return constantTimeEqual(candidate, value)
}

// Active reports whether an unexpired key exists right now.
func (k *ephemeralAdminKey) Active(now time.Time) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.value != "" && now.Before(k.expiresAt)
}

func constantTimeEqual(a, b string) bool {
	ah := sha256.Sum256([]byte(a))
	bh := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ah[:], bh[:]) == 1
}
