package apiclient

import "sync"

// StorageKey is the fixed name the admin key is stored under. Session
// storage backends use it verbatim so an operator can inspect or set the
// key by hand.
const StorageKey = "demoAdminKey"

// KeyStore holds the currently known demo admin key, if any. Get must never
// report an empty string as present.
type KeyStore interface {
	Get() (string, bool)
	Set(key string)
	Clear()
}

// MemoryKeyStore is the default session-scoped store: the key lives for the
// client's lifetime and is lost on restart, matching the ephemeral key's
// own lifetime.
type MemoryKeyStore struct {
	mu  sync.Mutex
	key string
}

func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{}
}

func (s *MemoryKeyStore) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key == "" {
		return "", false
	}
	return s.key, true
}

func (s *MemoryKeyStore) Set(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = key
}

func (s *MemoryKeyStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = ""
}
