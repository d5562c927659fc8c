// Package auth issues and verifies the opaque API keys that identify
// labs, auditors, and government agencies. Keys are bearer credentials
// carried in the X-API-Key header; the store keeps only their SHA-256
// hashes, so a leaked store file reveals no usable credentials.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/afr-project/afr/pkg/canonicalize"
	"github.com/afr-project/afr/pkg/storage"
	"github.com/afr-project/afr/pkg/transparency"
)

const keyPrefix = "afr_"

var (
	// ErrUnauthorized is returned when no registered party matches a key.
	ErrUnauthorized = errors.New("invalid api key")
	// ErrNotFound is returned for an unknown party id.
	ErrNotFound = errors.New("party not found")
	// ErrValidation is returned for malformed registration input.
	ErrValidation = errors.New("invalid auth input")
)

// Store holds registered parties, keyed by the hash of their API key.
type Store struct {
	mu      sync.RWMutex
	path    string
	parties []Party
	clock   func() time.Time
}

// NewStore opens the party store persisted at path.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path, parties: []Party{}, clock: time.Now}
	var stored []Party
	if ok, err := storage.Load(path, &stored); err != nil {
		return nil, err
	} else if ok {
		s.parties = stored
	}
	return s, nil
}

// WithClock overrides the clock for tests.
func (s *Store) WithClock(clock func() time.Time) *Store {
	s.clock = clock
	return s
}

// newAPIKey returns a fresh bearer key: the afr_ prefix plus 32 random
// bytes in hex.
func newAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return keyPrefix + hex.EncodeToString(buf), nil
}

// HashKey returns the stored form of an API key.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func newPartyID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return "party_" + hex.EncodeToString(buf)
}

// Register creates a party and returns it with the plaintext API key.
// The key is shown exactly once; only its hash survives.
func (s *Store) Register(name string, role transparency.Role) (Party, string, error) {
	if strings.TrimSpace(name) == "" {
		return Party{}, "", fmt.Errorf("%w: name is required", ErrValidation)
	}
	if !role.Valid() {
		return Party{}, "", fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}

	key, err := newAPIKey()
	if err != nil {
		return Party{}, "", err
	}
	party := Party{
		ID:        newPartyID(),
		Name:      strings.TrimSpace(name),
		Role:      role,
		KeyHash:   HashKey(key),
		CreatedAt: canonicalize.Timestamp(s.clock()),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := append(append([]Party{}, s.parties...), party)
	if err := storage.Save(s.path, next); err != nil {
		return Party{}, "", err
	}
	s.parties = next
	return party, key, nil
}

// Authenticate resolves an API key to its principal.
func (s *Store) Authenticate(key string) (Principal, error) {
	if !strings.HasPrefix(key, keyPrefix) {
		return Principal{}, ErrUnauthorized
	}
	hash := HashKey(key)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.parties {
		if p.KeyHash == hash {
			return Principal{PartyID: p.ID, Name: p.Name, Role: p.Role}, nil
		}
	}
	return Principal{}, ErrUnauthorized
}

// Get returns the party with the given id.
func (s *Store) Get(id string) (Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.parties {
		if p.ID == id {
			return p, nil
		}
	}
	return Party{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// List returns all registered parties in registration order.
func (s *Store) List() []Party {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Party{}, s.parties...)
}

// Revoke removes a party. Its key stops working immediately.
func (s *Store) Revoke(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]Party, 0, len(s.parties))
	found := false
	for _, p := range s.parties {
		if p.ID == id {
			found = true
			continue
		}
		next = append(next, p)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := storage.Save(s.path, next); err != nil {
		return err
	}
	s.parties = next
	return nil
}

// RotateKey replaces a party's API key atomically: the old key is dead
// and the new one live as soon as this returns.
func (s *Store) RotateKey(id string) (Party, string, error) {
	key, err := newAPIKey()
	if err != nil {
		return Party{}, "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := append([]Party{}, s.parties...)
	idx := -1
	for i, p := range next {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Party{}, "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	next[idx].KeyHash = HashKey(key)
	next[idx].KeyRotatedAt = canonicalize.Timestamp(s.clock())
	if err := storage.Save(s.path, next); err != nil {
		return Party{}, "", err
	}
	s.parties = next
	return next[idx], key, nil
}

// Reset removes every registered party. Demo only.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := storage.Remove(s.path); err != nil {
		return err
	}
	s.parties = []Party{}
	return nil
}
