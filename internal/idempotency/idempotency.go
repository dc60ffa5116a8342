// Package idempotency remembers which sale an Idempotency-Key produced so a
// retried POST /sales does not sell the same items twice.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	Header     = "Idempotency-Key"
	DefaultTTL = 24 * time.Hour
)

// ErrInFlight is returned by Reserve while the first request with the same key
// hasn't finished.
var ErrInFlight = errors.New("a request with this idempotency key is still in progress")

// ErrKeyReused is returned by Reserve when key was first used with a different
// request body.
var ErrKeyReused = errors.New("idempotency key was already used with a different request")

// Store tracks idempotency keys.
type Store interface {
	// Reserve claims key for a request with the given fingerprint. It returns
	// "" when the caller owns the key, the sale ID when the key already
	// completed, ErrInFlight, or ErrKeyReused when the fingerprint differs.
	Reserve(ctx context.Context, key, fingerprint string) (string, error)
	// Complete binds key to saleID.
	Complete(ctx context.Context, key, fingerprint, saleID string) error
	// Release forgets a reserved key so the request can be retried.
	Release(ctx context.Context, key string) error
}

func Key(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(Header))
}

// Fingerprint hashes the JSON encoding of a decoded request, so formatting
// differences in the raw body don't matter.
func Fingerprint(req any) (string, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

type entry struct {
	fingerprint string
	saleID      string
	expiresAt   time.Time
}

// MemoryStore is a Store for a single process.
type MemoryStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]entry
	now   func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, items: make(map[string]entry), now: time.Now}
}

func (m *MemoryStore) Reserve(_ context.Context, key, fingerprint string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.items[key]; ok && now.Before(e.expiresAt) {
		if err := checkEntry(e.fingerprint, fingerprint, e.saleID); err != nil {
			return "", err
		}
		return e.saleID, nil
	}
	m.items[key] = entry{fingerprint: fingerprint, expiresAt: now.Add(m.ttl)}
	return "", nil
}

func (m *MemoryStore) Complete(_ context.Context, key, fingerprint, saleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = entry{fingerprint: fingerprint, saleID: saleID, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// checkEntry decides what a Reserve on an existing key returns.
func checkEntry(stored, fingerprint, saleID string) error {
	switch {
	case stored != fingerprint:
		return ErrKeyReused
	case saleID == "":
		return ErrInFlight
	default:
		return nil
	}
}
