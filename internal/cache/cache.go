// Package cache stores prior resolution results keyed by normalized query
// so repeat lookups skip their network cost entirely.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Store is the get/put/expiry contract. Implementations must be safe for
// concurrent use from every in-flight pipeline invocation.
type Store interface {
	// Get returns the payload for key, or ok=false on miss or expiry.
	// An expired entry is never returned.
	Get(ctx context.Context, key string) (payload []byte, ok bool, err error)

	// Put stores payload under key with the given TTL, superseding any
	// existing entry.
	Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error

	Close() error
}

// Key builds a namespaced cache key from the query parts: lowercase,
// trimmed, joined, then hashed so arbitrary names stay storable.
func Key(namespace string, parts ...string) string {
	normalized := make([]string, len(parts))
	for i, p := range parts {
		normalized[i] = strings.ToLower(strings.TrimSpace(p))
	}
	h := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return fmt.Sprintf("%s:%x", namespace, h)
}

// GetJSON reads key and unmarshals the payload into out. Returns ok=false
// on miss.
func GetJSON(ctx context.Context, s Store, key string, out any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, eris.Wrapf(err, "cache: unmarshal %s", key)
	}
	return true, nil
}

// PutJSON marshals v and stores it under key.
func PutJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "cache: marshal %s", key)
	}
	return s.Put(ctx, key, raw, ttl)
}
