// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package identity

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/samber/oops"
)

// Key cache tuning.
const (
	keyCacheTTL       = 24 * time.Hour
	minRefreshBackoff = time.Minute
	maxKeySetBytes    = 1 << 20
)

// keySet caches a provider's JWKS. An unknown kid triggers a refetch,
// rate-limited so forged kids cannot hammer the provider.
type keySet struct {
	url    string
	client *http.Client
	now    func() time.Time

	mu        sync.Mutex
	keys      jose.JSONWebKeySet
	fetchedAt time.Time
}

func newKeySet(url string, client *http.Client, now func() time.Time) *keySet {
	return &keySet{url: url, client: client, now: now}
}

// key returns the public key with kid. found is false when the provider
// does not publish kid.
func (s *keySet) key(ctx context.Context, kid string) (key any, found bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stale := s.fetchedAt.IsZero() || now.Sub(s.fetchedAt) > keyCacheTTL
	if !stale {
		if k, ok := s.lookup(kid); ok {
			return k, true, nil
		}
		if now.Sub(s.fetchedAt) < minRefreshBackoff {
			return nil, false, nil
		}
	}

	if err := s.refresh(ctx); err != nil {
		return nil, false, err
	}
	k, ok := s.lookup(kid)
	return k, ok, nil
}

func (s *keySet) lookup(kid string) (any, bool) {
	for _, k := range s.keys.Key(kid) {
		if k.Use == "" || k.Use == "sig" {
			return k.Key, true
		}
	}
	return nil, false
}

// refresh fetches the key set. Caller holds mu.
func (s *keySet) refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return oops.Code("IDENTITY_KEYS_FETCH_FAILED").With("url", s.url).Wrap(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return oops.Code("IDENTITY_KEYS_FETCH_FAILED").With("url", s.url).Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return oops.Code("IDENTITY_KEYS_FETCH_FAILED").
			With("url", s.url).
			With("status", resp.StatusCode).
			Errorf("unexpected status %d from key endpoint", resp.StatusCode)
	}

	var keys jose.JSONWebKeySet
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxKeySetBytes)).Decode(&keys); err != nil {
		return oops.Code("IDENTITY_KEYS_DECODE_FAILED").With("url", s.url).Wrap(err)
	}
	s.keys = keys
	s.fetchedAt = s.now()
	return nil
}
