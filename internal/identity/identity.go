// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

// Package identity verifies ID tokens issued by external sign-in providers.
//
// Apple and Google both issue RS256 OpenID Connect ID tokens whose keys are
// published as a JWKS document, so one verifier serves both with
// provider-specific issuers, audience and email rules.
package identity

import (
	"context"
	"net/http"
	"time"

	"github.com/squadz/squadz/internal/account"
)

// Profile is the normalized identity asserted by a provider.
type Profile struct {
	Provider    account.Origin
	ExternalID  string
	Email       string
	DisplayName string
}

// Verifier validates a raw provider assertion. It fails closed: expired,
// malformed, wrongly signed and wrong-audience assertions are all errors
// wrapping account.ErrUnauthorized. Key-fetch failures are returned
// unclassified.
type Verifier interface {
	Verify(ctx context.Context, assertion string) (*Profile, error)
}

// Provider endpoints.
const (
	AppleIssuer   = "https://appleid.apple.com"
	AppleKeysURL  = "https://appleid.apple.com/auth/keys"
	GoogleKeysURL = "https://www.googleapis.com/oauth2/v3/certs"
)

// GoogleIssuers lists both issuer spellings Google uses.
var GoogleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// DefaultTimeout bounds each key-fetch request.
const DefaultTimeout = 10 * time.Second

// Option configures a verifier built by NewApple or NewGoogle.
type Option func(*Config)

// WithKeysURL overrides the JWKS endpoint.
func WithKeysURL(url string) Option {
	return func(c *Config) { c.KeysURL = url }
}

// WithHTTPClient overrides the HTTP client used for key fetches.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) { c.HTTPClient = client }
}

// WithClock overrides the clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Config) { c.Now = now }
}

// NewApple returns a Verifier for Sign in with Apple ID tokens addressed
// to clientID.
func NewApple(clientID string, opts ...Option) (*IDTokenVerifier, error) {
	cfg := Config{
		Provider: account.OriginApple,
		ClientID: clientID,
		Issuers:  []string{AppleIssuer},
		KeysURL:  AppleKeysURL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewIDTokenVerifier(cfg)
}

// NewGoogle returns a Verifier for Google ID tokens addressed to clientID.
// Google accounts must carry a verified email.
func NewGoogle(clientID string, opts ...Option) (*IDTokenVerifier, error) {
	cfg := Config{
		Provider:             account.OriginGoogle,
		ClientID:             clientID,
		Issuers:              GoogleIssuers,
		KeysURL:              GoogleKeysURL,
		RequireVerifiedEmail: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewIDTokenVerifier(cfg)
}
