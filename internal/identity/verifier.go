// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package identity

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/samber/oops"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/squadz/squadz/internal/account"
)

// DefaultLeeway is the clock skew tolerated on exp, nbf and iat.
const DefaultLeeway = time.Minute

// Config is the full configuration of an IDTokenVerifier.
type Config struct {
	Provider account.Origin
	ClientID string
	Issuers  []string
	KeysURL  string

	// RequireVerifiedEmail rejects tokens whose email_verified is not true.
	RequireVerifiedEmail bool

	HTTPClient *http.Client
	Now        func() time.Time
	Leeway     time.Duration
}

// IDTokenVerifier verifies RS256 OpenID Connect ID tokens against a JWKS.
type IDTokenVerifier struct {
	cfg  Config
	keys *keySet
}

// NewIDTokenVerifier validates cfg and returns a verifier.
func NewIDTokenVerifier(cfg Config) (*IDTokenVerifier, error) {
	if cfg.ClientID == "" {
		return nil, oops.Code("IDENTITY_INVALID_CONFIG").
			With("provider", cfg.Provider).
			Errorf("client id is required")
	}
	if len(cfg.Issuers) == 0 || cfg.KeysURL == "" {
		return nil, oops.Code("IDENTITY_INVALID_CONFIG").
			With("provider", cfg.Provider).
			Errorf("issuer and keys url are required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Leeway == 0 {
		cfg.Leeway = DefaultLeeway
	}
	return &IDTokenVerifier{cfg: cfg, keys: newKeySet(cfg.KeysURL, cfg.HTTPClient, cfg.Now)}, nil
}

// Provider returns the origin this verifier asserts.
func (v *IDTokenVerifier) Provider() account.Origin { return v.cfg.Provider }

type profileClaims struct {
	Email         string   `json:"email"`
	EmailVerified flexBool `json:"email_verified"`
	Name          string   `json:"name"`
}

// flexBool accepts both JSON booleans and the "true"/"false" strings Apple
// sometimes sends.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*b = flexBool(v)
	return nil
}

// Verify validates assertion and returns the provider profile.
func (v *IDTokenVerifier) Verify(ctx context.Context, assertion string) (*Profile, error) {
	tok, err := jwt.ParseSigned(assertion, []jose.SignatureAlgorithm{jose.RS256})
	if err != nil {
		return nil, v.reject("IDENTITY_MALFORMED", err)
	}
	if len(tok.Headers) == 0 || tok.Headers[0].KeyID == "" {
		return nil, v.reject("IDENTITY_MISSING_KID", errors.New("token header has no kid"))
	}
	kid := tok.Headers[0].KeyID

	key, found, err := v.keys.key(ctx, kid)
	if err != nil {
		return nil, oops.With("provider", v.cfg.Provider).Wrap(err)
	}
	if !found {
		return nil, v.reject("IDENTITY_UNKNOWN_KEY", errors.New("no published key "+kid))
	}

	var (
		std     jwt.Claims
		profile profileClaims
	)
	if err := tok.Claims(key, &std, &profile); err != nil {
		return nil, v.reject("IDENTITY_BAD_SIGNATURE", err)
	}

	expected := jwt.Expected{AnyAudience: jwt.Audience{v.cfg.ClientID}, Time: v.cfg.Now()}
	if err := std.ValidateWithLeeway(expected, v.cfg.Leeway); err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return nil, v.reject("IDENTITY_EXPIRED", err)
		}
		return nil, v.reject("IDENTITY_INVALID_CLAIMS", err)
	}
	if std.Expiry == nil {
		return nil, v.reject("IDENTITY_INVALID_CLAIMS", errors.New("token has no exp"))
	}
	if !slices.Contains(v.cfg.Issuers, std.Issuer) {
		return nil, v.reject("IDENTITY_WRONG_ISSUER", errors.New("unexpected issuer "+std.Issuer))
	}
	if std.Subject == "" {
		return nil, v.reject("IDENTITY_MISSING_SUBJECT", errors.New("token has no sub"))
	}
	if profile.Email == "" {
		return nil, v.reject("IDENTITY_MISSING_EMAIL", errors.New("token has no email"))
	}
	if v.cfg.RequireVerifiedEmail && !bool(profile.EmailVerified) {
		return nil, v.reject("IDENTITY_EMAIL_UNVERIFIED", errors.New("provider email not verified"))
	}

	return &Profile{
		Provider:    v.cfg.Provider,
		ExternalID:  std.Subject,
		Email:       account.NormalizeEmail(profile.Email),
		DisplayName: profile.Name,
	}, nil
}

func (v *IDTokenVerifier) reject(code string, cause error) error {
	return oops.Code(code).
		With("provider", v.cfg.Provider).
		Public("invalid identity token").
		Wrapf(account.ErrUnauthorized, "%s: %v", v.cfg.Provider, cause)
}

var _ Verifier = (*IDTokenVerifier)(nil)
