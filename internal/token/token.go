// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

// Package token signs and verifies the access and refresh bearer tokens.
//
// Both kinds are HS256 JWTs signed with separate keys, so a refresh token
// never verifies as an access token and the reverse.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/squadz/squadz/internal/account"
)

// Issuer is the iss claim of every token.
const Issuer = "squadz"

// Default lifetimes.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// MinKeyLength is the shortest accepted HMAC key.
const MinKeyLength = 32

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	Email           string       `json:"email"`
	PublicID        string       `json:"squadz_id"`
	Role            account.Role `json:"role"`
	EmailVerified   bool         `json:"email_verified"`
	SetupComplete   bool         `json:"setup_complete"`
	StagesCompleted int          `json:"setup_stages_completed"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token. It carries only the
// account and the token version the token was minted against.
type RefreshClaims struct {
	Version int `json:"ver"`
	jwt.RegisteredClaims
}

// Config configures a Codec.
type Config struct {
	AccessKey  []byte
	RefreshKey []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Codec mints and parses tokens.
type Codec struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewCodec validates cfg and returns a Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.AccessKey) < MinKeyLength || len(cfg.RefreshKey) < MinKeyLength {
		return nil, oops.Code("TOKEN_KEY_TOO_SHORT").
			With("min_length", MinKeyLength).
			Errorf("signing keys must be at least %d bytes", MinKeyLength)
	}
	if string(cfg.AccessKey) == string(cfg.RefreshKey) {
		return nil, oops.Code("TOKEN_KEY_REUSED").Errorf("access and refresh keys must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Codec{
		accessKey:  cfg.AccessKey,
		refreshKey: cfg.RefreshKey,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        cfg.Now,
	}, nil
}

// AccessTTL returns the access token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL returns the refresh token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// SignAccess mints an access token describing acct.
func (c *Codec) SignAccess(acct *account.Account) (string, time.Time, error) {
	now := c.now()
	exp := now.Add(c.accessTTL)
	claims := AccessClaims{
		Email:            acct.Email,
		PublicID:         acct.PublicID,
		Role:             acct.Role,
		EmailVerified:    acct.EmailVerified,
		SetupComplete:    acct.SetupComplete(),
		StagesCompleted:  acct.StagesCompleted(),
		RegisteredClaims: registered(acct.ID.String(), now, exp),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.accessKey)
	if err != nil {
		return "", time.Time{}, oops.Code("TOKEN_SIGN_FAILED").With("kind", "access").Wrap(err)
	}
	return raw, exp, nil
}

// SignRefresh mints a refresh token for acct at its current token version.
func (c *Codec) SignRefresh(acct *account.Account) (string, time.Time, error) {
	now := c.now()
	exp := now.Add(c.refreshTTL)
	claims := RefreshClaims{
		Version:          acct.TokenVersion,
		RegisteredClaims: registered(acct.ID.String(), now, exp),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.refreshKey)
	if err != nil {
		return "", time.Time{}, oops.Code("TOKEN_SIGN_FAILED").With("kind", "refresh").Wrap(err)
	}
	return raw, exp, nil
}

// ParseAccess verifies an access token and returns its claims.
func (c *Codec) ParseAccess(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.parse(raw, claims, c.accessKey); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseRefresh verifies a refresh token and returns its claims.
func (c *Codec) ParseRefresh(raw string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.parse(raw, claims, c.refreshKey); err != nil {
		return nil, err
	}
	return claims, nil
}

// DecodeRefreshUnverified reads refresh claims without checking the
// signature or expiry. Only logout relies on it.
func DecodeRefreshUnverified(raw string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, invalid(err)
	}
	if claims.Subject == "" {
		return nil, account.Unauthorized("TOKEN_INVALID", "invalid token")
	}
	return claims, nil
}

func (c *Codec) parse(raw string, claims jwt.Claims, key []byte) error {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return oops.Code("TOKEN_EXPIRED").
				Public("token expired").
				Wrapf(account.ErrUnauthorized, "%v", err)
		}
		return invalid(err)
	}
	return nil
}

func invalid(err error) error {
	return oops.Code("TOKEN_INVALID").
		Public("invalid token").
		Wrapf(account.ErrUnauthorized, "%v", err)
}

func registered(subject string, now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   subject,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
}
