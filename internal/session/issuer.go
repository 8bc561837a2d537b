// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

// Package session mints token pairs and rotates, revokes and purges the
// refresh sessions behind them.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/squadz/squadz/internal/account"
	"github.com/squadz/squadz/internal/token"
)

// Pair is a freshly minted access/refresh token pair.
type Pair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Issuer owns the refresh session records.
type Issuer struct {
	codec    *token.Codec
	accounts account.Repository
	sessions account.SessionRepository
	tx       account.Transactor
	now      func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithClock overrides the clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer creates an Issuer.
func NewIssuer(codec *token.Codec, accounts account.Repository, sessions account.SessionRepository, tx account.Transactor, opts ...Option) (*Issuer, error) {
	if codec == nil {
		return nil, oops.Code("SESSION_INVALID_CONFIG").Errorf("token codec is required")
	}
	if accounts == nil || sessions == nil || tx == nil {
		return nil, oops.Code("SESSION_INVALID_CONFIG").Errorf("repositories and transactor are required")
	}
	i := &Issuer{codec: codec, accounts: accounts, sessions: sessions, tx: tx, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Mint signs a token pair for acct and stores the refresh session. The
// record joins any transaction carried by ctx.
func (i *Issuer) Mint(ctx context.Context, acct *account.Account) (*Pair, error) {
	access, accessExp, err := i.codec.SignAccess(acct)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := i.codec.SignRefresh(acct)
	if err != nil {
		return nil, err
	}

	record, err := account.NewRefreshSession(acct.ID, account.HashToken(refresh), acct.TokenVersion, refreshExp)
	if err != nil {
		return nil, oops.With("operation", "mint").Wrap(err)
	}
	if err := i.sessions.Create(ctx, record); err != nil {
		return nil, err
	}

	return &Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "Bearer",
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Rotate exchanges a refresh token for a new pair. The presented token is
// accepted only when its signature verifies, its version equals the
// account's current version, and an unexpired record with its hash exists.
// The old record is deleted and the new one stored in one transaction, so
// of two concurrent rotations of the same token at most one succeeds.
// A successful rotation also clears the account's login failures.
//
// Errors are returned with their specific codes; callers that face clients
// are expected to collapse them.
func (i *Issuer) Rotate(ctx context.Context, raw string) (*Pair, *account.Account, error) {
	claims, err := i.codec.ParseRefresh(raw)
	if err != nil {
		return nil, nil, err
	}
	accountID, err := ulid.Parse(claims.Subject)
	if err != nil {
		return nil, nil, account.Unauthorized("SESSION_INVALID_SUBJECT", "invalid token subject")
	}

	acct, err := i.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	// Checked before any record lookup so a superseded token never reaches it.
	if claims.Version != acct.TokenVersion {
		return nil, nil, account.Unauthorized("SESSION_VERSION_MISMATCH", "version mismatch")
	}

	record, err := i.match(ctx, acct, raw)
	if err != nil {
		return nil, nil, err
	}

	var pair *Pair
	err = i.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := i.sessions.Delete(ctx, record.ID); err != nil {
			if errors.Is(err, account.ErrNotFound) {
				return account.Unauthorized("SESSION_ALREADY_ROTATED", "refresh token already used")
			}
			return err
		}
		if err := i.accounts.ResetLoginFailures(ctx, acct.ID); err != nil {
			return err
		}
		acct.FailedAttempts = 0
		acct.LockedUntil = nil

		pair, err = i.Mint(ctx, acct)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return pair, acct, nil
}

func (i *Issuer) match(ctx context.Context, acct *account.Account, raw string) (*account.RefreshSession, error) {
	records, err := i.sessions.ListByAccountVersion(ctx, acct.ID, acct.TokenVersion)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if !account.VerifyTokenHash(raw, rec.TokenHash) {
			continue
		}
		if rec.IsExpiredAt(i.now()) {
			return nil, account.Unauthorized("SESSION_EXPIRED", "session expired")
		}
		return rec, nil
	}
	return nil, account.Unauthorized("SESSION_NOT_FOUND", "session not found")
}

// RevokeAll deletes every session of accountID.
func (i *Issuer) RevokeAll(ctx context.Context, accountID ulid.ULID) (int64, error) {
	return i.sessions.DeleteByAccount(ctx, accountID)
}

// PurgeExpired deletes every session whose expiry has passed.
func (i *Issuer) PurgeExpired(ctx context.Context) (int64, error) {
	return i.sessions.DeleteExpired(ctx, i.now())
}

// Authenticate verifies an access token.
func (i *Issuer) Authenticate(raw string) (*token.AccessClaims, error) {
	return i.codec.ParseAccess(raw)
}
