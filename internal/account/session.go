// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package account

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// RefreshSession is the stored record of one outstanding refresh token.
// Only the token's hash is kept.
type RefreshSession struct {
	ID           ulid.ULID
	AccountID    ulid.ULID
	TokenHash    string
	TokenVersion int
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// NewRefreshSession creates a validated RefreshSession.
func NewRefreshSession(accountID ulid.ULID, tokenHash string, version int, expiresAt time.Time) (*RefreshSession, error) {
	if accountID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_ACCOUNT").Errorf("account ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}
	return &RefreshSession{
		ID:           ulid.Make(),
		AccountID:    accountID,
		TokenHash:    tokenHash,
		TokenVersion: version,
		ExpiresAt:    expiresAt,
		CreatedAt:    time.Now(),
	}, nil
}

// IsExpiredAt returns true if the session is expired at t.
func (s *RefreshSession) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// HashToken computes the hex SHA-256 of a secret token. Refresh tokens and
// password reset tokens are stored only in this form.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// VerifyTokenHash checks token against a stored hash in constant time.
func VerifyTokenHash(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	computed := HashToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}
