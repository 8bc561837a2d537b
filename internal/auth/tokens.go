// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package auth

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/squadz/squadz/internal/account"
	"github.com/squadz/squadz/internal/session"
	"github.com/squadz/squadz/internal/token"
	"github.com/squadz/squadz/pkg/errutil"
)

// Refresh rotates a refresh token. Every failure, including store errors,
// is returned as the same unauthorized error; the cause is only logged.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (pair *session.Pair, err error) {
	ctx, done := s.start(ctx, "refresh")
	defer func() { done(err) }()

	pair, _, err = s.issuer.Rotate(ctx, refreshToken)
	if err != nil {
		if account.KindOf(err) == nil {
			errutil.LogError(ctx, s.logger, "refresh failed", err)
		} else {
			s.logger.DebugContext(ctx, "refresh rejected", errutil.Attrs(err)...)
		}
		return nil, account.Unauthorized("AUTH_INVALID_REFRESH_TOKEN", msgInvalidRefresh)
	}
	return pair, nil
}

// Logout deletes every session of the account named by refreshToken. The
// token is decoded, not verified, so an expired token still logs out.
func (s *Service) Logout(ctx context.Context, refreshToken string) (msg string, err error) {
	ctx, done := s.start(ctx, "logout")
	defer func() { done(err) }()

	invalid := account.Unauthorized("AUTH_INVALID_REFRESH_TOKEN", "Invalid refresh token")
	claims, err := token.DecodeRefreshUnverified(refreshToken)
	if err != nil {
		return "", invalid
	}
	accountID, err := ulid.Parse(claims.Subject)
	if err != nil {
		return "", invalid
	}

	n, err := s.issuer.RevokeAll(ctx, accountID)
	if err != nil {
		return "", oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "delete sessions").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	s.logger.DebugContext(ctx, "logged out", "account_id", accountID.String(), "sessions", n)
	return MsgLoggedOut, nil
}

// Authenticate verifies an access token and returns its claims.
func (s *Service) Authenticate(accessToken string) (*token.AccessClaims, error) {
	return s.issuer.Authenticate(accessToken)
}

// PurgeExpiredSessions deletes every session past its expiry.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (n int64, err error) {
	ctx, done := s.start(ctx, "purge_sessions")
	defer func() { done(err) }()

	n, err = s.issuer.PurgeExpired(ctx)
	if err != nil {
		return 0, oops.Code("AUTH_PURGE_FAILED").Wrap(err)
	}
	s.logger.InfoContext(ctx, "expired sessions purged", "sessions", n)
	return n, nil
}
