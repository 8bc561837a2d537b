// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package auth_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squadz/squadz/internal/account"
	"github.com/squadz/squadz/internal/auth"
	"github.com/squadz/squadz/pkg/errutil"
)

const refreshFailure = "invalid or expired refresh token"

func TestRefresh_SingleUse(t *testing.T) {
	h := newHarness(t)
	_, res := h.registerVerified(t, "a@x.com", "alex")
	ctx := context.Background()

	pair, err := h.svc.Refresh(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.Tokens.RefreshToken, pair.RefreshToken)

	_, err = h.svc.Refresh(ctx, res.Tokens.RefreshToken)
	require.ErrorIs(t, err, account.ErrUnauthorized)
	assert.Equal(t, refreshFailure, account.PublicMessage(err))

	_, err = h.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
}

func TestRefresh_ResetsFailures(t *testing.T) {
	h := newHarness(t)
	acct, res := h.registerVerified(t, "a@x.com", "alex")
	ctx := context.Background()

	for range 2 {
		_, _ = h.svc.Login(ctx, "a@x.com", "Wrong1!pass")
	}
	require.Equal(t, 2, h.store.Account(acct.ID).FailedAttempts)

	_, err := h.svc.Refresh(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Zero(t, h.store.Account(acct.ID).FailedAttempts)
}

func TestRefresh_CollapsesEveryFailure(t *testing.T) {
	h := newHarness(t)
	_, res := h.registerVerified(t, "a@x.com", "alex")
	ctx := context.Background()

	t.Run("garbage", func(t *testing.T) {
		_, err := h.svc.Refresh(ctx, "garbage")
		require.ErrorIs(t, err, account.ErrUnauthorized)
		assert.Equal(t, refreshFailure, account.PublicMessage(err))
	})

	t.Run("access token", func(t *testing.T) {
		_, err := h.svc.Refresh(ctx, res.Tokens.AccessToken)
		require.ErrorIs(t, err, account.ErrUnauthorized)
		assert.Equal(t, refreshFailure, account.PublicMessage(err))
	})

	t.Run("store failure", func(t *testing.T) {
		h.store.FailNext = errors.New("connection reset")
		_, err := h.svc.Refresh(ctx, res.Tokens.RefreshToken)
		require.ErrorIs(t, err, account.ErrUnauthorized)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_REFRESH_TOKEN")
		assert.Equal(t, refreshFailure, account.PublicMessage(err))
		assert.Contains(t, h.logs.String(), "refresh failed")
	})

	t.Run("expired token", func(t *testing.T) {
		h.advance(31 * 24 * time.Hour)
		_, err := h.svc.Refresh(ctx, res.Tokens.RefreshToken)
		require.ErrorIs(t, err, account.ErrUnauthorized)
		assert.Equal(t, refreshFailure, account.PublicMessage(err))
	})
}

func TestRefresh_ConcurrentRotationSucceedsOnce(t *testing.T) {
	h := newHarness(t)
	_, res := h.registerVerified(t, "a@x.com", "alex")

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.svc.Refresh(context.Background(), res.Tokens.RefreshToken); err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), successes.Load())
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	acct, res := h.registerVerified(t, "a@x.com", "alex")
	ctx := context.Background()

	_, err := h.svc.Login(ctx, "a@x.com", strongPassword)
	require.NoError(t, err)
	require.Len(t, h.store.SessionsOf(acct.ID), 2)

	msg, err := h.svc.Logout(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, auth.MsgLoggedOut, msg)
	assert.Empty(t, h.store.SessionsOf(acct.ID), "logout revokes every session")

	_, err = h.svc.Refresh(ctx, res.Tokens.RefreshToken)
	require.ErrorIs(t, err, account.ErrUnauthorized)
}

func TestLogout_ExpiredTokenStillLogsOut(t *testing.T) {
	h := newHarness(t)
	acct, res := h.registerVerified(t, "a@x.com", "alex")

	h.advance(31 * 24 * time.Hour)
	_, err := h.svc.Logout(context.Background(), res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Empty(t, h.store.SessionsOf(acct.ID))
}

func TestLogout_Malformed(t *testing.T) {
	h := newHarness(t)
	for _, raw := range []string{"", "garbage", "a.b.c"} {
		_, err := h.svc.Logout(context.Background(), raw)
		require.ErrorIs(t, err, account.ErrUnauthorized, raw)
	}
}

func TestAuthenticate(t *testing.T) {
	h := newHarness(t)
	acct, res := h.registerVerified(t, "a@x.com", "alex")

	claims, err := h.svc.Authenticate(res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, acct.ID.String(), claims.Subject)
	assert.Equal(t, acct.PublicID, claims.PublicID)
	assert.Equal(t, account.RoleUser, claims.Role)
	assert.True(t, claims.EmailVerified)
	assert.False(t, claims.SetupComplete)

	_, err = h.svc.Authenticate(res.Tokens.RefreshToken)
	require.ErrorIs(t, err, account.ErrUnauthorized)
}

func TestPurgeExpiredSessions(t *testing.T) {
	h := newHarness(t)
	acct, _ := h.registerVerified(t, "a@x.com", "alex")
	ctx := context.Background()

	h.advance(31 * 24 * time.Hour)
	_, err := h.svc.Login(ctx, "a@x.com", strongPassword)
	require.NoError(t, err)
	require.Len(t, h.store.SessionsOf(acct.ID), 2)

	n, err := h.svc.PurgeExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Len(t, h.store.SessionsOf(acct.ID), 1)
}
