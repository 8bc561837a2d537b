// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package account_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squadz/squadz/internal/account"
	"github.com/squadz/squadz/pkg/errutil"
)

var publicIDPattern = regexp.MustCompile(`^SQZ-[A-Z0-9]{8}$`)

func TestGeneratePublicID(t *testing.T) {
	ctx := context.Background()

	t.Run("returns first free candidate", func(t *testing.T) {
		id, err := account.GeneratePublicID(ctx, func(context.Context, string) (bool, error) {
			return false, nil
		})
		require.NoError(t, err)
		assert.Regexp(t, publicIDPattern, id)
	})

	t.Run("retries until a candidate is free", func(t *testing.T) {
		calls := 0
		seen := map[string]bool{}
		id, err := account.GeneratePublicID(ctx, func(_ context.Context, candidate string) (bool, error) {
			calls++
			seen[candidate] = true
			return calls < 25, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 25, calls)
		assert.True(t, seen[id])
		assert.Regexp(t, publicIDPattern, id)
	})

	t.Run("propagates uniqueness check failure", func(t *testing.T) {
		_, err := account.GeneratePublicID(ctx, func(context.Context, string) (bool, error) {
			return false, errors.New("connection refused")
		})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "PUBLIC_ID_GENERATE_FAILED")
	})

	t.Run("stops when context is done", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		calls := 0
		_, err := account.GeneratePublicID(cctx, func(context.Context, string) (bool, error) {
			calls++
			if calls == 3 {
				cancel()
			}
			return true, nil
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 3, calls)
	})
}

func TestGenerateVerificationCode(t *testing.T) {
	now := time.Now()
	for i := 0; i < 200; i++ {
		code, expiresAt, err := account.GenerateVerificationCode(now)
		require.NoError(t, err)
		assert.Regexp(t, `^\d{6}$`, code)
		assert.Equal(t, now.Add(3*time.Minute), expiresAt)
	}
}

func TestCodeExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Second)
	future := now.Add(time.Second)

	assert.True(t, account.CodeExpired(nil, now))
	assert.True(t, account.CodeExpired(&past, now))
	assert.False(t, account.CodeExpired(&future, now))
	assert.False(t, account.CodeExpired(&now, now))
}

func TestGenerateResetToken(t *testing.T) {
	now := time.Now()
	token, hash, expiresAt, err := account.GenerateResetToken(now)
	require.NoError(t, err)

	assert.Len(t, token, 64)
	assert.Regexp(t, `^[0-9a-f]{64}$`, token)
	assert.Equal(t, account.HashToken(token), hash)
	assert.NotEqual(t, token, hash)
	assert.Equal(t, now.Add(time.Hour), expiresAt)

	other, _, _, err := account.GenerateResetToken(now)
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestVerifyTokenHash(t *testing.T) {
	hash := account.HashToken("secret")

	assert.True(t, account.VerifyTokenHash("secret", hash))
	assert.False(t, account.VerifyTokenHash("Secret", hash))
	assert.False(t, account.VerifyTokenHash("", hash))
	assert.False(t, account.VerifyTokenHash("secret", ""))
}

func TestNewRefreshSession(t *testing.T) {
	acct := &account.Account{}
	_, err := account.NewRefreshSession(acct.ID, "hash", 0, time.Now().Add(time.Hour))
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "SESSION_INVALID_ACCOUNT")
}
