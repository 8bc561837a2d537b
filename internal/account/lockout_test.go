// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package account_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squadz/squadz/internal/account"
)

func TestIsLockedOut(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Second)
	future := now.Add(time.Second)

	assert.False(t, account.IsLockedOut(nil, now))
	assert.False(t, account.IsLockedOut(&past, now))
	assert.False(t, account.IsLockedOut(&now, now))
	assert.True(t, account.IsLockedOut(&future, now))
}

func TestNextFailure(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("below threshold only counts", func(t *testing.T) {
		failures, until := account.NextFailure(0, nil, now)
		assert.Equal(t, 1, failures)
		assert.Nil(t, until)

		failures, until = account.NextFailure(3, nil, now)
		assert.Equal(t, 4, failures)
		assert.Nil(t, until)
	})

	t.Run("fifth failure locks for fifteen minutes", func(t *testing.T) {
		failures, until := account.NextFailure(4, nil, now)
		assert.Equal(t, account.LockoutThreshold, failures)
		require.NotNil(t, until)
		assert.Equal(t, now.Add(15*time.Minute), *until)
	})

	t.Run("active lockout is counted but not extended", func(t *testing.T) {
		active := now.Add(time.Minute)
		failures, until := account.NextFailure(5, &active, now)
		assert.Equal(t, 6, failures)
		require.NotNil(t, until)
		assert.Equal(t, active, *until)
	})

	t.Run("elapsed lockout restarts the count", func(t *testing.T) {
		expired := now.Add(-time.Minute)
		failures, until := account.NextFailure(5, &expired, now)
		assert.Equal(t, 1, failures)
		assert.Nil(t, until)
	})
}

func TestLoginFailure_JustLocked(t *testing.T) {
	now := time.Now()
	until := now.Add(account.LockoutDuration)

	assert.True(t, account.LoginFailure{FailedAttempts: 5, LockedUntil: &until}.JustLocked(now))
	assert.False(t, account.LoginFailure{FailedAttempts: 4}.JustLocked(now))

	later := account.LoginFailure{FailedAttempts: 6, LockedUntil: &until}
	assert.False(t, later.JustLocked(now), "only the locking failure notifies")
	assert.True(t, later.Locked(now))
}
