// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package account

import "time"

// Lockout configuration.
const (
	// LockoutThreshold is the number of consecutive password failures that
	// locks an account.
	LockoutThreshold = 5

	// LockoutDuration is how long a locked account stays locked.
	LockoutDuration = 15 * time.Minute
)

// IsLockedOut returns true if the lockout time is after now.
func IsLockedOut(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(now)
}

// NextFailure returns the failure counter and lockout timestamp after one more
// failed attempt at now. An active lockout is counted but never extended; one
// that has already elapsed starts a fresh count. Repositories apply the same
// rule atomically.
func NextFailure(failures int, lockedUntil *time.Time, now time.Time) (int, *time.Time) {
	if IsLockedOut(lockedUntil, now) {
		return failures + 1, lockedUntil
	}
	if lockedUntil != nil {
		failures = 0
		lockedUntil = nil
	}
	failures++
	if failures >= LockoutThreshold {
		until := now.Add(LockoutDuration)
		return failures, &until
	}
	return failures, lockedUntil
}

// LoginFailure is the account state after a recorded failure.
type LoginFailure struct {
	FailedAttempts int
	LockedUntil    *time.Time
}

// JustLocked reports whether this failure is the one that locked the account.
func (f LoginFailure) JustLocked(now time.Time) bool {
	return f.FailedAttempts == LockoutThreshold && IsLockedOut(f.LockedUntil, now)
}

// Locked reports whether the account is locked after this failure.
func (f LoginFailure) Locked(now time.Time) bool {
	return IsLockedOut(f.LockedUntil, now)
}
