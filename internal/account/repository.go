// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package account

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Repository manages account persistence. Implementations run every method
// inside the transaction carried by ctx when there is one.
type Repository interface {
	// Create stores a new account. A duplicate email, username or public
	// identifier fails with an error wrapping ErrConflict.
	Create(ctx context.Context, acct *Account) error

	// GetByID retrieves an account by internal ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByEmail retrieves an account by email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// GetByPublicID retrieves an account by public identifier (case-insensitive).
	GetByPublicID(ctx context.Context, publicID string) (*Account, error)

	// LockByID retrieves an account and holds it against concurrent
	// mutation until the surrounding transaction ends.
	LockByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// EmailExists, UsernameExists and PublicIDExists are uniqueness probes.
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	PublicIDExists(ctx context.Context, publicID string) (bool, error)

	// Update writes every mutable field of acct.
	Update(ctx context.Context, acct *Account) error

	// RecordLoginFailure atomically applies NextFailure to the stored counter.
	RecordLoginFailure(ctx context.Context, id ulid.ULID, now time.Time) (LoginFailure, error)

	// ResetLoginFailures atomically zeroes the counter and clears any lockout.
	ResetLoginFailures(ctx context.Context, id ulid.ULID) error

	// ListPendingResets returns accounts holding a reset token that has not
	// expired at now.
	ListPendingResets(ctx context.Context, now time.Time) ([]*Account, error)
}

// SessionRepository manages refresh-session persistence.
type SessionRepository interface {
	// Create stores a new session record.
	Create(ctx context.Context, session *RefreshSession) error

	// ListByAccountVersion returns the account's sessions minted at version.
	ListByAccountVersion(ctx context.Context, accountID ulid.ULID, version int) ([]*RefreshSession, error)

	// Delete removes one session. It returns ErrNotFound when the record is
	// already gone, which is how a lost rotation race is detected.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteByAccount removes every session of an account.
	DeleteByAccount(ctx context.Context, accountID ulid.ULID) (int64, error)

	// DeleteExpired removes sessions expired at now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Transactor runs fn as one atomic unit of work. Repository calls made with
// the ctx passed to fn join the unit; fn returning an error rolls it back.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
