// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/squadz/squadz/internal/account"
)

const accountColumns = `
	id, public_id, email, username, full_name, password_hash, origin, external_id,
	email_verified, verification_code, verification_expires_at,
	setup_stage_1, setup_stage_2, setup_stage_3, setup_stage_4, role,
	failed_attempts, locked_until, reset_token_hash, reset_expires_at,
	token_version, created_at, updated_at`

// AccountRepository implements account.Repository using PostgreSQL.
type AccountRepository struct {
	db DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create stores a new account.
func (r *AccountRepository) Create(ctx context.Context, acct *account.Account) error {
	_, err := conn(ctx, r.db).Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		        $17, $18, $19, $20, $21, $22, $23)
	`,
		acct.ID.String(),
		acct.PublicID,
		acct.Email,
		acct.Username,
		acct.FullName,
		nullableHash(acct.PasswordHash),
		string(acct.Origin),
		acct.ExternalID,
		acct.EmailVerified,
		acct.VerificationCode,
		acct.VerificationExpiresAt,
		acct.Stages[0],
		acct.Stages[1],
		acct.Stages[2],
		acct.Stages[3],
		string(acct.Role),
		acct.FailedAttempts,
		acct.LockedUntil,
		acct.ResetTokenHash,
		acct.ResetExpiresAt,
		acct.TokenVersion,
		acct.CreatedAt,
		acct.UpdatedAt,
	)
	if err != nil {
		if conflict := conflictFromPg(err); conflict != nil {
			return conflict
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("public_id", acct.PublicID).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*account.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, "id", id.String())
}

// GetByEmail retrieves an account by email (case-insensitive).
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE LOWER(email) = LOWER($1)`, "email", email)
}

// GetByPublicID retrieves an account by public identifier (case-insensitive).
func (r *AccountRepository) GetByPublicID(ctx context.Context, publicID string) (*account.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE UPPER(public_id) = UPPER($1)`, "public_id", publicID)
}

// LockByID retrieves an account with a row lock held until the surrounding
// transaction ends. Outside a transaction the lock is released immediately.
func (r *AccountRepository) LockByID(ctx context.Context, id ulid.ULID) (*account.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, "id", id.String())
}

// EmailExists reports whether an account uses email.
func (r *AccountRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE LOWER(email) = LOWER($1))`, "email", email)
}

// UsernameExists reports whether an account uses username.
func (r *AccountRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE LOWER(username) = LOWER($1))`, "username", username)
}

// PublicIDExists reports whether an account uses publicID.
func (r *AccountRepository) PublicIDExists(ctx context.Context, publicID string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE UPPER(public_id) = UPPER($1))`, "public_id", publicID)
}

// Update writes every mutable field of acct. Identity columns (id, public_id,
// origin, created_at) are never rewritten.
func (r *AccountRepository) Update(ctx context.Context, acct *account.Account) error {
	acct.UpdatedAt = time.Now()
	result, err := conn(ctx, r.db).Exec(ctx, `
		UPDATE accounts SET
			email = $2,
			username = $3,
			full_name = $4,
			password_hash = $5,
			external_id = $6,
			email_verified = $7,
			verification_code = $8,
			verification_expires_at = $9,
			setup_stage_1 = $10,
			setup_stage_2 = $11,
			setup_stage_3 = $12,
			setup_stage_4 = $13,
			role = $14,
			failed_attempts = $15,
			locked_until = $16,
			reset_token_hash = $17,
			reset_expires_at = $18,
			token_version = $19,
			updated_at = $20
		WHERE id = $1
	`,
		acct.ID.String(),
		acct.Email,
		acct.Username,
		acct.FullName,
		nullableHash(acct.PasswordHash),
		acct.ExternalID,
		acct.EmailVerified,
		acct.VerificationCode,
		acct.VerificationExpiresAt,
		acct.Stages[0],
		acct.Stages[1],
		acct.Stages[2],
		acct.Stages[3],
		string(acct.Role),
		acct.FailedAttempts,
		acct.LockedUntil,
		acct.ResetTokenHash,
		acct.ResetExpiresAt,
		acct.TokenVersion,
		acct.UpdatedAt,
	)
	if err != nil {
		if conflict := conflictFromPg(err); conflict != nil {
			return conflict
		}
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update account").
			With("id", acct.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", acct.ID.String()).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// RecordLoginFailure increments the failure counter in one statement. An
// active lockout is kept as is, an elapsed one restarts the count at 1, and
// reaching account.LockoutThreshold sets locked_until to
// now + account.LockoutDuration.
func (r *AccountRepository) RecordLoginFailure(ctx context.Context, id ulid.ULID, now time.Time) (account.LoginFailure, error) {
	var f account.LoginFailure
	err := conn(ctx, r.db).QueryRow(ctx, `
		UPDATE accounts SET
			failed_attempts = CASE
				WHEN locked_until IS NOT NULL AND locked_until <= $2 THEN 1
				ELSE failed_attempts + 1
			END,
			locked_until = CASE
				WHEN locked_until IS NOT NULL AND locked_until > $2 THEN locked_until
				WHEN (CASE WHEN locked_until IS NOT NULL AND locked_until <= $2 THEN 1
				           ELSE failed_attempts + 1 END) >= $3 THEN $4
				WHEN locked_until IS NOT NULL AND locked_until <= $2 THEN NULL
				ELSE locked_until
			END,
			updated_at = $2
		WHERE id = $1
		RETURNING failed_attempts, locked_until
	`, id.String(), now, account.LockoutThreshold, now.Add(account.LockoutDuration)).Scan(&f.FailedAttempts, &f.LockedUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return account.LoginFailure{}, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return account.LoginFailure{}, oops.Code("ACCOUNT_RECORD_FAILURE_FAILED").
			With("operation", "increment failed attempts").
			With("id", id.String()).
			Wrap(err)
	}
	return f, nil
}

// ResetLoginFailures zeroes the failure counter and clears any lockout.
func (r *AccountRepository) ResetLoginFailures(ctx context.Context, id ulid.ULID) error {
	result, err := conn(ctx, r.db).Exec(ctx, `
		UPDATE accounts SET failed_attempts = 0, locked_until = NULL, updated_at = $2
		WHERE id = $1
	`, id.String(), time.Now())
	if err != nil {
		return oops.Code("ACCOUNT_RESET_FAILURES_FAILED").
			With("operation", "reset failed attempts").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// ListPendingResets returns accounts whose reset token is still valid at now.
func (r *AccountRepository) ListPendingResets(ctx context.Context, now time.Time) ([]*account.Account, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE reset_token_hash IS NOT NULL AND reset_expires_at > $1
	`, now)
	if err != nil {
		return nil, oops.Code("ACCOUNT_LIST_RESETS_FAILED").
			With("operation", "list pending resets").
			Wrap(err)
	}
	defer rows.Close()

	var accounts []*account.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ACCOUNT_ROWS_ERROR").
			With("operation", "iterate pending resets").
			Wrap(err)
	}
	return accounts, nil
}

func (r *AccountRepository) getOne(ctx context.Context, query, key, value string) (*account.Account, error) {
	acct, err := scanAccount(conn(ctx, r.db).QueryRow(ctx, query, value))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With(key, value).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account by "+key).
			With(key, value).
			Wrap(err)
	}
	return acct, nil
}

func (r *AccountRepository) exists(ctx context.Context, query, key, value string) (bool, error) {
	var found bool
	if err := conn(ctx, r.db).QueryRow(ctx, query, value).Scan(&found); err != nil {
		return false, oops.Code("ACCOUNT_EXISTS_FAILED").
			With("operation", "check "+key).
			Wrap(err)
	}
	return found, nil
}

// scanAccount scans a single row into an Account.
// Callers are responsible for handling pgx.ErrNoRows.
func scanAccount(row pgx.Row) (*account.Account, error) {
	var (
		acct         account.Account
		idStr        string
		passwordHash *string
		origin       string
		role         string
	)
	err := row.Scan(
		&idStr,
		&acct.PublicID,
		&acct.Email,
		&acct.Username,
		&acct.FullName,
		&passwordHash,
		&origin,
		&acct.ExternalID,
		&acct.EmailVerified,
		&acct.VerificationCode,
		&acct.VerificationExpiresAt,
		&acct.Stages[0],
		&acct.Stages[1],
		&acct.Stages[2],
		&acct.Stages[3],
		&role,
		&acct.FailedAttempts,
		&acct.LockedUntil,
		&acct.ResetTokenHash,
		&acct.ResetExpiresAt,
		&acct.TokenVersion,
		&acct.CreatedAt,
		&acct.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").
			With("operation", "scan account").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").
			With("operation", "parse account id").
			With("id", idStr).
			Wrap(err)
	}
	acct.ID = id
	acct.Origin = account.Origin(origin)
	acct.Role = account.Role(role)
	if passwordHash != nil {
		acct.PasswordHash = *passwordHash
	}
	return &acct, nil
}

func nullableHash(hash string) *string {
	if hash == "" {
		return nil
	}
	return &hash
}

// Compile-time interface check.
var _ account.Repository = (*AccountRepository)(nil)
