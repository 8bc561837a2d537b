// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/squadz/squadz/internal/account"
)

// SessionRepository implements account.SessionRepository using PostgreSQL.
type SessionRepository struct {
	db DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create stores a new refresh session.
func (r *SessionRepository) Create(ctx context.Context, session *account.RefreshSession) error {
	_, err := conn(ctx, r.db).Exec(ctx, `
		INSERT INTO refresh_sessions (id, account_id, token_hash, token_version, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		session.ID.String(),
		session.AccountID.String(),
		session.TokenHash,
		session.TokenVersion,
		session.ExpiresAt,
		session.CreatedAt,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert refresh_session").
			With("account_id", session.AccountID.String()).
			Wrap(err)
	}
	return nil
}

// ListByAccountVersion returns sessions of accountID minted at version.
func (r *SessionRepository) ListByAccountVersion(ctx context.Context, accountID ulid.ULID, version int) ([]*account.RefreshSession, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `
		SELECT id, account_id, token_hash, token_version, expires_at, created_at
		FROM refresh_sessions
		WHERE account_id = $1 AND token_version = $2
		ORDER BY created_at DESC
	`, accountID.String(), version)
	if err != nil {
		return nil, oops.Code("SESSION_LIST_FAILED").
			With("operation", "list sessions by account").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var sessions []*account.RefreshSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("SESSION_ROWS_ERROR").
			With("operation", "iterate session rows").
			Wrap(err)
	}
	return sessions, nil
}

// Delete removes a session by ID.
func (r *SessionRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM refresh_sessions WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete refresh_session").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// DeleteByAccount removes all sessions for an account.
func (r *SessionRepository) DeleteByAccount(ctx context.Context, accountID ulid.ULID) (int64, error) {
	result, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM refresh_sessions WHERE account_id = $1`, accountID.String())
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_BY_ACCOUNT_FAILED").
			With("operation", "delete sessions by account").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// DeleteExpired removes all sessions expired at now.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM refresh_sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

func scanSession(row pgx.Row) (*account.RefreshSession, error) {
	var (
		s            account.RefreshSession
		idStr        string
		accountIDStr string
	)
	if err := row.Scan(&idStr, &accountIDStr, &s.TokenHash, &s.TokenVersion, &s.ExpiresAt, &s.CreatedAt); err != nil {
		return nil, oops.Code("SESSION_SCAN_FAILED").
			With("operation", "scan session row").
			Wrap(err)
	}

	var err error
	if s.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").With("id", idStr).Wrap(err)
	}
	if s.AccountID, err = ulid.Parse(accountIDStr); err != nil {
		return nil, oops.Code("SESSION_INVALID_ACCOUNT_ID").With("account_id", accountIDStr).Wrap(err)
	}
	return &s, nil
}

// Compile-time interface check.
var _ account.SessionRepository = (*SessionRepository)(nil)
