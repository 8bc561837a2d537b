// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

// Package postgres implements the account repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/squadz/squadz/internal/account"
)

// DB is the subset of *pgxpool.Pool used by the repositories. pgxmock pools
// satisfy it as well.
type DB interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// querier abstracts query execution for both the pool and a pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// conn returns the transaction carried by ctx, or db when there is none.
func conn(ctx context.Context, db DB) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return db
}

// Unique index names from the migrations.
const (
	accountsEmailKey    = "accounts_email_lower_key"
	accountsUsernameKey = "accounts_username_lower_key"
	accountsPublicIDKey = "accounts_public_id_key"
)

// conflictFromPg converts a unique violation into a typed conflict.
// It returns nil for any other error.
func conflictFromPg(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return nil
	}
	switch pgErr.ConstraintName {
	case accountsEmailKey:
		return account.Conflict("ACCOUNT_EMAIL_TAKEN", "email already registered")
	case accountsUsernameKey:
		return account.Conflict("ACCOUNT_USERNAME_TAKEN", "username already taken")
	case accountsPublicIDKey:
		return account.Conflict("ACCOUNT_PUBLIC_ID_TAKEN", "public identifier already taken")
	}
	return oops.Code("ACCOUNT_CONFLICT").
		With("constraint", pgErr.ConstraintName).
		Public("account already exists").
		Wrap(account.ErrConflict)
}
