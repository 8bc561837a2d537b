// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package main

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/squadz/squadz/internal/account/postgres"
	"github.com/squadz/squadz/internal/store"
)

// sessionPurger deletes sessions past their expiry.
type sessionPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// purgerFactory connects to the database; tests replace it.
var purgerFactory = func(ctx context.Context, databaseURL string) (sessionPurger, func(), error) {
	pool, err := store.Connect(ctx, databaseURL, store.DefaultConnectOptions())
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewSessionRepository(pool), pool.Close, nil
}

// NewSessionsCmd creates the sessions command group.
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Maintain refresh-token sessions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete every session past its expiry",
		Args:  cobra.NoArgs,
		RunE:  runSessionsPurge,
	})
	return cmd
}

func runSessionsPurge(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database-url is required (set SQUADZ_DATABASE_URL or DATABASE_URL)")
	}

	ctx := cmd.Context()
	purger, closeFn, err := purgerFactory(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer closeFn()

	n, err := purger.DeleteExpired(ctx, time.Now())
	if err != nil {
		return oops.Code("SESSION_PURGE_FAILED").Wrap(err)
	}
	cmd.Printf("Purged %d expired sessions\n", n)
	return nil
}
