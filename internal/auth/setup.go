// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package auth

import (
	"context"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/squadz/squadz/internal/account"
)

// CompleteSetupStage marks stage (1..4) complete for a verified account.
// Completing the last outstanding stage promotes a USER to PLAYER in the
// same transaction. Completing a stage twice changes nothing.
func (s *Service) CompleteSetupStage(ctx context.Context, accountID ulid.ULID, stage int) (sum account.Summary, err error) {
	ctx, done := s.start(ctx, "complete_setup_stage", attribute.Int("auth.stage", stage))
	defer func() { done(err) }()

	if err := account.ValidateStage(stage); err != nil {
		return account.Summary{}, err
	}
	return s.mutateStages(ctx, accountID, func(acct *account.Account) (bool, error) {
		return acct.CompleteStage(stage)
	})
}

// ResetSetupStage clears a completed stage. A PLAYER drops back to USER in
// the same transaction.
func (s *Service) ResetSetupStage(ctx context.Context, accountID ulid.ULID, stage int) (sum account.Summary, err error) {
	ctx, done := s.start(ctx, "reset_setup_stage", attribute.Int("auth.stage", stage))
	defer func() { done(err) }()

	if err := account.ValidateStage(stage); err != nil {
		return account.Summary{}, err
	}
	return s.mutateStages(ctx, accountID, func(acct *account.Account) (bool, error) {
		return true, acct.ResetStage(stage)
	})
}

func (s *Service) mutateStages(ctx context.Context, accountID ulid.ULID, mutate func(*account.Account) (bool, error)) (account.Summary, error) {
	var acct *account.Account
	err := s.tx.InTransaction(ctx, func(ctx context.Context) error {
		var err error
		acct, err = s.accounts.LockByID(ctx, accountID)
		if err != nil {
			return err
		}
		if !acct.EmailVerified {
			return account.Unauthorized("AUTH_EMAIL_UNVERIFIED", "Email not verified. Please verify your email first.")
		}
		changed, err := mutate(acct)
		if err != nil || !changed {
			return err
		}
		acct.UpdatedAt = s.now()
		return s.accounts.Update(ctx, acct)
	})
	if err != nil {
		return account.Summary{}, err
	}
	return acct.Summarize(), nil
}
