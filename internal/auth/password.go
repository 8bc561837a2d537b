// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package auth

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/squadz/squadz/internal/account"
	"github.com/squadz/squadz/pkg/errutil"
)

// ForgotPassword stores a reset token for a password account and sends it.
// The acknowledgement is the same whether or not the email is known, and a
// delivery failure is logged rather than returned so it cannot reveal that
// the account exists.
func (s *Service) ForgotPassword(ctx context.Context, email string) (msg string, err error) {
	ctx, done := s.start(ctx, "forgot_password")
	defer func() { done(err) }()

	email = account.NormalizeEmail(email)
	if err := account.ValidateEmail(email); err != nil {
		return "", err
	}

	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return MsgResetSent, nil
		}
		return "", oops.Code("AUTH_RESET_REQUEST_FAILED").With("operation", "get account by email").Wrap(err)
	}
	if acct.Origin != account.OriginPassword {
		return MsgResetSent, nil
	}

	raw, hash, expiresAt, err := account.GenerateResetToken(s.now())
	if err != nil {
		return "", err
	}
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.accounts.LockByID(ctx, acct.ID)
		if err != nil {
			return err
		}
		locked.SetResetToken(hash, expiresAt)
		locked.UpdatedAt = s.now()
		return s.accounts.Update(ctx, locked)
	})
	if err != nil {
		return "", oops.Code("AUTH_RESET_REQUEST_FAILED").With("operation", "store reset token").Wrap(err)
	}

	if err := s.notifier.SendPasswordReset(ctx, acct.Email, raw); err != nil {
		errutil.LogError(ctx, s.logger, "password reset delivery failed", err, "squadz_id", acct.PublicID)
		return "", oops.Code("AUTH_NOTIFY_FAILED").With("kind", "password_reset").Wrap(err)
	}
	return MsgResetSent, nil
}

// ResetPassword replaces the password of the account holding resetToken.
// The token is matched against every pending reset, not bound to an email.
// Success advances the token version and deletes every session.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword, confirmPassword string) (msg string, err error) {
	ctx, done := s.start(ctx, "reset_password")
	defer func() { done(err) }()

	if err := account.ValidatePasswordPair(newPassword, confirmPassword); err != nil {
		return "", err
	}

	invalid := account.Unauthorized("AUTH_INVALID_RESET_TOKEN", msgInvalidReset)
	pending, err := s.accounts.ListPendingResets(ctx, s.now())
	if err != nil {
		return "", oops.Code("AUTH_RESET_FAILED").With("operation", "list pending resets").Wrap(err)
	}
	var target *account.Account
	for _, acct := range pending {
		if acct.ResetTokenHash != nil && account.VerifyTokenHash(resetToken, *acct.ResetTokenHash) {
			target = acct
			break
		}
	}
	if target == nil {
		return "", invalid
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return "", oops.Code("AUTH_RESET_FAILED").With("operation", "hash password").Wrap(err)
	}

	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.accounts.LockByID(ctx, target.ID)
		if err != nil {
			return err
		}
		// A concurrent reset may have consumed or replaced the token.
		if locked.ResetTokenHash == nil || !account.VerifyTokenHash(resetToken, *locked.ResetTokenHash) ||
			account.CodeExpired(locked.ResetExpiresAt, s.now()) {
			return invalid
		}
		return s.replacePassword(ctx, locked, hash)
	})
	if err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "password reset", "squadz_id", target.PublicID)
	return MsgPasswordReset, nil
}

// ChangePassword replaces the password of a signed-in password account
// after checking the current one. Success advances the token version and
// deletes every session.
func (s *Service) ChangePassword(ctx context.Context, accountID ulid.ULID, current, newPassword, confirmPassword string) (msg string, err error) {
	ctx, done := s.start(ctx, "change_password")
	defer func() { done(err) }()

	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return "", err
	}
	if acct.Origin != account.OriginPassword || !acct.HasPassword() {
		return "", account.Invalid("AUTH_PASSWORD_NOT_SET",
			"account signs in with "+string(acct.Origin)+" and has no password")
	}
	if err := account.ValidatePasswordPair(newPassword, confirmPassword); err != nil {
		return "", err
	}

	ok, err := s.hasher.Verify(current, acct.PasswordHash)
	if err != nil {
		return "", oops.Code("AUTH_CHANGE_PASSWORD_FAILED").With("operation", "verify password").Wrap(err)
	}
	if !ok {
		return "", account.Unauthorized("AUTH_INVALID_CREDENTIALS", "current password is incorrect")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return "", oops.Code("AUTH_CHANGE_PASSWORD_FAILED").With("operation", "hash password").Wrap(err)
	}
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.accounts.LockByID(ctx, accountID)
		if err != nil {
			return err
		}
		if locked.PasswordHash != acct.PasswordHash {
			return account.Conflict("AUTH_PASSWORD_CHANGED", "password was changed concurrently")
		}
		return s.replacePassword(ctx, locked, hash)
	})
	if err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "password changed", "squadz_id", acct.PublicID)
	return MsgPasswordChanged, nil
}

// replacePassword installs hash, advances the token version and deletes
// every session. It must run inside a transaction holding acct's lock.
func (s *Service) replacePassword(ctx context.Context, acct *account.Account, hash string) error {
	acct.ReplacePassword(hash)
	acct.UpdatedAt = s.now()
	if err := s.accounts.Update(ctx, acct); err != nil {
		return err
	}
	_, err := s.issuer.RevokeAll(ctx, acct.ID)
	return err
}
