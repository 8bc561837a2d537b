// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/squadz/squadz/internal/account"
	"github.com/squadz/squadz/internal/session"
	"github.com/squadz/squadz/pkg/errutil"
)

// RegisterInput is the sign-up form.
type RegisterInput struct {
	FullName        string `json:"full_name"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (in *RegisterInput) validate() error {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = account.NormalizeEmail(in.Email)

	if err := account.ValidateFullName(in.FullName); err != nil {
		return err
	}
	if err := account.ValidateUsername(in.Username); err != nil {
		return err
	}
	if err := account.ValidateEmail(in.Email); err != nil {
		return err
	}
	return account.ValidatePasswordPair(in.Password, in.ConfirmPassword)
}

// Register creates an unverified password account and sends it a
// verification code. It returns an acknowledgement, never tokens.
func (s *Service) Register(ctx context.Context, in RegisterInput) (msg string, err error) {
	ctx, done := s.start(ctx, "register")
	defer func() { done(err) }()

	if err := in.validate(); err != nil {
		return "", err
	}

	taken, err := s.accounts.EmailExists(ctx, in.Email)
	if err != nil {
		return "", oops.Code("AUTH_REGISTER_FAILED").With("operation", "check email").Wrap(err)
	}
	if taken {
		return "", account.Conflict("AUTH_EMAIL_TAKEN", "Email already registered")
	}
	taken, err = s.accounts.UsernameExists(ctx, in.Username)
	if err != nil {
		return "", oops.Code("AUTH_REGISTER_FAILED").With("operation", "check username").Wrap(err)
	}
	if taken {
		return "", account.Conflict("AUTH_USERNAME_TAKEN", "Username already taken")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return "", oops.Code("AUTH_REGISTER_FAILED").With("operation", "hash password").Wrap(err)
	}
	publicID, err := account.GeneratePublicID(ctx, s.accounts.PublicIDExists)
	if err != nil {
		return "", err
	}
	now := s.now()
	code, codeExpiry, err := account.GenerateVerificationCode(now)
	if err != nil {
		return "", err
	}

	acct := &account.Account{
		ID:           ulid.Make(),
		PublicID:     publicID,
		Email:        in.Email,
		Username:     in.Username,
		FullName:     in.FullName,
		PasswordHash: hash,
		Origin:       account.OriginPassword,
		Role:         account.RoleUnverified,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	acct.IssueVerificationCode(code, codeExpiry)
	if err := s.accounts.Create(ctx, acct); err != nil {
		return "", err
	}

	if err := s.notifier.SendVerificationCode(ctx, acct.Email, code, acct.PublicID); err != nil {
		errutil.LogError(ctx, s.logger, "verification code delivery failed", err, "squadz_id", acct.PublicID)
		return "", oops.Code("AUTH_NOTIFY_FAILED").With("kind", "verification_code").Wrap(err)
	}

	s.logger.InfoContext(ctx, "account registered", "squadz_id", acct.PublicID)
	return MsgRegistered, nil
}

// VerifyEmail checks a verification code, marks the email verified,
// promotes the account to USER and signs it in.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) (res *Result, err error) {
	ctx, done := s.start(ctx, "verify_email")
	defer func() { done(err) }()

	email = account.NormalizeEmail(email)
	if err := account.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := account.ValidateVerificationCode(code); err != nil {
		return nil, err
	}

	invalid := account.Unauthorized("AUTH_INVALID_CODE", msgInvalidCode)
	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, invalid
		}
		return nil, oops.Code("AUTH_VERIFY_FAILED").With("operation", "get account by email").Wrap(err)
	}
	if acct.EmailVerified {
		return nil, account.Invalid("AUTH_ALREADY_VERIFIED", "Email already verified")
	}
	if acct.VerificationCode == nil || !codesEqual(code, *acct.VerificationCode) {
		return nil, invalid
	}
	if account.CodeExpired(acct.VerificationExpiresAt, s.now()) {
		return nil, account.Expired("AUTH_CODE_EXPIRED", "Verification code expired. Please request a new one.")
	}

	var pair *session.Pair
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.accounts.LockByID(ctx, acct.ID)
		if err != nil {
			return err
		}
		if locked.EmailVerified {
			return account.Invalid("AUTH_ALREADY_VERIFIED", "Email already verified")
		}
		locked.MarkVerified()
		locked.UpdatedAt = s.now()
		if err := s.accounts.Update(ctx, locked); err != nil {
			return err
		}
		acct = locked
		pair, err = s.issuer.Mint(ctx, locked)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "email verified", "squadz_id", acct.PublicID)
	return s.result(pair, acct, false), nil
}

// ResendVerification issues and sends a fresh code to an unverified
// password account. The acknowledgement is identical whether or not one
// was sent.
func (s *Service) ResendVerification(ctx context.Context, email string) (msg string, err error) {
	ctx, done := s.start(ctx, "resend_verification")
	defer func() { done(err) }()

	email = account.NormalizeEmail(email)
	if err := account.ValidateEmail(email); err != nil {
		return "", err
	}

	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return MsgVerificationSent, nil
		}
		return "", oops.Code("AUTH_RESEND_FAILED").With("operation", "get account by email").Wrap(err)
	}
	if acct.EmailVerified || acct.Origin != account.OriginPassword {
		return MsgVerificationSent, nil
	}

	code, expiresAt, err := account.GenerateVerificationCode(s.now())
	if err != nil {
		return "", err
	}
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.accounts.LockByID(ctx, acct.ID)
		if err != nil {
			return err
		}
		locked.IssueVerificationCode(code, expiresAt)
		locked.UpdatedAt = s.now()
		return s.accounts.Update(ctx, locked)
	})
	if err != nil {
		return "", err
	}

	if err := s.notifier.SendVerificationCode(ctx, acct.Email, code, acct.PublicID); err != nil {
		errutil.LogError(ctx, s.logger, "verification code delivery failed", err, "squadz_id", acct.PublicID)
		return "", oops.Code("AUTH_NOTIFY_FAILED").With("kind", "verification_code").Wrap(err)
	}
	return MsgVerificationSent, nil
}

func codesEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
