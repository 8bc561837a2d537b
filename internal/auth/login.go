// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"

	"github.com/squadz/squadz/internal/account"
	"github.com/squadz/squadz/internal/identity"
	"github.com/squadz/squadz/internal/session"
	"github.com/squadz/squadz/pkg/errutil"
)

// Login authenticates a password account. identifier is an email when it
// contains '@' and a public identifier otherwise. Unknown identifiers,
// accounts without a password and wrong passwords fail identically.
func (s *Service) Login(ctx context.Context, identifier, password string) (res *Result, err error) {
	ctx, done := s.start(ctx, "login")
	defer func() { done(err) }()

	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, account.Invalid("AUTH_MISSING_CREDENTIALS", "identifier and password are required")
	}

	var acct *account.Account
	if strings.Contains(identifier, "@") {
		acct, err = s.accounts.GetByEmail(ctx, account.NormalizeEmail(identifier))
	} else {
		acct, err = s.accounts.GetByPublicID(ctx, identifier)
	}
	invalid := account.Unauthorized("AUTH_INVALID_CREDENTIALS", msgInvalidCredentials)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			_, _ = s.hasher.Verify(password, s.dummyHash()) //nolint:errcheck // timing only
			return nil, invalid
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "get account").Wrap(err)
	}

	if !acct.EmailVerified {
		return nil, account.Unauthorized("AUTH_EMAIL_UNVERIFIED", "Email not verified. Please verify your email first.")
	}
	now := s.now()
	if acct.IsLocked(now) {
		return nil, account.Locked(*acct.LockedUntil)
	}
	if acct.Origin != account.OriginPassword || !acct.HasPassword() {
		_, _ = s.hasher.Verify(password, s.dummyHash()) //nolint:errcheck // timing only
		return nil, invalid
	}

	ok, err := s.hasher.Verify(password, acct.PasswordHash)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("squadz_id", acct.PublicID).
			Wrap(err)
	}
	if !ok {
		return nil, s.recordFailure(ctx, acct, now, invalid)
	}

	var upgraded string
	if s.hasher.NeedsUpgrade(acct.PasswordHash) {
		if upgraded, err = s.hasher.Hash(password); err != nil {
			s.logger.WarnContext(ctx, "password hash upgrade failed", "squadz_id", acct.PublicID, "error", err)
			upgraded = ""
		}
	}

	// Failures recorded while the password was being verified may have
	// locked the account, so the lock state is checked again under the row
	// lock before the counter is cleared.
	var pair *session.Pair
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.accounts.LockByID(ctx, acct.ID)
		if err != nil {
			return err
		}
		if locked.IsLocked(s.now()) {
			return account.Locked(*locked.LockedUntil)
		}
		if locked.PasswordHash != acct.PasswordHash {
			return invalid
		}
		if err := s.accounts.ResetLoginFailures(ctx, locked.ID); err != nil {
			return err
		}
		locked.FailedAttempts = 0
		locked.LockedUntil = nil
		if upgraded != "" {
			locked.PasswordHash = upgraded
			locked.UpdatedAt = s.now()
			if err := s.accounts.Update(ctx, locked); err != nil {
				return err
			}
		}
		acct = locked
		pair, err = s.issuer.Mint(ctx, locked)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.result(pair, acct, false), nil
}

// recordFailure counts a wrong password. Only the failure that reaches the
// threshold locks the account and sends the lockout notice; later failures
// during the same lockout report it without notifying again.
func (s *Service) recordFailure(ctx context.Context, acct *account.Account, now time.Time, invalid error) error {
	failure, err := s.accounts.RecordLoginFailure(ctx, acct.ID, now)
	if err != nil {
		return oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "record login failure").
			With("squadz_id", acct.PublicID).
			Wrap(err)
	}
	if !failure.JustLocked(now) {
		if failure.Locked(now) {
			return account.Locked(*failure.LockedUntil)
		}
		return invalid
	}

	until := *failure.LockedUntil
	if s.metrics != nil {
		s.metrics.RecordLockout()
	}
	s.logger.WarnContext(ctx, "account locked",
		"squadz_id", acct.PublicID,
		"failed_attempts", failure.FailedAttempts,
		"locked_until", until)

	if err := s.notifier.SendLockoutNotice(ctx, acct.Email, until); err != nil {
		errutil.LogError(ctx, s.logger, "lockout notice delivery failed", err, "squadz_id", acct.PublicID)
		return oops.Code("AUTH_NOTIFY_FAILED").With("kind", "lockout_notice").Wrap(err)
	}
	return account.Locked(until)
}

// ExternalSignIn signs in with an identity token from provider. An existing
// account is only signed in when it was created by the same provider; a
// new email creates a verified account. Result.IsNew reports which.
func (s *Service) ExternalSignIn(ctx context.Context, provider account.Origin, assertion string) (res *Result, err error) {
	ctx, done := s.start(ctx, "external_sign_in", attribute.String("auth.provider", string(provider)))
	defer func() { done(err) }()

	verifier, ok := s.verifiers[provider]
	if !ok {
		return nil, account.Invalid("AUTH_PROVIDER_DISABLED", "sign-in provider is not enabled")
	}
	if strings.TrimSpace(assertion) == "" {
		return nil, account.Invalid("AUTH_MISSING_ASSERTION", "identity token is required")
	}

	profile, err := verifier.Verify(ctx, assertion)
	if err != nil {
		return nil, err
	}

	acct, err := s.accounts.GetByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		if acct.Origin != provider {
			return nil, account.Conflict("AUTH_ORIGIN_CONFLICT",
				fmt.Sprintf("Email already registered with %s", acct.Origin))
		}
		pair, err := s.issuer.Mint(ctx, acct)
		if err != nil {
			return nil, err
		}
		return s.result(pair, acct, false), nil
	case errors.Is(err, account.ErrNotFound):
		return s.signUpExternal(ctx, provider, profile)
	default:
		return nil, oops.Code("AUTH_EXTERNAL_SIGN_IN_FAILED").
			With("operation", "get account by email").
			With("provider", provider).
			Wrap(err)
	}
}

// maxSignUpAttempts bounds the retries of an external sign-up whose derived
// identifiers were taken between the uniqueness check and the insert.
const maxSignUpAttempts = 3

// externalUsername derives the username of an external account from its
// public identifier.
func externalUsername(publicID string) string {
	return "user_" + strings.TrimPrefix(publicID, account.PublicIDPrefix+"-")
}

// identifiersTaken reports whether publicID or the username derived from it
// is already in use.
func (s *Service) identifiersTaken(ctx context.Context, publicID string) (bool, error) {
	taken, err := s.accounts.PublicIDExists(ctx, publicID)
	if err != nil || taken {
		return taken, err
	}
	return s.accounts.UsernameExists(ctx, externalUsername(publicID))
}

func (s *Service) signUpExternal(ctx context.Context, provider account.Origin, profile *identity.Profile) (*Result, error) {
	fullName := strings.TrimSpace(profile.DisplayName)
	if fullName == "" {
		fullName, _, _ = strings.Cut(profile.Email, "@")
	}
	externalID := profile.ExternalID

	var (
		acct *account.Account
		pair *session.Pair
	)
	for attempt := 1; ; attempt++ {
		publicID, err := account.GeneratePublicID(ctx, s.identifiersTaken)
		if err != nil {
			return nil, err
		}
		now := s.now()
		acct = &account.Account{
			ID:            ulid.Make(),
			PublicID:      publicID,
			Email:         profile.Email,
			Username:      externalUsername(publicID),
			FullName:      fullName,
			Origin:        provider,
			ExternalID:    &externalID,
			EmailVerified: true,
			Role:          account.RoleUser,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
			if err := s.accounts.Create(ctx, acct); err != nil {
				return err
			}
			var err error
			pair, err = s.issuer.Mint(ctx, acct)
			return err
		})
		if err == nil {
			break
		}
		switch errutil.Code(err) {
		case "ACCOUNT_USERNAME_TAKEN", "ACCOUNT_PUBLIC_ID_TAKEN":
			if attempt < maxSignUpAttempts {
				continue
			}
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "account created by external sign-in",
		"squadz_id", acct.PublicID, "provider", acct.Origin)
	return s.result(pair, acct, true), nil
}
