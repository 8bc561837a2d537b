// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/squadz/squadz/internal/account"
	"github.com/squadz/squadz/internal/identity"
	"github.com/squadz/squadz/internal/notify"
	"github.com/squadz/squadz/internal/observability"
	"github.com/squadz/squadz/internal/session"
)

var tracer = otel.Tracer("squadz/auth")

// Acknowledgements returned by operations that never hand out tokens.
const (
	MsgRegistered       = "Registration successful. Please check your email for verification code."
	MsgVerificationSent = "If the account exists and is unverified, a new verification code has been sent."
	MsgResetSent        = "If the email exists, a password reset link has been sent."
	MsgPasswordReset    = "Password reset successful. Please login with your new password."
	MsgPasswordChanged  = "Password changed. Please login again on your other devices."
	MsgLoggedOut        = "Logged out successfully"
)

// Caller-facing text shared by several failure causes.
const (
	msgInvalidCredentials = "invalid credentials"
	msgInvalidCode        = "invalid email or verification code"
	msgInvalidRefresh     = "invalid or expired refresh token"
	msgInvalidReset       = "invalid or expired reset token"
)

// Recorder receives operation metrics. *observability.Metrics implements it.
type Recorder interface {
	ObserveOperation(operation, outcome string, elapsed time.Duration)
	RecordLockout()
}

// Config holds the collaborators of a Service.
type Config struct {
	Accounts   account.Repository
	Transactor account.Transactor
	Issuer     *session.Issuer
	Hasher     PasswordHasher
	Notifier   notify.Notifier

	// Verifiers maps each enabled external provider to its verifier.
	Verifiers map[account.Origin]identity.Verifier

	Metrics Recorder
	Logger  *slog.Logger
	Now     func() time.Time
}

// Result is returned by operations that sign the caller in.
type Result struct {
	Tokens  *session.Pair   `json:"tokens"`
	Account account.Summary `json:"account"`

	// IsNew is set by ExternalSignIn when the account was created.
	IsNew bool `json:"is_new_account"`
}

// Service implements the account lifecycle operations.
type Service struct {
	accounts  account.Repository
	tx        account.Transactor
	issuer    *session.Issuer
	hasher    PasswordHasher
	notifier  notify.Notifier
	verifiers map[account.Origin]identity.Verifier
	metrics   Recorder
	logger    *slog.Logger
	now       func() time.Time

	dummyOnce sync.Once
	dummy     string
}

// NewService validates cfg and creates a Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Accounts == nil || cfg.Transactor == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("account repository and transactor are required")
	}
	if cfg.Issuer == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("session issuer is required")
	}
	if cfg.Notifier == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("notifier is required")
	}
	if cfg.Hasher == nil {
		cfg.Hasher = NewArgon2idHasher()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	for origin, v := range cfg.Verifiers {
		if !origin.Valid() || origin == account.OriginPassword || v == nil {
			return nil, oops.Code("AUTH_INVALID_CONFIG").
				With("provider", origin).
				Errorf("invalid external provider verifier")
		}
	}
	return &Service{
		accounts:  cfg.Accounts,
		tx:        cfg.Transactor,
		issuer:    cfg.Issuer,
		hasher:    cfg.Hasher,
		notifier:  cfg.Notifier,
		verifiers: cfg.Verifiers,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}, nil
}

// start opens the operation span. The returned func ends it and records the
// outcome: success, failure for classified errors, error otherwise.
func (s *Service) start(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	began := time.Now()
	ctx, span := tracer.Start(ctx, "auth."+operation, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		outcome := observability.OutcomeSuccess
		switch {
		case err == nil:
		case account.KindOf(err) != nil:
			outcome = observability.OutcomeFailure
			span.SetAttributes(attribute.String("auth.failure", account.KindOf(err).Error()))
		default:
			outcome = observability.OutcomeError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if s.metrics != nil {
			s.metrics.ObserveOperation(operation, outcome, time.Since(began))
		}
	}
}

// dummyHash is verified when no account matches so that unknown and known
// identifiers take the same time.
func (s *Service) dummyHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("squadz-dummy-password")
		if err != nil {
			s.logger.Warn("dummy hash generation failed", "error", err)
		}
		s.dummy = h
	})
	return s.dummy
}

func (s *Service) result(pair *session.Pair, acct *account.Account, isNew bool) *Result {
	return &Result{Tokens: pair, Account: acct.Summarize(), IsNew: isNew}
}
