// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package auth_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squadz/squadz/internal/account"
	"github.com/squadz/squadz/internal/auth"
	"github.com/squadz/squadz/pkg/errutil"
)

var publicIDPattern = regexp.MustCompile(`^SQZ-[A-Z0-9]{8}$`)

func TestRegister(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	msg, err := h.svc.Register(ctx, registerInput("a@x.com", "a1"))
	require.NoError(t, err)
	assert.Equal(t, auth.MsgRegistered, msg)

	acct := h.store.AccountByEmail("a@x.com")
	require.NotNil(t, acct)
	assert.False(t, acct.EmailVerified)
	assert.Equal(t, account.RoleUnverified, acct.Role)
	assert.Equal(t, account.OriginPassword, acct.Origin)
	assert.Regexp(t, publicIDPattern, acct.PublicID)
	assert.NotEqual(t, strongPassword, acct.PasswordHash)
	assert.False(t, h.hasher.NeedsUpgrade(acct.PasswordHash))
	assert.Empty(t, h.store.SessionsOf(acct.ID), "registration never issues tokens")

	code := h.notifier.lastCode(t, "a@x.com")
	assert.Regexp(t, `^\d{6}$`, code)
	require.NotNil(t, acct.VerificationCode)
	assert.Equal(t, code, *acct.VerificationCode)
	require.NotNil(t, acct.VerificationExpiresAt)
	assert.WithinDuration(t, h.clock().Add(3*time.Minute), *acct.VerificationExpiresAt, time.Second)

	assert.Equal(t, 1, h.metrics.ops["register/success"])
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(in *auth.RegisterInput)
		wantCode string
	}{
		{name: "passwords differ", mutate: func(in *auth.RegisterInput) { in.ConfirmPassword = "Aa1!aaab" }, wantCode: "ACCOUNT_PASSWORD_MISMATCH"},
		{name: "weak password", mutate: func(in *auth.RegisterInput) { in.Password, in.ConfirmPassword = "aaaaaaaa", "aaaaaaaa" }, wantCode: "ACCOUNT_WEAK_PASSWORD"},
		{name: "bad email", mutate: func(in *auth.RegisterInput) { in.Email = "not-an-email" }, wantCode: "ACCOUNT_INVALID_EMAIL"},
		{name: "short username", mutate: func(in *auth.RegisterInput) { in.Username = "a" }, wantCode: "ACCOUNT_INVALID_USERNAME"},
		{name: "username charset", mutate: func(in *auth.RegisterInput) { in.Username = "a-b-c" }, wantCode: "ACCOUNT_INVALID_USERNAME"},
		{name: "short full name", mutate: func(in *auth.RegisterInput) { in.FullName = " A " }, wantCode: "ACCOUNT_INVALID_FULL_NAME"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			in := registerInput("a@x.com", "alex")
			tt.mutate(&in)

			_, err := h.svc.Register(context.Background(), in)
			require.ErrorIs(t, err, account.ErrValidation)
			errutil.AssertErrorCode(t, err, tt.wantCode)
			assert.Nil(t, h.store.AccountByEmail("a@x.com"))
		})
	}
}

func TestRegister_Conflicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.Register(ctx, registerInput("a@x.com", "alex"))
	require.NoError(t, err)

	_, err = h.svc.Register(ctx, registerInput("A@X.com", "other"))
	require.ErrorIs(t, err, account.ErrConflict)
	errutil.AssertErrorCode(t, err, "AUTH_EMAIL_TAKEN")

	_, err = h.svc.Register(ctx, registerInput("b@x.com", "ALEX"))
	require.ErrorIs(t, err, account.ErrConflict)
	errutil.AssertErrorCode(t, err, "AUTH_USERNAME_TAKEN")
}

func TestRegister_NotificationFailureIsInternal(t *testing.T) {
	h := newHarness(t)
	h.notifier.err = errors.New("broker down")

	_, err := h.svc.Register(context.Background(), registerInput("a@x.com", "alex"))
	require.Error(t, err)
	assert.Nil(t, account.KindOf(err))
	assert.Equal(t, account.DefaultPublicMessage, account.PublicMessage(err))
	errutil.AssertErrorCode(t, err, "AUTH_NOTIFY_FAILED")
	assert.Contains(t, h.logs.String(), "verification code delivery failed")
}

func TestRegister_NeverLogsSecrets(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Register(context.Background(), registerInput("a@x.com", "alex"))
	require.NoError(t, err)

	logs := h.logs.String()
	assert.NotContains(t, logs, strongPassword)
	assert.NotContains(t, logs, h.notifier.lastCode(t, "a@x.com"))
}

func TestVerifyEmail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.Register(ctx, registerInput("a@x.com", "alex"))
	require.NoError(t, err)

	res, err := h.svc.VerifyEmail(ctx, "A@x.com", h.notifier.lastCode(t, "a@x.com"))
	require.NoError(t, err)
	require.NotNil(t, res.Tokens)
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.NotEmpty(t, res.Tokens.RefreshToken)
	assert.True(t, res.Account.EmailVerified)
	assert.Equal(t, account.RoleUser, res.Account.Role)

	acct := h.store.AccountByEmail("a@x.com")
	assert.True(t, acct.EmailVerified)
	assert.Equal(t, account.RoleUser, acct.Role)
	assert.Nil(t, acct.VerificationCode)
	assert.Nil(t, acct.VerificationExpiresAt)
	assert.Len(t, h.store.SessionsOf(acct.ID), 1)

	_, err = h.svc.VerifyEmail(ctx, "a@x.com", "123456")
	require.ErrorIs(t, err, account.ErrValidation)
	errutil.AssertErrorCode(t, err, "AUTH_ALREADY_VERIFIED")
}

func TestVerifyEmail_UniformFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.Register(ctx, registerInput("a@x.com", "alex"))
	require.NoError(t, err)
	code := h.notifier.lastCode(t, "a@x.com")
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	_, unknownErr := h.svc.VerifyEmail(ctx, "nobody@x.com", code)
	_, wrongErr := h.svc.VerifyEmail(ctx, "a@x.com", wrong)

	require.ErrorIs(t, unknownErr, account.ErrUnauthorized)
	require.ErrorIs(t, wrongErr, account.ErrUnauthorized)
	assert.Equal(t, account.PublicMessage(unknownErr), account.PublicMessage(wrongErr))
}

func TestVerifyEmail_Expired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.Register(ctx, registerInput("a@x.com", "alex"))
	require.NoError(t, err)

	h.advance(3*time.Minute + time.Second)
	_, err = h.svc.VerifyEmail(ctx, "a@x.com", h.notifier.lastCode(t, "a@x.com"))
	require.ErrorIs(t, err, account.ErrExpired)
	assert.False(t, h.store.AccountByEmail("a@x.com").EmailVerified)
}

func TestVerifyEmail_MalformedCode(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.VerifyEmail(context.Background(), "a@x.com", "12ab56")
	require.ErrorIs(t, err, account.ErrValidation)
	errutil.AssertErrorCode(t, err, "ACCOUNT_INVALID_CODE")
}

func TestResendVerification(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.Register(ctx, registerInput("a@x.com", "alex"))
	require.NoError(t, err)

	h.advance(5 * time.Minute)
	msg, err := h.svc.ResendVerification(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, auth.MsgVerificationSent, msg)
	assert.Len(t, h.notifier.codes["a@x.com"], 2)

	// The fresh code has a fresh window.
	_, err = h.svc.VerifyEmail(ctx, "a@x.com", h.notifier.lastCode(t, "a@x.com"))
	require.NoError(t, err)

	unknown, err := h.svc.ResendVerification(ctx, "nobody@x.com")
	require.NoError(t, err)
	assert.Equal(t, msg, unknown)

	verified, err := h.svc.ResendVerification(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, msg, verified)
	assert.Len(t, h.notifier.codes["a@x.com"], 2, "verified accounts get no code")
}
