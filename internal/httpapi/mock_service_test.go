// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package httpapi_test

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/squadz/squadz/internal/account"
	"github.com/squadz/squadz/internal/auth"
	"github.com/squadz/squadz/internal/session"
	"github.com/squadz/squadz/internal/token"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) result(args mock.Arguments) (*auth.Result, error) {
	res, _ := args.Get(0).(*auth.Result)
	return res, args.Error(1)
}

func (m *mockService) Register(ctx context.Context, in auth.RegisterInput) (string, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.Error(1)
}

func (m *mockService) VerifyEmail(ctx context.Context, email, code string) (*auth.Result, error) {
	return m.result(m.Called(ctx, email, code))
}

func (m *mockService) ResendVerification(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

func (m *mockService) Login(ctx context.Context, identifier, password string) (*auth.Result, error) {
	return m.result(m.Called(ctx, identifier, password))
}

func (m *mockService) ExternalSignIn(ctx context.Context, provider account.Origin, assertion string) (*auth.Result, error) {
	return m.result(m.Called(ctx, provider, assertion))
}

func (m *mockService) Refresh(ctx context.Context, refreshToken string) (*session.Pair, error) {
	args := m.Called(ctx, refreshToken)
	pair, _ := args.Get(0).(*session.Pair)
	return pair, args.Error(1)
}

func (m *mockService) Logout(ctx context.Context, refreshToken string) (string, error) {
	args := m.Called(ctx, refreshToken)
	return args.String(0), args.Error(1)
}

func (m *mockService) ForgotPassword(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

func (m *mockService) ResetPassword(ctx context.Context, resetToken, newPassword, confirmPassword string) (string, error) {
	args := m.Called(ctx, resetToken, newPassword, confirmPassword)
	return args.String(0), args.Error(1)
}

func (m *mockService) ChangePassword(ctx context.Context, accountID ulid.ULID, current, newPassword, confirmPassword string) (string, error) {
	args := m.Called(ctx, accountID, current, newPassword, confirmPassword)
	return args.String(0), args.Error(1)
}

func (m *mockService) CompleteSetupStage(ctx context.Context, accountID ulid.ULID, stage int) (account.Summary, error) {
	args := m.Called(ctx, accountID, stage)
	return args.Get(0).(account.Summary), args.Error(1)
}

func (m *mockService) ResetSetupStage(ctx context.Context, accountID ulid.ULID, stage int) (account.Summary, error) {
	args := m.Called(ctx, accountID, stage)
	return args.Get(0).(account.Summary), args.Error(1)
}

func (m *mockService) Authenticate(accessToken string) (*token.AccessClaims, error) {
	args := m.Called(accessToken)
	claims, _ := args.Get(0).(*token.AccessClaims)
	return claims, args.Error(1)
}
