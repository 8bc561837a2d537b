// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

// Package account holds the credential domain: accounts, refresh sessions,
// lockout rules, input validation and the identifier, code and reset-token
// generators.
//
// # Error kinds
//
// Errors produced here and by the lifecycle services wrap one of ErrValidation,
// ErrConflict, ErrUnauthorized, ErrLocked, ErrExpired or ErrNotFound. Use
// KindOf to classify and PublicMessage for caller-facing text.
//
// # Persistence
//
// Repository, SessionRepository and Transactor are implemented by
// internal/account/postgres and, for tests, internal/account/accounttest.
package account
