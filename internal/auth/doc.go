// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

// Package auth is the account lifecycle: registration with email
// verification, password and external-provider sign-in, refresh token
// rotation, logout, password reset and change, and setup-stage gating.
//
// Every operation validates its input first, then reads and mutates the
// credential store through account.Repository and account.Transactor, and
// calls the notifier only after the mutation has committed. Errors wrap the
// kind sentinels of package account; Refresh is the exception and collapses
// every failure into one generic unauthorized error.
package auth
