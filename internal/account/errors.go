// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package account

import (
	"errors"
	"time"

	"github.com/samber/oops"
)

// Error kinds. Every error returned to callers of the lifecycle operations
// wraps at most one of these; errors wrapping none are internal failures.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrLocked       = errors.New("account locked")
	ErrExpired      = errors.New("expired")
)

// DefaultPublicMessage is shown to callers when an error carries no public text.
const DefaultPublicMessage = "internal server error"

var kinds = []error{ErrValidation, ErrConflict, ErrUnauthorized, ErrLocked, ErrExpired, ErrNotFound}

// Invalid returns a validation error whose message is safe to show.
func Invalid(code, msg string) error {
	return oops.Code(code).Public(msg).Wrapf(ErrValidation, "%s", msg)
}

// Conflict returns a uniqueness or identity-origin conflict.
func Conflict(code, msg string) error {
	return oops.Code(code).Public(msg).Wrapf(ErrConflict, "%s", msg)
}

// Unauthorized returns a credential or token failure.
func Unauthorized(code, msg string) error {
	return oops.Code(code).Public(msg).Wrapf(ErrUnauthorized, "%s", msg)
}

// Expired returns an error for a code or token past its window.
func Expired(code, msg string) error {
	return oops.Code(code).Public(msg).Wrapf(ErrExpired, "%s", msg)
}

// Locked returns a lockout error reporting when the account unlocks.
func Locked(until time.Time) error {
	msg := "account locked until " + until.UTC().Format(time.RFC3339)
	return oops.Code("AUTH_ACCOUNT_LOCKED").
		With("locked_until", until).
		Public(msg).
		Wrapf(ErrLocked, "%s", msg)
}

// KindOf returns the kind sentinel err wraps, or nil for internal failures.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// PublicMessage returns the caller-facing text of err. Internal failures get
// DefaultPublicMessage so store or network detail never leaks.
func PublicMessage(err error) string {
	if KindOf(err) == nil {
		return DefaultPublicMessage
	}
	return oops.GetPublic(err, DefaultPublicMessage)
}

// LockedUntil extracts the unlock time from a lockout error.
func LockedUntil(err error) (time.Time, bool) {
	if !errors.Is(err, ErrLocked) {
		return time.Time{}, false
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return time.Time{}, false
	}
	until, ok := oopsErr.Context()["locked_until"].(time.Time)
	return until, ok
}
