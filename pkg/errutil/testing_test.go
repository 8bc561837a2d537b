// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package errutil_test

import (
	"errors"
	"testing"

	"github.com/samber/oops"

	"github.com/squadz/squadz/pkg/errutil"
)

func TestAssertErrorCode(t *testing.T) {
	errutil.AssertErrorCode(t, oops.Code("ACCOUNT_NOT_FOUND").Errorf("no account"), "ACCOUNT_NOT_FOUND")

	wrapped := oops.With("operation", "lookup").Wrap(oops.Code("ACCOUNT_NOT_FOUND").Errorf("no account"))
	errutil.AssertErrorCode(t, wrapped, "ACCOUNT_NOT_FOUND")
}

func TestAssertErrorContext(t *testing.T) {
	inner := oops.With("squadz_id", "SQZ-ABCDEFGH").Wrap(errors.New("boom"))
	err := oops.Code("AUTH_LOGIN_FAILED").With("operation", "verify password").Wrap(inner)

	errutil.AssertErrorContext(t, err, "operation", "verify password")
	errutil.AssertErrorContext(t, err, "squadz_id", "SQZ-ABCDEFGH")
}
