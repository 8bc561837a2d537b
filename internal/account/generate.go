// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package account

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/samber/oops"
)

// Public identifier format: PublicIDPrefix + "-" + publicIDLength characters.
const (
	PublicIDPrefix   = "SQZ"
	publicIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	publicIDLength   = 8
)

// Verification codes and reset tokens.
const (
	VerificationCodeDigits = 6
	VerificationCodeExpiry = 3 * time.Minute

	ResetTokenBytes  = 32 // 64 hex chars
	ResetTokenExpiry = time.Hour
)

// ExistsFunc reports whether a candidate value is already taken.
type ExistsFunc func(ctx context.Context, candidate string) (bool, error)

// GeneratePublicID draws identifiers until exists reports one as free.
// It retries without bound and stops only when ctx is done or exists fails.
func GeneratePublicID(ctx context.Context, exists ExistsFunc) (string, error) {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", oops.Code("PUBLIC_ID_GENERATE_FAILED").With("attempt", attempt).Wrap(err)
		}
		suffix, err := randomString(publicIDAlphabet, publicIDLength)
		if err != nil {
			return "", oops.Code("PUBLIC_ID_GENERATE_FAILED").Wrap(err)
		}
		candidate := PublicIDPrefix + "-" + suffix
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", oops.Code("PUBLIC_ID_GENERATE_FAILED").
				With("operation", "check uniqueness").
				Wrap(err)
		}
		if !taken {
			return candidate, nil
		}
	}
}

// GenerateVerificationCode returns a uniformly random 6-digit code and its expiry.
func GenerateVerificationCode(now time.Time) (string, time.Time, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", time.Time{}, oops.Code("VERIFICATION_CODE_GENERATE_FAILED").Wrap(err)
	}
	return fmt.Sprintf("%0*d", VerificationCodeDigits, n.Int64()), now.Add(VerificationCodeExpiry), nil
}

// CodeExpired reports whether a code expiring at expiresAt is past its window at now.
func CodeExpired(expiresAt *time.Time, now time.Time) bool {
	return expiresAt == nil || now.After(*expiresAt)
}

// GenerateResetToken creates a secure random reset token, its hash and expiry.
// The plaintext goes to the user; only the hash is stored.
func GenerateResetToken(now time.Time) (token, hash string, expiresAt time.Time, err error) {
	b := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(b); err != nil {
		return "", "", time.Time{}, oops.Code("RESET_TOKEN_GENERATE_FAILED").
			With("requested_bytes", ResetTokenBytes).
			Wrap(err)
	}
	token = hex.EncodeToString(b)
	return token, HashToken(token), now.Add(ResetTokenExpiry), nil
}

func randomString(alphabet string, n int) (string, error) {
	limit := big.NewInt(int64(len(alphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err //nolint:wrapcheck // callers attach the code
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}
