// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package account

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Input constraints.
const (
	MinFullNameLength = 2
	MaxFullNameLength = 100
	MinUsernameLength = 2
	MaxUsernameLength = 30
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	codeRegex     = regexp.MustCompile(`^\d{6}$`)
)

const passwordSpecials = "@$!%*?&"

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks basic address syntax. A display name is not allowed.
func ValidateEmail(email string) error {
	if email == "" {
		return Invalid("ACCOUNT_INVALID_EMAIL", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return Invalid("ACCOUNT_INVALID_EMAIL", "email must be a valid address")
	}
	return nil
}

// ValidateFullName checks the display name length.
func ValidateFullName(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n < MinFullNameLength {
		return Invalid("ACCOUNT_INVALID_FULL_NAME",
			fmt.Sprintf("full name must be at least %d characters", MinFullNameLength))
	}
	if n > MaxFullNameLength {
		return Invalid("ACCOUNT_INVALID_FULL_NAME",
			fmt.Sprintf("full name must be at most %d characters", MaxFullNameLength))
	}
	return nil
}

// ValidateUsername validates a username against rules.
// Username requirements:
// - Length: MinUsernameLength to MaxUsernameLength characters
// - Can contain only letters (a-z, A-Z), numbers (0-9), and underscores (_)
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLength {
		return Invalid("ACCOUNT_INVALID_USERNAME",
			fmt.Sprintf("username must be at least %d characters", MinUsernameLength))
	}
	if len(username) > MaxUsernameLength {
		return Invalid("ACCOUNT_INVALID_USERNAME",
			fmt.Sprintf("username must be at most %d characters", MaxUsernameLength))
	}
	if !usernameRegex.MatchString(username) {
		return Invalid("ACCOUNT_INVALID_USERNAME",
			"username can only contain letters, numbers, and underscores")
	}
	return nil
}

// ValidatePassword enforces password strength: length bounds plus at least
// one lowercase letter, uppercase letter, digit and one of @$!%*?&.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return Invalid("ACCOUNT_WEAK_PASSWORD",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > MaxPasswordLength {
		return Invalid("ACCOUNT_WEAK_PASSWORD",
			fmt.Sprintf("password must be at most %d characters", MaxPasswordLength))
	}
	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	if !lower || !upper || !digit || !special {
		return Invalid("ACCOUNT_WEAK_PASSWORD",
			"password must contain at least 1 uppercase, 1 lowercase, 1 number, and 1 special character")
	}
	return nil
}

// ValidatePasswordPair validates a new password and its confirmation.
func ValidatePasswordPair(password, confirm string) error {
	if password != confirm {
		return Invalid("ACCOUNT_PASSWORD_MISMATCH", "passwords do not match")
	}
	return ValidatePassword(password)
}

// ValidateVerificationCode checks the one-time code format.
func ValidateVerificationCode(code string) error {
	if !codeRegex.MatchString(code) {
		return Invalid("ACCOUNT_INVALID_CODE", "verification code must be 6 digits")
	}
	return nil
}

// ValidateStage checks that stage is a setup stage number.
func ValidateStage(stage int) error {
	if stage < 1 || stage > SetupStages {
		return Invalid("ACCOUNT_INVALID_STAGE",
			fmt.Sprintf("setup stage must be between 1 and %d", SetupStages))
	}
	return nil
}
