// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package account

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Origin is the authentication method an account was created with.
// It is fixed for the lifetime of the account.
type Origin string

// Identity origins.
const (
	OriginPassword Origin = "password"
	OriginApple    Origin = "apple"
	OriginGoogle   Origin = "google"
)

// Valid reports whether o is a known origin.
func (o Origin) Valid() bool {
	switch o {
	case OriginPassword, OriginApple, OriginGoogle:
		return true
	}
	return false
}

// Role is the coarse role carried in access tokens.
type Role string

// Roles. Only RoleUser and RolePlayer are assigned by this service; the rest
// are managed elsewhere and are preserved untouched.
const (
	RoleUnverified  Role = "UNVERIFIED"
	RoleUser        Role = "USER"
	RolePlayer      Role = "PLAYER"
	RoleCaptain     Role = "CAPTAIN"
	RoleViceCaptain Role = "VICE_CAPTAIN"
	RoleAdmin       Role = "ADMIN"
)

// SetupStages is the number of onboarding stages an account must complete
// before it may hold RolePlayer.
const SetupStages = 4

// Account is the identity record for one user.
type Account struct {
	ID       ulid.ULID
	PublicID string
	Email    string
	Username string
	FullName string

	// PasswordHash is empty for accounts created through an external provider.
	PasswordHash string
	Origin       Origin
	ExternalID   *string

	EmailVerified         bool
	VerificationCode      *string
	VerificationExpiresAt *time.Time

	// Stages holds the completion flag of each setup stage, index 0 is stage 1.
	Stages [SetupStages]bool
	Role   Role

	FailedAttempts int
	LockedUntil    *time.Time

	ResetTokenHash *string
	ResetExpiresAt *time.Time

	TokenVersion int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPassword reports whether the account can authenticate with a password.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != ""
}

// IsLocked reports whether the account is locked at the given time.
func (a *Account) IsLocked(now time.Time) bool {
	return IsLockedOut(a.LockedUntil, now)
}

// StagesCompleted returns the number of completed setup stages.
func (a *Account) StagesCompleted() int {
	n := 0
	for _, done := range a.Stages {
		if done {
			n++
		}
	}
	return n
}

// SetupComplete reports whether every setup stage is complete.
func (a *Account) SetupComplete() bool {
	return a.StagesCompleted() == SetupStages
}

// CompleteStage marks stage (1-based) complete and promotes a basic account to
// RolePlayer once every stage is done. It reports whether the flag changed.
func (a *Account) CompleteStage(stage int) (bool, error) {
	if err := ValidateStage(stage); err != nil {
		return false, err
	}
	changed := !a.Stages[stage-1]
	a.Stages[stage-1] = true
	if a.SetupComplete() && a.Role == RoleUser {
		a.Role = RolePlayer
	}
	return changed, nil
}

// ResetStage clears stage (1-based) and demotes a player back to RoleUser.
func (a *Account) ResetStage(stage int) error {
	if err := ValidateStage(stage); err != nil {
		return err
	}
	if !a.Stages[stage-1] {
		return Invalid("ACCOUNT_STAGE_NOT_COMPLETE", "setup stage is not complete")
	}
	a.Stages[stage-1] = false
	if a.Role == RolePlayer {
		a.Role = RoleUser
	}
	return nil
}

// IssueVerificationCode stores a fresh one-time code on the account.
func (a *Account) IssueVerificationCode(code string, expiresAt time.Time) {
	a.VerificationCode = &code
	a.VerificationExpiresAt = &expiresAt
}

// MarkVerified records a successful email verification.
func (a *Account) MarkVerified() {
	a.EmailVerified = true
	a.VerificationCode = nil
	a.VerificationExpiresAt = nil
	if a.Role == RoleUnverified {
		a.Role = RoleUser
	}
}

// SetResetToken stores the hash of a pending password reset.
func (a *Account) SetResetToken(hash string, expiresAt time.Time) {
	a.ResetTokenHash = &hash
	a.ResetExpiresAt = &expiresAt
}

// ReplacePassword installs a new hash, clears any pending reset and advances
// the token version so every outstanding refresh token stops verifying.
func (a *Account) ReplacePassword(hash string) {
	a.PasswordHash = hash
	a.ResetTokenHash = nil
	a.ResetExpiresAt = nil
	a.TokenVersion++
}

// Summary is the minimal view of an account returned to callers.
type Summary struct {
	ID              string `json:"id"`
	PublicID        string `json:"squadz_id"`
	Email           string `json:"email"`
	Username        string `json:"username"`
	FullName        string `json:"full_name"`
	Origin          Origin `json:"origin"`
	Role            Role   `json:"role"`
	EmailVerified   bool   `json:"email_verified"`
	SetupComplete   bool   `json:"setup_complete"`
	StagesCompleted int    `json:"setup_stages_completed"`
}

// Summarize builds the caller-facing Summary of a.
func (a *Account) Summarize() Summary {
	return Summary{
		ID:              a.ID.String(),
		PublicID:        a.PublicID,
		Email:           a.Email,
		Username:        a.Username,
		FullName:        a.FullName,
		Origin:          a.Origin,
		Role:            a.Role,
		EmailVerified:   a.EmailVerified,
		SetupComplete:   a.SetupComplete(),
		StagesCompleted: a.StagesCompleted(),
	}
}
