// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

// Package notify delivers account notifications: verification codes,
// password reset tokens and lockout notices.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// Notifier is the delivery collaborator of the account lifecycle. Each call
// reports whether delivery was accepted; failures are returned, never
// dropped.
type Notifier interface {
	SendVerificationCode(ctx context.Context, email, code, publicID string) error
	SendPasswordReset(ctx context.Context, email, rawToken string) error
	SendLockoutNotice(ctx context.Context, email string, unlockAt time.Time) error
}

// Kind names a notification type.
type Kind string

// Notification kinds.
const (
	KindVerificationCode Kind = "verification_code"
	KindPasswordReset    Kind = "password_reset"
	KindLockoutNotice    Kind = "lockout_notice"
)

// Message is the payload published for the mail worker.
type Message struct {
	Kind       Kind       `json:"kind"`
	Email      string     `json:"email"`
	PublicID   string     `json:"squadz_id,omitempty"`
	Code       string     `json:"code,omitempty"`
	ResetToken string     `json:"reset_token,omitempty"`
	UnlockAt   *time.Time `json:"unlock_at,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// LogNotifier records notifications in the log instead of delivering them.
// Secrets are never logged, so it is only useful where delivery is not
// needed.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// SendVerificationCode implements Notifier.
func (n *LogNotifier) SendVerificationCode(ctx context.Context, email, _, publicID string) error {
	n.logger.InfoContext(ctx, "notification not delivered",
		"kind", KindVerificationCode, "email", email, "squadz_id", publicID)
	return nil
}

// SendPasswordReset implements Notifier.
func (n *LogNotifier) SendPasswordReset(ctx context.Context, email, _ string) error {
	n.logger.InfoContext(ctx, "notification not delivered", "kind", KindPasswordReset, "email", email)
	return nil
}

// SendLockoutNotice implements Notifier.
func (n *LogNotifier) SendLockoutNotice(ctx context.Context, email string, unlockAt time.Time) error {
	n.logger.InfoContext(ctx, "notification not delivered",
		"kind", KindLockoutNotice, "email", email, "unlock_at", unlockAt)
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
