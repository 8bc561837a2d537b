// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

// Package accounttest provides an in-memory credential store for tests.
package accounttest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/squadz/squadz/internal/account"
)

// Store is an in-memory account.Repository, account.SessionRepository and
// account.Transactor. Transactions are serialized and roll back by restoring
// a snapshot taken when they began.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex

	accounts map[ulid.ULID]*account.Account
	sessions map[ulid.ULID]*account.RefreshSession

	// FailNext, when set, is returned by the next repository call and cleared.
	FailNext error
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[ulid.ULID]*account.Account),
		sessions: make(map[ulid.ULID]*account.RefreshSession),
	}
}

// Accounts returns the repository view of the store.
func (s *Store) Accounts() account.Repository { return (*accountRepo)(s) }

// Sessions returns the session repository view of the store.
func (s *Store) Sessions() account.SessionRepository { return (*sessionRepo)(s) }

type txKey struct{}

// InTransaction implements account.Transactor. A nested call joins the
// outer transaction.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	accounts, sessions := s.snapshot()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.accounts, s.sessions = accounts, sessions
		s.mu.Unlock()
		return err
	}
	return nil
}

// Account returns a copy of the stored account, or nil.
func (s *Store) Account(id ulid.ULID) *account.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		return cloneAccount(a)
	}
	return nil
}

// AccountByEmail returns a copy of the stored account with email, or nil.
func (s *Store) AccountByEmail(email string) *account.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, email) {
			return cloneAccount(a)
		}
	}
	return nil
}

// Put stores a copy of acct, replacing any account with the same ID.
func (s *Store) Put(acct *account.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[acct.ID] = cloneAccount(acct)
}

// SessionsOf returns copies of every session held by accountID.
func (s *Store) SessionsOf(accountID ulid.ULID) []*account.RefreshSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*account.RefreshSession
	for _, sess := range s.sessions {
		if sess.AccountID == accountID {
			c := *sess
			out = append(out, &c)
		}
	}
	return out
}

func (s *Store) snapshot() (map[ulid.ULID]*account.Account, map[ulid.ULID]*account.RefreshSession) {
	accounts := make(map[ulid.ULID]*account.Account, len(s.accounts))
	for id, a := range s.accounts {
		accounts[id] = cloneAccount(a)
	}
	sessions := make(map[ulid.ULID]*account.RefreshSession, len(s.sessions))
	for id, sess := range s.sessions {
		c := *sess
		sessions[id] = &c
	}
	return accounts, sessions
}

// injected returns and clears FailNext. Caller holds mu.
func (s *Store) injected() error {
	err := s.FailNext
	s.FailNext = nil
	return err
}

type accountRepo Store

func (r *accountRepo) store() *Store { return (*Store)(r) }

func (r *accountRepo) Create(_ context.Context, acct *account.Account) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(); err != nil {
		return err
	}
	for _, a := range s.accounts {
		switch {
		case strings.EqualFold(a.Email, acct.Email):
			return account.Conflict("ACCOUNT_EMAIL_TAKEN", "email already registered")
		case strings.EqualFold(a.Username, acct.Username):
			return account.Conflict("ACCOUNT_USERNAME_TAKEN", "username already taken")
		case strings.EqualFold(a.PublicID, acct.PublicID):
			return account.Conflict("ACCOUNT_PUBLIC_ID_TAKEN", "public identifier already taken")
		}
	}
	s.accounts[acct.ID] = cloneAccount(acct)
	return nil
}

func (r *accountRepo) GetByID(_ context.Context, id ulid.ULID) (*account.Account, error) {
	return r.find(func(a *account.Account) bool { return a.ID == id }, "id", id.String())
}

func (r *accountRepo) GetByEmail(_ context.Context, email string) (*account.Account, error) {
	return r.find(func(a *account.Account) bool { return strings.EqualFold(a.Email, email) }, "email", email)
}

func (r *accountRepo) GetByPublicID(_ context.Context, publicID string) (*account.Account, error) {
	return r.find(func(a *account.Account) bool { return strings.EqualFold(a.PublicID, publicID) }, "public_id", publicID)
}

func (r *accountRepo) LockByID(ctx context.Context, id ulid.ULID) (*account.Account, error) {
	return r.GetByID(ctx, id)
}

func (r *accountRepo) EmailExists(_ context.Context, email string) (bool, error) {
	return r.exists(func(a *account.Account) bool { return strings.EqualFold(a.Email, email) })
}

func (r *accountRepo) UsernameExists(_ context.Context, username string) (bool, error) {
	return r.exists(func(a *account.Account) bool { return strings.EqualFold(a.Username, username) })
}

func (r *accountRepo) PublicIDExists(_ context.Context, publicID string) (bool, error) {
	return r.exists(func(a *account.Account) bool { return strings.EqualFold(a.PublicID, publicID) })
}

func (r *accountRepo) Update(_ context.Context, acct *account.Account) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(); err != nil {
		return err
	}
	if _, ok := s.accounts[acct.ID]; !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").With("id", acct.ID.String()).Wrap(account.ErrNotFound)
	}
	s.accounts[acct.ID] = cloneAccount(acct)
	return nil
}

func (r *accountRepo) RecordLoginFailure(_ context.Context, id ulid.ULID, now time.Time) (account.LoginFailure, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(); err != nil {
		return account.LoginFailure{}, err
	}
	a, ok := s.accounts[id]
	if !ok {
		return account.LoginFailure{}, oops.Code("ACCOUNT_NOT_FOUND").With("id", id.String()).Wrap(account.ErrNotFound)
	}
	a.FailedAttempts, a.LockedUntil = account.NextFailure(a.FailedAttempts, a.LockedUntil, now)
	return account.LoginFailure{FailedAttempts: a.FailedAttempts, LockedUntil: cloneTime(a.LockedUntil)}, nil
}

func (r *accountRepo) ResetLoginFailures(_ context.Context, id ulid.ULID) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(); err != nil {
		return err
	}
	a, ok := s.accounts[id]
	if !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").With("id", id.String()).Wrap(account.ErrNotFound)
	}
	a.FailedAttempts = 0
	a.LockedUntil = nil
	return nil
}

func (r *accountRepo) ListPendingResets(_ context.Context, now time.Time) ([]*account.Account, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(); err != nil {
		return nil, err
	}
	var out []*account.Account
	for _, a := range s.accounts {
		if a.ResetTokenHash != nil && a.ResetExpiresAt != nil && a.ResetExpiresAt.After(now) {
			out = append(out, cloneAccount(a))
		}
	}
	return out, nil
}

func (r *accountRepo) find(match func(*account.Account) bool, key, value string) (*account.Account, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(); err != nil {
		return nil, err
	}
	for _, a := range s.accounts {
		if match(a) {
			return cloneAccount(a), nil
		}
	}
	return nil, oops.Code("ACCOUNT_NOT_FOUND").With(key, value).Wrap(account.ErrNotFound)
}

func (r *accountRepo) exists(match func(*account.Account) bool) (bool, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(); err != nil {
		return false, err
	}
	for _, a := range s.accounts {
		if match(a) {
			return true, nil
		}
	}
	return false, nil
}

type sessionRepo Store

func (r *sessionRepo) store() *Store { return (*Store)(r) }

func (r *sessionRepo) Create(_ context.Context, session *account.RefreshSession) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(); err != nil {
		return err
	}
	c := *session
	s.sessions[session.ID] = &c
	return nil
}

func (r *sessionRepo) ListByAccountVersion(_ context.Context, accountID ulid.ULID, version int) ([]*account.RefreshSession, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(); err != nil {
		return nil, err
	}
	var out []*account.RefreshSession
	for _, sess := range s.sessions {
		if sess.AccountID == accountID && sess.TokenVersion == version {
			c := *sess
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *sessionRepo) Delete(_ context.Context, id ulid.ULID) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(); err != nil {
		return err
	}
	if _, ok := s.sessions[id]; !ok {
		return oops.Code("SESSION_NOT_FOUND").With("id", id.String()).Wrap(account.ErrNotFound)
	}
	delete(s.sessions, id)
	return nil
}

func (r *sessionRepo) DeleteByAccount(_ context.Context, accountID ulid.ULID) (int64, error) {
	return r.deleteWhere(func(sess *account.RefreshSession) bool { return sess.AccountID == accountID })
}

func (r *sessionRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	return r.deleteWhere(func(sess *account.RefreshSession) bool { return sess.IsExpiredAt(now) })
}

func (r *sessionRepo) deleteWhere(match func(*account.RefreshSession) bool) (int64, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(); err != nil {
		return 0, err
	}
	var n int64
	for id, sess := range s.sessions {
		if match(sess) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

func cloneAccount(a *account.Account) *account.Account {
	c := *a
	c.ExternalID = cloneString(a.ExternalID)
	c.VerificationCode = cloneString(a.VerificationCode)
	c.VerificationExpiresAt = cloneTime(a.VerificationExpiresAt)
	c.LockedUntil = cloneTime(a.LockedUntil)
	c.ResetTokenHash = cloneString(a.ResetTokenHash)
	c.ResetExpiresAt = cloneTime(a.ResetExpiresAt)
	return &c
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

var (
	_ account.Repository        = (*accountRepo)(nil)
	_ account.SessionRepository = (*sessionRepo)(nil)
	_ account.Transactor        = (*Store)(nil)
)
