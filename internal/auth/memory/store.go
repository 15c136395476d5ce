// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

// Package memory provides in-process implementations of the auth repositories
// for development and tests. Data does not survive a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/authgate/authgate/internal/auth"
)

// Store holds users, tokens, and reset records behind one lock.
type Store struct {
	mu     sync.RWMutex
	users  map[ulid.ULID]auth.User
	tokens map[ulid.ULID]auth.AccessToken
	resets map[string]auth.PasswordResetRecord
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		users:  make(map[ulid.ULID]auth.User),
		tokens: make(map[ulid.ULID]auth.AccessToken),
		resets: make(map[string]auth.PasswordResetRecord),
	}
}

// Users returns the user repository view of the store.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// Tokens returns the token repository view of the store.
func (s *Store) Tokens() *TokenRepository { return &TokenRepository{s: s} }

// Resets returns the reset repository view of the store.
func (s *Store) Resets() *ResetRepository { return &ResetRepository{s: s} }

// Transactor returns a Transactor that rolls the store back when fn fails.
func (s *Store) Transactor() *Transactor { return &Transactor{s: s} }

// UserRepository implements auth.UserRepository.
type UserRepository struct{ s *Store }

var _ auth.UserRepository = (*UserRepository)(nil)

// Create stores a new user.
func (r *UserRepository) Create(_ context.Context, user *auth.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	email := auth.NormalizeEmail(user.Email)
	for _, u := range r.s.users {
		if u.Email == email {
			return oops.Code("AUTH_DUPLICATE_EMAIL").With("email", email).Wrap(auth.ErrDuplicateEmail)
		}
	}
	stored := copyUser(*user)
	stored.Email = email
	r.s.users[user.ID] = stored
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	out := copyUser(u)
	return &out, nil
}

// GetByEmail retrieves a user by email (case-insensitive).
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	email = auth.NormalizeEmail(email)
	for _, u := range r.s.users {
		if u.Email == email {
			out := copyUser(u)
			return &out, nil
		}
	}
	return nil, oops.Code("USER_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
}

// Update updates the name and avatar.
func (r *UserRepository) Update(_ context.Context, user *auth.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.users[user.ID]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", user.ID.String()).Wrap(auth.ErrNotFound)
	}
	existing.Name = user.Name
	existing.Avatar = copyString(user.Avatar)
	existing.UpdatedAt = time.Now()
	r.s.users[user.ID] = existing
	return nil
}

// RecordLoginFailure increments the failure counter under the store lock.
func (r *UserRepository) RecordLoginFailure(_ context.Context, id ulid.ULID, now time.Time) (int, *time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.users[id]
	if !ok {
		return 0, nil, oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	existing.RecordFailure(now)
	r.s.users[id] = existing
	return existing.FailedAttempts, copyTime(existing.LockedUntil), nil
}

// ClearLoginFailures resets the failure counter and lockout.
func (r *UserRepository) ClearLoginFailures(_ context.Context, id ulid.ULID, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.users[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	existing.RecordSuccess(now)
	r.s.users[id] = existing
	return nil
}

// UpdatePassword updates only the password hash.
func (r *UserRepository) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.users[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	existing.PasswordHash = passwordHash
	existing.UpdatedAt = time.Now()
	r.s.users[id] = existing
	return nil
}

// MarkEmailVerified sets the verification timestamp once.
func (r *UserRepository) MarkEmailVerified(_ context.Context, id ulid.ULID, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.users[id]
	if !ok {
		return false, oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	if existing.EmailVerifiedAt != nil {
		return false, nil
	}
	existing.EmailVerifiedAt = &at
	r.s.users[id] = existing
	return true, nil
}

// TokenRepository implements auth.TokenRepository.
type TokenRepository struct{ s *Store }

var _ auth.TokenRepository = (*TokenRepository)(nil)

// Create stores a new access token.
func (r *TokenRepository) Create(_ context.Context, token *auth.AccessToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[token.UserID]; !ok {
		return oops.Code("TOKEN_CREATE_FAILED").
			With("user_id", token.UserID.String()).
			Errorf("user does not exist")
	}
	r.s.tokens[token.ID] = copyToken(*token)
	return nil
}

// GetByID retrieves a token by ID.
func (r *TokenRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.AccessToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.tokens[id]
	if !ok {
		return nil, oops.Code("TOKEN_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	out := copyToken(t)
	return &out, nil
}

// ListByUser retrieves all tokens for a user, newest first.
func (r *TokenRepository) ListByUser(_ context.Context, userID ulid.ULID) ([]*auth.AccessToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*auth.AccessToken
	for _, t := range r.s.tokens {
		if t.UserID == userID {
			c := copyToken(t)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Compare(out[j].ID) > 0 })
	return out, nil
}

// UpdateLastUsed sets the LastUsedAt timestamp.
func (r *TokenRepository) UpdateLastUsed(_ context.Context, id ulid.ULID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tokens[id]
	if !ok {
		return oops.Code("TOKEN_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	t.LastUsedAt = &at
	r.s.tokens[id] = t
	return nil
}

// Delete removes a token by ID.
func (r *TokenRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tokens[id]; !ok {
		return oops.Code("TOKEN_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	delete(r.s.tokens, id)
	return nil
}

// DeleteByUser removes all tokens for a user.
func (r *TokenRepository) DeleteByUser(_ context.Context, userID ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, t := range r.s.tokens {
		if t.UserID == userID {
			delete(r.s.tokens, id)
		}
	}
	return nil
}

// DeleteExpired removes tokens expired at now.
func (r *TokenRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, t := range r.s.tokens {
		if t.IsExpiredAt(now) {
			delete(r.s.tokens, id)
			n++
		}
	}
	return n, nil
}

// ResetRepository implements auth.PasswordResetRepository.
type ResetRepository struct{ s *Store }

var _ auth.PasswordResetRepository = (*ResetRepository)(nil)

// Upsert stores the record, replacing any record for the same email.
func (r *ResetRepository) Upsert(_ context.Context, record *auth.PasswordResetRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.resets[auth.NormalizeEmail(record.Email)] = *record
	return nil
}

// GetByEmail retrieves the record for an email.
func (r *ResetRepository) GetByEmail(_ context.Context, email string) (*auth.PasswordResetRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rec, ok := r.s.resets[auth.NormalizeEmail(email)]
	if !ok {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return &rec, nil
}

// Consume removes the record for email if it still holds tokenHash and was
// created after notBefore.
func (r *ResetRepository) Consume(_ context.Context, email, tokenHash string, notBefore time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	email = auth.NormalizeEmail(email)
	rec, ok := r.s.resets[email]
	if !ok || rec.TokenHash != tokenHash || !rec.CreatedAt.After(notBefore) {
		return false, nil
	}
	delete(r.s.resets, email)
	return true, nil
}

// DeleteCreatedBefore removes records created before cutoff.
func (r *ResetRepository) DeleteCreatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for email, rec := range r.s.resets {
		if rec.CreatedAt.Before(cutoff) {
			delete(r.s.resets, email)
			n++
		}
	}
	return n, nil
}

// Transactor implements auth.Transactor by snapshotting the store and
// restoring it when fn fails. It does not isolate concurrent writers.
type Transactor struct {
	s  *Store
	mu sync.Mutex
}

var _ auth.Transactor = (*Transactor)(nil)

// InTransaction runs fn and rolls back the store if fn returns an error.
func (t *Transactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := t.s.snapshot()
	if err := fn(ctx); err != nil {
		t.s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	users  map[ulid.ULID]auth.User
	tokens map[ulid.ULID]auth.AccessToken
	resets map[string]auth.PasswordResetRecord
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{
		users:  make(map[ulid.ULID]auth.User, len(s.users)),
		tokens: make(map[ulid.ULID]auth.AccessToken, len(s.tokens)),
		resets: make(map[string]auth.PasswordResetRecord, len(s.resets)),
	}
	for k, v := range s.users {
		snap.users[k] = copyUser(v)
	}
	for k, v := range s.tokens {
		snap.tokens[k] = copyToken(v)
	}
	for k, v := range s.resets {
		snap.resets[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = snap.users
	s.tokens = snap.tokens
	s.resets = snap.resets
}

func copyUser(u auth.User) auth.User {
	u.Avatar = copyString(u.Avatar)
	u.EmailVerifiedAt = copyTime(u.EmailVerifiedAt)
	u.LockedUntil = copyTime(u.LockedUntil)
	return u
}

func copyToken(t auth.AccessToken) auth.AccessToken {
	t.Abilities = append([]string(nil), t.Abilities...)
	t.LastUsedAt = copyTime(t.LastUsedAt)
	return t
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
