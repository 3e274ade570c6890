// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// User is an account as seen by the authentication core.
// PasswordHash must only ever come from PasswordHasher.Hash.
type User struct {
	ID             ulid.ULID
	Email          string
	PasswordHash   string
	ResetTokenHash *string
	ResetIssuedAt  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewUser creates a validated User with a fresh ID.
func NewUser(email, passwordHash string) (*User, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now()
	return &User{
		ID:           ulid.Make(),
		Email:        normalized,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeEmail trims and lower-cases an address and checks its syntax.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", oops.Code("USER_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", oops.Code("USER_INVALID_EMAIL").With("email", email).Errorf("invalid email address")
	}
	return email, nil
}

// Field names a user attribute the core is allowed to change.
type Field string

// Mutable user fields.
const (
	FieldPasswordHash  Field = "password_hash"
	FieldResetToken    Field = "reset_token"
	FieldResetIssuedAt Field = "reset_issued_at"
)

// UserChanges maps mutable fields to new values. A nil value clears the field.
// FieldPasswordHash and FieldResetToken take a string; FieldResetIssuedAt takes
// a time.Time.
type UserChanges map[Field]any

// Validate rejects unknown fields and values of the wrong type.
func (c UserChanges) Validate() error {
	if len(c) == 0 {
		return oops.Code("USER_NO_CHANGES").Errorf("no fields to update")
	}
	for f, v := range c {
		switch f {
		case FieldPasswordHash:
			s, ok := v.(string)
			if !ok || s == "" {
				return oops.Code("USER_INVALID_FIELD").With("field", string(f)).Errorf("password hash must be a non-empty string")
			}
		case FieldResetToken:
			if _, ok := v.(string); v != nil && !ok {
				return oops.Code("USER_INVALID_FIELD").With("field", string(f)).Errorf("reset token must be a string or nil")
			}
		case FieldResetIssuedAt:
			if _, ok := v.(time.Time); v != nil && !ok {
				return oops.Code("USER_INVALID_FIELD").With("field", string(f)).Errorf("reset issued at must be a time or nil")
			}
		default:
			return oops.Code("USER_UNKNOWN_FIELD").With("field", string(f)).Errorf("unknown user field %q", f)
		}
	}
	return nil
}

// Apply writes validated changes onto u. Callers run Validate first.
func (c UserChanges) Apply(u *User, now time.Time) {
	for f, v := range c {
		switch f {
		case FieldPasswordHash:
			u.PasswordHash = v.(string)
		case FieldResetToken:
			if v == nil {
				u.ResetTokenHash = nil
			} else {
				s := v.(string)
				u.ResetTokenHash = &s
			}
		case FieldResetIssuedAt:
			if v == nil {
				u.ResetIssuedAt = nil
			} else {
				t := v.(time.Time)
				u.ResetIssuedAt = &t
			}
		}
	}
	u.UpdatedAt = now
}

// UserRepository manages user persistence.
// Lookups return ErrNotFound (wrapped) when nothing matches.
type UserRepository interface {
	// Create stores a new user. Returns ErrEmailTaken on a duplicate email.
	Create(ctx context.Context, user *User) error

	// FindByEmail retrieves a user by email (case-insensitive).
	FindByEmail(ctx context.Context, email string) (*User, error)

	// FindByID retrieves a user by ID.
	FindByID(ctx context.Context, id ulid.ULID) (*User, error)

	// FindByResetToken retrieves the user holding the given reset token hash.
	FindByResetToken(ctx context.Context, tokenHash string) (*User, error)

	// Update applies an enumerated set of field changes.
	Update(ctx context.Context, id ulid.ULID, changes UserChanges) error

	// ConsumeResetToken atomically replaces the password hash and clears the
	// reset token of the user holding tokenHash, provided the token was issued
	// after issuedAfter (zero means no bound). Returns the updated user, or
	// ErrNotFound if no live token matched.
	ConsumeResetToken(ctx context.Context, tokenHash, newPasswordHash string, issuedAfter time.Time) (*User, error)
}
