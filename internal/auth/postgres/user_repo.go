// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/warden-auth/warden/internal/auth"
)

const userColumns = `id, email, password_hash, reset_token_hash, reset_issued_at, created_at, updated_at`

// fieldColumns maps the enumerated mutable fields to their columns, in the
// order SET clauses are emitted.
var fieldColumns = []struct {
	field  auth.Field
	column string
}{
	{auth.FieldPasswordHash, "password_hash"},
	{auth.FieldResetToken, "reset_token_hash"},
	{auth.FieldResetIssuedAt, "reset_issued_at"},
}

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create stores a new user.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		user.ID.String(),
		user.Email,
		user.PasswordHash,
		user.ResetTokenHash,
		user.ResetIssuedAt,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code(auth.CodeEmailTaken).
				With("email", user.Email).
				Wrap(auth.ErrEmailTaken)
		}
		return auth.StoreUnavailable("insert user", err)
	}
	return nil
}

// FindByEmail retrieves a user by email (case-insensitive).
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`, strings.TrimSpace(email))

	return r.findOne(row, "get user by email")
}

// FindByID retrieves a user by ID.
func (r *UserRepository) FindByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id.String())

	return r.findOne(row, "get user by id")
}

// FindByResetToken retrieves the user holding a reset token hash.
func (r *UserRepository) FindByResetToken(ctx context.Context, tokenHash string) (*auth.User, error) {
	if tokenHash == "" {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE reset_token_hash = $1
	`, tokenHash)

	return r.findOne(row, "get user by reset token")
}

// Update applies an enumerated set of field changes.
func (r *UserRepository) Update(ctx context.Context, id ulid.ULID, changes auth.UserChanges) error {
	if err := changes.Validate(); err != nil {
		return err
	}

	sets := make([]string, 0, len(changes)+1)
	args := []any{id.String()}
	for _, fc := range fieldColumns {
		v, ok := changes[fc.field]
		if !ok {
			continue
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", fc.column, len(args)))
	}
	args = append(args, time.Now())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))

	//nolint:gosec // G201: column names come from the fixed fieldColumns table
	result, err := r.db.Exec(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = $1`, args...)
	if err != nil {
		return auth.StoreUnavailable("update user", err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("user_id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// ConsumeResetToken swaps the password hash and clears the token in one
// statement, so concurrent consumers of the same token see exactly one match.
func (r *UserRepository) ConsumeResetToken(ctx context.Context, tokenHash, newPasswordHash string, issuedAfter time.Time) (*auth.User, error) {
	if tokenHash == "" || newPasswordHash == "" {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}

	var bound *time.Time
	if !issuedAfter.IsZero() {
		bound = &issuedAfter
	}

	row := r.db.QueryRow(ctx, `
		UPDATE users
		SET password_hash = $2, reset_token_hash = NULL, reset_issued_at = NULL, updated_at = $3
		WHERE reset_token_hash = $1
		  AND ($4::timestamptz IS NULL OR reset_issued_at > $4)
		RETURNING `+userColumns+`
	`, tokenHash, newPasswordHash, time.Now(), bound)

	return r.findOne(row, "consume reset token")
}

func (r *UserRepository) findOne(row pgx.Row, operation string) (*auth.User, error) {
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("operation", operation).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, auth.StoreUnavailable(operation, err)
	}
	return user, nil
}

// scanUser scans a single row into a User.
// Callers are responsible for handling pgx.ErrNoRows.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr          string
		email          string
		passwordHash   string
		resetTokenHash *string
		resetIssuedAt  *time.Time
		createdAt      time.Time
		updatedAt      time.Time
	)

	if err := row.Scan(&idStr, &email, &passwordHash, &resetTokenHash, &resetIssuedAt, &createdAt, &updatedAt); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with operation context
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").
			With("operation", "parse user id").
			With("id", idStr).
			Wrap(err)
	}

	return &auth.User{
		ID:             id,
		Email:          email,
		PasswordHash:   passwordHash,
		ResetTokenHash: resetTokenHash,
		ResetIssuedAt:  resetIssuedAt,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
