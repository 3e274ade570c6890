// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import "errors"

// ErrNotFound is returned by repositories when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Failure sentinels. Implementations wrap these with an oops code so callers can
// match with errors.Is and log the code.
var (
	// ErrMalformedHeader means an Authorization header was present but undecodable.
	ErrMalformedHeader = errors.New("malformed authorization header")

	// ErrInvalidCredentials means the identifier and secret do not match.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnknownUser means no account exists for the given identifier.
	ErrUnknownUser = errors.New("unknown user")

	// ErrSessionNotFound means the session token is absent or was destroyed.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired means the session outlived its TTL.
	ErrSessionExpired = errors.New("session expired")

	// ErrInvalidToken means the reset token is absent, consumed, or stale.
	ErrInvalidToken = errors.New("invalid reset token")

	// ErrStoreUnavailable marks a persistence collaborator failure.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidUser means a session was requested for a zero user id.
	ErrInvalidUser = errors.New("invalid user")

	// ErrEmailTaken means registration hit an existing email.
	ErrEmailTaken = errors.New("email already registered")

	// ErrEmptyPassword means an empty password was given to the hasher.
	ErrEmptyPassword = errors.New("password cannot be empty")
)

// Error codes attached to the sentinels above.
const (
	CodeMalformedHeader    = "AUTH_MALFORMED_HEADER"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeUnknownUser        = "AUTH_UNKNOWN_USER"
	CodeSessionNotFound    = "SESSION_NOT_FOUND"
	CodeSessionExpired     = "SESSION_EXPIRED"
	CodeInvalidToken       = "RESET_TOKEN_INVALID"
	CodeStoreUnavailable   = "STORE_UNAVAILABLE"
	CodeInvalidUser        = "SESSION_INVALID_USER"
	CodeEmailTaken         = "USER_EMAIL_TAKEN"
	CodeEmptyPassword      = "AUTH_EMPTY_PASSWORD"
)
