// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package auth provides the authentication strategy subsystem for Warden.
//
// # Strategies
//
// An Authenticator answers two questions for the HTTP layer: does this path
// need authentication (RequireAuth) and who is making this request
// (ResolvePrincipal). Three strategies exist:
//   - NullAuth - authentication disabled
//   - BasicAuth - HTTP Basic credentials checked against the UserRepository
//   - SessionAuth - a session cookie resolved through a SessionStore
//
// Session expiry and persistence are SessionStore policies, not strategies.
// See the memory and postgres subpackages.
//
// # Failures
//
// ResolvePrincipal never fails for missing, malformed or wrong credentials; it
// returns a nil Principal. Only ErrStoreUnavailable crosses the boundary.
// Every failure wraps one of the sentinels in errors.go with an oops code.
//
// # Services
//
//   - Service - login, logout, registration, reset flow
//   - ResetTokenManager - single-use password reset tokens
package auth
