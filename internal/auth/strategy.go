// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Strategy names accepted by NewAuthenticator.
const (
	StrategyNone    = "none"
	StrategyBasic   = "basic"
	StrategySession = "session"
)

// Principal is the identity resolved for a request.
type Principal struct {
	UserID ulid.ULID
	Email  string
}

func principalFor(u *User) *Principal {
	return &Principal{UserID: u.ID, Email: u.Email}
}

// Authenticator decides whether a path needs auth and who is making a request.
//
// ResolvePrincipal returns (nil, nil) when no valid credentials are present.
// Only infrastructure failures (ErrStoreUnavailable) are returned as errors.
type Authenticator interface {
	RequireAuth(path string) bool
	ResolvePrincipal(ctx context.Context, r Request) (*Principal, error)
}

// NullAuth disables authentication entirely.
type NullAuth struct{}

// RequireAuth always returns false.
func (NullAuth) RequireAuth(string) bool { return false }

// ResolvePrincipal always returns no principal.
func (NullAuth) ResolvePrincipal(context.Context, Request) (*Principal, error) { return nil, nil }

// pathGuard is the path policy shared by the credential-checking strategies.
type pathGuard struct {
	paths    *PathMatcher
	recorder Recorder
	logger   *slog.Logger
}

// RequireAuth delegates to the PathMatcher.
func (g pathGuard) RequireAuth(path string) bool {
	return g.paths.RequiresAuth(path)
}

// anonymous records a recovered failure and yields no principal.
func (g pathGuard) anonymous(ctx context.Context, strategy, outcome string, err error) (*Principal, error) {
	g.recorder.AuthAttempt(strategy, outcome)
	if err != nil {
		attrs := []any{"strategy", strategy, "outcome", outcome}
		if oopsErr, ok := oops.AsOops(err); ok {
			attrs = append(attrs, "code", oopsErr.Code())
		}
		g.logger.DebugContext(ctx, "request not authenticated", attrs...)
	}
	return nil, nil
}

// BasicAuth resolves principals from HTTP Basic credentials.
type BasicAuth struct {
	pathGuard
	users  UserRepository
	hasher PasswordHasher
}

// NewBasicAuth creates a BasicAuth strategy.
func NewBasicAuth(paths *PathMatcher, users UserRepository, hasher PasswordHasher, opts ...StrategyOption) (*BasicAuth, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}
	return &BasicAuth{pathGuard: newPathGuard(paths, opts), users: users, hasher: hasher}, nil
}

// Credentials extracts the identifier and secret from the request.
// ok is false when no Basic header is present; err is ErrMalformedHeader
// when one is present but cannot be decoded.
func (a *BasicAuth) Credentials(r Request) (identifier, secret string, ok bool, err error) {
	header, found := ExtractHeader(r)
	if !found {
		return "", "", false, nil
	}
	encoded, found := ExtractBasic(header)
	if !found {
		return "", "", false, nil
	}
	decoded, err := DecodeBasic(encoded)
	if err != nil {
		return "", "", false, err
	}
	identifier, secret, err = SplitCredentials(decoded)
	if err != nil {
		return "", "", false, err
	}
	return identifier, secret, true, nil
}

// ResolvePrincipal implements Authenticator.
func (a *BasicAuth) ResolvePrincipal(ctx context.Context, r Request) (*Principal, error) {
	identifier, secret, ok, err := a.Credentials(r)
	if err != nil {
		return a.anonymous(ctx, StrategyBasic, OutcomeMalformed, err)
	}
	if !ok {
		return a.anonymous(ctx, StrategyBasic, OutcomeAnonymous, nil)
	}

	user, err := a.users.FindByEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Keep timing close to the wrong-password path.
			a.hasher.Verify(secret, dummyPasswordHash)
			return a.anonymous(ctx, StrategyBasic, OutcomeRejected,
				oops.Code(CodeInvalidCredentials).Wrap(ErrInvalidCredentials))
		}
		a.recorder.AuthAttempt(StrategyBasic, OutcomeError)
		return nil, err
	}

	if !a.hasher.Verify(secret, user.PasswordHash) {
		return a.anonymous(ctx, StrategyBasic, OutcomeRejected,
			oops.Code(CodeInvalidCredentials).Wrap(ErrInvalidCredentials))
	}

	a.recorder.AuthAttempt(StrategyBasic, OutcomeSuccess)
	return principalFor(user), nil
}

// SessionAuth resolves principals from a session cookie.
// Expiry and persistence come from the SessionStore it holds.
type SessionAuth struct {
	pathGuard
	sessions   SessionStore
	users      UserRepository
	cookieName string
}

// NewSessionAuth creates a SessionAuth strategy reading the named cookie.
func NewSessionAuth(paths *PathMatcher, sessions SessionStore, users UserRepository, cookieName string, opts ...StrategyOption) (*SessionAuth, error) {
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("session store is required")
	}
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("user repository is required")
	}
	if cookieName == "" {
		cookieName = DefaultSessionName
	}
	return &SessionAuth{
		pathGuard:  newPathGuard(paths, opts),
		sessions:   sessions,
		users:      users,
		cookieName: cookieName,
	}, nil
}

// CookieName returns the cookie the session token is read from.
func (a *SessionAuth) CookieName() string {
	return a.cookieName
}

// SessionToken returns the session cookie value, if present.
func (a *SessionAuth) SessionToken(r Request) (string, bool) {
	if r == nil {
		return "", false
	}
	token, ok := r.Cookie(a.cookieName)
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// ResolvePrincipal implements Authenticator.
func (a *SessionAuth) ResolvePrincipal(ctx context.Context, r Request) (*Principal, error) {
	token, ok := a.SessionToken(r)
	if !ok {
		return a.anonymous(ctx, StrategySession, OutcomeAnonymous, nil)
	}

	userID, err := a.sessions.Resolve(ctx, token)
	switch {
	case errors.Is(err, ErrSessionExpired):
		a.recorder.SessionEvent(EventSessionExpired)
		return a.anonymous(ctx, StrategySession, OutcomeRejected, err)
	case errors.Is(err, ErrSessionNotFound):
		return a.anonymous(ctx, StrategySession, OutcomeRejected, err)
	case err != nil:
		a.recorder.AuthAttempt(StrategySession, OutcomeError)
		return nil, err
	}

	user, err := a.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return a.anonymous(ctx, StrategySession, OutcomeRejected,
				oops.Code(CodeUnknownUser).With("user_id", userID.String()).Wrap(ErrUnknownUser))
		}
		a.recorder.AuthAttempt(StrategySession, OutcomeError)
		return nil, err
	}

	a.recorder.AuthAttempt(StrategySession, OutcomeSuccess)
	return principalFor(user), nil
}

// StrategyOption configures BasicAuth and SessionAuth.
type StrategyOption func(*pathGuard)

// WithStrategyRecorder sets the metrics recorder.
func WithStrategyRecorder(r Recorder) StrategyOption {
	return func(g *pathGuard) { g.recorder = r }
}

// WithStrategyLogger sets the logger.
func WithStrategyLogger(l *slog.Logger) StrategyOption {
	return func(g *pathGuard) { g.logger = l }
}

func newPathGuard(paths *PathMatcher, opts []StrategyOption) pathGuard {
	g := pathGuard{paths: paths, recorder: NopRecorder{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(&g)
	}
	return g
}

// AuthenticatorConfig selects and wires a strategy.
type AuthenticatorConfig struct {
	Strategy      string
	ExcludedPaths []string
	CookieName    string
	Users         UserRepository
	Hasher        PasswordHasher
	Sessions      SessionStore
	Options       []StrategyOption
}

// NewAuthenticator builds the configured strategy.
func NewAuthenticator(cfg AuthenticatorConfig) (Authenticator, error) {
	paths := NewPathMatcher(cfg.ExcludedPaths)
	switch cfg.Strategy {
	case "", StrategyNone:
		return NullAuth{}, nil
	case StrategyBasic:
		a, err := NewBasicAuth(paths, cfg.Users, cfg.Hasher, cfg.Options...)
		if err != nil {
			return nil, err
		}
		return a, nil
	case StrategySession:
		a, err := NewSessionAuth(paths, cfg.Sessions, cfg.Users, cfg.CookieName, cfg.Options...)
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, oops.Code("AUTH_INVALID_CONFIG").
			With("strategy", cfg.Strategy).
			Errorf("unknown auth strategy %q", cfg.Strategy)
	}
}

// Compile-time interface checks.
var (
	_ Authenticator = NullAuth{}
	_ Authenticator = (*BasicAuth)(nil)
	_ Authenticator = (*SessionAuth)(nil)
)
