// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/warden-auth/warden/internal/auth"
	"github.com/warden-auth/warden/pkg/errutil"
)

// AuthService is the part of auth.Service the HTTP layer calls.
type AuthService interface {
	RequireAuth(path string) bool
	ResolvePrincipal(ctx context.Context, r auth.Request) (*auth.Principal, error)
	Register(ctx context.Context, email, password string) (*auth.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	Logout(ctx context.Context, token string) (bool, error)
	RequestReset(ctx context.Context, email string) (string, error)
	ApplyReset(ctx context.Context, token, newPassword string) error
}

var _ AuthService = (*auth.Service)(nil)

// Options configures NewHandler.
type Options struct {
	// CookieName carries the session token. Defaults to auth.DefaultSessionName.
	CookieName string
	// SessionTTL sets the cookie Max-Age. Zero issues a browser-session cookie.
	SessionTTL   time.Duration
	SecureCookie bool
	Logger       *slog.Logger
	Metrics      RequestRecorder
}

type handler struct {
	svc  AuthService
	opts Options
}

type messageResponse struct {
	Email   string `json:"email,omitempty"`
	Message string `json:"message"`
}

type resetResponse struct {
	Email      string `json:"email"`
	ResetToken string `json:"reset_token"`
}

type principalResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// NewHandler builds the API handler: routes behind request logging, body
// limits and authentication.
func NewHandler(svc AuthService, opts Options) http.Handler {
	if opts.CookieName == "" {
		opts.CookieName = auth.DefaultSessionName
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = nopRequestRecorder{}
	}

	h := &handler{svc: svc, opts: opts}
	mux := http.NewServeMux()

	route := func(method, path, name string, fn http.HandlerFunc) {
		mux.HandleFunc(method+" "+path, named(name, fn))
		mux.HandleFunc(method+" "+path+"/{$}", named(name, fn))
	}
	route(http.MethodGet, "/api/v1/status", "status", h.status)
	route(http.MethodGet, "/api/v1/unauthorized", "unauthorized", h.unauthorized)
	route(http.MethodGet, "/api/v1/forbidden", "forbidden", h.forbidden)
	route(http.MethodPost, "/api/v1/users", "register", h.register)
	route(http.MethodGet, "/api/v1/users/me", "me", h.me)
	route(http.MethodPost, "/api/v1/auth_session/login", "login", h.login)
	route(http.MethodDelete, "/api/v1/auth_session/logout", "logout", h.logout)
	route(http.MethodPost, "/api/v1/reset_password", "request_reset", h.requestReset)
	route(http.MethodPut, "/api/v1/reset_password", "apply_reset", h.applyReset)

	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found", "")
	})

	var next http.Handler = mux
	next = withAuthentication(next, svc, opts.Logger)
	next = withBodyLimit(next)
	return withRequestLogging(next, opts.Logger, opts.Metrics)
}

func (h *handler) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (h *handler) unauthorized(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusUnauthorized, "Unauthorized", "")
}

func (h *handler) forbidden(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusForbidden, "Forbidden", "")
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	email, password, ok := h.credentials(w, r)
	if !ok {
		return
	}

	user, err := h.svc.Register(r.Context(), email, password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Email: user.Email, Message: "user created"})
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	if p == nil {
		writeError(w, http.StatusNotFound, "Not found", "")
		return
	}
	writeJSON(w, http.StatusOK, principalResponse{ID: p.UserID.String(), Email: p.Email})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	email, password, ok := h.credentials(w, r)
	if !ok {
		return
	}

	token, err := h.svc.Login(r.Context(), email, password)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	cookie := &http.Cookie{
		Name:     h.opts.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
	if h.opts.SessionTTL > 0 {
		cookie.MaxAge = int(h.opts.SessionTTL / time.Second)
	}
	http.SetCookie(w, cookie)
	writeJSON(w, http.StatusOK, messageResponse{Email: email, Message: "logged in"})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	token, _ := NewRequest(r).Cookie(h.opts.CookieName)

	removed, err := h.svc.Logout(r.Context(), token)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "Not found", auth.CodeSessionNotFound)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.opts.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{})
}

func (h *handler) requestReset(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "email missing", "")
		return
	}

	token, err := h.svc.RequestReset(r.Context(), email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resetResponse{Email: email, ResetToken: token})
}

func (h *handler) applyReset(w http.ResponseWriter, r *http.Request) {
	token := r.FormValue("reset_token")
	password := r.FormValue("new_password")
	if token == "" {
		writeError(w, http.StatusBadRequest, "reset_token missing", "")
		return
	}
	if password == "" {
		writeError(w, http.StatusBadRequest, "new_password missing", "")
		return
	}

	if err := h.svc.ApplyReset(r.Context(), token, password); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Email: r.FormValue("email"), Message: "Password updated"})
}

// credentials reads the email and password form fields, answering 400 when
// either is missing.
func (h *handler) credentials(w http.ResponseWriter, r *http.Request) (email, password string, ok bool) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form", "")
		return "", "", false
	}
	email = r.FormValue("email")
	password = r.FormValue("password")
	if email == "" {
		writeError(w, http.StatusBadRequest, "email missing", "")
		return "", "", false
	}
	if password == "" {
		writeError(w, http.StatusBadRequest, "password missing", "")
		return "", "", false
	}
	return email, password, true
}

// fail maps a service error to a response. Unrecognized errors are logged
// and answered with 500.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := errutil.Code(err)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials", code)
	case errors.Is(err, auth.ErrUnknownUser), errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusForbidden, "Forbidden", code)
	case errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusBadRequest, "email already registered", code)
	case errors.Is(err, auth.ErrEmptyPassword), code == "USER_INVALID_EMAIL":
		writeError(w, http.StatusBadRequest, "invalid email or password", code)
	default:
		errutil.LogErrorContext(r.Context(), h.opts.Logger, "request failed", err)
		if !errors.Is(err, auth.ErrStoreUnavailable) {
			code = ""
		}
		writeError(w, http.StatusInternalServerError, "Internal error", code)
	}
}
