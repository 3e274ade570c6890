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

// maxFormBytes caps request bodies before form parsing.
const maxFormBytes = 1 << 20

// routeUnmatched labels requests no route accepted.
const routeUnmatched = "unmatched"

// RequestRecorder counts served requests. observability.Metrics implements it.
type RequestRecorder interface {
	HTTPRequest(route string, code int)
}

type nopRequestRecorder struct{}

func (nopRequestRecorder) HTTPRequest(string, int) {}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal resolved for the request, or nil.
func PrincipalFrom(ctx context.Context) *auth.Principal {
	p, _ := ctx.Value(principalKey{}).(*auth.Principal)
	return p
}

// statusRecorder captures the status code and the matched route name.
type statusRecorder struct {
	http.ResponseWriter
	status int
	route  string
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// named tags the response with the route name for logging and metrics.
func named(name string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rec, ok := w.(*statusRecorder); ok {
			rec.route = name
		}
		h(w, r)
	}
}

// withRequestLogging logs and counts every request.
func withRequestLogging(next http.Handler, logger *slog.Logger, metrics RequestRecorder) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK, route: routeUnmatched}

		next.ServeHTTP(rec, r)

		metrics.HTTPRequest(rec.route, rec.status)
		logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"route", rec.route,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// withBodyLimit bounds the bytes form parsing may read.
func withBodyLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// withAuthentication resolves the principal for every request. Protected
// paths without one get 401 and fail with 500 when the store is down;
// excluded paths continue anonymously.
func withAuthentication(next http.Handler, svc AuthService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		protected := svc.RequireAuth(r.URL.Path)

		p, err := svc.ResolvePrincipal(ctx, NewRequest(r))
		if err != nil {
			if !protected {
				logger.WarnContext(ctx, "principal resolution failed on excluded path", errutil.Attrs(err)...)
				next.ServeHTTP(w, r)
				return
			}
			errutil.LogErrorContext(ctx, logger, "principal resolution failed", err)
			code := ""
			if errors.Is(err, auth.ErrStoreUnavailable) {
				code = auth.CodeStoreUnavailable
			}
			writeError(w, http.StatusInternalServerError, "Internal error", code)
			return
		}

		if protected && p == nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized", "")
			return
		}

		if p != nil {
			r = r.WithContext(WithPrincipal(ctx, p))
		}
		next.ServeHTTP(w, r)
	})
}
