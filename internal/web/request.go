// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package web exposes the authentication service over HTTP.
package web

import (
	"net/http"

	"github.com/warden-auth/warden/internal/auth"
)

type request struct {
	r *http.Request
}

// NewRequest adapts r to the view the auth strategies read. A nil r yields
// a nil auth.Request.
func NewRequest(r *http.Request) auth.Request {
	if r == nil {
		return nil
	}
	return request{r: r}
}

func (q request) Header(name string) string {
	return q.r.Header.Get(name)
}

func (q request) Cookie(name string) (string, bool) {
	c, err := q.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

func (q request) FormValue(name string) string {
	return q.r.FormValue(name)
}
