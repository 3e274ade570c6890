// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"

	"github.com/samber/oops"
)

// AuthorizationHeader is the header carrying Basic credentials.
const AuthorizationHeader = "Authorization"

// basicPrefix is the case-sensitive Basic scheme prefix, single space included.
const basicPrefix = "Basic "

// Request is the view of an inbound request the strategies need.
// Lookups return the zero value when the item is absent.
type Request interface {
	Header(name string) string
	Cookie(name string) (string, bool)
	FormValue(name string) string
}

// ExtractHeader returns the raw Authorization header value.
func ExtractHeader(r Request) (string, bool) {
	if r == nil {
		return "", false
	}
	v := r.Header(AuthorizationHeader)
	if v == "" {
		return "", false
	}
	return v, true
}

// ExtractBasic returns the base64 part of a Basic Authorization header.
// Any other scheme is reported as absent, not as an error.
func ExtractBasic(header string) (string, bool) {
	rest, ok := strings.CutPrefix(header, basicPrefix)
	if !ok {
		return "", false
	}
	return rest, true
}

// DecodeBasic decodes the base64 credentials into text.
func DecodeBasic(value string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return "", oops.Code(CodeMalformedHeader).
			With("operation", "decode base64").
			Wrap(ErrMalformedHeader)
	}
	if !utf8.Valid(raw) {
		return "", oops.Code(CodeMalformedHeader).
			With("operation", "decode utf-8").
			Wrap(ErrMalformedHeader)
	}
	return string(raw), nil
}

// SplitCredentials splits decoded credentials on the first colon.
// The secret may itself contain colons.
func SplitCredentials(decoded string) (identifier, secret string, err error) {
	identifier, secret, ok := strings.Cut(decoded, ":")
	if !ok {
		return "", "", oops.Code(CodeMalformedHeader).
			With("operation", "split credentials").
			Wrap(ErrMalformedHeader)
	}
	return identifier, secret, nil
}

// EncodeBasic builds an Authorization header value for identifier and secret.
func EncodeBasic(identifier, secret string) string {
	return basicPrefix + base64.StdEncoding.EncodeToString([]byte(identifier+":"+secret))
}
