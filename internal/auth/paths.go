// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"strings"

	"github.com/gobwas/glob"
)

// WildcardMarker at the end of an excluded path turns it into a prefix match.
const WildcardMarker = "*"

// pathSeparator is appended to paths and exact entries before comparison.
const pathSeparator = "/"

// PathMatcher decides whether a request path requires authentication.
// It is immutable after construction and safe for concurrent use.
type PathMatcher struct {
	entries []pathEntry
}

type pathEntry struct {
	exact  string
	prefix glob.Glob // nil for exact entries
}

// NewPathMatcher compiles an ordered exclusion list.
func NewPathMatcher(excluded []string) *PathMatcher {
	m := &PathMatcher{entries: make([]pathEntry, 0, len(excluded))}
	for _, e := range excluded {
		if e == "" {
			continue
		}
		if prefix, ok := strings.CutSuffix(e, WildcardMarker); ok {
			// No separators: '*' spans '/' so the glob is a plain prefix test.
			// QuoteMeta makes every input compile.
			m.entries = append(m.entries, pathEntry{prefix: glob.MustCompile(glob.QuoteMeta(prefix) + "*")})
			continue
		}
		m.entries = append(m.entries, pathEntry{exact: normalizePath(e)})
	}
	return m
}

// RequiresAuth reports whether path is outside every excluded entry.
// A nil matcher, an empty exclusion list, or an empty path require auth.
func (m *PathMatcher) RequiresAuth(path string) bool {
	if m == nil || len(m.entries) == 0 || path == "" {
		return true
	}

	path = normalizePath(path)
	for _, e := range m.entries {
		if e.prefix != nil {
			if e.prefix.Match(path) {
				return false
			}
			continue
		}
		if e.exact == path {
			return false
		}
	}
	return true
}

// Excluded returns the number of compiled exclusion entries.
func (m *PathMatcher) Excluded() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// RequiresAuth is the one-shot form of PathMatcher.RequiresAuth.
func RequiresAuth(path string, excluded []string) bool {
	return NewPathMatcher(excluded).RequiresAuth(path)
}

func normalizePath(p string) string {
	if strings.HasSuffix(p, pathSeparator) {
		return p
	}
	return p + pathSeparator
}
