// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package httpapi

import (
	"net/http"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// OriginMatcher decides which browser origins may call the API.
type OriginMatcher struct {
	patterns []glob.Glob
}

// NewOriginMatcher compiles origin patterns. "*" matches any run of
// characters, so "http://localhost:*" admits every local port.
func NewOriginMatcher(patterns []string) (*OriginMatcher, error) {
	m := &OriginMatcher{patterns: make([]glob.Glob, 0, len(patterns))}
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, oops.Code("HTTPAPI_INVALID_CONFIG").With("origin", p).Wrap(err)
		}
		m.patterns = append(m.patterns, g)
	}
	return m, nil
}

// Allow reports whether origin matches any pattern. Its signature fits
// cors.Options.AllowOriginFunc.
func (m *OriginMatcher) Allow(_ *http.Request, origin string) bool {
	for _, g := range m.patterns {
		if g.Match(origin) {
			return true
		}
	}
	return false
}
