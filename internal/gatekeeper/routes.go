package gatekeeper

import "strings"

// PublicMatcher classifies request paths as public or protected.
// Patterns ending in "/" match as prefixes, everything else matches
// exactly; the bare root "/" only matches the root itself.
type PublicMatcher struct {
	exact    map[string]struct{}
	prefixes []string
}

// NewPublicMatcher builds a matcher from path patterns
func NewPublicMatcher(patterns []string) *PublicMatcher {
	m := &PublicMatcher{exact: make(map[string]struct{})}
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if len(pattern) > 1 && strings.HasSuffix(pattern, "/") {
			m.prefixes = append(m.prefixes, pattern)
			continue
		}
		m.exact[pattern] = struct{}{}
	}
	return m
}

// Match reports whether path is public
func (m *PublicMatcher) Match(path string) bool {
	if _, ok := m.exact[path]; ok {
		return true
	}
	for _, prefix := range m.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
