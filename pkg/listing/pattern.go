// SPDX-License-Identifier: MPL-2.0

package listing

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Patterns is a list of gitignore-flavoured doublestar globs. A pattern
// without a slash matches a base name at any depth; a pattern matching a
// directory matches everything below it.
type Patterns []string

// CompilePatterns validates patterns. Leading and trailing slashes are
// dropped and empty patterns are ignored.
func CompilePatterns(patterns []string) (Patterns, error) {
	out := make(Patterns, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSuffix(strings.TrimPrefix(p, "/"), "/")
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, &InvalidPatternError{Pattern: p, Err: doublestar.ErrBadPattern}
		}
		out = append(out, p)
	}
	return out, nil
}

// Match reports whether the slash-separated relative path rel, or one of
// its parent directories, matches any pattern.
func (s Patterns) Match(rel string) bool {
	for candidate := rel; candidate != "." && candidate != ""; candidate = path.Dir(candidate) {
		for _, p := range s {
			if ok, _ := doublestar.Match(p, candidate); ok {
				return true
			}
			if !strings.Contains(p, "/") {
				if ok, _ := doublestar.Match(p, path.Base(candidate)); ok {
					return true
				}
			}
		}
	}
	return false
}
