package core

import (
	"strings"

	"github.com/gobwas/glob"
)

const pathSeparator = '/'

// MatchesAny reports whether subject matches at least one of the patterns.
func MatchesAny(patterns []string, subject string) bool {
	for _, pattern := range patterns {
		if Matches(pattern, subject) {
			return true
		}
	}
	return false
}

// Matches reports whether subject matches pattern, case-insensitively.
//
// Patterns without "*" only match exactly. "*" and "*/*" match everything,
// other wildcards, "**" included, do not cross "/" boundaries. Malformed patterns never match.
func Matches(pattern, subject string) bool {
	pattern = strings.ToLower(pattern)
	subject = strings.ToLower(subject)

	if pattern == subject {
		return true
	}
	for strings.Contains(pattern, "**") {
		pattern = strings.ReplaceAll(pattern, "**", "*")
	}
	if pattern == "*" || pattern == "*/*" {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return false
	}

	g, err := glob.Compile(pattern, pathSeparator)
	if err != nil {
		return false
	}
	return g.Match(subject)
}
