package common

import (
	"strings"
)

// MatchesPattern checks if a string matches any of the given exact names or prefixes
func MatchesPattern(target string, exactNames, prefixNames []string) bool {
	target = strings.ToLower(target)

	// Check exact matches
	for _, name := range exactNames {
		if name != "" && target == strings.ToLower(name) {
			return true
		}
	}

	// Check prefix matches
	for _, prefix := range prefixNames {
		if prefix != "" && strings.HasPrefix(target, strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

// SplitPatterns splits a user filter such as "Assembly*,TypeDef" into exact
// names and prefixes (entries ending in '*').
func SplitPatterns(filter string) (exact, prefixes []string) {
	for _, part := range strings.Split(filter, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.HasSuffix(part, "*") {
			prefixes = append(prefixes, strings.TrimSuffix(part, "*"))
		} else {
			exact = append(exact, part)
		}
	}
	return exact, prefixes
}
