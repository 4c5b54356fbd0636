package ratelimit

import "strings"

// unlimitedPaths are never limited.
var unlimitedPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// Match returns the rule for a request, or nil when the default applies.
// The first matching rule wins.
func Match(path, method string, rules []Rule) *Rule {
	if unlimitedPaths[path] {
		return &Rule{}
	}
	path = strings.TrimSuffix(path, "/")
	for i := range rules {
		if rules[i].Method == method && strings.HasSuffix(path, rules[i].Suffix) {
			return &rules[i]
		}
	}
	return nil
}
