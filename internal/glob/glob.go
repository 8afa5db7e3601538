// Package glob translates the restricted key-pattern syntax into the matching
// primitive each backend understands. The syntax is two metacharacters over
// local keys: '*' matches zero or more arbitrary characters, '?' matches
// exactly one. There is no escaping.
package glob

import (
	"regexp"
	"strings"
)

// Regexp compiles pattern into an anchored regular expression matching the
// full key. Everything except the two metacharacters is treated literally.
func Regexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteByte('.')
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')
	return regexp.Compile(b.String())
}

var likeReplacer = strings.NewReplacer("*", "%", "?", "_")

// Like rewrites pattern into a SQL LIKE expression: '*' -> '%', '?' -> '_'.
// Literal '%' and '_' characters already present in keys are NOT escaped and
// the engine will treat them as wildcards. Known limitation of the LIKE
// translation, kept as documented behavior.
func Like(pattern string) string { return likeReplacer.Replace(pattern) }

// LiteralPrefix returns the pattern text before the first metacharacter.
// Backends with native prefix scans use it to avoid full-keyspace walks.
func LiteralPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, "*?"); i >= 0 {
		return pattern[:i]
	}
	return pattern
}
