package util

import (
	"regexp"
	"strings"
)

const (
	// NamespacePrefix starts every tenant namespace and therefore every tenant table.
	NamespacePrefix = "ks_"
	// NamespaceLen is the fixed length of a namespace: prefix plus 32 hex digits.
	NamespaceLen = len(NamespacePrefix) + 32
	// TableSeparator joins a namespace and a tenant table name into the physical table name.
	TableSeparator = "__"

	// MaxColumnNameLen is the longest accepted column name.
	MaxColumnNameLen = 64
	// MaxTableNameLen keeps physical table names within MySQL's 64 character identifier limit.
	MaxTableNameLen = 64 - NamespaceLen - len(TableSeparator)
)

var (
	identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	namespaceRe  = regexp.MustCompile(`^ks_[0-9a-f]{32}$`)
)

// ValidIdentifier reports whether s may be interpolated into SQL as an
// identifier: a letter or underscore followed by letters, digits or
// underscores, at most max bytes long.
func ValidIdentifier(s string, max int) bool {
	return s != "" && len(s) <= max && identifierRe.MatchString(s)
}

// NormalizeIdentifier folds an identifier to its canonical lower-case form.
// Both supported engines compare column names case-insensitively.
func NormalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidNamespace reports whether ns has the exact shape produced by the credential issuer.
func ValidNamespace(ns string) bool {
	return namespaceRe.MatchString(ns)
}

// QualifiedTable returns the physical name of a tenant table. Both parts must
// already be validated; a namespace has a fixed length so the split is unambiguous.
func QualifiedTable(namespace, table string) string {
	return namespace + TableSeparator + table
}

// LikeEscapeChar is the ESCAPE character used with EscapeLike patterns.
const LikeEscapeChar = '!'

// EscapeLike escapes LIKE metacharacters in s so that it matches literally.
func EscapeLike(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '%', '_', LikeEscapeChar:
			b.WriteByte(LikeEscapeChar)
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// PrefixPattern returns a LIKE pattern matching strings that start with prefix.
func PrefixPattern(prefix string) string {
	return EscapeLike(prefix) + "%"
}
