// Package normalize provides canonical forms for user-supplied fields.
//
// Emails are compared and stored lowercase; names keep their case but
// lose surrounding whitespace. The _ci variants stored alongside names
// use text.Fold (lowercase, diacritics stripped) for search and
// case-insensitive matching.
package normalize

import "strings"

// Email returns the canonical form of an email address: trimmed and
// lowercased. Empty or whitespace-only input returns "".
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name returns a display name with surrounding whitespace removed.
// Case is preserved.
func Name(s string) string {
	return strings.TrimSpace(s)
}
