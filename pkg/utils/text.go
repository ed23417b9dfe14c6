package utils

import "strings"

// Truncate returns s truncated to maxLen characters, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// NormalizeWhitespace collapses all whitespace runs in s to single spaces and
// trims the ends. Used wherever character counts must not depend on
// formatting (content-preservation accounting).
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizedLen returns the character count of s after whitespace normalization.
func NormalizedLen(s string) int {
	return len(NormalizeWhitespace(s))
}
