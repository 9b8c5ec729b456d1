package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxPathLength is the maximum length for URL paths in logs
	MaxPathLength = 500
	// MaxUserIDLength is the maximum length for user IDs in logs (UUIDs are 36 chars)
	MaxUserIDLength = 128
	// MaxQueryLength bounds logged search terms
	MaxQueryLength = 200
	// MaxGeneralStringLength is the maximum length for general strings in logs
	MaxGeneralStringLength = 2000
)

// SanitizePath makes a URL path safe to log
func SanitizePath(path string) string {
	return SanitizeString(path, MaxPathLength)
}

// SanitizeUserID makes a user ID safe to log
func SanitizeUserID(userID string) string {
	return SanitizeString(userID, MaxUserIDLength)
}

// SanitizeQuery makes a user-supplied search term safe to log. Line breaks
// are folded to spaces so one search never spans log lines.
func SanitizeQuery(q string) string {
	q = strings.NewReplacer("\n", " ", "\r", " ", "\t", " ").Replace(q)
	return SanitizeString(q, MaxQueryLength)
}

// SanitizeString drops invalid UTF-8 and control characters, then truncates
// to maxLength bytes without splitting a rune. A non-positive maxLength means
// MaxGeneralStringLength.
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}
	s = filterRunes(s)
	if len(s) > maxLength {
		cut := maxLength
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}

// filterRunes keeps printable runes plus space, tab, newline and CR
func filterRunes(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	var builder strings.Builder
	builder.Grow(len(s))
	for _, r := range s {
		if unicode.IsPrint(r) || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}
