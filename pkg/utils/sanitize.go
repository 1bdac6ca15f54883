package utils

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

const MaxMessageLength = 8000

var (
	usernameRegex  = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,30}$`)
	scriptTagRegex = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	onEventRegex   = regexp.MustCompile(`(?i)\s+on\w+\s*=`)

	ErrEmptyMessage   = errors.New("message text cannot be empty")
	ErrMessageTooLong = errors.New("message exceeds maximum length")
)

// EscapeSQLWildcards escapes LIKE wildcards; pair it with ESCAPE '\'.
func EscapeSQLWildcards(input string) string {
	input = strings.ReplaceAll(input, "\\", "\\\\")
	input = strings.ReplaceAll(input, "%", "\\%")
	input = strings.ReplaceAll(input, "_", "\\_")
	return input
}

// SanitizeSearchQuery returns a lower-cased, escaped %term% pattern.
func SanitizeSearchQuery(input string) string {
	input = strings.TrimSpace(input)
	if len(input) > 100 {
		input = input[:100]
	}
	return "%" + strings.ToLower(EscapeSQLWildcards(input)) + "%"
}

// ValidateUsername allows 3-30 letters, digits, underscores or hyphens.
func ValidateUsername(username string) bool {
	return usernameRegex.MatchString(username)
}

// SanitizeMessageText trims text, strips script tags and inline handlers,
// and enforces the length bounds.
func SanitizeMessageText(text string) (string, error) {
	text = scriptTagRegex.ReplaceAllString(text, "")
	text = onEventRegex.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	if text == "" {
		return "", ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return "", ErrMessageTooLong
	}
	return text, nil
}
