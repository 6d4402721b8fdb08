package security

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

const (
	// MaxSearchQueryLength defines the maximum allowed length for search queries
	MaxSearchQueryLength = 100
)

var (
	// ErrSearchQueryTooLong is returned for queries over MaxSearchQueryLength.
	ErrSearchQueryTooLong = errors.New("search query too long")
	// ErrSearchQueryInvalid is returned for queries with disallowed characters or patterns.
	ErrSearchQueryInvalid = errors.New("search query contains invalid characters")
)

// dangerousPatterns flags SQL injection and script injection attempts.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(union|select|insert|update|delete|drop|create|alter|exec|execute)\b`),
	regexp.MustCompile(`(?i)\b(or|and)\s+\d+\s*=\s*\d+`),
	regexp.MustCompile(`(?i)(--|/\*|\*/)`),
	regexp.MustCompile(`(?i)\b(waitfor|benchmark|sleep)\b`),
	regexp.MustCompile(`(?i)(<script|</script|javascript:|vbscript:|onload=|onerror=)`),
}

// ValidateSearchQuery trims a user-list search query and rejects anything that
// is not a plain username or email fragment.
func ValidateSearchQuery(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", nil
	}

	if len([]rune(query)) > MaxSearchQueryLength {
		return "", ErrSearchQueryTooLong
	}

	for _, pattern := range dangerousPatterns {
		if pattern.MatchString(query) {
			return "", ErrSearchQueryInvalid
		}
	}

	for _, char := range query {
		if !isValidSearchChar(char) {
			return "", ErrSearchQueryInvalid
		}
	}

	return query, nil
}

// isValidSearchChar allows the characters usernames and emails are made of.
func isValidSearchChar(char rune) bool {
	return unicode.IsLetter(char) || unicode.IsNumber(char) ||
		char == ' ' || char == '-' || char == '_' || char == '.' ||
		char == '@' || char == '+'
}

// SanitizeSearchString escapes LIKE wildcards. Callers must use ESCAPE '\'.
func SanitizeSearchString(query string) string {
	if query == "" {
		return ""
	}

	query = strings.ReplaceAll(query, `\`, `\\`)
	query = strings.ReplaceAll(query, "%", `\%`)
	query = strings.ReplaceAll(query, "_", `\_`)

	return query
}
