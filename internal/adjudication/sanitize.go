package adjudication

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"unicode"
	"unicode/utf8"
)

var ErrMessageTooLong = errors.New("message too long")

// SanitizeMessage trims the message, drops control characters other than
// newline and tab, and HTML-escapes the rest. A maxLen of zero disables
// the length check.
func SanitizeMessage(msg string, maxLen int) (string, error) {
	msg = strings.TrimSpace(msg)
	if maxLen > 0 && utf8.RuneCountInString(msg) > maxLen {
		return "", fmt.Errorf("%w: %d characters (max %d)", ErrMessageTooLong, utf8.RuneCountInString(msg), maxLen)
	}
	msg = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, msg)
	return html.EscapeString(strings.TrimSpace(msg)), nil
}
