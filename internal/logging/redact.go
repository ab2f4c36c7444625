package logging

import (
	"regexp"
	"strings"
)

// Secrets can leak into error text by accident, most notably the
// Telegram bot token embedded in the API URL that net/http repeats in
// its error messages.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`bot\d+:[A-Za-z0-9_-]{10,}`),
	regexp.MustCompile(`(?i)(token|secret|password|api[_-]?key)[=:\s]+["']?[^\s"'&]+`),
}

// RedactSecrets masks credential-shaped substrings before text is
// logged or returned in an error.
func RedactSecrets(s string) string {
	for _, p := range secretPatterns {
		s = p.ReplaceAllStringFunc(s, maskMatch)
	}
	return s
}

func maskMatch(m string) string {
	if i := strings.IndexAny(m, "=: "); i >= 0 && i < len(m)-1 {
		return m[:i+1] + "***"
	}
	return "***"
}

// MaskToken shows just enough of a credential to identify it.
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "***"
}
