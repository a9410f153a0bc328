package logging

import "regexp"

// RedactedValue is the replacement for sensitive values.
const RedactedValue = "[REDACTED]"

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bearer\s+([a-zA-Z0-9._-]{20,})`),
	regexp.MustCompile(`(?i)(__Secure-[a-zA-Z0-9_-]+|session|cookie)=([^;\s]+)`),
	regexp.MustCompile(`(?i)(key|token|secret|password|auth)[=:]["']?([a-zA-Z0-9+/=_-]{32,})["']?`),
}

// Redact replaces session cookies and tokens in s.
func Redact(s string) string {
	for _, pattern := range secretPatterns {
		s = pattern.ReplaceAllString(s, RedactedValue)
	}
	return s
}

// MaskSecret keeps the first and last four characters of a secret.
func MaskSecret(secret string) string {
	if len(secret) <= 12 {
		return RedactedValue
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
