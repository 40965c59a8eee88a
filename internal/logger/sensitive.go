package logger

import (
	"regexp"
	"strings"
)

const redactedValue = "[REDACTED]"

var sensitiveDataPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9-._~+/]+=*)`),
	regexp.MustCompile(`(?i)((api|access|auth|token|secret|key|passw(or)?d)[0-9a-z\-_\.]*[\s:=]+)([^;,&\s]{5,})`),
	regexp.MustCompile(`(?i)((?:session|sid|csrf)=)([^;,\s]{5,})`),
}

var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "api_key", "apikey", "cookie", "session",
}

// RedactSensitiveData replaces credentials in free text with "[REDACTED]".
// Error fields pass through here before they are written.
func RedactSensitiveData(input string) string {
	if input == "" {
		return input
	}
	for _, pattern := range sensitiveDataPatterns {
		input = pattern.ReplaceAllStringFunc(input, func(m string) string {
			sub := pattern.FindStringSubmatch(m)
			return sub[1] + "[REDACTED]"
		})
	}
	return input
}

// IsSensitiveKey reports whether a field key names a secret, e.g. "mqtt_password".
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// RedactEmail keeps the first letter and the domain: "j***@example.com".
func RedactEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return redactedValue
	}
	return local[:1] + "***@" + domain
}
