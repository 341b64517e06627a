package logger

import (
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// sensitivePatterns match credentials that end up inside URLs, DSNs and error strings.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9\-._~+/]+=*`),
	regexp.MustCompile(`(?i)((?:appid|api_key|apikey|token|password|passwd|secret)=)[^&\s;]+`),
	regexp.MustCompile(`([\w.-]+:)[^@\s/]+(@tcp\()`),
}

// sensitiveKeys mark fields whose value is dropped entirely.
var sensitiveKeys = []string{
	"password", "passwd", "secret", "token", "api_key", "apikey", "appid",
	"authorization", "dsn", "access_key",
}

// RedactSensitiveData masks credentials embedded in s.
func RedactSensitiveData(s string) string {
	if s == "" {
		return s
	}
	s = sensitivePatterns[0].ReplaceAllString(s, "${1}"+redacted)
	s = sensitivePatterns[1].ReplaceAllString(s, "${1}"+redacted)
	s = sensitivePatterns[2].ReplaceAllString(s, "${1}"+redacted+"${2}")
	return s
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// redactField applies key and value redaction to string fields.
func redactField(f Field) Field {
	v, ok := f.Value.(string)
	if !ok || v == "" {
		return f
	}
	if isSensitiveKey(f.Key) {
		return Field{Key: f.Key, Value: redacted}
	}
	switch f.Key {
	case errorKey, "url", "endpoint", "source":
		return Field{Key: f.Key, Value: RedactSensitiveData(v)}
	}
	return f
}
