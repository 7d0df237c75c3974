package observability

import (
	"regexp"
	"strings"
)

// Redactor masks credentials and personal data before they reach a log sink.
type Redactor struct {
	patterns []*redactPattern
}

type redactPattern struct {
	regex       *regexp.Regexp
	replacement string
	name        string
}

// NewRedactor creates a new redactor with default patterns.
func NewRedactor() *Redactor {
	r := &Redactor{}
	r.addDefaultPatterns()
	return r
}

func (r *Redactor) addDefaultPatterns() {
	// Credentials that can show up in DSNs, config dumps and upstream errors.
	r.AddPattern(`Bearer\s+[a-zA-Z0-9\-_\.]+`, "Bearer [REDACTED]", "bearer_token")
	r.AddPattern(`Authorization:\s*[^\s]+`, "Authorization: [REDACTED]", "auth_header")
	r.AddPattern(`eyJ[a-zA-Z0-9\-_]+\.[a-zA-Z0-9\-_]+\.[a-zA-Z0-9\-_]*`, "[REDACTED_JWT]", "jwt")
	r.AddPattern(`hv[sb]\.[a-zA-Z0-9\-_]{20,}`, "[REDACTED_VAULT_TOKEN]", "vault_token")
	r.AddPattern(`(A3T[A-Z0-9]|AKIA|ASIA)[A-Z0-9]{16}`, "[REDACTED_AWS_KEY]", "aws_access_key")
	r.AddPattern(`://([^:/@\s]+):([^@/\s]+)@`, "://$1:[REDACTED]@", "url_password")

	// Personal data that users tend to store as memories.
	r.AddPattern(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`, "[REDACTED_EMAIL]", "email")
	r.AddPattern(`\b[0-9]{4}[-\s]?[0-9]{4}[-\s]?[0-9]{4}[-\s]?[0-9]{4}\b`, "[REDACTED_CARD]", "credit_card")
}

// AddPattern adds a custom redaction pattern. Invalid patterns are ignored.
func (r *Redactor) AddPattern(pattern, replacement, name string) {
	regex, err := regexp.Compile(pattern)
	if err != nil {
		return
	}
	r.patterns = append(r.patterns, &redactPattern{
		regex:       regex,
		replacement: replacement,
		name:        name,
	})
}

// Redact applies all redaction patterns to the input string.
func (r *Redactor) Redact(input string) string {
	result := input
	for _, p := range r.patterns {
		result = p.regex.ReplaceAllString(result, p.replacement)
	}
	return result
}

var sensitiveKeys = []string{"token", "secret", "password", "credential", "api_key", "apikey", "authorization"}

// SensitiveKey reports whether a log attribute key names a credential.
func SensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, sk := range sensitiveKeys {
		if strings.Contains(lowerKey, sk) {
			return true
		}
	}
	return false
}
