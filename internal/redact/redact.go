// Package redact scrubs credentials from text before it reaches logs or the
// terminal. Subscription links usually carry their access token in the query
// string, so URLs get special handling.
package redact

import (
	"net/url"
	"regexp"
	"strings"
)

// Placeholder replaces every redacted value.
const Placeholder = "[REDACTED]"

// Redactor handles sensitive data redaction from text
type Redactor struct {
	patterns []redactionPattern
}

type redactionPattern struct {
	regex       *regexp.Regexp
	replacement string
}

var urlPattern = regexp.MustCompile(`[A-Za-z][A-Za-z0-9+.\-]*://[^\s"'<>]+`)

// Default is the redactor used by the package-level helpers.
var Default = NewRedactor()

// NewRedactor creates a redactor with the controller secret and token patterns
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []redactionPattern{
			{
				regex:       regexp.MustCompile(`(?i)export\s+([A-Z_]*(?:KEY|TOKEN|SECRET|PASSWORD)[A-Z_]*)\s*=\s*["']?([^"'\s]+)["']?`),
				replacement: `export $1=` + Placeholder,
			},
			// controller_secret: ..., secret: ..., token = ...
			{
				regex:       regexp.MustCompile(`(?i)(^|[^A-Z_])((?:controller[_-]?)?secret|token|password|api[_-]?key)\s*[:=]\s*["']?([^"'\s\[]+)["']?`),
				replacement: `$1$2: ` + Placeholder,
			},
			{
				regex:       regexp.MustCompile(`(?i)Bearer\s+([A-Za-z0-9_\-\.~+/=]+)`),
				replacement: `Bearer ` + Placeholder,
			},
			{
				regex:       regexp.MustCompile(`(?i)Authorization:\s*Basic\s+([A-Za-z0-9+/=]+)`),
				replacement: `Authorization: Basic ` + Placeholder,
			},
		},
	}
}

// Redact scrubs every URL in input, then applies the secret patterns.
func (r *Redactor) Redact(input string) string {
	result := urlPattern.ReplaceAllStringFunc(input, URL)
	for _, pattern := range r.patterns {
		result = pattern.regex.ReplaceAllString(result, pattern.replacement)
	}
	return result
}

// URL hides the password of any userinfo and every query value of raw.
// Scheme, host and path stay readable so operators can tell links apart.
func URL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		if strings.ContainsAny(raw, "?@") {
			return Placeholder
		}
		return raw
	}

	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
		} else {
			u.User = url.User("xxxxx")
		}
	}

	query := u.RawQuery
	u.RawQuery = ""
	u.Fragment = ""
	out := u.String()

	if query == "" {
		return out
	}

	parts := strings.Split(query, "&")
	for i, part := range parts {
		key, _, _ := strings.Cut(part, "=")
		parts[i] = key + "=" + Placeholder
	}
	return out + "?" + strings.Join(parts, "&")
}

// Error returns err with URLs and secrets in its message scrubbed.
// errors.Is and errors.As still see the original chain.
func Error(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	scrubbed := Default.Redact(msg)
	if scrubbed == msg {
		return err
	}
	return &redactedError{msg: scrubbed, cause: err}
}

type redactedError struct {
	msg   string
	cause error
}

func (e *redactedError) Error() string { return e.msg }

func (e *redactedError) Unwrap() error { return e.cause }

// IsLikelySensitive checks if a line contains potentially sensitive data
func IsLikelySensitive(line string) bool {
	lowerLine := strings.ToLower(line)
	for _, keyword := range []string{"password", "secret", "token", "api_key", "apikey", "credential", "auth"} {
		if strings.Contains(lowerLine, keyword) {
			return true
		}
	}
	return false
}
