// Package redact provides utilities for redacting sensitive information from strings
// before they are logged or returned in error responses. Banking and wallet flows
// carry PINs, identity documents, sealed envelopes and bearer material in request
// payloads; none of them may reach a log line or an error body verbatim.
package redact

import (
	"regexp"
	"sync"
)

// Constants for redaction placeholders
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedPINPlaceholder        = "[REDACTED_PIN]"
	RedactedTokenPlaceholder      = "[REDACTED_TOKEN]"
)

// Precompiled regex patterns. Patterns that keep a field name use capture
// groups; the placeholder is expanded with ReplaceAllString.
var (
	// Connection strings for postgres and redis
	dbConnRegex = regexp.MustCompile(`(?i)(postgres|postgresql|redis|rediss)://[^@\s]+@`)

	// PIN values in key=value or JSON form
	pinRegex = regexp.MustCompile(`(?i)\b((?:encrypted_)?pin)(["']?\s*[=:]\s*["']?)[^\s"',&}]+`)

	// Named secrets
	secretRegex = regexp.MustCompile(
		`(?i)\b(password|passwd|secret|service_token|master_key|session_secret)(["']?\s*[=:]\s*["']?)[^\s"',&}]+`,
	)

	// Session tokens
	jwtTokenRegex = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`)

	// Reference tokens minted by the security service
	refTokenRegex = regexp.MustCompile(`\bREF-[A-Z2-7]{16,}`)

	// Compact wallet signatures: 65 bytes in standard base64
	signatureRegex = regexp.MustCompile(`[A-Za-z0-9+/]{87}=`)

	// PAN: five letters, four digits, one letter
	panRegex = regexp.MustCompile(`\b[A-Z]{5}[0-9]{4}[A-Z]\b`)

	// National id numbers in key=value or JSON form
	idNumberRegex = regexp.MustCompile(`(?i)\b(id_number|national_id)(["']?\s*[=:]\s*["']?)[0-9]{12}\b`)

	// Stack trace fragments
	stackTraceRegex = regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`)

	// Email addresses
	emailRegex = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	// All patterns in application order
	patterns = []*regexp.Regexp{
		dbConnRegex, pinRegex, secretRegex, jwtTokenRegex, refTokenRegex,
		signatureRegex, panRegex, idNumberRegex, stackTraceRegex, emailRegex,
	}

	patternPlaceholders = map[*regexp.Regexp]string{
		dbConnRegex:     RedactedCredentialPlaceholder,
		pinRegex:        "${1}${2}" + RedactedPINPlaceholder,
		secretRegex:     "${1}${2}" + RedactedCredentialPlaceholder,
		jwtTokenRegex:   "[REDACTED_JWT]",
		refTokenRegex:   RedactedTokenPlaceholder,
		signatureRegex:  "[REDACTED_SIGNATURE]",
		panRegex:        "[REDACTED_PAN]",
		idNumberRegex:   "${1}${2}[REDACTED_ID]",
		stackTraceRegex: "[STACK_TRACE_REDACTED]",
		emailRegex:      "[REDACTED_EMAIL]",
	}

	mu sync.RWMutex
)

// String redacts sensitive information from the input string
func String(input string) string {
	if input == "" {
		return input
	}

	mu.RLock()
	defer mu.RUnlock()

	result := input
	for _, pattern := range patterns {
		placeholder := RedactionPlaceholder
		if ph, ok := patternPlaceholders[pattern]; ok {
			placeholder = ph
		}
		result = pattern.ReplaceAllString(result, placeholder)
	}

	return result
}

// Error redacts sensitive information from an error's Error() output
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}
