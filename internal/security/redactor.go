// Package security masks secrets in logs and displays, throttles callers
// and bounds request bodies.
package security

import (
	"regexp"
	"strings"
	"sync"
)

// RedactorService is the core service name of the process *Redactor.
const RedactorService = "security.redactor"

// RedactPlaceholder replaces every redacted value.
const RedactPlaceholder = "***REDACTED***"

// secretKeyPattern matches map keys whose values are never displayed.
var secretKeyPattern = regexp.MustCompile(`(?i)(secret|token|password|signing_key|api_key|iban)`)

// Redactor masks secrets and bank identifiers in strings and maps. It
// combines regular expressions for well-known formats with literal values
// registered at startup (API tokens, the audit signing key).
// All methods are safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor returns a redactor loaded with DefaultPatterns.
func NewRedactor() *Redactor {
	return &Redactor{patterns: DefaultPatterns()}
}

// AddPattern registers an extra pattern.
func (r *Redactor) AddPattern(pattern *regexp.Regexp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, pattern)
}

// AddLiteral registers exact values to mask. Empty strings are ignored.
func (r *Redactor) AddLiteral(secrets ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range secrets {
		if s != "" {
			r.literals = append(r.literals, s)
		}
	}
}

// Redact masks every known pattern and literal in s.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns, literals := r.patterns, r.literals
	r.mu.RUnlock()

	for _, p := range patterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}
	for _, lit := range literals {
		s = strings.ReplaceAll(s, lit, RedactPlaceholder)
	}
	return s
}

// RedactMap masks, in place, string values stored under secret-looking
// keys and any string value containing a known secret. Nested maps and
// slices are walked.
func (r *Redactor) RedactMap(m map[string]any) {
	for k, v := range m {
		if s, ok := v.(string); ok && s != "" && secretKeyPattern.MatchString(k) {
			m[k] = RedactPlaceholder
			continue
		}
		m[k] = r.redactValue(v)
	}
}

func (r *Redactor) redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		r.RedactMap(val)
	case []any:
		for i, item := range val {
			val[i] = r.redactValue(item)
		}
	case string:
		return r.Redact(val)
	}
	return v
}

// DefaultPatterns covers bearer credentials and Turkish IBANs.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// OpenAI style keys.
		regexp.MustCompile(`sk-[a-zA-Z0-9_\-]{20,}`),
		// Authorization header values.
		regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._\-]{16,}`),
		// TR IBAN, with or without grouping spaces.
		regexp.MustCompile(`TR\d{2}(?:\s?\d{4}){5}\s?\d{2}`),
	}
}
