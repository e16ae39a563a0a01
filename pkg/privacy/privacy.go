// Package privacy redacts personal data from ledger notes and metadata before
// they are hashed or persisted.
package privacy

import (
	"regexp"
)

// Redaction tokens written in place of matched substrings.
const (
	EmailToken  = "[REDACTED_EMAIL]"
	NumberToken = "[REDACTED_NUMBER]"
)

// Scrubber removes personal data from text and structured values.
type Scrubber interface {
	Scrub(text string) string
	ScrubValue(v any) any
}

// Redactor replaces email addresses and runs of six or more digits.
type Redactor struct {
	emailRegex *regexp.Regexp
	digitRegex *regexp.Regexp
}

// NewRedactor returns the standard redactor.
func NewRedactor() *Redactor {
	return &Redactor{
		emailRegex: regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
		digitRegex: regexp.MustCompile(`\d{6,}`),
	}
}

// Scrub redacts text. Emails go first so digits inside an address are not
// tokenized separately.
func (r *Redactor) Scrub(text string) string {
	text = r.emailRegex.ReplaceAllString(text, EmailToken)
	return r.digitRegex.ReplaceAllString(text, NumberToken)
}

// ScrubValue returns a copy of v with every string redacted, descending into
// maps and slices. Other values are returned as-is.
func (r *Redactor) ScrubValue(v any) any {
	switch t := v.(type) {
	case string:
		return r.Scrub(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = r.ScrubValue(val)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = r.Scrub(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = r.ScrubValue(val)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = r.Scrub(val)
		}
		return out
	default:
		return v
	}
}
