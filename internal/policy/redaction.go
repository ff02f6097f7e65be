package policy

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
)

// RedactPII masks common high-risk PII patterns in free text before it
// reaches logs or the audit trail.
func RedactPII(input string) (redacted string, changed bool) {
	out := input

	next := emailPattern.ReplaceAllString(out, "[REDACTED_EMAIL]")
	changed = changed || next != out
	out = next

	// Run card redaction before phone to avoid card numbers being classified as phone.
	next = cardPattern.ReplaceAllString(out, "[REDACTED_CARD]")
	changed = changed || next != out
	out = next

	next = phonePattern.ReplaceAllString(out, "[REDACTED_PHONE]")
	changed = changed || next != out
	out = next

	return out, changed
}

// MaskPhone keeps the last four digits of a caller number so stored audit
// records stay correlatable without retaining the full number.
func MaskPhone(number string) string {
	trimmed := strings.TrimSpace(number)
	digits := 0
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits <= 4 {
		return trimmed
	}

	kept := 0
	out := []rune(trimmed)
	for i := len(out) - 1; i >= 0; i-- {
		r := out[i]
		if r < '0' || r > '9' {
			continue
		}
		if kept < 4 {
			kept++
			continue
		}
		out[i] = '*'
	}
	return string(out)
}
