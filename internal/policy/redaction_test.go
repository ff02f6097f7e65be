package policy

import (
	"strings"
	"testing"
)

func TestRedactPII(t *testing.T) {
	in := "reach me at bob@example.com or +1 555 123 4567, card 4111 1111 1111 1111"
	out, changed := RedactPII(in)
	if !changed {
		t.Fatalf("expected redaction")
	}
	if strings.Contains(out, "bob@example.com") || strings.Contains(out, "4567") || strings.Contains(out, "4111") {
		t.Fatalf("PII survived redaction: %q", out)
	}
	if !strings.Contains(out, "[REDACTED_EMAIL]") || !strings.Contains(out, "[REDACTED_CARD]") {
		t.Fatalf("missing redaction markers: %q", out)
	}
}

func TestRedactPIIUnchanged(t *testing.T) {
	out, changed := RedactPII("nothing sensitive here")
	if changed || out != "nothing sensitive here" {
		t.Fatalf("clean text was altered: %q changed=%v", out, changed)
	}
}

func TestMaskPhone(t *testing.T) {
	cases := map[string]string{
		"+15551234567": "+*******4567",
		"555-123-4567": "***-***-4567",
		"4567":         "4567",
		"":             "",
	}
	for in, want := range cases {
		if got := MaskPhone(in); got != want {
			t.Fatalf("MaskPhone(%q) = %q, want %q", in, got, want)
		}
	}
}
