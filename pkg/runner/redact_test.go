package runner

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestRedactor_Verbatim(t *testing.T) {
	r := newRedactor(map[string]string{"DB_PASS": "tops3cret"})

	got := r.redact("connect failed: password tops3cret rejected")
	if strings.Contains(got, "tops3cret") {
		t.Errorf("secret survived: %q", got)
	}
	if !strings.Contains(got, "[REDACTED:DB_PASS]") {
		t.Errorf("mask missing: %q", got)
	}
}

func TestRedactor_Base64Form(t *testing.T) {
	r := newRedactor(map[string]string{"TOKEN": "tops3cret"})
	encoded := base64.StdEncoding.EncodeToString([]byte("tops3cret"))

	got := r.redact("header was Bearer " + encoded)
	if strings.Contains(got, encoded) {
		t.Errorf("base64 form survived: %q", got)
	}
}

func TestRedactor_MultipleSecrets(t *testing.T) {
	r := newRedactor(map[string]string{"A": "alpha-value", "B": "beta-value"})

	got := r.redact("alpha-value and beta-value appeared")
	if strings.Contains(got, "alpha-value") || strings.Contains(got, "beta-value") {
		t.Errorf("secret survived: %q", got)
	}
}

func TestRedactor_NoSecrets(t *testing.T) {
	for _, r := range []*redactor{
		newRedactor(nil),
		newRedactor(map[string]string{}),
		newRedactor(map[string]string{"EMPTY": ""}),
	} {
		in := "nothing to hide"
		if got := r.redact(in); got != in {
			t.Errorf("redact(%q) = %q", in, got)
		}
	}
}
