package runner

import (
	"encoding/base64"
	"strings"
)

// redactor rewrites configured secret values out of diagnostic text.
// Besides the verbatim value it also covers the base64 form, which is how
// secrets most commonly survive a trivial transformation into backend
// error output.
type redactor struct {
	replacer *strings.Replacer
}

func newRedactor(secrets map[string]string) *redactor {
	if len(secrets) == 0 {
		return &redactor{}
	}
	var pairs []string
	for name, value := range secrets {
		if value == "" {
			continue
		}
		mask := "[REDACTED:" + name + "]"
		pairs = append(pairs, value, mask)
		pairs = append(pairs, base64.StdEncoding.EncodeToString([]byte(value)), mask)
	}
	if len(pairs) == 0 {
		return &redactor{}
	}
	return &redactor{replacer: strings.NewReplacer(pairs...)}
}

// redact returns s with every secret occurrence masked.
func (r *redactor) redact(s string) string {
	if r.replacer == nil || s == "" {
		return s
	}
	return r.replacer.Replace(s)
}
