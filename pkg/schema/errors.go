package schema

import (
	"fmt"
	"strings"
)

// FieldError is a single validation failure at one location in the value.
type FieldError struct {
	// Path locates the offending value, e.g. "ok", "items[2].name".
	// Empty for the root value.
	Path string

	// Reason describes the failure, e.g. `expected type "boolean", got string`.
	Reason string
}

// String renders the error as "path: reason", or just the reason at the root.
func (e FieldError) String() string {
	if e.Path == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// ValidationErrors is the structured list of failures from one validation
// pass. A nil or empty list means the value conformed.
type ValidationErrors []FieldError

// Error renders all failures, semicolon-separated, for embedding in a
// result envelope. The structured form stays available to callers that
// need per-field handling.
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.String()
	}
	return strings.Join(parts, "; ")
}

// joinPath appends a property name to a field path.
func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}

// indexPath appends an array index to a field path.
func indexPath(base string, i int) string {
	return fmt.Sprintf("%s[%d]", base, i)
}
