// Package debug provides category-based debug logging for enclave.
//
// Two orthogonal controls:
//   - Categories (WHAT to debug): controlled via ENCLAVE_DEBUG env
//   - Levels (HOW MUCH detail): controlled via ENCLAVE_LOG_LEVEL env
//
// Usage:
//
//	debug.Log("sandbox", "container started", "image", img)
//	if debug.Enabled("sandbox") { /* expensive formatting */ }
//
// Categories: sandbox, runner, schema, auth, config, http, mcp, all.
// Levels: ERROR, WARN, INFO, DEBUG, TRACE.
//
// Secret values must never reach a debug call, at any level. Callers
// log secret names and counts only.
package debug

import (
	"log/slog"
	"os"
	"strings"
)

// LevelTrace sits below slog.LevelDebug for maximum verbosity.
const LevelTrace = slog.LevelDebug - 4

// categories holds the set of enabled debug categories.
// Read-only after Init(), so no synchronization needed.
var categories map[string]bool

func init() {
	categories = parseCategories(os.Getenv("ENCLAVE_DEBUG"))
}

// Init configures the debug system from the environment and installs
// the default slog handler at the requested level.
func Init() {
	categories = parseCategories(os.Getenv("ENCLAVE_DEBUG"))

	level := os.Getenv("ENCLAVE_LOG_LEVEL")
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})))
}

// Enabled reports whether debug output is active for the given category.
func Enabled(category string) bool {
	return categories["all"] || categories[category]
}

// Log emits a debug message for the given category.
// If the category is not enabled, this is a no-op.
func Log(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// ParseLevel converts a level string to a slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "INFO", "":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Truncate returns s cut to maxLen characters, with "..." appended if cut.
// Used to keep container log excerpts out of debug output at sane sizes.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	for _, cat := range strings.Split(s, ",") {
		cat = strings.TrimSpace(strings.ToLower(cat))
		if cat != "" {
			m[cat] = true
		}
	}
	return m
}
