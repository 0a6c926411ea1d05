// Package sandbox defines the capability surface the execution engine
// consumes from an external container backend: establish access, build an
// isolated environment, run the agent entrypoint, tear everything down.
//
// Two backend styles exist. Backends with a persistent handle (kubernetes)
// require Connect before the first Build and report ErrNotConnected
// otherwise. Backends without a reusable handle (docker) establish access
// transparently per build; their Connect is a reachability check.
// Implementations declare which style they are via Ready and whether one
// session may back concurrent builds via SupportsConcurrentBuilds.
package sandbox

import (
	"context"
	"errors"
	"time"
)

// ErrNotConnected is returned by Ready and Build when a backend that
// requires an explicit Connect is used before one.
var ErrNotConnected = errors.New("sandbox session not connected")

// BuildSpec describes one ephemeral execution environment. Constructed by
// the runner per invocation and discarded afterwards.
type BuildSpec struct {
	// Runtime is the agent's declared language runtime (api.Runtime*).
	Runtime string

	// Entrypoint is the agent entrypoint path within the workspace.
	Entrypoint string

	// Workspace maps workspace-relative paths to file contents.
	Workspace map[string]string

	// Requirements lists packages to install before execution.
	Requirements []string

	// Secrets maps names to sensitive values. Backends bind them as
	// secret-scoped files, never as plain environment variables, and must
	// keep them out of every build log and cache.
	Secrets map[string]string

	// MemoryLimitMB is the hard memory ceiling for the environment.
	MemoryLimitMB int

	// AllowNetwork enables outbound network access. Off by default.
	AllowNetwork bool
}

// RunResult is the captured outcome of running the agent entrypoint.
// Stdout is reserved for the single serialized result value; all other
// diagnostic output lands in Stderr.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Environment is a built execution environment ready to run the agent
// entrypoint exactly once.
type Environment interface {
	// Run executes the entrypoint with input as its single argument under
	// a hard wall-clock timeout. A nonzero exit is reported via
	// RunResult.ExitCode, not an error. On timeout Run returns an error
	// wrapping context.DeadlineExceeded; the caller is expected to Close
	// the environment, which forcibly terminates the process.
	Run(ctx context.Context, input string, timeout time.Duration) (*RunResult, error)

	// Close tears the environment down, terminating any process still
	// running in it.
	Close(ctx context.Context) error
}

// Session owns the lifecycle of the handle to the execution backend. One
// session serves many invocations; each Build produces a fresh isolated
// Environment.
type Session interface {
	// Name identifies the backend for logs and metrics labels.
	Name() string

	// Connect establishes backend access. For per-call backends this is a
	// reachability check and may be a no-op.
	Connect(ctx context.Context) error

	// Ready reports whether the session can serve builds. Persistent
	// backends return ErrNotConnected before Connect.
	Ready() error

	// Build assembles a fresh execution environment from the build spec.
	Build(ctx context.Context, spec *BuildSpec) (Environment, error)

	// SupportsConcurrentBuilds reports whether this session may safely
	// back concurrent builds. A backend capability, surfaced rather than
	// assumed; callers that need ordering serialize externally.
	SupportsConcurrentBuilds() bool

	// Close releases the backend handle. The session must not be used
	// afterwards.
	Close(ctx context.Context) error
}
