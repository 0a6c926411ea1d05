package api

// Runtime identifiers accepted in AgentInvocation.Runtime. The zero value
// resolves to RuntimePython.
const (
	RuntimePython = "python"
	RuntimeNode   = "node"
	RuntimeGolang = "golang"
	RuntimeShell  = "shell"
)

// ExecutionConfig describes the resource limits, output contract, and
// secret material for exactly one invocation. It is constructed fresh per
// call and never mutated by the engine.
type ExecutionConfig struct {
	// MaxMemoryMB is the hard memory ceiling for the sandbox, in megabytes.
	MaxMemoryMB int `json:"max_memory_mb"`

	// TimeoutSeconds is the wall-clock execution timeout. On expiry the
	// agent process is forcibly terminated.
	TimeoutSeconds int `json:"timeout_seconds"`

	// OutputSchema is a declarative schema document the agent's output must
	// conform to. A nil or empty document accepts any output unchecked.
	OutputSchema map[string]any `json:"output_schema,omitempty"`

	// Secrets maps secret names to sensitive values. Values are bound into
	// the sandbox as secret-scoped files and are redacted from every error
	// message and log the engine returns.
	Secrets map[string]string `json:"secrets,omitempty"`

	// AllowNetwork enables outbound network access for the sandbox.
	// Disabled by default.
	AllowNetwork bool `json:"allow_network,omitempty"`
}

// AgentInvocation identifies the agent to run and the input to hand it.
// Constructed fresh per call, immutable.
type AgentInvocation struct {
	// AgentPath is the entrypoint file within the workspace, for example
	// "agent.py".
	AgentPath string `json:"agent_path"`

	// Runtime selects the language runtime for the agent. Empty means
	// python.
	Runtime string `json:"runtime,omitempty"`

	// Workspace maps workspace-relative paths to file contents. The
	// entrypoint must be one of the entries unless the backend already
	// ships the agent code.
	Workspace map[string]string `json:"workspace,omitempty"`

	// Requirements lists packages to install before execution, in the
	// runtime's native package manager syntax.
	Requirements []string `json:"requirements,omitempty"`

	// Input is an opaque serializable value passed to the agent as its
	// single argument, JSON-encoded.
	Input any `json:"input,omitempty"`
}

// ExecutionResult is the normalized envelope returned for every invocation.
//
// Invariants: Success implies Output is present and schema-validated and
// Error is empty. Failure implies Error is set and Output is absent.
// ExecutionTimeMs is populated for every outcome, including failures that
// happen before the agent runs. ContainerLogs is attached only for
// execution-category failures.
type ExecutionResult struct {
	Success         bool   `json:"success"`
	Output          any    `json:"output,omitempty"`
	Error           string `json:"error,omitempty"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
	ContainerLogs   string `json:"container_logs,omitempty"`
}
