// Package runner orchestrates one bounded, isolated agent invocation:
// session access, environment build, timed execution, output parsing,
// schema validation, and normalization of every failure into the result
// envelope. Nothing escapes Execute as an error; callers branch on
// ExecutionResult.Success.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rhuss/enclave/pkg/api"
	"github.com/rhuss/enclave/pkg/debug"
	"github.com/rhuss/enclave/pkg/observability"
	"github.com/rhuss/enclave/pkg/sandbox"
	"github.com/rhuss/enclave/pkg/schema"
)

// Executor runs agent invocations against one sandbox session. Each call
// to Execute is an independent unit of work over immutable inputs; the
// executor itself holds no per-invocation state and is safe for
// concurrent use to the extent the session's backend is (see
// sandbox.Session.SupportsConcurrentBuilds).
type Executor struct {
	session sandbox.Session
}

// New creates an Executor over the given session. The caller owns the
// session lifecycle: Connect before first use where the backend requires
// it, Close when done.
func New(session sandbox.Session) *Executor {
	return &Executor{session: session}
}

// Session exposes the underlying session for lifecycle management.
func (e *Executor) Session() sandbox.Session { return e.session }

// Execute runs one agent invocation end to end and returns the normalized
// result envelope. Every failure category is folded into the envelope;
// ExecutionTimeMs is populated for every outcome and every configured
// secret value is redacted from error text and container logs.
func (e *Executor) Execute(ctx context.Context, cfg *api.ExecutionConfig, inv *api.AgentInvocation) *api.ExecutionResult {
	start := time.Now()
	inv0 := &invocation{
		executor: e,
		start:    start,
		state:    api.StateCreated,
	}
	if cfg != nil {
		inv0.redactor = newRedactor(cfg.Secrets)
	} else {
		inv0.redactor = newRedactor(nil)
	}

	observability.ActiveExecutions.Inc()
	defer observability.ActiveExecutions.Dec()

	result := inv0.run(ctx, cfg, inv)

	observability.ExecutionsTotal.WithLabelValues(e.session.Name(), string(inv0.state)).Inc()
	observability.ExecutionDuration.WithLabelValues(e.session.Name()).Observe(time.Since(start).Seconds())

	slog.Info("invocation finished",
		"backend", e.session.Name(),
		"state", inv0.state,
		"success", result.Success,
		"duration_ms", result.ExecutionTimeMs,
	)
	return result
}

// invocation carries the per-call state machine and redaction context.
type invocation struct {
	executor *Executor
	start    time.Time
	state    api.InvocationState
	redactor *redactor
}

func (in *invocation) run(ctx context.Context, cfg *api.ExecutionConfig, inv *api.AgentInvocation) *api.ExecutionResult {
	// Backend access is checked while still in CREATED; a backend that
	// requires an explicit Connect fails here deterministically.
	if err := in.executor.session.Ready(); err != nil {
		in.advance(api.StateConnectionFailed)
		return in.fail(api.NewConnectionError("execution backend not available: "+err.Error(), err))
	}

	in.advance(api.StateBuilding)

	if err := api.ValidateConfig(cfg); err != nil {
		in.advance(api.StateCrashed)
		return in.fail(api.NewBuildError("invalid execution config: "+err.Error(), err))
	}
	if err := api.ValidateInvocation(inv); err != nil {
		in.advance(api.StateCrashed)
		return in.fail(api.NewBuildError("invalid invocation: "+err.Error(), err))
	}

	validator, err := schema.Compile(cfg.OutputSchema)
	if err != nil {
		in.advance(api.StateCrashed)
		return in.fail(api.NewBuildError("invalid output schema: "+err.Error(), err))
	}

	input, err := json.Marshal(inv.Input)
	if err != nil {
		in.advance(api.StateCrashed)
		return in.fail(api.NewBuildError("serialize input: "+err.Error(), err))
	}

	buildStart := time.Now()
	env, err := in.executor.session.Build(ctx, &sandbox.BuildSpec{
		Runtime:       inv.Runtime,
		Entrypoint:    inv.AgentPath,
		Workspace:     inv.Workspace,
		Requirements:  inv.Requirements,
		Secrets:       cfg.Secrets,
		MemoryLimitMB: cfg.MaxMemoryMB,
		AllowNetwork:  cfg.AllowNetwork,
	})
	if err != nil {
		in.advance(api.StateCrashed)
		return in.fail(api.NewBuildError("build environment: "+err.Error(), err))
	}
	observability.BuildDuration.WithLabelValues(in.executor.session.Name()).Observe(time.Since(buildStart).Seconds())

	// Closing the environment terminates any process still running in it,
	// which is the forced-termination half of the timeout contract.
	defer func() {
		if cerr := env.Close(context.Background()); cerr != nil {
			slog.Warn("environment teardown failed", "error", cerr.Error())
		}
	}()

	in.advance(api.StateRunning)

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	res, err := env.Run(ctx, string(input), timeout)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			in.advance(api.StateTimedOut)
			return in.fail(api.NewTimeoutError(
				fmt.Sprintf("agent execution timed out after %d seconds", cfg.TimeoutSeconds), err))
		}
		in.advance(api.StateCrashed)
		return in.fail(api.NewExecutionError("agent execution failed: "+err.Error(), "", err))
	}
	if res.ExitCode != 0 {
		in.advance(api.StateCrashed)
		return in.fail(api.NewExecutionError(
			fmt.Sprintf("agent exited with code %d", res.ExitCode), res.Stderr, nil))
	}

	in.advance(api.StateCompleted)
	in.advance(api.StateParsing)

	raw := strings.TrimSpace(res.Stdout)
	if raw == "" {
		in.advance(api.StateValidationFailed)
		return in.fail(api.NewOutputParseError("agent produced no output", nil))
	}

	var output any
	if err := json.Unmarshal([]byte(raw), &output); err != nil {
		in.advance(api.StateValidationFailed)
		return in.fail(api.NewOutputParseError("agent output is not valid JSON: "+err.Error(), err))
	}

	if verrs := validator.Validate(output); len(verrs) > 0 {
		in.advance(api.StateValidationFailed)
		return in.fail(api.NewOutputValidationError("agent output violates schema: "+verrs.Error(), verrs))
	}

	in.advance(api.StateValidated)
	return &api.ExecutionResult{
		Success:         true,
		Output:          output,
		ExecutionTimeMs: in.elapsedMs(),
	}
}

// advance moves the invocation state machine. Transitions are validated
// against the lifecycle table; a violation is a programming error in the
// executor and is logged, not surfaced to the caller.
func (in *invocation) advance(to api.InvocationState) {
	if err := api.ValidateTransition(in.state, to); err != nil {
		slog.Warn("invocation state violation", "error", err.Error())
	}
	debug.Log("runner", "state transition", "from", string(in.state), "to", string(to))
	in.state = to
}

// fail folds a categorized failure into the result envelope, applying
// mandatory secret redaction to the error text and attached logs.
func (in *invocation) fail(engErr *api.EngineError) *api.ExecutionResult {
	result := &api.ExecutionResult{
		Success:         false,
		Error:           in.redactor.redact(engErr.Error()),
		ExecutionTimeMs: in.elapsedMs(),
	}
	if engErr.Category == api.ErrorCategoryExecution && engErr.Logs != "" {
		result.ContainerLogs = in.redactor.redact(engErr.Logs)
	}
	return result
}

func (in *invocation) elapsedMs() int64 {
	return time.Since(in.start).Milliseconds()
}
