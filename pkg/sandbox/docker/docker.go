// Package docker implements the sandbox backend on top of the local
// container daemon via testcontainers-go. Access is established per build;
// there is no persistent handle, so Connect is a documented no-op and the
// session is ready from construction (the per-call strategy from the
// session contract).
package docker

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/testcontainers/testcontainers-go"
	tcexec "github.com/testcontainers/testcontainers-go/exec"

	"github.com/rhuss/enclave/pkg/api"
	"github.com/rhuss/enclave/pkg/debug"
	"github.com/rhuss/enclave/pkg/sandbox"
)

// Ensure Session implements sandbox.Session.
var _ sandbox.Session = (*Session)(nil)

const (
	workDir    = "/work"
	secretsDir = "/run/secrets"
	stderrPath = "/tmp/agent-stderr"
	pylibsDir  = workDir + "/.pylibs"
)

// defaultImages maps runtimes to base images. Overridable via Options.
var defaultImages = map[string]string{
	api.RuntimePython: "python:3.12-slim",
	api.RuntimeNode:   "node:22-slim",
	api.RuntimeGolang: "golang:1.25",
	api.RuntimeShell:  "debian:bookworm-slim",
}

// interpreters maps runtimes to the command that runs the entrypoint.
var interpreters = map[string][]string{
	api.RuntimePython: {"python3"},
	api.RuntimeNode:   {"node"},
	api.RuntimeGolang: {"go", "run"},
	api.RuntimeShell:  {"bash"},
}

// Options configures the docker backend.
type Options struct {
	// Images overrides the base image per runtime.
	Images map[string]string

	// PythonIndex is the package index for python requirement installs.
	// Default: https://pypi.org/simple/.
	PythonIndex string

	// ConcurrentBuilds declares whether the local daemon should be asked
	// to build concurrently. The daemon itself copes with concurrency;
	// this flag exists so operators can force serialization on small
	// hosts.
	ConcurrentBuilds bool
}

// Session is the per-call docker session. It holds configuration only; the
// daemon connection is established inside each Build.
type Session struct {
	opts Options
}

// NewSession creates a docker-backed session.
func NewSession(opts Options) *Session {
	if opts.PythonIndex == "" {
		opts.PythonIndex = "https://pypi.org/simple/"
	}
	return &Session{opts: opts}
}

// Name identifies the backend.
func (s *Session) Name() string { return "docker" }

// Connect is a no-op: the docker backend has no reusable handle and
// establishes daemon access transparently on every Build.
func (s *Session) Connect(ctx context.Context) error { return nil }

// Ready always reports ready; see Connect.
func (s *Session) Ready() error { return nil }

// SupportsConcurrentBuilds reports the configured concurrency capability.
func (s *Session) SupportsConcurrentBuilds() bool { return s.opts.ConcurrentBuilds }

// Close releases nothing; per-build containers are owned by their
// Environment.
func (s *Session) Close(ctx context.Context) error { return nil }

// Build starts a fresh container for the build spec: base image resolved from
// the runtime, workspace files copied in, secrets bound as 0400 files
// under /run/secrets, memory ceiling and network policy applied, then
// declared requirements installed.
func (s *Session) Build(ctx context.Context, spec *sandbox.BuildSpec) (sandbox.Environment, error) {
	runtime := spec.Runtime
	if runtime == "" {
		runtime = api.RuntimePython
	}

	interpreter, ok := interpreters[runtime]
	if !ok {
		return nil, fmt.Errorf("no interpreter for runtime %q", runtime)
	}

	var files []testcontainers.ContainerFile
	for name, content := range spec.Workspace {
		files = append(files, testcontainers.ContainerFile{
			Reader:            strings.NewReader(content),
			ContainerFilePath: path.Join(workDir, name),
			FileMode:          0o644,
		})
	}

	// Secrets are bound as files readable only by the agent. The
	// environment carries the file path, never the value.
	env := map[string]string{"OUTPUT_DIR": workDir}
	if runtime == api.RuntimePython {
		env["PYTHONPATH"] = pylibsDir
	}
	for name, value := range spec.Secrets {
		secretPath := path.Join(secretsDir, name)
		files = append(files, testcontainers.ContainerFile{
			Reader:            strings.NewReader(value),
			ContainerFilePath: secretPath,
			FileMode:          0o400,
		})
		env[secretEnvName(name)] = secretPath
	}

	req := testcontainers.ContainerRequest{
		Image:      s.imageFor(runtime),
		Cmd:        []string{"sleep", "infinity"},
		WorkingDir: workDir,
		Files:      files,
		Env:        env,
		HostConfigModifier: func(hc *container.HostConfig) {
			if spec.MemoryLimitMB > 0 {
				hc.Resources = container.Resources{
					Memory: int64(spec.MemoryLimitMB) << 20,
				}
			}
			if !spec.AllowNetwork {
				hc.NetworkMode = "none"
			}
		},
	}

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start container: %w", err)
	}

	debug.Log("sandbox", "container started",
		"image", req.Image,
		"runtime", runtime,
		"memory_mb", spec.MemoryLimitMB,
		"network", spec.AllowNetwork,
		"secrets", len(spec.Secrets),
	)

	envr := &environment{
		ctr:         ctr,
		interpreter: interpreter,
		entrypoint:  path.Join(workDir, spec.Entrypoint),
	}

	if len(spec.Requirements) > 0 {
		if err := s.installRequirements(ctx, ctr, runtime, spec.Requirements); err != nil {
			envr.Close(context.Background())
			return nil, err
		}
	}

	return envr, nil
}

func (s *Session) imageFor(runtime string) string {
	if img, ok := s.opts.Images[runtime]; ok && img != "" {
		return img
	}
	return defaultImages[runtime]
}

// installRequirements installs packages based on the runtime. Go and shell
// have no per-invocation package step and skip silently.
func (s *Session) installRequirements(ctx context.Context, ctr testcontainers.Container, runtime string, reqs []string) error {
	var cmd []string
	switch runtime {
	case api.RuntimePython:
		cmd = append([]string{"pip", "install", "--quiet", "--no-cache-dir",
			"--target", pylibsDir, "--index-url", s.opts.PythonIndex}, reqs...)
	case api.RuntimeNode:
		cmd = append([]string{"npm", "install", "--prefix", workDir}, reqs...)
	default:
		return nil
	}

	debug.Log("sandbox", "installing requirements", "runtime", runtime, "count", len(reqs))
	code, reader, err := ctr.Exec(ctx, cmd, tcexec.Multiplexed())
	if err != nil {
		return fmt.Errorf("install requirements: %w", err)
	}
	if code != 0 {
		output, _ := io.ReadAll(reader)
		return fmt.Errorf("install requirements: exit code %d: %s", code, strings.TrimSpace(string(output)))
	}
	return nil
}

// secretEnvName maps a secret name to the variable carrying its file path,
// e.g. "API_KEY" -> "ENCLAVE_SECRET_API_KEY_FILE".
func secretEnvName(name string) string {
	upper := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
	return "ENCLAVE_SECRET_" + upper + "_FILE"
}

// environment is one running container prepared for a single Run.
type environment struct {
	ctr         testcontainers.Container
	interpreter []string
	entrypoint  string
}

// Run executes the entrypoint with the serialized input as its single
// argument. Stderr is redirected to a file inside the container so the
// exec stream carries stdout only; the file is read back for diagnostics
// after a failed run. Timeout expiry surfaces as an error wrapping
// context.DeadlineExceeded.
func (e *environment) Run(ctx context.Context, input string, timeout time.Duration) (*sandbox.RunResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Positional parameters keep the input out of shell parsing.
	cmd := []string{"/bin/sh", "-c", `exec "$@" 2>` + stderrPath, "sh"}
	cmd = append(cmd, e.interpreter...)
	cmd = append(cmd, e.entrypoint, input)

	start := time.Now()
	code, reader, err := e.ctr.Exec(runCtx, cmd, tcexec.Multiplexed())
	duration := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("execution exceeded %s: %w", timeout, context.DeadlineExceeded)
	}
	if err != nil {
		return nil, fmt.Errorf("exec entrypoint: %w", err)
	}

	stdout, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}

	result := &sandbox.RunResult{
		Stdout:   string(stdout),
		ExitCode: code,
		Duration: duration,
	}
	if code != 0 {
		result.Stderr = e.readStderr(ctx)
	}
	return result, nil
}

// readStderr reads the redirected stderr file. Failures degrade to an
// empty string; diagnostics are best-effort.
func (e *environment) readStderr(ctx context.Context) string {
	code, reader, err := e.ctr.Exec(ctx, []string{"cat", stderrPath}, tcexec.Multiplexed())
	if err != nil || code != 0 {
		return ""
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return ""
	}
	return string(data)
}

// Close terminates the container, killing any process still running.
func (e *environment) Close(ctx context.Context) error {
	if err := e.ctr.Terminate(ctx); err != nil {
		return fmt.Errorf("terminate container: %w", err)
	}
	return nil
}
