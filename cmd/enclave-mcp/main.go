// Command enclave-mcp exposes the enclave executor as an MCP tool over
// streamable HTTP. The "run_agent" tool accepts agent code plus an
// execution contract and returns the normalized result envelope.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/enclave/pkg/api"
	"github.com/rhuss/enclave/pkg/config"
	"github.com/rhuss/enclave/pkg/debug"
	"github.com/rhuss/enclave/pkg/runner"
	"github.com/rhuss/enclave/pkg/sandbox/docker"
)

// RunAgentInput is the MCP tool input for one agent invocation.
type RunAgentInput struct {
	Code           string         `json:"code" jsonschema_description:"Agent source code; becomes the entrypoint file"`
	Runtime        string         `json:"runtime,omitempty" jsonschema_description:"python, node, golang, or shell (default: python)"`
	Requirements   []string       `json:"requirements,omitempty" jsonschema_description:"Packages to install before execution"`
	Input          any            `json:"input,omitempty" jsonschema_description:"Value passed to the agent as its single JSON argument"`
	TimeoutSeconds int            `json:"timeout_seconds,omitempty" jsonschema_description:"Wall-clock timeout (default: 60)"`
	MaxMemoryMB    int            `json:"max_memory_mb,omitempty" jsonschema_description:"Memory ceiling in MB (default: 512)"`
	OutputSchema   map[string]any `json:"output_schema,omitempty" jsonschema_description:"Schema the agent output must conform to"`
}

// entrypointNames maps runtimes to the entrypoint filename for inline code.
var entrypointNames = map[string]string{
	api.RuntimePython: "agent.py",
	api.RuntimeNode:   "agent.js",
	api.RuntimeGolang: "agent.go",
	api.RuntimeShell:  "agent.sh",
}

func main() {
	debug.Init()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	cfg, err := config.Load("")
	if err != nil {
		slog.Error("configuration failed", "error", err.Error())
		os.Exit(1)
	}

	// The MCP binary serves local development; it always uses the docker
	// backend regardless of the configured service backend.
	session := docker.NewSession(docker.Options{
		Images:           cfg.Backend.Docker.Images,
		PythonIndex:      cfg.Backend.Docker.PythonIndex,
		ConcurrentBuilds: cfg.Backend.Docker.ConcurrentBuilds,
	})
	executor := runner.New(session)

	server := mcp.NewServer(
		&mcp.Implementation{Name: "enclave", Version: "v1.0.0"},
		nil,
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_agent",
		Description: "Run agent code in an isolated, resource-bounded sandbox and validate its output against a schema.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input RunAgentInput) (*mcp.CallToolResult, struct{}, error) {
		result := runAgent(ctx, executor, input)

		rendered, err := json.Marshal(result)
		if err != nil {
			return nil, struct{}{}, fmt.Errorf("render result: %w", err)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(rendered)}},
			IsError: !result.Success,
		}, struct{}{}, nil
	})

	handler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return server
	}, nil)

	httpMux := http.NewServeMux()
	httpMux.Handle("/mcp", handler)
	httpMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})

	slog.Info("enclave MCP server starting", "port", port)
	if err := http.ListenAndServe(":"+port, httpMux); err != nil {
		slog.Error("server failed", "error", err.Error())
		os.Exit(1)
	}
}

// runAgent translates the tool input into an invocation and executes it.
func runAgent(ctx context.Context, executor *runner.Executor, input RunAgentInput) *api.ExecutionResult {
	runtime := input.Runtime
	if runtime == "" {
		runtime = api.RuntimePython
	}

	timeout := input.TimeoutSeconds
	if timeout <= 0 {
		timeout = 60
	}
	memory := input.MaxMemoryMB
	if memory <= 0 {
		memory = 512
	}

	entrypoint := entrypointNames[runtime]
	if entrypoint == "" {
		entrypoint = "agent.py"
	}

	return executor.Execute(ctx,
		&api.ExecutionConfig{
			MaxMemoryMB:    memory,
			TimeoutSeconds: timeout,
			OutputSchema:   input.OutputSchema,
		},
		&api.AgentInvocation{
			AgentPath:    entrypoint,
			Runtime:      runtime,
			Workspace:    map[string]string{entrypoint: input.Code},
			Requirements: input.Requirements,
			Input:        input.Input,
		},
	)
}
