package kubernetes

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rhuss/enclave/pkg/sandbox"
)

// timeoutGrace is added on top of the agent timeout for the HTTP round
// trip; the pod runner enforces the primary timeout itself.
const timeoutGrace = 5 * time.Second

// executeRequest is the request body for POST /execute on the pod runner.
// Workspace and secret file contents are base64-encoded. The runner
// materializes secret files with mode 0400 and excludes them from its
// logging.
type executeRequest struct {
	Entrypoint     string            `json:"entrypoint"`
	Runtime        string            `json:"runtime,omitempty"`
	Input          string            `json:"input"`
	TimeoutSeconds int               `json:"timeout_seconds"`
	Workspace      map[string]string `json:"workspace,omitempty"`
	Requirements   []string          `json:"requirements,omitempty"`
	SecretFiles    map[string]string `json:"secret_files,omitempty"`
	MemoryLimitMB  int               `json:"memory_limit_mb,omitempty"`
}

// executeResponse is the response from POST /execute on the pod runner.
type executeResponse struct {
	Status          string `json:"status"`
	Stdout          string `json:"stdout"`
	Stderr          string `json:"stderr"`
	ExitCode        int    `json:"exit_code"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
	TimedOut        bool   `json:"timed_out,omitempty"`
}

// podClient calls the pod runner's REST API.
type podClient struct {
	httpClient *http.Client
}

func newPodClient() *podClient {
	// No client-level timeout: the per-request context carries the
	// execution deadline.
	return &podClient{httpClient: &http.Client{}}
}

func (c *podClient) execute(ctx context.Context, baseURL string, req *executeRequest) (*executeResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("pod runner request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("pod runner at capacity (HTTP 429)")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pod runner returned HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var execResp executeResponse
	if err := json.Unmarshal(respBody, &execResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &execResp, nil
}

// podEnvironment is one claimed sandbox pod prepared for a single Run.
type podEnvironment struct {
	runner  *podClient
	baseURL string
	spec    *sandbox.BuildSpec
	release func()
}

// Run executes the entrypoint in the pod. The pod runner enforces the
// timeout on its side; the request context adds a small grace margin so
// the call never outlives the timeout by more than the round trip.
func (e *podEnvironment) Run(ctx context.Context, input string, timeout time.Duration) (*sandbox.RunResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout+timeoutGrace)
	defer cancel()

	req := &executeRequest{
		Entrypoint:     e.spec.Entrypoint,
		Runtime:        e.spec.Runtime,
		Input:          input,
		TimeoutSeconds: int(timeout / time.Second),
		Requirements:   e.spec.Requirements,
		MemoryLimitMB:  e.spec.MemoryLimitMB,
	}
	if len(e.spec.Workspace) > 0 {
		req.Workspace = make(map[string]string, len(e.spec.Workspace))
		for name, content := range e.spec.Workspace {
			req.Workspace[name] = base64.StdEncoding.EncodeToString([]byte(content))
		}
	}
	if len(e.spec.Secrets) > 0 {
		req.SecretFiles = make(map[string]string, len(e.spec.Secrets))
		for name, value := range e.spec.Secrets {
			req.SecretFiles[name] = base64.StdEncoding.EncodeToString([]byte(value))
		}
	}

	start := time.Now()
	resp, err := e.runner.execute(runCtx, e.baseURL, req)
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("execution exceeded %s: %w", timeout, context.DeadlineExceeded)
		}
		return nil, err
	}

	if resp.TimedOut {
		return nil, fmt.Errorf("execution exceeded %s: %w", timeout, context.DeadlineExceeded)
	}

	duration := time.Since(start)
	if resp.ExecutionTimeMs > 0 {
		duration = time.Duration(resp.ExecutionTimeMs) * time.Millisecond
	}

	return &sandbox.RunResult{
		Stdout:   resp.Stdout,
		Stderr:   resp.Stderr,
		ExitCode: resp.ExitCode,
		Duration: duration,
	}, nil
}

// Close releases the SandboxClaim backing this environment.
func (e *podEnvironment) Close(ctx context.Context) error {
	e.release()
	return nil
}
