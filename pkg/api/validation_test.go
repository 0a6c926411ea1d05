package api

import (
	"strings"
	"testing"
)

func TestValidateConfig(t *testing.T) {
	valid := &ExecutionConfig{MaxMemoryMB: 512, TimeoutSeconds: 5}
	if err := ValidateConfig(valid); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name    string
		cfg     *ExecutionConfig
		wantSub string
	}{
		{"nil", nil, "config is required"},
		{"zero memory", &ExecutionConfig{TimeoutSeconds: 5}, "max_memory_mb"},
		{"negative memory", &ExecutionConfig{MaxMemoryMB: -1, TimeoutSeconds: 5}, "max_memory_mb"},
		{"zero timeout", &ExecutionConfig{MaxMemoryMB: 512}, "timeout_seconds"},
		{"empty secret name", &ExecutionConfig{MaxMemoryMB: 512, TimeoutSeconds: 5, Secrets: map[string]string{"": "v"}}, "empty name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error = %q, want substring %q", err, tt.wantSub)
			}
		})
	}
}

func TestValidateInvocation(t *testing.T) {
	valid := &AgentInvocation{
		AgentPath: "agent.py",
		Workspace: map[string]string{"agent.py": "print('hi')"},
	}
	if err := ValidateInvocation(valid); err != nil {
		t.Fatalf("valid invocation rejected: %v", err)
	}

	// Empty workspace is allowed: the backend may ship the agent code.
	if err := ValidateInvocation(&AgentInvocation{AgentPath: "agent.py"}); err != nil {
		t.Fatalf("invocation without workspace rejected: %v", err)
	}

	tests := []struct {
		name    string
		inv     *AgentInvocation
		wantSub string
	}{
		{"nil", nil, "invocation is required"},
		{"missing path", &AgentInvocation{}, "agent_path"},
		{"bad runtime", &AgentInvocation{AgentPath: "a.rb", Runtime: "ruby"}, "unsupported runtime"},
		{"entrypoint not in workspace", &AgentInvocation{
			AgentPath: "agent.py",
			Workspace: map[string]string{"other.py": ""},
		}, "not found in workspace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInvocation(tt.inv)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error = %q, want substring %q", err, tt.wantSub)
			}
		})
	}
}
