package api

import "fmt"

// ValidateConfig checks an ExecutionConfig for validity. It returns an
// error describing the first validation failure, or nil if the config is
// valid.
func ValidateConfig(cfg *ExecutionConfig) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if cfg.MaxMemoryMB <= 0 {
		return fmt.Errorf("max_memory_mb must be positive, got %d", cfg.MaxMemoryMB)
	}
	if cfg.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive, got %d", cfg.TimeoutSeconds)
	}
	for name := range cfg.Secrets {
		if name == "" {
			return fmt.Errorf("secrets must not contain an empty name")
		}
	}
	return nil
}

// ValidateInvocation checks an AgentInvocation for structural validity.
func ValidateInvocation(inv *AgentInvocation) error {
	if inv == nil {
		return fmt.Errorf("invocation is required")
	}
	if inv.AgentPath == "" {
		return fmt.Errorf("agent_path is required")
	}
	switch inv.Runtime {
	case "", RuntimePython, RuntimeNode, RuntimeGolang, RuntimeShell:
	default:
		return fmt.Errorf("unsupported runtime %q (supported: python, node, golang, shell)", inv.Runtime)
	}
	if len(inv.Workspace) > 0 {
		if _, ok := inv.Workspace[inv.AgentPath]; !ok {
			return fmt.Errorf("agent_path %q not found in workspace", inv.AgentPath)
		}
	}
	return nil
}
