package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent-but-unused"))
	if err == nil {
		t.Fatal("explicit missing config file should fail")
	}

	// No explicit path, no discovered file: pure defaults.
	t.Chdir(t.TempDir())
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Backend.Type != "docker" {
		t.Errorf("backend = %q", cfg.Backend.Type)
	}
	if cfg.Auth.Type != "none" {
		t.Errorf("auth = %q", cfg.Auth.Type)
	}
	if !cfg.Observability.Metrics.Enabled || cfg.Observability.Metrics.Path != "/metrics" {
		t.Errorf("metrics = %+v", cfg.Observability.Metrics)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
  max_concurrent: 8
backend:
  type: kubernetes
  kubernetes:
    template: py-sandbox
    namespace: agents
    claim_timeout: 45s
    concurrent_builds: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Server.MaxConcurrent != 8 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Backend.Type != "kubernetes" {
		t.Errorf("backend = %q", cfg.Backend.Type)
	}
	k := cfg.Backend.Kubernetes
	if k.Template != "py-sandbox" || k.Namespace != "agents" || k.ClaimTimeout != 45*time.Second || !k.ConcurrentBuilds {
		t.Errorf("kubernetes = %+v", k)
	}
	// Unset fields keep their defaults.
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("read_timeout = %s", cfg.Server.ReadTimeout)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENCLAVE_PORT", "7070")
	t.Setenv("ENCLAVE_BACKEND", "kubernetes")
	t.Setenv("ENCLAVE_SANDBOX_TEMPLATE", "env-template")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Backend.Type != "kubernetes" || cfg.Backend.Kubernetes.Template != "env-template" {
		t.Errorf("backend = %+v", cfg.Backend)
	}
}

func TestLoad_SecretFileReference(t *testing.T) {
	dir := t.TempDir()
	secretPath := filepath.Join(dir, "token-secret")
	if err := os.WriteFile(secretPath, []byte("hmac-key\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Chdir(dir)
	t.Setenv("ENCLAVE_AUTH_TYPE", "token")
	t.Setenv("ENCLAVE_AUTH_SECRET_FILE", secretPath)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.Secret != "hmac-key" {
		t.Errorf("secret = %q, want trimmed file contents", cfg.Auth.Secret)
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"bad port", func(c *Config) { c.Server.Port = -1 }, "server.port"},
		{"zero concurrency", func(c *Config) { c.Server.MaxConcurrent = 0 }, "max_concurrent"},
		{"unknown backend", func(c *Config) { c.Backend.Type = "firecracker" }, "backend.type"},
		{"kubernetes without template", func(c *Config) { c.Backend.Type = "kubernetes" }, "template"},
		{"token without secret", func(c *Config) { c.Auth.Type = "token" }, "auth.secret"},
		{"unknown auth", func(c *Config) { c.Auth.Type = "mtls" }, "auth.type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error = %q, want substring %q", err, tt.wantSub)
			}
		})
	}
}
