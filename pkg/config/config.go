// Package config provides unified configuration for the enclave service.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (ENCLAVE_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"fmt"
	"time"
)

// Config holds all configuration for the enclave service.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Backend       BackendConfig       `yaml:"backend"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port          int           `yaml:"port"`           // default: 8080
	ReadTimeout   time.Duration `yaml:"read_timeout"`   // default: 30s
	WriteTimeout  time.Duration `yaml:"write_timeout"`  // default: 300s
	MaxConcurrent int           `yaml:"max_concurrent"` // default: 4
}

// BackendConfig selects and configures the sandbox backend.
type BackendConfig struct {
	Type       string           `yaml:"type"` // "docker" or "kubernetes", default: "docker"
	Docker     DockerConfig     `yaml:"docker"`
	Kubernetes KubernetesConfig `yaml:"kubernetes"`
}

// DockerConfig holds settings for the local-daemon backend.
type DockerConfig struct {
	// Images overrides the base image per runtime.
	Images map[string]string `yaml:"images"`

	// PythonIndex is the package index for python requirement installs.
	PythonIndex string `yaml:"python_index"`

	// ConcurrentBuilds allows concurrent environment builds on one daemon.
	ConcurrentBuilds bool `yaml:"concurrent_builds"`
}

// KubernetesConfig holds settings for the SandboxClaim backend.
type KubernetesConfig struct {
	Template         string        `yaml:"template"`
	Namespace        string        `yaml:"namespace"`         // default: "default"
	ClaimTimeout     time.Duration `yaml:"claim_timeout"`     // default: 30s
	ConcurrentBuilds bool          `yaml:"concurrent_builds"` // backend capability, explicit
}

// AuthConfig holds authentication settings for the HTTP surface.
type AuthConfig struct {
	Type       string `yaml:"type"`        // "none" or "token", default: "none"
	Secret     string `yaml:"secret"`      // HMAC secret for token verification
	SecretFile string `yaml:"secret_file"` // _file variant for secret
	Issuer     string `yaml:"issuer"`
	Audience   string `yaml:"audience"`
}

// ObservabilityConfig holds monitoring settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:          8080,
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  300 * time.Second,
			MaxConcurrent: 4,
		},
		Backend: BackendConfig{
			Type: "docker",
			Kubernetes: KubernetesConfig{
				Namespace:    "default",
				ClaimTimeout: 30 * time.Second,
			},
		},
		Auth: AuthConfig{
			Type: "none",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.MaxConcurrent <= 0 {
		return fmt.Errorf("server.max_concurrent must be positive, got %d", c.Server.MaxConcurrent)
	}

	switch c.Backend.Type {
	case "docker":
	case "kubernetes":
		if c.Backend.Kubernetes.Template == "" {
			return fmt.Errorf("backend.kubernetes.template is required for the kubernetes backend")
		}
	default:
		return fmt.Errorf("backend.type must be \"docker\" or \"kubernetes\", got %q", c.Backend.Type)
	}

	switch c.Auth.Type {
	case "none":
	case "token":
		if c.Auth.Secret == "" {
			return fmt.Errorf("auth.secret (or auth.secret_file) is required for auth.type=token")
		}
	default:
		return fmt.Errorf("auth.type must be \"none\" or \"token\", got %q", c.Auth.Type)
	}

	return nil
}
