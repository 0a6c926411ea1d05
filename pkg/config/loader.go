package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, ENCLAVE_CONFIG env, ./config.yaml,
//     /etc/enclave/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// explicit argument, ENCLAVE_CONFIG, ./config.yaml, /etc/enclave/config.yaml.
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("ENCLAVE_CONFIG"); envPath != "" {
		return envPath
	}
	for _, path := range []string{"config.yaml", "/etc/enclave/config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps ENCLAVE_* environment variables onto the config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ENCLAVE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ENCLAVE_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MaxConcurrent = n
		}
	}
	if v := os.Getenv("ENCLAVE_BACKEND"); v != "" {
		cfg.Backend.Type = strings.ToLower(v)
	}
	if v := os.Getenv("ENCLAVE_SANDBOX_TEMPLATE"); v != "" {
		cfg.Backend.Kubernetes.Template = v
	}
	if v := os.Getenv("ENCLAVE_SANDBOX_NAMESPACE"); v != "" {
		cfg.Backend.Kubernetes.Namespace = v
	}
	if v := os.Getenv("ENCLAVE_PYTHON_INDEX"); v != "" {
		cfg.Backend.Docker.PythonIndex = v
	}
	if v := os.Getenv("ENCLAVE_AUTH_TYPE"); v != "" {
		cfg.Auth.Type = strings.ToLower(v)
	}
	if v := os.Getenv("ENCLAVE_AUTH_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("ENCLAVE_AUTH_SECRET_FILE"); v != "" {
		cfg.Auth.SecretFile = v
	}
}

// resolveFileReferences loads _file variants into their value fields. A
// populated value field wins over the file reference.
func resolveFileReferences(cfg *Config) error {
	if cfg.Auth.Secret == "" && cfg.Auth.SecretFile != "" {
		data, err := os.ReadFile(cfg.Auth.SecretFile)
		if err != nil {
			return fmt.Errorf("reading auth.secret_file: %w", err)
		}
		cfg.Auth.Secret = strings.TrimSpace(string(data))
	}
	return nil
}
