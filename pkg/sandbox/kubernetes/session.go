// Package kubernetes implements the sandbox backend on top of
// agent-sandbox SandboxClaim CRDs. The session holds a persistent
// controller-runtime client that must be established with Connect before
// the first Build; using the session earlier fails deterministically with
// sandbox.ErrNotConnected (the persistent-handle strategy from the
// session contract).
//
// Each Build creates a SandboxClaim, waits for the bound Sandbox pod to
// become ready, and speaks the pod runner's HTTP execute protocol.
package kubernetes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	sandboxv1alpha1 "sigs.k8s.io/agent-sandbox/api/v1alpha1"
	extensionsv1alpha1 "sigs.k8s.io/agent-sandbox/extensions/api/v1alpha1"

	"github.com/rhuss/enclave/pkg/debug"
	"github.com/rhuss/enclave/pkg/sandbox"
)

// Ensure Session implements sandbox.Session.
var _ sandbox.Session = (*Session)(nil)

// Config holds the kubernetes backend configuration.
type Config struct {
	// Template is the SandboxTemplate CRD name claims reference.
	Template string

	// Namespace is where SandboxClaims are created.
	Namespace string

	// ClaimTimeout is how long to wait for a claimed Sandbox to become
	// ready. Default: 30s.
	ClaimTimeout time.Duration

	// ConcurrentBuilds declares whether the cluster controller handles
	// concurrent claims from one client. Left as an explicit capability
	// flag; the engine never assumes either answer.
	ConcurrentBuilds bool
}

func (c *Config) applyDefaults() {
	if c.ClaimTimeout == 0 {
		c.ClaimTimeout = 30 * time.Second
	}
	if c.Namespace == "" {
		c.Namespace = "default"
	}
}

// Session is the persistent kubernetes session. The client handle is nil
// until Connect succeeds.
type Session struct {
	cfg    Config
	client client.Client
	runner *podClient
}

// NewSession creates an unconnected kubernetes session.
func NewSession(cfg Config) *Session {
	cfg.applyDefaults()
	return &Session{cfg: cfg, runner: newPodClient()}
}

// NewSessionWithClient creates a session with an injected client, already
// connected. Used by tests and by callers managing their own rest config.
func NewSessionWithClient(c client.Client, cfg Config) *Session {
	cfg.applyDefaults()
	return &Session{cfg: cfg, client: c, runner: newPodClient()}
}

// NewScheme returns a runtime.Scheme with the agent-sandbox types
// registered.
func NewScheme() (*runtime.Scheme, error) {
	scheme := runtime.NewScheme()
	if err := sandboxv1alpha1.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("register sandbox types: %w", err)
	}
	if err := extensionsv1alpha1.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("register extensions types: %w", err)
	}
	return scheme, nil
}

// Name identifies the backend.
func (s *Session) Name() string { return "kubernetes" }

// Connect establishes the persistent client handle from the ambient
// kubeconfig or in-cluster config.
func (s *Session) Connect(ctx context.Context) error {
	if s.client != nil {
		return nil
	}

	scheme, err := NewScheme()
	if err != nil {
		return err
	}

	restCfg, err := ctrl.GetConfig()
	if err != nil {
		return fmt.Errorf("load kubeconfig: %w", err)
	}

	c, err := client.New(restCfg, client.Options{Scheme: scheme})
	if err != nil {
		return fmt.Errorf("create cluster client: %w", err)
	}

	s.client = c
	debug.Log("sandbox", "kubernetes session connected", "namespace", s.cfg.Namespace, "template", s.cfg.Template)
	return nil
}

// Ready reports sandbox.ErrNotConnected until Connect has succeeded.
func (s *Session) Ready() error {
	if s.client == nil {
		return sandbox.ErrNotConnected
	}
	return nil
}

// SupportsConcurrentBuilds reports the configured capability flag.
func (s *Session) SupportsConcurrentBuilds() bool { return s.cfg.ConcurrentBuilds }

// Close releases the client handle. The session must be reconnected before
// further builds.
func (s *Session) Close(ctx context.Context) error {
	s.client = nil
	return nil
}

// Build creates a SandboxClaim, waits for the bound Sandbox to become
// ready, and returns an environment speaking the pod's execute protocol.
func (s *Session) Build(ctx context.Context, spec *sandbox.BuildSpec) (sandbox.Environment, error) {
	if s.client == nil {
		return nil, sandbox.ErrNotConnected
	}

	claimName := generateClaimNameFn()

	claim := &extensionsv1alpha1.SandboxClaim{
		ObjectMeta: metav1.ObjectMeta{
			Name:      claimName,
			Namespace: s.cfg.Namespace,
		},
		Spec: extensionsv1alpha1.SandboxClaimSpec{
			TemplateRef: extensionsv1alpha1.SandboxTemplateRef{
				Name: s.cfg.Template,
			},
		},
	}

	if err := s.client.Create(ctx, claim); err != nil {
		return nil, fmt.Errorf("create SandboxClaim %q: %w", claimName, err)
	}

	debug.Log("sandbox", "created SandboxClaim", "name", claimName, "namespace", s.cfg.Namespace, "template", s.cfg.Template)

	serviceFQDN, err := s.waitForReady(ctx, claimName)
	if err != nil {
		s.deleteClaim(context.Background(), claimName)
		return nil, err
	}

	env := &podEnvironment{
		runner:  s.runner,
		baseURL: fmt.Sprintf("http://%s:8080", serviceFQDN),
		spec:    spec,
		release: func() { s.deleteClaim(context.Background(), claimName) },
	}

	debug.Log("sandbox", "sandbox environment ready", "name", claimName, "url", env.baseURL)
	return env, nil
}

// waitForReady polls the Sandbox resource until its Ready condition is
// True or the claim timeout expires.
func (s *Session) waitForReady(ctx context.Context, sandboxName string) (string, error) {
	deadline := time.After(s.cfg.ClaimTimeout)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("context cancelled waiting for Sandbox %q: %w", sandboxName, ctx.Err())
		case <-deadline:
			return "", fmt.Errorf("timeout waiting for Sandbox %q to become ready (waited %s)", sandboxName, s.cfg.ClaimTimeout)
		case <-ticker.C:
			sb := &sandboxv1alpha1.Sandbox{}
			key := types.NamespacedName{Name: sandboxName, Namespace: s.cfg.Namespace}
			if err := s.client.Get(ctx, key, sb); err != nil {
				// The Sandbox may not exist yet. Keep polling.
				debug.Log("sandbox", "waiting for Sandbox", "name", sandboxName, "error", err.Error())
				continue
			}

			if isReady(sb) {
				if sb.Status.ServiceFQDN == "" {
					continue // Ready but FQDN not yet populated.
				}
				return sb.Status.ServiceFQDN, nil
			}
		}
	}
}

// isReady checks if the Sandbox has a Ready condition set to True.
func isReady(sb *sandboxv1alpha1.Sandbox) bool {
	for _, c := range sb.Status.Conditions {
		if c.Type == string(sandboxv1alpha1.SandboxConditionReady) && c.Status == metav1.ConditionTrue {
			return true
		}
	}
	return false
}

// deleteClaim deletes a SandboxClaim. Errors are logged but not returned
// since this runs from release functions and cleanup paths.
func (s *Session) deleteClaim(ctx context.Context, name string) {
	if s.client == nil {
		return
	}
	claim := &extensionsv1alpha1.SandboxClaim{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: s.cfg.Namespace,
		},
	}
	if err := s.client.Delete(ctx, claim); err != nil {
		slog.Warn("failed to delete SandboxClaim", "name", name, "namespace", s.cfg.Namespace, "error", err.Error())
		return
	}
	debug.Log("sandbox", "deleted SandboxClaim", "name", name, "namespace", s.cfg.Namespace)
}

// generateClaimNameFn creates a unique name for a SandboxClaim.
// Replaceable in tests for deterministic naming.
var generateClaimNameFn = func() string {
	return fmt.Sprintf("enclave-run-%d", time.Now().UnixNano())
}
