package kubernetes

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	sandboxv1alpha1 "sigs.k8s.io/agent-sandbox/api/v1alpha1"
	extensionsv1alpha1 "sigs.k8s.io/agent-sandbox/extensions/api/v1alpha1"

	"github.com/rhuss/enclave/pkg/sandbox"
)

func testScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme, err := NewScheme()
	if err != nil {
		t.Fatalf("NewScheme: %v", err)
	}
	return scheme
}

// simulateReady creates a Sandbox resource with Ready=True for the given
// claim name, as the agent-sandbox controller would.
func simulateReady(t *testing.T, c client.Client, name, namespace, fqdn string) {
	t.Helper()
	sb := &sandboxv1alpha1.Sandbox{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
		},
	}
	if err := c.Create(context.Background(), sb); err != nil {
		t.Fatalf("simulateReady: create sandbox: %v", err)
	}
	sb.Status.ServiceFQDN = fqdn
	sb.Status.Conditions = []metav1.Condition{
		{
			Type:               string(sandboxv1alpha1.SandboxConditionReady),
			Status:             metav1.ConditionTrue,
			LastTransitionTime: metav1.Now(),
			Reason:             "Ready",
		},
	}
	if err := c.Status().Update(context.Background(), sb); err != nil {
		t.Fatalf("simulateReady: update status: %v", err)
	}
}

func TestSession_NotConnected(t *testing.T) {
	s := NewSession(Config{Template: "tmpl"})

	// The persistent-handle strategy: before Connect, the session is not
	// ready and Build fails deterministically with ErrNotConnected.
	if err := s.Ready(); !errors.Is(err, sandbox.ErrNotConnected) {
		t.Errorf("Ready() = %v, want ErrNotConnected", err)
	}

	_, err := s.Build(context.Background(), &sandbox.BuildSpec{Entrypoint: "agent.py"})
	if !errors.Is(err, sandbox.ErrNotConnected) {
		t.Errorf("Build() = %v, want ErrNotConnected", err)
	}
}

func TestSession_BuildAndClose(t *testing.T) {
	scheme := testScheme(t)
	c := fake.NewClientBuilder().WithScheme(scheme).WithStatusSubresource(&sandboxv1alpha1.Sandbox{}).Build()

	s := NewSessionWithClient(c, Config{Template: "test-template", Namespace: "default", ClaimTimeout: 5 * time.Second})

	if err := s.Ready(); err != nil {
		t.Fatalf("injected client should be connected: %v", err)
	}

	origGen := generateClaimNameFn
	generateClaimNameFn = func() string { return "test-claim-001" }
	defer func() { generateClaimNameFn = origGen }()

	go func() {
		time.Sleep(200 * time.Millisecond)
		simulateReady(t, c, "test-claim-001", "default", "sandbox-001.default.svc.cluster.local")
	}()

	env, err := s.Build(context.Background(), &sandbox.BuildSpec{Entrypoint: "agent.py"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	pod, ok := env.(*podEnvironment)
	if !ok {
		t.Fatalf("environment type = %T", env)
	}
	if pod.baseURL != "http://sandbox-001.default.svc.cluster.local:8080" {
		t.Errorf("baseURL = %q", pod.baseURL)
	}

	// The claim exists while the environment lives.
	claim := &extensionsv1alpha1.SandboxClaim{}
	if err := c.Get(context.Background(), client.ObjectKey{Name: "test-claim-001", Namespace: "default"}, claim); err != nil {
		t.Fatalf("SandboxClaim not found: %v", err)
	}
	if claim.Spec.TemplateRef.Name != "test-template" {
		t.Errorf("templateRef = %q, want test-template", claim.Spec.TemplateRef.Name)
	}

	// Closing the environment releases the claim.
	if err := env.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Get(context.Background(), client.ObjectKey{Name: "test-claim-001", Namespace: "default"}, claim); err == nil {
		t.Error("SandboxClaim still exists after Close, expected deletion")
	}
}

func TestSession_BuildTimeout(t *testing.T) {
	scheme := testScheme(t)
	c := fake.NewClientBuilder().WithScheme(scheme).WithStatusSubresource(&sandboxv1alpha1.Sandbox{}).Build()

	s := NewSessionWithClient(c, Config{Template: "test-template", Namespace: "default", ClaimTimeout: 1 * time.Second})

	origGen := generateClaimNameFn
	generateClaimNameFn = func() string { return "test-claim-timeout" }
	defer func() { generateClaimNameFn = origGen }()

	// No controller creates a Sandbox, so the build must time out and
	// clean up its claim.
	_, err := s.Build(context.Background(), &sandbox.BuildSpec{Entrypoint: "agent.py"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(err.Error(), "timeout waiting for Sandbox") {
		t.Errorf("err = %v, want readiness timeout", err)
	}

	claim := &extensionsv1alpha1.SandboxClaim{}
	if err := c.Get(context.Background(), client.ObjectKey{Name: "test-claim-timeout", Namespace: "default"}, claim); err == nil {
		t.Error("SandboxClaim not cleaned up after readiness timeout")
	}
}

func TestSession_CloseDropsHandle(t *testing.T) {
	scheme := testScheme(t)
	c := fake.NewClientBuilder().WithScheme(scheme).Build()

	s := NewSessionWithClient(c, Config{Template: "tmpl"})
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Ready(); !errors.Is(err, sandbox.ErrNotConnected) {
		t.Errorf("Ready() after Close = %v, want ErrNotConnected", err)
	}
}
