// Command enclaved runs the enclave execution service: an HTTP server
// that accepts agent invocations, runs them in isolated sandbox
// environments, and returns the normalized result envelope.
//
// Configuration is loaded from a YAML file plus ENCLAVE_* environment
// overrides; see pkg/config.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/enclave/pkg/api"
	"github.com/rhuss/enclave/pkg/auth"
	"github.com/rhuss/enclave/pkg/config"
	"github.com/rhuss/enclave/pkg/debug"
	"github.com/rhuss/enclave/pkg/observability"
	"github.com/rhuss/enclave/pkg/runner"
	"github.com/rhuss/enclave/pkg/sandbox"
	"github.com/rhuss/enclave/pkg/sandbox/docker"
	"github.com/rhuss/enclave/pkg/sandbox/kubernetes"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	debug.Init()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("configuration failed", "error", err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session, err := buildSession(ctx, cfg)
	if err != nil {
		slog.Error("backend session failed", "backend", cfg.Backend.Type, "error", err.Error())
		os.Exit(1)
	}
	defer session.Close(context.Background())

	srv := &server{
		executor:      runner.New(session),
		maxConcurrent: int32(cfg.Server.MaxConcurrent),
		startTime:     time.Now(),
	}

	var authn auth.Authenticator
	if cfg.Auth.Type == "token" {
		authn = auth.NewTokenAuthenticator([]byte(cfg.Auth.Secret), cfg.Auth.Issuer, cfg.Auth.Audience)
	}

	mux := http.NewServeMux()
	mux.Handle("POST /execute", auth.Middleware(authn, http.HandlerFunc(srv.handleExecute)))
	mux.HandleFunc("GET /health", srv.handleHealth)
	if cfg.Observability.Metrics.Enabled {
		mux.Handle("GET "+cfg.Observability.Metrics.Path, promhttp.Handler())
	}

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		slog.Info("enclave service starting",
			"port", cfg.Server.Port,
			"backend", session.Name(),
			"max_concurrent", cfg.Server.MaxConcurrent,
			"auth", cfg.Auth.Type,
		)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpSrv.Shutdown(shutdownCtx)
}

// buildSession constructs and connects the configured backend session.
func buildSession(ctx context.Context, cfg *config.Config) (sandbox.Session, error) {
	var session sandbox.Session
	switch cfg.Backend.Type {
	case "docker":
		session = docker.NewSession(docker.Options{
			Images:           cfg.Backend.Docker.Images,
			PythonIndex:      cfg.Backend.Docker.PythonIndex,
			ConcurrentBuilds: cfg.Backend.Docker.ConcurrentBuilds,
		})
	case "kubernetes":
		session = kubernetes.NewSession(kubernetes.Config{
			Template:         cfg.Backend.Kubernetes.Template,
			Namespace:        cfg.Backend.Kubernetes.Namespace,
			ClaimTimeout:     cfg.Backend.Kubernetes.ClaimTimeout,
			ConcurrentBuilds: cfg.Backend.Kubernetes.ConcurrentBuilds,
		})
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend.Type)
	}

	if err := session.Connect(ctx); err != nil {
		return nil, err
	}
	return session, nil
}

// --- Server ---

type server struct {
	executor      *runner.Executor
	maxConcurrent int32
	currentLoad   atomic.Int32
	startTime     time.Time
}

// executeRequest is the request body for POST /execute.
type executeRequest struct {
	Config     *api.ExecutionConfig `json:"config"`
	Invocation *api.AgentInvocation `json:"invocation"`
}

func (s *server) handleExecute(w http.ResponseWriter, r *http.Request) {
	current := s.currentLoad.Add(1)
	defer s.currentLoad.Add(-1)

	if current > s.maxConcurrent {
		observability.RequestsRejectedTotal.WithLabelValues("capacity").Inc()
		writeError(w, http.StatusTooManyRequests,
			fmt.Sprintf("at capacity (%d/%d concurrent executions)", current, s.maxConcurrent))
		return
	}

	var req executeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 10*1024*1024)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if req.Config == nil || req.Invocation == nil {
		writeError(w, http.StatusBadRequest, "config and invocation are required")
		return
	}

	slog.Info("execute request",
		"agent", req.Invocation.AgentPath,
		"runtime", req.Invocation.Runtime,
		"timeout", req.Config.TimeoutSeconds,
		"memory_mb", req.Config.MaxMemoryMB,
		"secrets", len(req.Config.Secrets),
	)

	// Every failure category is folded into the envelope; the HTTP status
	// is 200 for any completed invocation, successful or not.
	result := s.executor.Execute(r.Context(), req.Config, req.Invocation)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// --- Health handler ---

type healthResponse struct {
	Status      string `json:"status"`
	Backend     string `json:"backend"`
	Capacity    int    `json:"capacity"`
	CurrentLoad int    `json:"current_load"`
	UptimeSecs  int64  `json:"uptime_seconds"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(healthResponse{
		Status:      "healthy",
		Backend:     s.executor.Session().Name(),
		Capacity:    int(s.maxConcurrent),
		CurrentLoad: int(s.currentLoad.Load()),
		UptimeSecs:  int64(time.Since(s.startTime).Seconds()),
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
