package launcher_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"flexone/internal/config"
	"flexone/internal/ipc"
	"flexone/internal/launcher"
	"flexone/internal/logging"
)

func healthHandler(healthyAfter *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if healthyAfter != nil && healthyAfter.Add(-1) >= 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func TestWaitForReadySucceedsAfterRetries(t *testing.T) {
	var failures atomic.Int32
	failures.Store(2)
	srv := httptest.NewServer(healthHandler(&failures))
	t.Cleanup(srv.Close)

	err := launcher.WaitForReady(context.Background(), srv.URL, 10*time.Millisecond, 5*time.Second)
	if err != nil {
		t.Fatalf("WaitForReady returned error: %v", err)
	}
}

func TestWaitForReadyTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	err := launcher.WaitForReady(context.Background(), srv.URL, 10*time.Millisecond, 100*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestWaitForReadyHonorsContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := launcher.WaitForReady(ctx, srv.URL, 10*time.Millisecond, 5*time.Second)
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestReadinessFromConfig(t *testing.T) {
	poll, timeout := launcher.ReadinessFromConfig(nil)
	if poll != 200*time.Millisecond || timeout != 10*time.Second {
		t.Fatalf("unexpected defaults: poll=%v timeout=%v", poll, timeout)
	}

	cfg := config.Default()
	cfg.Frontend.ReadyPollMillis = 50
	cfg.Frontend.ReadyTimeoutSeconds = 3
	poll, timeout = launcher.ReadinessFromConfig(&cfg)
	if poll != 50*time.Millisecond {
		t.Fatalf("unexpected poll: %v", poll)
	}
	if timeout != 3*time.Second {
		t.Fatalf("unexpected timeout: %v", timeout)
	}
}

func TestEnsureStartedDetectsRunningBackend(t *testing.T) {
	srv := httptest.NewServer(healthHandler(nil))
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Frontend.BackendURL = srv.URL

	result, err := launcher.EnsureStarted(context.Background(), &cfg, "/nonexistent/flexone", launcher.LaunchOptions{})
	if err != nil {
		t.Fatalf("EnsureStarted returned error: %v", err)
	}
	if result.State != launcher.StartStateAlreadyRunning {
		t.Fatalf("unexpected state: %q", result.State)
	}
	if result.Launched {
		t.Fatal("expected no launch for running backend")
	}
}

func TestEnsureStartedFailsWhenLaunchFails(t *testing.T) {
	cfg := config.Default()
	cfg.Frontend.BackendURL = "http://127.0.0.1:1"

	_, err := launcher.EnsureStarted(context.Background(), &cfg, "/nonexistent/flexone", launcher.LaunchOptions{})
	if err == nil {
		t.Fatal("expected launch failure")
	}
}

type stoppableController struct {
	running   atomic.Bool
	shutdowns atomic.Int32
}

func (c *stoppableController) Status(context.Context) ipc.StatusResponse {
	return ipc.StatusResponse{Running: c.running.Load(), PID: os.Getpid()}
}

func (c *stoppableController) Shutdown() {
	c.shutdowns.Add(1)
	c.running.Store(false)
}

func TestProcessInfo(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.sock")
	reachable, pid, err := launcher.ProcessInfo(missing)
	if err != nil {
		t.Fatalf("ProcessInfo returned error: %v", err)
	}
	if reachable || pid != 0 {
		t.Fatalf("expected unreachable, got reachable=%v pid=%d", reachable, pid)
	}

	ctrl := &stoppableController{}
	ctrl.running.Store(true)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	socket := filepath.Join(t.TempDir(), "flexone.sock")
	srv, err := ipc.NewServer(ctx, socket, ctrl, logging.NewNop())
	if err != nil {
		t.Skipf("skipping: unable to create unix socket: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)
	time.Sleep(50 * time.Millisecond)

	reachable, pid, err = launcher.ProcessInfo(socket)
	if err != nil {
		t.Fatalf("ProcessInfo returned error: %v", err)
	}
	if !reachable {
		t.Fatal("expected reachable backend")
	}
	if pid != os.Getpid() {
		t.Fatalf("unexpected pid: %d", pid)
	}
}

func TestStopAndTerminateGraceful(t *testing.T) {
	ctrl := &stoppableController{}
	ctrl.running.Store(true)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = dir
	cfg.Paths.LogDir = dir

	socket := cfg.SocketPath()
	srv, err := ipc.NewServer(ctx, socket, ctrl, logging.NewNop())
	if err != nil {
		t.Skipf("skipping: unable to create unix socket: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)
	time.Sleep(50 * time.Millisecond)

	result, err := launcher.StopAndTerminate(socket, &cfg, 2*time.Second)
	if err != nil {
		t.Fatalf("StopAndTerminate returned error: %v", err)
	}
	if !result.StopAcknowledged {
		t.Fatal("expected acknowledged stop")
	}
	if result.ForcedKill {
		t.Fatal("expected graceful stop without force kill")
	}
	if got := ctrl.shutdowns.Load(); got != 1 {
		t.Fatalf("expected 1 shutdown call, got %d", got)
	}
}

func TestStopAndTerminateWhenNotRunning(t *testing.T) {
	cfg := config.Default()
	_, err := launcher.StopAndTerminate(filepath.Join(t.TempDir(), "missing.sock"), &cfg, time.Second)
	if err != launcher.ErrBackendNotRunning {
		t.Fatalf("expected ErrBackendNotRunning, got %v", err)
	}
}

func TestForceKillRefusesSelf(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "flexone.pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := launcher.ForceKillProcess(pidPath, "", 0); err == nil {
		t.Fatal("expected refusal to kill current process")
	}
}

func TestForceKillMissingPID(t *testing.T) {
	if _, err := launcher.ForceKillProcess(filepath.Join(t.TempDir(), "absent.pid"), "", 0); err == nil {
		t.Fatal("expected error when pid cannot be determined")
	}
}

func TestBuildStatusSnapshotOfflineFallback(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = dir
	cfg.Paths.LogDir = dir

	snapshot, err := launcher.BuildStatusSnapshot(context.Background(), cfg.SocketPath(), &cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot returned error: %v", err)
	}
	if snapshot.Running {
		t.Fatal("expected offline snapshot")
	}
	if snapshot.Bind != cfg.Backend.Bind {
		t.Fatalf("expected bind fallback, got %q", snapshot.Bind)
	}
	if snapshot.SocketPath != cfg.SocketPath() {
		t.Fatalf("expected socket path fallback, got %q", snapshot.SocketPath)
	}
	if snapshot.Model != cfg.LLM.Model {
		t.Fatalf("expected model fallback, got %q", snapshot.Model)
	}
}
