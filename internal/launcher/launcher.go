package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"flexone/internal/api"
	"flexone/internal/config"
	"flexone/internal/ipc"
)

// ErrBackendNotRunning indicates backend IPC is unavailable.
var ErrBackendNotRunning = errors.New("backend not running")

// LaunchOptions controls backend process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures backend start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
	Message  string
}

// StopResult captures backend stop/termination outcome.
type StopResult struct {
	StopAcknowledged bool
	ForcedKill       bool
	PID              int
}

// RestartResult captures stop/start outcomes for backend restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// Launch starts a detached backend process running `flexone serve`.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"serve"}
	if cfgPath := strings.TrimSpace(opts.ConfigPath); cfgPath != "" {
		args = append(args, "--config", cfgPath)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch backend: %w", err)
	}
	return proc.Process.Release()
}

// ReadinessFromConfig resolves the health poll interval and overall deadline
// for backend startup.
func ReadinessFromConfig(cfg *config.Config) (poll, timeout time.Duration) {
	poll = 200 * time.Millisecond
	timeout = 10 * time.Second
	if cfg == nil {
		return poll, timeout
	}
	if cfg.Frontend.ReadyPollMillis > 0 {
		poll = time.Duration(cfg.Frontend.ReadyPollMillis) * time.Millisecond
	}
	if cfg.Frontend.ReadyTimeoutSeconds > 0 {
		timeout = time.Duration(cfg.Frontend.ReadyTimeoutSeconds) * time.Second
	}
	return poll, timeout
}

// WaitForReady polls the backend health endpoint until it answers healthy or
// the timeout elapses.
func WaitForReady(ctx context.Context, backendURL string, poll, timeout time.Duration) error {
	if poll <= 0 {
		poll = 200 * time.Millisecond
	}
	client := api.NewClient(backendURL, api.WithTimeout(2*time.Second))

	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, err := client.Health(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(poll):
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for backend")
	}
	return fmt.Errorf("backend failed to become ready: %w", lastErr)
}

// EnsureStarted launches the backend when it is not already serving and waits
// for readiness. A backend that already answers its health endpoint is left
// alone.
func EnsureStarted(ctx context.Context, cfg *config.Config, executablePath string, opts LaunchOptions) (StartResult, error) {
	if cfg == nil {
		return StartResult{}, errors.New("configuration not available")
	}
	backendURL := cfg.BackendURL()
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	healthy := probeHealth(probeCtx, backendURL)
	cancel()
	if healthy {
		return StartResult{State: StartStateAlreadyRunning}, nil
	}

	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}

	poll, timeout := ReadinessFromConfig(cfg)
	if err := WaitForReady(ctx, backendURL, poll, timeout); err != nil {
		return StartResult{Launched: true}, err
	}
	return StartResult{State: StartStateStarted, Launched: true}, nil
}

func probeHealth(ctx context.Context, backendURL string) bool {
	client := api.NewClient(backendURL, api.WithTimeout(2*time.Second))
	_, err := client.Health(ctx)
	return err == nil
}

// WaitForShutdown waits for backend IPC to disappear or report not-running.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err != nil {
			if isBackendUnavailable(err) {
				return nil
			}
			lastErr = err
			time.Sleep(200 * time.Millisecond)
			continue
		}
		status, statusErr := client.Status()
		_ = client.Close()
		if statusErr == nil && !status.Running {
			return nil
		}
		if statusErr != nil {
			lastErr = statusErr
		} else {
			lastErr = fmt.Errorf("backend still running")
		}
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for shutdown")
	}
	return fmt.Errorf("backend did not stop: %w", lastErr)
}

// ProcessInfo returns whether backend IPC is reachable and the backend PID
// when available.
func ProcessInfo(socketPath string) (bool, int, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isBackendUnavailable(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	defer client.Close()
	status, statusErr := client.Status()
	if statusErr != nil {
		return true, 0, statusErr
	}
	pid := 0
	if status != nil {
		pid = status.PID
	}
	return true, pid, nil
}

// ForceKillProcess sends SIGKILL to the backend process and cleans pid/lock files.
func ForceKillProcess(pidPath, lockPath string, fallbackPID int) (int, error) {
	pid := fallbackPID
	data, err := os.ReadFile(pidPath)
	if err == nil {
		pidStr := strings.TrimSpace(string(data))
		if pidStr != "" {
			if parsed, parseErr := strconv.Atoi(pidStr); parseErr == nil && parsed > 0 {
				pid = parsed
			}
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("read backend pid file %q: %w", pidPath, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine backend pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate backend process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return 0, fmt.Errorf("kill backend process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	if lockPath != "" {
		_ = os.Remove(lockPath)
	}
	return pid, nil
}

// StopAndTerminate requests a graceful backend stop over IPC and force-kills
// the process if it is still alive after gracePeriod.
func StopAndTerminate(socketPath string, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isBackendUnavailable(err) {
			return StopResult{}, ErrBackendNotRunning
		}
		return StopResult{}, err
	}
	pid := 0
	if statusResp, statusErr := client.Status(); statusErr == nil && statusResp != nil {
		pid = statusResp.PID
	}
	resp, err := client.Stop()
	_ = client.Close()
	if err != nil {
		return StopResult{}, err
	}
	result := StopResult{PID: pid}
	if resp != nil {
		result.StopAcknowledged = resp.Stopped
	}

	_ = WaitForShutdown(socketPath, gracePeriod)
	alive, livePID := backendStillRunning(socketPath)
	if !alive {
		return result, nil
	}

	currentPID := livePID
	if currentPID == 0 {
		currentPID = pid
	}
	if cfg == nil {
		return result, fmt.Errorf("unable to determine backend pid/lock paths")
	}
	killedPID, killErr := ForceKillProcess(cfg.PIDPath(), cfg.LockPath(), currentPID)
	if killErr != nil {
		return result, fmt.Errorf("failed to stop backend process: %w", killErr)
	}
	_ = os.Remove(socketPath)
	result.ForcedKill = true
	result.PID = killedPID
	return result, nil
}

// Restart stops the backend if running, then ensures it is started.
func Restart(ctx context.Context, cfg *config.Config, executablePath string, opts LaunchOptions, stopGracePeriod time.Duration) (RestartResult, error) {
	socketPath := ""
	if cfg != nil {
		socketPath = cfg.SocketPath()
	}
	stopResult, stopErr := StopAndTerminate(socketPath, cfg, stopGracePeriod)
	if stopErr != nil && !errors.Is(stopErr, ErrBackendNotRunning) {
		return RestartResult{}, stopErr
	}

	startResult, err := EnsureStarted(ctx, cfg, executablePath, opts)
	if err != nil {
		return RestartResult{}, err
	}

	return RestartResult{
		WasRunning: stopErr == nil,
		Stop:       stopResult,
		Start:      startResult,
	}, nil
}

// BuildStatusSnapshot collects backend status over IPC and applies offline
// fallbacks from configuration so the status command always has paths to show.
func BuildStatusSnapshot(ctx context.Context, socketPath string, cfg *config.Config) (*ipc.StatusResponse, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	statusResp := &ipc.StatusResponse{}

	client, err := ipc.Dial(socketPath)
	if err == nil {
		defer client.Close()
		if resp, statusErr := client.Status(); statusErr == nil && resp != nil {
			statusResp = resp
		}
	}

	if statusResp.Bind == "" {
		statusResp.Bind = cfg.Backend.Bind
	}
	if statusResp.BackendURL == "" {
		statusResp.BackendURL = cfg.BackendURL()
	}
	if statusResp.Model == "" {
		statusResp.Model = cfg.LLM.Model
	}
	if statusResp.SocketPath == "" {
		statusResp.SocketPath = cfg.SocketPath()
	}
	if statusResp.LockPath == "" {
		statusResp.LockPath = cfg.LockPath()
	}
	if statusResp.RunsDBPath == "" {
		statusResp.RunsDBPath = cfg.RunsDBPath()
	}
	return statusResp, nil
}

// backendStillRunning reports whether the control socket answers a Status
// call that claims the backend is still serving.
func backendStillRunning(socketPath string) (bool, int) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		return false, 0
	}
	defer client.Close()
	status, statusErr := client.Status()
	if statusErr != nil || status == nil {
		return false, 0
	}
	return status.Running, status.PID
}

func isBackendUnavailable(err error) bool {
	return os.IsNotExist(err) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
