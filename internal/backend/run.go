package backend

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"flexone/internal/config"
	"flexone/internal/ipc"
	"flexone/internal/logging"
	"flexone/internal/runstore"
	"flexone/internal/services/llm"
)

// Options configures backend process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the backend runtime loop and blocks until a shutdown signal
// arrives or the server is stopped over the control socket.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stamp := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("flexone-%s.log", stamp))
	logger, err := logging.New(logging.Options{
		Level:            opts.LogLevel,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update flexone.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "flexone-*.log", Exclude: []string{logPath}},
	)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	runs, err := runstore.Open(cfg)
	if err != nil {
		logger.Error("open run store", logging.Error(err))
		return err
	}
	defer runs.Close()

	if closed, err := runs.CloseStale(signalCtx, runstore.ProcessBackend, "superseded at startup"); err != nil {
		logger.Warn("close stale runs", logging.Error(err))
	} else if closed > 0 {
		logger.Info("closed stale run records", logging.Int64("count", closed))
	}

	llmCfg := cfg.GetLLM()
	client := llm.NewClient(llm.Config{
		APIKey:         llmCfg.APIKey,
		BaseURL:        llmCfg.BaseURL,
		Model:          llmCfg.Model,
		Referer:        llmCfg.Referer,
		Title:          llmCfg.Title,
		TimeoutSeconds: llmCfg.TimeoutSeconds,
	})

	srv, err := New(cfg, logger, client, runs)
	if err != nil {
		return fmt.Errorf("create backend: %w", err)
	}
	defer srv.Stop()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), srv, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := srv.Start(signalCtx); err != nil {
		logger.Error("backend start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "backend_start_failed"),
			logging.String(logging.FieldErrorHint, "check the bind address and remove stale lock files"),
			logging.String(logging.FieldImpact, "frontend requests cannot be served"))
		return err
	}

	select {
	case <-signalCtx.Done():
		logger.Info("flexone backend shutting down")
	case <-srv.Done():
		logger.Info("flexone backend stopped via control socket")
	}
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "flexone.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
