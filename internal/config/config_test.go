package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"flexone/internal/config"
)

func TestLoadDefaultConfigUsesEnvAPIKeyAndExpandsPaths(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "flexone")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.LogDir != filepath.Join(wantData, "logs") {
		t.Fatalf("unexpected log dir: %q", cfg.Paths.LogDir)
	}
	if cfg.Backend.Bind != "127.0.0.1:8000" {
		t.Fatalf("unexpected backend bind: %q", cfg.Backend.Bind)
	}
	if cfg.LLM.APIKey != "test-key" {
		t.Fatalf("expected API key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model != "gpt-3.5-turbo" {
		t.Fatalf("unexpected default model: %q", cfg.LLM.Model)
	}
	if cfg.LLM.Temperature != 0.7 {
		t.Fatalf("unexpected default temperature: %v", cfg.LLM.Temperature)
	}
	if cfg.LLM.MaxTokens != 500 {
		t.Fatalf("unexpected default max tokens: %d", cfg.LLM.MaxTokens)
	}
	if cfg.Frontend.BackendURL != "http://127.0.0.1:8000" {
		t.Fatalf("expected backend URL derived from bind, got %q", cfg.Frontend.BackendURL)
	}
	if cfg.Frontend.ReadyPollMillis != 200 {
		t.Fatalf("unexpected ready poll interval: %d", cfg.Frontend.ReadyPollMillis)
	}
	if len(cfg.Backend.CORSAllowedOrigins) != 1 || cfg.Backend.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("unexpected CORS origins: %v", cfg.Backend.CORSAllowedOrigins)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
	if filepath.Dir(cfg.SocketPath()) != cfg.Paths.LogDir {
		t.Fatalf("expected socket under log dir, got %q", cfg.SocketPath())
	}
	if filepath.Dir(cfg.RunsDBPath()) != cfg.Paths.DataDir {
		t.Fatalf("expected runs db under data dir, got %q", cfg.RunsDBPath())
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "flexone.toml")

	type payload struct {
		Backend struct {
			Bind string `toml:"bind"`
		} `toml:"backend"`
		LLM struct {
			APIKey      string  `toml:"api_key"`
			BaseURL     string  `toml:"base_url"`
			Model       string  `toml:"model"`
			Temperature float64 `toml:"temperature"`
		} `toml:"llm"`
		Frontend struct {
			ReadyTimeout int `toml:"ready_timeout"`
		} `toml:"frontend"`
	}
	custom := payload{}
	custom.Backend.Bind = "127.0.0.1:9000"
	custom.LLM.APIKey = "abc123"
	custom.LLM.BaseURL = "https://example.com/v1/chat/completions"
	custom.LLM.Model = "custom-model"
	custom.LLM.Temperature = 0.2
	custom.Frontend.ReadyTimeout = 30
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.LLM.APIKey != "abc123" {
		t.Fatalf("expected API key from file, got %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.BaseURL != "https://example.com/v1/chat/completions" {
		t.Fatalf("expected base url override, got %q", cfg.LLM.BaseURL)
	}
	if cfg.LLM.Model != "custom-model" {
		t.Fatalf("expected model override, got %q", cfg.LLM.Model)
	}
	if cfg.LLM.Temperature != 0.2 {
		t.Fatalf("expected temperature override, got %v", cfg.LLM.Temperature)
	}
	if cfg.Frontend.BackendURL != "http://127.0.0.1:9000" {
		t.Fatalf("expected backend URL derived from custom bind, got %q", cfg.Frontend.BackendURL)
	}
	if cfg.Frontend.ReadyTimeoutSeconds != 30 {
		t.Fatalf("expected ready timeout 30, got %d", cfg.Frontend.ReadyTimeoutSeconds)
	}
}

func TestAPIKeyEnvFallbackOrder(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("FLEXONE_API_KEY", "flexone-key")
	t.Setenv("OPENAI_API_KEY", "openai-key")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "flexone-key" {
		t.Fatalf("expected FLEXONE_API_KEY to win, got %q", cfg.LLM.APIKey)
	}
}

func TestFileAPIKeyBeatsEnv(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "flexone.toml")
	t.Setenv("OPENAI_API_KEY", "env-key")

	type payload struct {
		LLM struct {
			APIKey string `toml:"api_key"`
		} `toml:"llm"`
	}
	custom := payload{}
	custom.LLM.APIKey = "file-key"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "file-key" {
		t.Fatalf("expected file key to win, got %q", cfg.LLM.APIKey)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "api_key") {
		t.Fatalf("sample config missing api_key field: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Backend.Bind != "127.0.0.1:8000" {
		t.Fatalf("expected sample bind default, got %q", cfg.Backend.Bind)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.APIKey = "key"
	cfg.Backend.RequestTimeout = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive request timeout")
	}

	cfg = config.Default()
	cfg.LLM.APIKey = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing api key")
	}

	cfg = config.Default()
	cfg.LLM.APIKey = "key"
	cfg.LLM.Temperature = 2.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for temperature out of range")
	}

	cfg = config.Default()
	cfg.LLM.APIKey = "key"
	cfg.LLM.MaxTokens = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative max tokens")
	}

	cfg = config.Default()
	cfg.LLM.APIKey = "key"
	cfg.Backend.Bind = "not-a-bind"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for malformed bind address")
	}

	cfg = config.Default()
	cfg.LLM.APIKey = "key"
	cfg.Frontend.ReadyTimeoutSeconds = 1
	cfg.Frontend.ReadyPollMillis = 5000
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when poll interval exceeds ready timeout")
	}
}
