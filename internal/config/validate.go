package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateFrontend(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateBackend() error {
	if _, _, err := net.SplitHostPort(c.Backend.Bind); err != nil {
		return fmt.Errorf("backend.bind must be host:port: %w", err)
	}
	if err := ensurePositiveMap(map[string]int{
		"backend.request_timeout":  c.Backend.RequestTimeout,
		"backend.shutdown_timeout": c.Backend.ShutdownTimeout,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/flexone/config.toml"
		}
		return fmt.Errorf("llm.api_key is required. Set FLEXONE_API_KEY or OPENAI_API_KEY env var or edit %s (create with 'flexone config init')", defaultPath)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.New("llm.temperature must be between 0 and 2")
	}
	if c.LLM.MaxTokens <= 0 {
		return errors.New("llm.max_tokens must be positive")
	}
	if !strings.HasPrefix(c.LLM.BaseURL, "http://") && !strings.HasPrefix(c.LLM.BaseURL, "https://") {
		return errors.New("llm.base_url must be an http(s) URL")
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return errors.New("llm.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateFrontend() error {
	if url := strings.TrimSpace(c.Frontend.BackendURL); url != "" {
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return errors.New("frontend.backend_url must be an http(s) URL")
		}
	}
	if err := ensurePositiveMap(map[string]int{
		"frontend.ready_timeout":          c.Frontend.ReadyTimeoutSeconds,
		"frontend.ready_poll_interval_ms": c.Frontend.ReadyPollMillis,
	}); err != nil {
		return err
	}
	if c.Frontend.ReadyTimeoutSeconds*1000 <= c.Frontend.ReadyPollMillis {
		return errors.New("frontend.ready_timeout must be greater than frontend.ready_poll_interval_ms")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
