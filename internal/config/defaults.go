package config

const (
	defaultDataDir          = "~/.local/share/flexone"
	defaultLogDir           = "~/.local/share/flexone/logs"
	defaultLogRetentionDays = 30
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"

	defaultBackendBind            = "127.0.0.1:8000"
	defaultBackendRequestTimeout  = 60
	defaultBackendShutdownTimeout = 10

	defaultLLMBaseURL        = "https://api.openai.com/v1/chat/completions"
	defaultLLMModel          = "gpt-3.5-turbo"
	defaultLLMTemperature    = 0.7
	defaultLLMMaxTokens      = 500
	defaultLLMTimeoutSeconds = 60

	defaultReadyTimeoutSeconds = 10
	defaultReadyPollMillis     = 200
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Backend: Backend{
			Bind:               defaultBackendBind,
			RequestTimeout:     defaultBackendRequestTimeout,
			ShutdownTimeout:    defaultBackendShutdownTimeout,
			CORSAllowedOrigins: []string{"*"},
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Temperature:    defaultLLMTemperature,
			MaxTokens:      defaultLLMMaxTokens,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Frontend: Frontend{
			ReadyTimeoutSeconds: defaultReadyTimeoutSeconds,
			ReadyPollMillis:     defaultReadyPollMillis,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
