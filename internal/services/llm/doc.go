// Package llm provides an OpenAI-compatible chat completion client.
//
// The backend proxies every /chat and /chat/details request through this
// client. It speaks the standard chat completions wire format, so it works
// against OpenAI, OpenRouter, and compatible gateways.
//
// # Entry Points
//
// NewClient: construct a client from Config.
// Client.Complete: send a conversation, receive the reply with token usage.
// Client.HealthCheck: verify the API key and model availability.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors and network timeouts with
// exponential backoff (base 1s, max 10s, up to 5 attempts by default), and
// honours Retry-After headers. Context cancellation aborts retries
// immediately.
//
// # Error Classification
//
// Non-2xx upstream responses surface as *StatusError so callers can map the
// status code: 401/403 to auth failures, 429 to rate limits, everything else
// to upstream errors.
package llm
