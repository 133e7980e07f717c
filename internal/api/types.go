package api

// Role values for chat messages, matching the upstream chat completion wire
// format.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single entry in a conversation history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the minimal request body accepted by POST /chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatReply is the response body returned by POST /chat.
type ChatReply struct {
	Reply string `json:"reply"`
}

// ChatDetailsRequest is the full-fidelity request body accepted by
// POST /chat/details. Model, temperature, and max tokens fall back to server
// configuration when omitted.
type ChatDetailsRequest struct {
	Messages    []ChatMessage `json:"messages"`
	Model       string        `json:"model,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

// Usage reports upstream token consumption for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatDetailsResponse is the response body returned by POST /chat/details.
type ChatDetailsResponse struct {
	Response string `json:"response"`
	Model    string `json:"model"`
	Usage    Usage  `json:"usage"`
}

// Health is the response body returned by GET /health.
type Health struct {
	Status string `json:"status"`
}

// Banner is the response body returned by GET /, indexing the HTTP surface.
type Banner struct {
	Service   string            `json:"service"`
	Message   string            `json:"message"`
	Endpoints map[string]string `json:"endpoints"`
}

// ErrorResponse is the error body for all non-2xx responses.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// HealthOK is the canonical healthy status value.
const HealthOK = "ok"
