package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"flexone/internal/api"
	"flexone/internal/logging"
	"flexone/internal/services/llm"
)

const maxRequestBody = 1 << 20

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/chat/details", s.handleChatDetails)
	return s.withCORS(withRequestID(mux))
}

// withRequestID tags each request context with a correlation identifier so
// failure logs can be matched to individual requests.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithRequestID(r.Context(), uuid.NewString())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withCORS applies the configured CORS policy and answers preflight
// requests before they reach the handlers.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := s.allowedOrigin(r.Header.Get("Origin"))
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")
			if origin != "*" {
				w.Header().Set("Vary", "Origin")
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowedOrigin(origin string) string {
	allowed := s.cfg.Backend.CORSAllowedOrigins
	if len(allowed) == 0 {
		return ""
	}
	for _, candidate := range allowed {
		if candidate == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(candidate, origin) {
			return origin
		}
	}
	return ""
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, api.Banner{
		Service: "FlexOne API",
		Message: "FlexOne API",
		Endpoints: map[string]string{
			"/chat":         "POST - Send a message and get an LLM reply",
			"/chat/details": "POST - Send a conversation and get reply, model, and usage",
			"/health":       "GET - Check API health",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, api.Health{Status: api.HealthOK})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.ChatRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout())
	defer cancel()

	completion, err := s.llm.Complete(ctx, llm.Request{
		Messages:    []llm.Message{{Role: api.RoleUser, Content: req.Message}},
		Temperature: s.cfg.LLM.Temperature,
		MaxTokens:   s.cfg.LLM.MaxTokens,
	})
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ChatReply{Reply: completion.Content})
}

func (s *Server) handleChatDetails(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.ChatDetailsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 {
		s.writeError(w, http.StatusBadRequest, "at least one message is required")
		return
	}

	messages := make([]llm.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		if strings.TrimSpace(msg.Content) == "" {
			s.writeError(w, http.StatusBadRequest, "message content is required")
			return
		}
		messages = append(messages, llm.Message{Role: msg.Role, Content: msg.Content})
	}

	temperature := s.cfg.LLM.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := s.cfg.LLM.MaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout())
	defer cancel()

	completion, err := s.llm.Complete(ctx, llm.Request{
		Messages:    messages,
		Model:       req.Model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ChatDetailsResponse{
		Response: completion.Content,
		Model:    completion.Model,
		Usage: api.Usage{
			PromptTokens:     completion.Usage.PromptTokens,
			CompletionTokens: completion.Usage.CompletionTokens,
			TotalTokens:      completion.Usage.TotalTokens,
		},
	})
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read request body")
		return false
	}
	if len(data) == 0 {
		s.writeError(w, http.StatusBadRequest, "request body is required")
		return false
	}
	if err := json.Unmarshal(data, target); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	return true
}

// writeUpstreamError maps completion failures onto the HTTP surface:
// auth failures become 401, rate limits 429, timeouts 504, and anything
// else 502.
func (s *Server) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway
	detail := "upstream LLM request failed"

	var statusErr *llm.StatusError
	switch {
	case errors.As(err, &statusErr):
		switch statusErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			status = http.StatusUnauthorized
			detail = "invalid API key"
		case http.StatusTooManyRequests:
			status = http.StatusTooManyRequests
			detail = "rate limit exceeded"
		}
	case errors.Is(err, context.DeadlineExceeded), isTimeout(err):
		status = http.StatusGatewayTimeout
		detail = "upstream LLM request timed out"
	}

	logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "chat request failed", "chat_request_failed",
		logging.Error(err),
		logging.String("path", r.URL.Path),
		logging.Int("status", status),
		logging.String(logging.FieldErrorHint, "verify the LLM api_key and base_url configuration"))
	s.writeError(w, status, detail)
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, api.ErrorResponse{Detail: detail})
}
