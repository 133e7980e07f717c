package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"flexone/internal/api"
)

func TestClientHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" || r.Method != http.MethodGet {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(api.Health{Status: api.HealthOK})
	}))
	defer server.Close()

	client := api.NewClient(server.URL)
	health, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health returned error: %v", err)
	}
	if health.Status != api.HealthOK {
		t.Fatalf("unexpected status: %q", health.Status)
	}
}

func TestClientHealthRejectsUnhealthyStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.Health{Status: "degraded"})
	}))
	defer server.Close()

	client := api.NewClient(server.URL)
	if _, err := client.Health(context.Background()); err == nil {
		t.Fatal("expected error for non-ok status")
	}
}

func TestClientBanner(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" || r.Method != http.MethodGet {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(api.Banner{
			Service:   "FlexOne API",
			Message:   "FlexOne API",
			Endpoints: map[string]string{"/chat": "POST - Send a message and get an LLM reply"},
		})
	}))
	defer server.Close()

	client := api.NewClient(server.URL)
	banner, err := client.Banner(context.Background())
	if err != nil {
		t.Fatalf("Banner returned error: %v", err)
	}
	if banner.Service != "FlexOne API" {
		t.Fatalf("unexpected service: %q", banner.Service)
	}
	if _, ok := banner.Endpoints["/chat"]; !ok {
		t.Fatalf("expected /chat in endpoint index: %#v", banner.Endpoints)
	}
}

func TestClientChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req api.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Message != "hello" {
			t.Fatalf("unexpected message: %q", req.Message)
		}
		json.NewEncoder(w).Encode(api.ChatReply{Reply: "hi there"})
	}))
	defer server.Close()

	client := api.NewClient(server.URL)
	reply, err := client.Chat(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if reply != "hi there" {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestClientChatDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/details" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var req api.ChatDetailsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(req.Messages))
		}
		json.NewEncoder(w).Encode(api.ChatDetailsResponse{
			Response: "answer",
			Model:    "gpt-3.5-turbo",
			Usage:    api.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		})
	}))
	defer server.Close()

	client := api.NewClient(server.URL)
	resp, err := client.ChatDetails(context.Background(), api.ChatDetailsRequest{
		Messages: []api.ChatMessage{
			{Role: api.RoleSystem, Content: "be brief"},
			{Role: api.RoleUser, Content: "hello"},
		},
	})
	if err != nil {
		t.Fatalf("ChatDetails returned error: %v", err)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Fatalf("unexpected usage: %+v", resp.Usage)
	}
}

func TestClientSurfacesErrorDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(api.ErrorResponse{Detail: "invalid API key"})
	}))
	defer server.Close()

	client := api.NewClient(server.URL)
	_, err := client.Chat(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	var statusErr *api.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %T: %v", err, err)
	}
	if statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", statusErr.StatusCode)
	}
	if statusErr.Detail != "invalid API key" {
		t.Fatalf("unexpected detail: %q", statusErr.Detail)
	}
}

func TestClientUnreachableBackend(t *testing.T) {
	client := api.NewClient("http://127.0.0.1:1")
	if _, err := client.Health(context.Background()); err == nil {
		t.Fatal("expected error for unreachable backend")
	}
}
