package frontend

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"flexone/internal/api"
)

func typePrompt(t *testing.T, m Model, prompt string) Model {
	t.Helper()
	for _, r := range prompt {
		updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = updated.(Model)
	}
	return m
}

func pressEnter(t *testing.T, m Model) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return updated.(Model), cmd
}

func TestSubmitPromptSendsToBackend(t *testing.T) {
	var gotMessage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req api.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotMessage = req.Message
		json.NewEncoder(w).Encode(api.ChatReply{Reply: "hello back"})
	}))
	t.Cleanup(srv.Close)

	m := New(api.NewClient(srv.URL))
	m = typePrompt(t, m, "hello")
	m, cmd := pressEnter(t, m)

	if !m.Waiting() {
		t.Fatal("expected model to be waiting after submit")
	}
	msgs := m.Messages()
	if len(msgs) != 1 || msgs[0].Role != api.RoleUser || msgs[0].Content != "hello" {
		t.Fatalf("unexpected transcript after submit: %#v", msgs)
	}
	if cmd == nil {
		t.Fatal("expected send command")
	}

	reply, ok := cmd().(replyMsg)
	if !ok {
		t.Fatalf("expected replyMsg, got %T", cmd())
	}
	if reply.err != nil {
		t.Fatalf("unexpected send error: %v", reply.err)
	}
	if gotMessage != "hello" {
		t.Fatalf("backend received %q", gotMessage)
	}

	updated, _ := m.Update(reply)
	m = updated.(Model)
	if m.Waiting() {
		t.Fatal("expected waiting cleared after reply")
	}
	msgs = m.Messages()
	if len(msgs) != 2 || msgs[1].Role != api.RoleAssistant || msgs[1].Content != "hello back" {
		t.Fatalf("unexpected transcript after reply: %#v", msgs)
	}
}

func TestBackendFailureRendersErrorReply(t *testing.T) {
	m := New(api.NewClient("http://127.0.0.1:1"))
	m = typePrompt(t, m, "hello")
	m, cmd := pressEnter(t, m)
	if cmd == nil {
		t.Fatal("expected send command")
	}

	reply, ok := cmd().(replyMsg)
	if !ok {
		t.Fatalf("expected replyMsg, got %T", cmd())
	}
	if reply.err == nil {
		t.Fatal("expected transport error")
	}

	updated, _ := m.Update(reply)
	m = updated.(Model)
	msgs := m.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected error reply appended, got %#v", msgs)
	}
	if msgs[1].Role != api.RoleAssistant || !strings.HasPrefix(msgs[1].Content, "Error:") {
		t.Fatalf("unexpected error reply: %#v", msgs[1])
	}
}

func TestErrorStatusRendersDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(api.ErrorResponse{Detail: "rate limit exceeded"})
	}))
	t.Cleanup(srv.Close)

	m := New(api.NewClient(srv.URL))
	m = typePrompt(t, m, "hello")
	m, cmd := pressEnter(t, m)

	reply := cmd().(replyMsg)
	var statusErr *api.StatusError
	if !errors.As(reply.err, &statusErr) || statusErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 status error, got %v", reply.err)
	}

	updated, _ := m.Update(reply)
	m = updated.(Model)
	last := m.Messages()[len(m.Messages())-1]
	if !strings.Contains(last.Content, "rate limit exceeded") {
		t.Fatalf("expected detail in error reply, got %q", last.Content)
	}
}

func TestEmptyPromptIgnored(t *testing.T) {
	m := New(api.NewClient("http://127.0.0.1:1"))
	m, cmd := pressEnter(t, m)
	if cmd != nil {
		t.Fatal("expected no command for empty prompt")
	}
	if len(m.Messages()) != 0 {
		t.Fatalf("expected empty transcript, got %#v", m.Messages())
	}
}

func TestSubmitBlockedWhileWaiting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(api.ChatReply{Reply: "ok"})
	}))
	t.Cleanup(srv.Close)

	m := New(api.NewClient(srv.URL))
	m = typePrompt(t, m, "first")
	m, _ = pressEnter(t, m)
	if !m.Waiting() {
		t.Fatal("expected waiting state")
	}

	m = typePrompt(t, m, "second")
	m, cmd := pressEnter(t, m)
	if cmd != nil {
		t.Fatal("expected submit to be blocked while waiting")
	}
	if len(m.Messages()) != 1 {
		t.Fatalf("expected single message in transcript, got %#v", m.Messages())
	}
}

func TestQuitKeys(t *testing.T) {
	m := New(api.NewClient("http://127.0.0.1:1"))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected quit command for ctrl+c")
	}
	if msg := cmd(); msg != tea.Quit() {
		t.Fatalf("expected quit message, got %#v", msg)
	}
}

func TestWindowResizeKeepsTranscript(t *testing.T) {
	m := New(api.NewClient("http://127.0.0.1:1"))
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = updated.(Model)
	if m.viewport.Width != 118 {
		t.Fatalf("unexpected viewport width: %d", m.viewport.Width)
	}
	if view := m.View(); view == "" {
		t.Fatal("expected rendered view")
	}
}
