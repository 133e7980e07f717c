package frontend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"flexone/internal/api"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	sendTimeout   = 65 * time.Second
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A6E3A1"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	hintStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// replyMsg carries the backend response (or failure) for the last prompt.
type replyMsg struct {
	reply string
	err   error
}

// Model is the chat application state.
type Model struct {
	client *api.Client

	viewport viewport.Model
	input    textinput.Model

	messages []api.ChatMessage
	waiting  bool

	width  int
	height int
}

// New constructs the chat model around a backend API client.
func New(client *api.Client) Model {
	input := textinput.New()
	input.Placeholder = "Ask me here..."
	input.Prompt = "> "
	input.CharLimit = 4000
	input.Focus()

	vp := viewport.New(defaultWidth, defaultHeight-6)

	m := Model{
		client:   client,
		viewport: vp,
		input:    input,
		width:    defaultWidth,
		height:   defaultHeight,
	}
	m.viewport.SetContent(m.renderTranscript())
	return m
}

// Messages exposes the transcript, newest last.
func (m Model) Messages() []api.ChatMessage {
	return m.messages
}

// Waiting reports whether a prompt is in flight.
func (m Model) Waiting() bool {
	return m.waiting
}

// Init is called once when the program starts.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update reacts to terminal events and backend replies.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-6)
		m.input.Width = max(20, msg.Width-6)
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil

	case replyMsg:
		m.waiting = false
		reply := msg.reply
		if msg.err != nil {
			reply = fmt.Sprintf("Error: %v", msg.err)
		}
		m.messages = append(m.messages, api.ChatMessage{Role: api.RoleAssistant, Content: reply})
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			return m.submitPrompt()
		}
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}
	m.viewport, cmd = m.viewport.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) submitPrompt() (tea.Model, tea.Cmd) {
	if m.waiting {
		return m, nil
	}
	prompt := strings.TrimSpace(m.input.Value())
	if prompt == "" {
		return m, nil
	}

	m.messages = append(m.messages, api.ChatMessage{Role: api.RoleUser, Content: prompt})
	m.input.Reset()
	m.waiting = true
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
	return m, m.sendPrompt(prompt)
}

func (m Model) sendPrompt(prompt string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		reply, err := client.Chat(ctx, prompt)
		return replyMsg{reply: reply, err: err}
	}
}

// View renders the chat window.
func (m Model) View() string {
	title := titleStyle.Render("FlexOne")
	status := ""
	if m.waiting {
		status = hintStyle.Render("Thinking...")
	}
	hint := hintStyle.Render("Enter → send    Esc → quit")
	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		m.viewport.View(),
		m.input.View(),
		status,
		hint,
	)
}

func (m Model) renderTranscript() string {
	if len(m.messages) == 0 {
		return hintStyle.Render("No messages yet. Ask me anything.")
	}
	width := max(20, m.viewport.Width-2)
	body := lipgloss.NewStyle().Width(width)
	var blocks []string
	for _, msg := range m.messages {
		var label string
		content := msg.Content
		switch msg.Role {
		case api.RoleUser:
			label = userStyle.Render("You")
		default:
			label = assistantStyle.Render("FlexOne")
			if strings.HasPrefix(content, "Error:") {
				content = errorStyle.Render(content)
			}
		}
		blocks = append(blocks, label+"\n"+body.Render(content))
	}
	return strings.Join(blocks, "\n\n")
}

// Run starts the interactive chat program against the given backend.
func Run(client *api.Client) error {
	program := tea.NewProgram(New(client), tea.WithAltScreen())
	_, err := program.Run()
	return err
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
