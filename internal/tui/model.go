package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mkb/internal/ai"
	"mkb/internal/assembler"
	"mkb/internal/chat"
)

// AnswerPort is the TUI-facing subset of the chat pipeline.
type AnswerPort interface {
	Answer(ctx context.Context, message string, history []ai.Message) (chat.Reply, error)
}

// turn is one entry of the rendered transcript.
type turn struct {
	role string // "user", "assistant", "error"
	text string
}

// answerMsg delivers a finished (or failed) answer back to Update.
type answerMsg struct {
	reply chat.Reply
	err   error
}

// Model is the Bubble Tea model for the chat TUI.
type Model struct {
	service  AnswerPort
	timeout  time.Duration
	input    textinput.Model
	viewport viewport.Model
	turns    []turn
	history  []ai.Message
	pending  string
	stage    string
	status   string
	thinking bool
	ready    bool
	width    int
}

// New creates a new chat TUI model instance.
func New(service AnswerPort, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the marketplace and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		service:  service,
		timeout:  timeout,
		input:    ti,
		viewport: vp,
		status:   "Connected. Ask about products, categories, or vendors.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window, and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		// account for frames around transcript and input boxes
		_, th := transcriptBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		totalHeaderLines := 2 // header + stage
		totalFooterLines := 1 // status
		reserved := totalHeaderLines + totalFooterLines + ih + 1
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-th)
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil
	case answerMsg:
		m.thinking = false
		if st := msg.reply.Context.Stage.Stage; st != "" {
			m.stage = string(st)
		}
		if msg.err != nil {
			m.turns = append(m.turns, turn{role: "error", text: msg.err.Error()})
			m.status = "Answer failed. The context above was still assembled."
		} else {
			m.turns = append(m.turns, turn{role: "assistant", text: msg.reply.Text})
			m.history = append(m.history,
				ai.Message{Role: ai.RoleUser, Content: m.pending},
				ai.Message{Role: ai.RoleAssistant, Content: msg.reply.Text},
			)
			m.status = sourceSummary(msg.reply.Context)
		}
		m.pending = ""
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				return m, nil
			}
			if m.thinking {
				m.status = "Still thinking, hold on..."
				return m, nil
			}
			m.turns = append(m.turns, turn{role: "user", text: q})
			m.pending = q
			m.thinking = true
			m.status = "Thinking..."
			m.input.SetValue("")
			m.viewport.SetContent(m.renderTranscript())
			m.viewport.GotoBottom()
			return m, answer(m.service, m.timeout, q, m.history)
		case "up", "pgup":
			m.viewport.LineUp(1)
			return m, nil
		case "down", "pgdown":
			m.viewport.LineDown(1)
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("MKB Sales Chat")
	stage := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.stageLine())
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + stage + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) stageLine() string {
	if m.stage == "" {
		return "Stage: (none yet)"
	}
	return "Stage: " + m.stage
}

func (m Model) renderTranscript() string {
	if len(m.turns) == 0 {
		return "No messages yet. Say hello."
	}
	wrap := lipgloss.NewStyle()
	if m.viewport.Width > 4 {
		wrap = wrap.Width(m.viewport.Width - 4)
	}
	var b strings.Builder
	for i, t := range m.turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch t.role {
		case "user":
			b.WriteString(userLabelStyle.Render("You") + "\n" + wrap.Render(t.text))
		case "assistant":
			b.WriteString(assistantLabelStyle.Render("MKB") + "\n" + wrap.Render(t.text))
		default:
			b.WriteString(errorStyle.Render("Error: " + t.text))
		}
	}
	if m.thinking {
		b.WriteString("\n\n" + assistantLabelStyle.Render("MKB") + "\n" + wrap.Render("..."))
	}
	return b.String()
}

// sourceSummary condenses the trace into one status line.
func sourceSummary(res assembler.Result) string {
	parts := make([]string, 0, len(res.Trace.Sources))
	for _, s := range res.Trace.Sources {
		parts = append(parts, fmt.Sprintf("%s:%s", s.Name, s.Status))
	}
	if res.Trace.Cache.Hit {
		parts = append(parts, "block:cached")
	}
	if len(parts) == 0 {
		return "Answered."
	}
	return "Sources " + strings.Join(parts, " ")
}

// answer runs the pipeline off the UI goroutine and reports back.
func answer(service AnswerPort, timeout time.Duration, message string, history []ai.Message) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		reply, err := service.Answer(ctx, message, history)
		return answerMsg{reply: reply, err: err}
	}
}

var (
	transcriptBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userLabelStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
