// Package tui is the terminal chat widget: a transcript, an input box and a
// spinner while the reply is on its way. Each turn is handed to a Responder
// together with the history that precedes it.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/x/ansi"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

const (
	DefaultTitle = "AI Chat (via chatrelay)"

	inputHeight  = 3
	headerHeight = 3
	footerHeight = 2
)

// Responder produces the text shown for one turn. It never fails: errors are
// rendered into the returned string.
type Responder interface {
	Respond(ctx context.Context, history llm.Conversation, message string) string
}

// Options configures the widget.
type Options struct {
	Title       string
	Description string
	Responder   Responder

	// MarkdownStyle is a glamour standard style ("dark", "light", ...).
	// Empty renders replies as plain wrapped text.
	MarkdownStyle string
}

type replyMsg struct {
	message string
	reply   string
}

// Model is the bubbletea model of the chat widget.
type Model struct {
	opts Options

	history llm.Conversation
	pending string
	waiting bool

	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	width int
}

// New creates the widget model.
func New(opts Options) Model {
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}

	ta := textarea.New()
	ta.Placeholder = "Type your message..."
	ta.Focus()
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetHeight(inputHeight)
	ta.SetWidth(80)

	// Enter submits; alt+enter is the only way to break a line.
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		opts:     opts,
		history:  llm.Conversation{},
		textarea: ta,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		width:    80,
	}
	m.renderer = m.newRenderer()
	m.refresh()

	return m
}

// History returns a copy of the completed turns.
func (m Model) History() llm.Conversation {
	return llm.Normalize(m.history)
}

// Waiting reports whether a reply is outstanding.
func (m Model) Waiting() bool {
	return m.waiting
}

func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			return m.submit()
		}

	case replyMsg:
		m.history = m.history.
			With(llm.UserTurn(msg.message)).
			With(llm.AssistantTurn(msg.reply))
		m.pending = ""
		m.waiting = false
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// submit sends the input box content as a new turn. Only one turn is in
// flight at a time.
func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.waiting {
		return m, nil
	}

	message := strings.TrimSpace(m.textarea.Value())
	if message == "" {
		return m, nil
	}

	m.textarea.Reset()
	m.pending = message
	m.waiting = true
	m.refresh()

	return m, tea.Batch(m.spinner.Tick, respond(m.opts.Responder, m.History(), message))
}

func respond(responder Responder, history llm.Conversation, message string) tea.Cmd {
	return func() tea.Msg {
		return replyMsg{
			message: message,
			reply:   responder.Respond(context.Background(), history, message),
		}
	}
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.textarea.SetWidth(width)
	m.viewport.Width = width
	m.viewport.Height = max(height-headerHeight-inputHeight-footerHeight, 1)
	m.renderer = m.newRenderer()
	m.refresh()
}

func (m Model) newRenderer() *glamour.TermRenderer {
	if m.opts.MarkdownStyle == "" {
		return nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.opts.MarkdownStyle),
		glamour.WithWordWrap(max(m.width-4, 20)),
	)
	if err != nil {
		return nil
	}
	return r
}

// refresh rebuilds the transcript and scrolls to the newest turn.
func (m *Model) refresh() {
	var b strings.Builder

	for _, turn := range m.history {
		b.WriteString(m.renderTurn(turn))
		b.WriteString("\n")
	}

	if m.waiting {
		b.WriteString(m.renderTurn(llm.UserTurn(m.pending)))
		b.WriteString("\n")
		b.WriteString(m.spinner.View() + " Thinking...\n")
	}

	if b.Len() == 0 {
		b.WriteString(helpStyle.Render("No messages yet. Say hello!"))
	}

	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m Model) renderTurn(turn llm.Turn) string {
	wrapWidth := max(m.width-2, 20)

	switch turn.Role {
	case llm.RoleUser:
		return userStyle.Render("You") + "\n" + ansi.Wrap(turn.Content, wrapWidth, "") + "\n"
	case llm.RoleAssistant:
		label := assistantStyle.Render("Assistant")
		if strings.HasPrefix(turn.Content, "Error: ") {
			return label + "\n" + errorStyle.Render(ansi.Wrap(turn.Content, wrapWidth, "")) + "\n"
		}
		if m.renderer != nil {
			if out, err := m.renderer.Render(turn.Content); err == nil {
				return label + "\n" + strings.TrimRight(out, "\n") + "\n"
			}
		}
		return label + "\n" + ansi.Wrap(turn.Content, wrapWidth, "") + "\n"
	default:
		return helpStyle.Render(ansi.Wrap(turn.Content, wrapWidth, "")) + "\n"
	}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.opts.Title))
	b.WriteString("\n")
	b.WriteString(descriptionStyle.Render(m.opts.Description))
	b.WriteString("\n\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.textarea.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter send • alt+enter newline • esc quit"))

	return b.String()
}

// Run starts the widget on the alternate screen and blocks until it exits.
func Run(opts Options) error {
	_, err := tea.NewProgram(New(opts), tea.WithAltScreen()).Run()
	return err
}
