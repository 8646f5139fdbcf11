package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/campus-chat/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/campus-chat/backend/internal/service/chat"
	"github.com/zhouzirui/campus-chat/backend/internal/service/conversation"
)

var (
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	botStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	systemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// TranscriptMsg carries one appended transcript message.
type TranscriptMsg chat.Message

// ClosedMsg signals that the session's transcript stream ended.
type ClosedMsg struct{}

// SubmitErrMsg reports a failed submission.
type SubmitErrMsg struct {
	Err error
}

// Model is the terminal chat view: the transcript above, one input line below.
type Model struct {
	viewport  viewport.Model
	textarea  textarea.Model
	messages  []chat.Message
	ready     bool
	lastErr   error
	conv      *conversation.Service
	sessionID string
	updates   <-chan chat.Message
	ctx       context.Context
}

// New subscribes to the session and builds the initial view.
func New(ctx context.Context, conv *conversation.Service, chatSvc *chatservice.Service, sessionID string) (Model, func(), error) {
	history, updates, cancel, err := chatSvc.Subscribe(ctx, sessionID)
	if err != nil {
		return Model{}, nil, err
	}

	ta := textarea.New()
	ta.Placeholder = "Ask about campus..."
	ta.Focus()
	ta.CharLimit = 0
	ta.SetWidth(80)
	ta.SetHeight(1)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	m := Model{
		viewport:  viewport.New(80, 20),
		textarea:  ta,
		messages:  history,
		conv:      conv,
		sessionID: sessionID,
		updates:   updates,
		ctx:       ctx,
	}
	m.refresh()
	return m, cancel, nil
}

// waitForMessage blocks on the subscription until the next message arrives.
func waitForMessage(updates <-chan chat.Message) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-updates
		if !ok {
			return ClosedMsg{}
		}
		return TranscriptMsg(msg)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, waitForMessage(m.updates))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			input := strings.TrimSpace(m.textarea.Value())
			m.textarea.Reset()
			if input == "" {
				return m, nil
			}
			return m, m.submit(input)
		}

	case tea.WindowSizeMsg:
		inputHeight := m.textarea.Height() + 2
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-inputHeight-1, 1)
		m.textarea.SetWidth(msg.Width)
		m.ready = true
		m.refresh()

	case TranscriptMsg:
		m.messages = append(m.messages, chat.Message(msg))
		m.refresh()
		return m, waitForMessage(m.updates)

	case ClosedMsg:
		return m, tea.Quit

	case SubmitErrMsg:
		m.lastErr = msg.Err
		return m, nil
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// submit appends the text; the subscription delivers it back to the view.
func (m Model) submit(text string) tea.Cmd {
	return func() tea.Msg {
		if _, err := m.conv.Submit(m.ctx, m.sessionID, text); err != nil {
			return SubmitErrMsg{Err: err}
		}
		return nil
	}
}

func (m Model) View() string {
	help := "enter: send • esc: quit"
	if m.lastErr != nil {
		help = fmt.Sprintf("error: %v • %s", m.lastErr, help)
	}
	return fmt.Sprintf("%s\n%s\n%s", m.viewport.View(), m.textarea.View(), helpStyle.Render(help))
}

// Outputs returns the rendered transcript lines currently shown.
func (m Model) Outputs() []string {
	lines := make([]string, len(m.messages))
	for i, msg := range m.messages {
		lines[i] = msg.Output()
	}
	return lines
}

func (m *Model) refresh() {
	var sb strings.Builder
	for i, msg := range m.messages {
		if i > 0 {
			sb.WriteString("\n")
		}
		switch msg.Sender {
		case chat.SenderUser:
			sb.WriteString(userStyle.Render("You: "))
		case chat.SenderAssistant:
			sb.WriteString(botStyle.Render("Bot: "))
		default:
			sb.WriteString(systemStyle.Render(msg.Content))
			continue
		}
		sb.WriteString(msg.Content)
	}
	m.viewport.SetContent(sb.String())
	m.viewport.GotoBottom()
}
