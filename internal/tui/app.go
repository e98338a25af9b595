package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lawchat/internal/app"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// starterQuestions seed the empty state so a first-time user has somewhere to
// start.
var starterQuestions = []string{
	"Can my landlord raise the rent this year?",
	"How much notice do I need to give before moving out?",
	"What can I do about a repair my landlord ignores?",
}

// Model is the interactive chat shell. All session state lives in
// app.History; the model only mirrors what it needs to draw.
type Model struct {
	app          *app.Application
	input        textarea.Model
	spin         spinner.Model
	keys         keyMap
	loading      bool
	windowWidth  int
	windowHeight int
}

func New(application *app.Application) *Model {
	ta := textarea.New()
	ta.Placeholder = "Ask a legal question... (enter to send)"
	ta.Focus()
	ta.CharLimit = 4000
	ta.SetWidth(80)
	ta.SetHeight(2)
	ta.Prompt = "▍ "
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.BlurredStyle.CursorLine = lipgloss.NewStyle()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(colorPrimary))

	return &Model{
		app:          application,
		input:        ta,
		spin:         sp,
		keys:         defaultKeyMap(),
		windowWidth:  80,
		windowHeight: 24,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.reconcileCmd())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		m.windowHeight = msg.Height
		m.input.SetWidth(msg.Width - 8)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Enter):
			query := strings.TrimSpace(m.input.Value())
			if query == "" || m.loading {
				return m, nil
			}
			m.input.Reset()
			m.loading = true
			return m, tea.Batch(m.sendCmd(query), m.spin.Tick)

		case key.Matches(msg, m.keys.NewChat):
			if m.loading {
				return m, nil
			}
			m.app.History.CreateSession()
			return m, nil

		case key.Matches(msg, m.keys.NextSession):
			return m, m.cycleSession(1)

		case key.Matches(msg, m.keys.PrevSession):
			return m, m.cycleSession(-1)
		}

	case answerMsg:
		m.loading = false
		return m, nil

	case reconciledMsg:
		return m, nil

	case spinner.TickMsg:
		if m.loading {
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}
	}

	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderMessages())
	b.WriteString("\n")
	b.WriteString(inputStyle.Width(m.windowWidth - 4).Render(m.input.View()))
	b.WriteString("\n")

	if m.loading {
		b.WriteString(loadingStyle.Render(m.spin.View() + " Checking the law..."))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("enter send | ctrl+n new chat | ctrl+j/ctrl+k switch chat | ctrl+c quit"))

	return b.String()
}

// sendCmd runs the full Send flow off the UI loop. History records the user
// message, the answer, and any failure, so the command only signals redraw.
func (m *Model) sendCmd(query string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		m.app.History.Send(ctx, query)
		return answerMsg{}
	}
}

func (m *Model) reconcileCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = m.app.History.Reconcile(ctx)
		return reconciledMsg{}
	}
}

// cycleSession moves the active selection through the recency-sorted list.
func (m *Model) cycleSession(step int) tea.Cmd {
	sessions := m.app.History.Sessions()
	if len(sessions) < 2 {
		return nil
	}
	active := m.app.History.ActiveID()
	idx := 0
	for i, s := range sessions {
		if s.LocalID == active {
			idx = i
			break
		}
	}
	next := (idx + step + len(sessions)) % len(sessions)
	target := sessions[next].LocalID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		m.app.History.Select(ctx, target)
		return reconciledMsg{}
	}
}

type answerMsg struct{}

type reconciledMsg struct{}

func (m *Model) renderHeader() string {
	title := "lawchat"
	if sess, ok := m.app.History.Active(); ok {
		title = fmt.Sprintf("lawchat — %s", sess.Title)
	}
	if !m.app.LoggedIn() {
		title += "  (not signed in)"
	}
	return headerStyle.Width(m.windowWidth - 4).Render(title)
}

func (m *Model) renderMessages() string {
	sess, ok := m.app.History.Active()
	if !ok || len(sess.Messages) == 0 {
		return m.renderEmptyState()
	}

	var b strings.Builder
	for _, msg := range sess.Messages {
		var header string
		var style lipgloss.Style

		switch msg.Role {
		case app.RoleUser:
			header = fmt.Sprintf("You • %s", msg.Timestamp.Format("15:04:05"))
			style = userMessageStyle
		case app.RoleError:
			header = "Error"
			style = errorMessageStyle
		default:
			header = fmt.Sprintf("Answer • %s", msg.Timestamp.Format("15:04:05"))
			style = assistantMessageStyle
		}

		b.WriteString(style.Width(m.windowWidth - 4).Render(header))
		b.WriteString("\n")

		contentStyle := messageContentStyle.Width(m.windowWidth - 4)
		if msg.Answer != nil {
			b.WriteString(contentStyle.Render(renderAnswer(msg.Answer, m.windowWidth-8)))
		} else {
			b.WriteString(contentStyle.Render(msg.Content))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderEmptyState() string {
	var b strings.Builder
	b.WriteString(emptyTitleStyle.Render("Ask about Ontario tenancy law"))
	b.WriteString("\n\n")
	for _, q := range starterQuestions {
		b.WriteString(emptyItemStyle.Render("• " + q))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(emptyFootStyle.Render("General legal information, not legal advice."))
	b.WriteString("\n")
	return b.String()
}

type keyMap struct {
	Quit        key.Binding
	Enter       key.Binding
	NewChat     key.Binding
	NextSession key.Binding
	PrevSession key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "esc"),
			key.WithHelp("ctrl+c", "quit"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		NewChat: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", "new chat"),
		),
		NextSession: key.NewBinding(
			key.WithKeys("ctrl+j"),
			key.WithHelp("ctrl+j", "next chat"),
		),
		PrevSession: key.NewBinding(
			key.WithKeys("ctrl+k"),
			key.WithHelp("ctrl+k", "previous chat"),
		),
	}
}
