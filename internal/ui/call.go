package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/BioHazard786/duobooth/internal/session"
)

// Controls is what the call screen drives. *session.Call implements it.
type Controls interface {
	SetFilter(ctx context.Context, name string) error
	End()
	CallDuration() time.Duration
}

// Messages delivered to the call screen
type (
	StatusMsg       string
	RemoteFilterMsg string
	StateMsg        struct{ From, To session.State }
	EndedMsg        struct{ Err error }

	filterErrMsg struct{ err error }
	tickMsg      time.Time
)

// CallModel is the Bubble Tea model for a running call
type CallModel struct {
	role   session.Role
	roomID string

	status       string
	state        session.State
	localFilter  string
	remoteFilter string
	notice       string

	controls Controls
	spinner  spinner.Model
	help     help.Model

	quitting bool
	err      error
}

func NewCallModel(role session.Role, localFilter string) *CallModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	if f, ok := session.LookupFilter(localFilter); ok {
		localFilter = f
	} else {
		localFilter = session.DefaultFilter
	}

	return &CallModel{
		role:        role,
		status:      "Starting...",
		localFilter: localFilter,
		spinner:     s,
		help:        help.New(),
	}
}

// Bind attaches the running call. It must happen before the program starts.
func (m *CallModel) Bind(roomID string, c Controls) {
	m.roomID = roomID
	m.controls = c
}

func (m *CallModel) Err() error { return m.err }

func (m *CallModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *CallModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Hangup):
			m.quitting = true
			return m, m.hangup()
		case key.Matches(msg, keys.NextFilter):
			return m, m.cycleFilter(1)
		case key.Matches(msg, keys.PrevFilter):
			return m, m.cycleFilter(-1)
		case key.Matches(msg, keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		if !m.quitting {
			return m, tick()
		}

	case StatusMsg:
		m.status = string(msg)

	case StateMsg:
		m.state = msg.To

	case RemoteFilterMsg:
		m.remoteFilter = string(msg)

	case filterErrMsg:
		m.notice = msg.err.Error()

	case EndedMsg:
		m.err = msg.Err
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

func (m *CallModel) cycleFilter(step int) tea.Cmd {
	idx := 0
	for i, f := range session.Filters {
		if f == m.localFilter {
			idx = i
			break
		}
	}
	n := len(session.Filters)
	m.localFilter = session.Filters[((idx+step)%n+n)%n]
	m.notice = ""

	name, c := m.localFilter, m.controls
	if c == nil {
		return nil
	}
	return func() tea.Msg {
		if err := c.SetFilter(context.Background(), name); err != nil {
			return filterErrMsg{err}
		}
		return nil
	}
}

func (m *CallModel) hangup() tea.Cmd {
	c := m.controls
	return func() tea.Msg {
		if c != nil {
			c.End()
		}
		return tea.QuitMsg{}
	}
}

func (m *CallModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(IconCamera+" duobooth") + "\n")
	if m.roomID != "" {
		b.WriteString(fmt.Sprintf("%s Room %s  %s\n", IconRoom, BoldStyle.Render(m.roomID), MutedStyle.Render(m.role.String())))
	}
	b.WriteString("\n")

	switch m.state {
	case session.StateConnected:
		var d time.Duration
		if m.controls != nil {
			d = m.controls.CallDuration()
		}
		b.WriteString(fmt.Sprintf("%s %s  %s %s\n",
			StatusStyle.Render(m.status), MutedStyle.Render(m.state.String()),
			IconTime, session.FormatDuration(d)))
	case session.StateFailed:
		b.WriteString(ErrorStyle.Render(IconError+" "+m.status) + "\n")
	default:
		b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), m.status))
	}

	remote := m.remoteFilter
	if remote == "" {
		remote = "-"
	}
	b.WriteString(fmt.Sprintf("\n%s You: %s   Friend: %s\n", IconFilter,
		FilterStyle.Render(m.localFilter), FilterStyle.Render(remote)))
	if m.notice != "" {
		b.WriteString(WarningStyle.Render(IconWarning+" "+m.notice) + "\n")
	}

	b.WriteString("\n" + m.help.View(keys))
	return b.String()
}
