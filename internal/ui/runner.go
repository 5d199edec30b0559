package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/BioHazard786/duobooth/internal/session"
)

// CallUI runs the call screen and turns session hooks into screen updates
type CallUI struct {
	model   *CallModel
	updates chan tea.Msg
}

// NewCallUI creates the call screen for one side of a call
func NewCallUI(role session.Role, localFilter string) *CallUI {
	return &CallUI{
		model:   NewCallModel(role, localFilter),
		updates: make(chan tea.Msg, 64),
	}
}

// Hooks reports session progress to the screen. Hooks never block; updates
// beyond the buffer are dropped.
func (ui *CallUI) Hooks() session.Hooks {
	return session.Hooks{
		OnStatusChange: func(text string) { ui.send(StatusMsg(text)) },
		OnStateChange: func(from, to session.State) {
			ui.send(StateMsg{From: from, To: to})
		},
		OnFilterChanged: func(name string) { ui.send(RemoteFilterMsg(name)) },
		OnDisconnectedOrFailed: func(err error) {
			ui.send(EndedMsg{Err: err})
		},
	}
}

func (ui *CallUI) send(msg tea.Msg) {
	select {
	case ui.updates <- msg:
	default:
	}
}

// Bind attaches the running call
func (ui *CallUI) Bind(roomID string, c Controls) {
	ui.model.Bind(roomID, c)
}

// Run blocks until the user hangs up or the call ends. It returns the error
// the call ended with, if any.
func (ui *CallUI) Run(opts ...tea.ProgramOption) error {
	// Don't use the alt screen, so the room box stays visible above
	if _, err := tea.NewProgram(&liveCallModel{CallModel: ui.model, updates: ui.updates}, opts...).Run(); err != nil {
		return err
	}
	return ui.model.Err()
}

// liveCallModel feeds buffered hook updates into the call model
type liveCallModel struct {
	*CallModel
	updates chan tea.Msg
}

func (m *liveCallModel) Init() tea.Cmd {
	return tea.Batch(m.CallModel.Init(), m.listenForUpdates())
}

func (m *liveCallModel) listenForUpdates() tea.Cmd {
	return func() tea.Msg {
		return updateMsg{<-m.updates}
	}
}

type updateMsg struct{ msg tea.Msg }

func (m *liveCallModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if u, ok := msg.(updateMsg); ok {
		_, cmd := m.CallModel.Update(u.msg)
		return m, tea.Batch(cmd, m.listenForUpdates())
	}
	_, cmd := m.CallModel.Update(msg)
	return m, cmd
}
