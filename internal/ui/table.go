package ui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	pretty "github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/BioHazard786/duobooth/internal/session"
	"github.com/BioHazard786/duobooth/internal/signaling"
)

func metricTable(rows [][]string) string {
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("Metric", "Value").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

// CallSummaryView renders the end-of-call summary.
func CallSummaryView(s session.CallSummary) string {
	status := IconSuccess + " Ended"
	if s.Err != nil {
		status = IconError + " " + s.Err.Error()
	}

	remote := s.RemoteFilter
	if remote == "" {
		remote = "-"
	}

	return metricTable([][]string{
		{"Status", status},
		{"Room", s.RoomID},
		{"Role", s.Role.String()},
		{"Duration", session.FormatDuration(s.Duration)},
		{"Your Filter", s.LocalFilter},
		{"Friend's Filter", remote},
		{"Messages", fmt.Sprintf("%d sent / %d received", s.Sent, s.Received)},
		{"Polls", fmt.Sprintf("%d (%d failed)", s.PollCycles, s.PollFailures)},
	})
}

func RenderCallSummary(s session.CallSummary) {
	fmt.Println(CallSummaryView(s))
}

// RelayStatsView renders relay-wide counters for the stats command.
func RelayStatsView(server string, stats signaling.Stats) string {
	t := pretty.NewWriter()
	t.SetStyle(pretty.StyleRounded)
	t.SetTitle("Relay %s", server)
	t.AppendHeader(pretty.Row{"Metric", "Value"})
	t.AppendRows([]pretty.Row{
		{"Active rooms", strconv.Itoa(stats.Rooms)},
		{"Buffered messages", strconv.Itoa(stats.Messages)},
	})
	t.SetColumnConfigs([]pretty.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})
	return t.Render()
}

type RoomInfo struct {
	RoomID string
	Binary string
}

func NewRoomInfo(roomID, binary string) *RoomInfo {
	return &RoomInfo{
		RoomID: roomID,
		Binary: binary,
	}
}

func (r *RoomInfo) View() string {
	content := fmt.Sprintf("%s Room Created!\n\n%s Room ID:  %s\n%s Friend:   %s",
		IconSuccess,
		IconCopy, BoldStyle.Foreground(Primary).Render(r.RoomID),
		IconPeer, MutedStyle.Render(r.Binary+" join "+r.RoomID),
	)

	return SuccessBoxStyle.Render(content)
}
