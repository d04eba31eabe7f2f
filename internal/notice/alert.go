package notice

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// AlertMsg asks the application to raise a blocking alert. Alerts are the
// second user-visible channel next to the notice region; they stay up until
// acknowledged.
type AlertMsg struct {
	Level   Level
	Message string
}

// Alert returns a command that raises a blocking alert.
func Alert(level Level, message string) tea.Cmd {
	msg := AlertMsg{Level: level, Message: strings.TrimSpace(message)}
	return func() tea.Msg { return msg }
}

var alertBox = lipgloss.NewStyle().
	Border(lipgloss.DoubleBorder()).
	Padding(1, 3)

// RenderAlert draws an alert box with its acknowledgement hint.
func RenderAlert(a AlertMsg, width int) string {
	color, ok := levelColors[a.Level]
	if !ok {
		color = levelColors[LevelError]
	}
	body := lipgloss.NewStyle().Bold(true).Foreground(color).Render(a.Message)
	hint := closeHint.Render("entrée / échap pour fermer")
	return alertBox.BorderForeground(color).Width(max(30, min(width, 72))).Render(body + "\n\n" + hint)
}
