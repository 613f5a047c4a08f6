package console

import "github.com/charmbracelet/lipgloss"

// Terminal styles shared by every log line.
// Lipgloss automatically degrades colors based on terminal capabilities.
var (
	// StyleCyan is used for task names.
	StyleCyan = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	// StyleRed is used for failed tasks and error messages.
	StyleRed = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	// StyleYellow is used for warnings and follow-up hints.
	StyleYellow = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	// StyleMagenta is used for durations.
	StyleMagenta = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	// StyleGray is used for timestamps and file paths.
	StyleGray = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	// StyleNotice highlights one-off notices such as newly discovered fonts.
	StyleNotice = lipgloss.NewStyle().Bold(true).Background(lipgloss.Color("8"))
)

// RenderStyle applies a lipgloss style to text when colors are enabled.
// When useColors is false, the text is returned unmodified.
func RenderStyle(style lipgloss.Style, text string, useColors bool) string {
	if !useColors {
		return text
	}
	return style.Render(text)
}
