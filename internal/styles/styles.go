// Package styles holds the lipgloss styles used by the interactive CLI.
package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

var (
	// Colors - all meet WCAG AA contrast (4.5:1) on dark backgrounds
	PrimaryColor = lipgloss.Color("#A78BFA") // Purple
	SuccessColor = lipgloss.Color("#10B981") // Green
	WarningColor = lipgloss.Color("#F59E0B") // Amber
	ErrorColor   = lipgloss.Color("#F87171") // Red
	MutedColor   = lipgloss.Color("#9CA3AF") // Gray

	// Prompt is the REPL input prompt.
	Prompt = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor)

	// Stderr renders interpreter diagnostics.
	Stderr = lipgloss.NewStyle().Foreground(ErrorColor)

	Info    = lipgloss.NewStyle().Foreground(MutedColor).Italic(true)
	Warning = lipgloss.NewStyle().Foreground(WarningColor)
	Success = lipgloss.NewStyle().Foreground(SuccessColor)

	// Status colors keyed by session state name
	stateColors = map[string]lipgloss.Color{
		"ready":      SuccessColor,
		"evaluating": PrimaryColor,
		"timed_out":  WarningColor,
		"closed":     MutedColor,
	}
)

// StateColor returns the color for a session state name.
func StateColor(name string) lipgloss.Color {
	if color, ok := stateColors[name]; ok {
		return color
	}
	return MutedColor
}

// State renders a session state name in its status color.
func State(name string) string {
	return lipgloss.NewStyle().Bold(true).Foreground(StateColor(name)).Render(name)
}

// Log level colors, keyed by the upper-case slog level name.
var levelColors = map[string]lipgloss.Color{
	"DEBUG": MutedColor,
	"INFO":  PrimaryColor,
	"WARN":  WarningColor,
	"ERROR": ErrorColor,
}

// Level renders a log level name in its color.
func Level(name string) string {
	color, ok := levelColors[name]
	if !ok {
		color = MutedColor
	}
	return lipgloss.NewStyle().Foreground(color).Render("[" + name + "]")
}

// Clip flattens s onto one line and cuts it to maxLen runes, ending it with
// "..." when cut. It does not account for escape sequences; use Fit on
// rendered text.
func Clip(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return string(runes[:maxLen-3]) + "..."
}

// Fit truncates rendered text to width terminal columns, keeping escape
// sequences intact. A width of zero or less leaves s unchanged.
func Fit(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	if width <= 3 {
		return "..."
	}
	return ansi.Truncate(s, width, "...")
}
