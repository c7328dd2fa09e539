// Package ui renders session views in the terminal.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rbright/livescribe/internal/session"
)

const (
	// LineTimeLayout formats transcript line timestamps in the TUI.
	LineTimeLayout = "3:04:05 PM"

	maxWidth = 88

	title       = "Speech Recognition"
	subtitle    = "Speak naturally and watch your words appear"
	placeholder = "Your speech will appear here..."
	unsupported = "Speech recognition is not supported on this host. Configure a recognizer backend and run `livescribe doctor`."
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	subtitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	sectionStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("250"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	timeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	interimStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("246"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	noticeStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("208")).
			Foreground(lipgloss.Color("208")).
			Padding(0, 1)

	statusColors = map[string]lipgloss.Color{
		"muted":     lipgloss.Color("160"),
		"listening": lipgloss.Color("33"),
		"off":       lipgloss.Color("244"),
	}

	keyStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255")).Background(lipgloss.Color("63")).Padding(0, 1)
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("238")).Padding(0, 1)
)

// StatusText is the microphone status line. Muted wins over listening.
func StatusText(v session.View) string {
	switch v.State().Label() {
	case "muted":
		return "Microphone: Muted"
	case "listening":
		return "Microphone: Listening"
	default:
		return "Microphone: Off"
	}
}

// Render draws the whole panel for v at the given terminal width. A width of 0 means unknown.
func Render(v session.View, width int) string {
	if width <= 0 || width > maxWidth {
		width = maxWidth
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(title) + "\n")
	b.WriteString(subtitleStyle.Render(subtitle) + "\n\n")

	if !v.Supported {
		b.WriteString(noticeStyle.Width(width-4).Render(unsupported) + "\n\n")
	} else {
		b.WriteString(renderMicrophone(v) + "\n\n")
		b.WriteString(renderControls(v) + "\n")
		if v.LastError != "" {
			b.WriteString(errorStyle.Render("Last error: "+v.LastError) + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(renderTranscript(v, width))
	return b.String()
}

func renderMicrophone(v session.View) string {
	label := v.State().Label()
	glyph := "( ○ )"
	switch label {
	case "muted":
		glyph = "( ⊘ )"
	case "listening":
		glyph = "( ● )"
	}

	style := lipgloss.NewStyle().Bold(true).Foreground(statusColors[label])
	line := style.Render(glyph) + "  " + style.Render(StatusText(v))
	if v.Backend != "" {
		line += dimStyle.Render("  via " + v.Backend)
	}
	return line
}

type control struct {
	key     string
	label   string
	enabled bool
}

// controls lists the key bindings with their enabled state for v.
func controls(v session.View) []control {
	muteLabel := "Mute"
	if v.Muted {
		muteLabel = "Unmute"
	}
	return []control{
		{key: "s", label: "Start", enabled: !v.Listening},
		{key: "x", label: "Stop", enabled: v.Listening},
		{key: "m", label: muteLabel, enabled: true},
		{key: "r", label: "Reset", enabled: true},
		{key: "c", label: "Copy", enabled: len(v.Lines) > 0},
	}
}

func renderControls(v session.View) string {
	parts := make([]string, 0, 6)
	for _, c := range controls(v) {
		text := fmt.Sprintf("%s %s", c.key, c.label)
		if c.enabled {
			parts = append(parts, keyStyle.Render(text))
			continue
		}
		parts = append(parts, disabledStyle.Render(text))
	}
	parts = append(parts, dimStyle.Render("q Quit"))
	return strings.Join(parts, " ")
}

func renderTranscript(v session.View, width int) string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Live Transcript") + "\n")

	if len(v.Lines) == 0 && v.Interim == "" {
		b.WriteString(dimStyle.Render(placeholder) + "\n")
		return b.String()
	}

	textWidth := width - len(LineTimeLayout) - 3
	if textWidth < 20 {
		textWidth = 20
	}
	body := lipgloss.NewStyle().Width(textWidth)

	for _, line := range v.Lines {
		stamp := timeStyle.Render(fmt.Sprintf("%12s", line.Timestamp.Format(LineTimeLayout)))
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, stamp, "  ", body.Render(line.Text)) + "\n")
	}
	if v.Interim != "" {
		stamp := dimStyle.Render(fmt.Sprintf("%12s", "Listening..."))
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, stamp, "  ", interimStyle.Width(textWidth).Render(v.Interim)) + "\n")
	}
	return b.String()
}
