package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorPrimary = lipgloss.Color("12") // Blue
	colorSuccess = lipgloss.Color("10") // Green
	colorWarning = lipgloss.Color("11") // Yellow
	colorError   = lipgloss.Color("9")  // Red
	colorMuted   = lipgloss.Color("8")  // Gray
	colorWhite   = lipgloss.Color("15") // White
)

func badge(bg lipgloss.Color, fg lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Background(bg).
		Foreground(fg).
		Padding(0, 1).
		Bold(true)
}

var (
	badgeOK      = badge(colorSuccess, lipgloss.Color("0"))
	badgeChanged = badge(colorPrimary, colorWhite)
	badgeDrift   = badge(colorWarning, lipgloss.Color("0"))
	badgeError   = badge(colorError, colorWhite)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite).
			Background(colorPrimary).
			Padding(0, 2)

	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
)

// RenderBadge renders text as a status badge, or as [TEXT] without colors.
func RenderBadge(text string, style lipgloss.Style) string {
	if !EnableColors() {
		return "[" + text + "]"
	}
	return style.Render(text)
}

// RenderStatus picks a badge for a table or object status. Known statuses:
// ok/none, created/altered/recreated, drift/missing/differs; anything else
// renders as an error.
func RenderStatus(status string) string {
	text := strings.ToUpper(status)
	switch status {
	case "ok", "none":
		return RenderBadge("OK", badgeOK)
	case "created", "altered", "recreated":
		return RenderBadge(text, badgeChanged)
	case "drift", "missing", "differs":
		return RenderBadge(text, badgeDrift)
	default:
		return RenderBadge(text, badgeError)
	}
}

// RenderTitle renders a styled title.
func RenderTitle(text string) string {
	if !EnableColors() {
		return "═══ " + text + " ═══"
	}
	return titleStyle.Render(text)
}

// Muted renders secondary text.
func Muted(text string) string {
	if !EnableColors() {
		return text
	}
	return mutedStyle.Render(text)
}

// Success renders a one-line success message.
func Success(format string, args ...any) string {
	msg := "✓ " + fmt.Sprintf(format, args...)
	if !EnableColors() {
		return msg
	}
	return successStyle.Render(msg)
}

// Failure renders a one-line error message.
func Failure(format string, args ...any) string {
	msg := "✗ " + fmt.Sprintf(format, args...)
	if !EnableColors() {
		return msg
	}
	return errorStyle.Render(msg)
}
