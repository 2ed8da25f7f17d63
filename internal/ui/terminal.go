package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// ShouldUseColor follows the NO_COLOR / CLICOLOR conventions. NO_COLOR wins
// over CLICOLOR_FORCE; without either, color is used only on a terminal.
func ShouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	if v := os.Getenv("CLICOLOR_FORCE"); v != "" && v != "0" {
		return true
	}
	return IsTerminal()
}

// ShouldUseEmoji is false when SPECTREE_NO_EMOJI is set or stdout is not a
// terminal.
func ShouldUseEmoji() bool {
	if os.Getenv("SPECTREE_NO_EMOJI") != "" {
		return false
	}
	return IsTerminal()
}

// ConfigureColor sets the lipgloss color profile for this process. Call once
// at startup, before anything is rendered.
func ConfigureColor() {
	if !ShouldUseColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	if os.Getenv("CLICOLOR_FORCE") != "" && !IsTerminal() {
		lipgloss.SetColorProfile(termenv.ANSI256)
	}
}

// TerminalWidth returns the stdout width, or fallback when it is unknown.
func TerminalWidth(fallback int) int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return fallback
}
