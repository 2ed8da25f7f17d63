// Package ui provides terminal styling for spectree CLI output.
// Uses the Ayu color theme with adaptive light/dark mode support.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/spectree/spectree/internal/types"
)

// Ayu theme color palette
// Dark: https://terminalcolors.com/themes/ayu/dark/
// Light: https://terminalcolors.com/themes/ayu/light/
var (
	ColorPass = lipgloss.AdaptiveColor{
		Light: "#86b300",
		Dark:  "#c2d94c",
	}
	ColorWarn = lipgloss.AdaptiveColor{
		Light: "#f2ae49",
		Dark:  "#ffb454",
	}
	ColorFail = lipgloss.AdaptiveColor{
		Light: "#f07171",
		Dark:  "#f07178",
	}
	ColorMuted = lipgloss.AdaptiveColor{
		Light: "#828c99",
		Dark:  "#6c7680",
	}
	ColorAccent = lipgloss.AdaptiveColor{
		Light: "#399ee6",
		Dark:  "#59c2ff",
	}
	ColorPurple = lipgloss.AdaptiveColor{
		Light: "#a37acc",
		Dark:  "#d2a6ff",
	}
)

// Status styles - consistent across all commands
var (
	PassStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
)

// CategoryStyle for section headers - bold with accent color
var CategoryStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)

// Per-level label styles for tree output.
var levelStyles = map[types.ItemType]lipgloss.Style{
	types.TypeEpic:      lipgloss.NewStyle().Bold(true).Foreground(ColorPurple),
	types.TypeFeature:   lipgloss.NewStyle().Foreground(ColorAccent),
	types.TypeUserStory: lipgloss.NewStyle().Foreground(ColorPass),
	types.TypeTask:      MutedStyle,
}

// Status icons
const (
	IconPass = "✓"
	IconWarn = "⚠"
	IconFail = "✗"
	IconInfo = "ℹ"
)

// Tree characters for hierarchical display
const (
	TreeBranch = "├─ "
	TreeLast   = "└─ "
	TreePipe   = "│  "
	TreeIndent = "   "
)

func RenderMuted(s string) string { return MutedStyle.Render(s) }
func RenderAccent(s string) string { return AccentStyle.Render(s) }

// RenderCategory renders a category header in uppercase with accent color
func RenderCategory(s string) string {
	return CategoryStyle.Render(strings.ToUpper(s))
}

func RenderPassIcon() string { return PassStyle.Render(IconPass) }
func RenderWarnIcon() string { return WarnStyle.Render(IconWarn) }
func RenderFailIcon() string { return FailStyle.Render(IconFail) }

// RenderLevel renders the short label for an item type, e.g. "Epic".
func RenderLevel(t types.ItemType) string {
	style, ok := levelStyles[t]
	if !ok {
		return t.Label()
	}
	return style.Render(t.Label())
}

// RenderStatus renders a workflow status with a matching color.
func RenderStatus(s types.Status) string {
	switch s {
	case types.StatusDone:
		return PassStyle.Render(IconPass + " done")
	case types.StatusInProgress:
		return WarnStyle.Render("in progress")
	case types.StatusTodo:
		return MutedStyle.Render("todo")
	}
	return ""
}

// RenderPriority renders a priority; high is flagged in red.
func RenderPriority(p types.Priority) string {
	switch p {
	case types.PriorityHigh:
		return FailStyle.Render("high")
	case types.PriorityMedium:
		return WarnStyle.Render("medium")
	case types.PriorityLow:
		return MutedStyle.Render("low")
	}
	return ""
}
