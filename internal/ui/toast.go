package ui

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/spectree/spectree/internal/reorder"
)

// Toast prints reorder notifications as a bordered box on a writer (stderr by
// default). It is safe for concurrent use.
type Toast struct {
	mu  sync.Mutex
	out io.Writer
}

// NewToast returns a Toast writing to w; nil means os.Stderr.
func NewToast(w io.Writer) *Toast {
	if w == nil {
		w = os.Stderr
	}
	return &Toast{out: w}
}

var (
	toastStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted).
			Padding(0, 1)
	destructiveToastStyle = toastStyle.BorderForeground(ColorFail)
)

// Notify implements reorder.Notifier.
func (t *Toast) Notify(n reorder.Notification) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = io.WriteString(t.out, FormatNotification(n)+"\n")
}

// FormatNotification renders n the way Toast prints it.
func FormatNotification(n reorder.Notification) string {
	style, title := toastStyle, AccentStyle.Bold(true).Render(IconInfo+" "+n.Title)
	if n.Variant == reorder.VariantDestructive {
		style, title = destructiveToastStyle, FailStyle.Bold(true).Render(IconFail+" "+n.Title)
	}
	body := title
	if n.Description != "" {
		body += "\n" + n.Description
	}
	return style.Render(body)
}
